package config

import (
	"errors"
	"time"
)

// Config 应用配置根结构
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	AI        AIConfig        `mapstructure:"ai"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Log       LogConfig       `mapstructure:"log"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Session   SessionConfig   `mapstructure:"session"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig 对话模型配置
type AIConfig struct {
	Provider string          `mapstructure:"provider"`
	APIKey   string          `mapstructure:"api_key"`
	Model    string          `mapstructure:"model"`
	BaseURL  string          `mapstructure:"base_url"`
	Timeout  time.Duration   `mapstructure:"timeout"`
	Options  AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig 模型参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// EmbeddingConfig 向量化模型配置
type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	Model    string        `mapstructure:"model"`
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AssistantConfig 导购助手策略配置
// 阈值类参数均为产品策略而非正确性约束，因此全部可配置
type AssistantConfig struct {
	MemoryWindow       int           `mapstructure:"memory_window"`       // 上下文记忆窗口（条数）
	PromotionThreshold int           `mapstructure:"promotion_threshold"` // 对话持久化晋升阈值（消息数）
	ScoreThreshold     float64       `mapstructure:"score_threshold"`     // 知识检索相似度阈值
	TopK               int           `mapstructure:"top_k"`               // 知识检索返回条数上限
	DialogueTTL        time.Duration `mapstructure:"dialogue_ttl"`        // 购买会话状态过期时间
	IncludeAdminTurns  bool          `mapstructure:"include_admin_turns"` // 是否将人工客服消息纳入模型上下文
	PreviewLength      int           `mapstructure:"preview_length"`      // 最后一条消息摘要长度
	IntentConfidence   float64       `mapstructure:"intent_confidence"`   // 模型意图分类可信度下限
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig 会话令牌配置
type SessionConfig struct {
	Secret string        `mapstructure:"secret"` // 会话令牌签名密钥
	Expiry time.Duration `mapstructure:"expiry"` // 会话令牌过期时间
}

// Validate 验证配置有效性
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.Assistant.MemoryWindow <= 0 {
		return errors.New("assistant.memory_window must be positive")
	}
	if c.Assistant.PromotionThreshold <= 0 {
		return errors.New("assistant.promotion_threshold must be positive")
	}
	if c.Assistant.ScoreThreshold < -1 || c.Assistant.ScoreThreshold > 1 {
		return errors.New("assistant.score_threshold must be within [-1, 1]")
	}
	if c.Assistant.TopK <= 0 {
		return errors.New("assistant.top_k must be positive")
	}

	return nil
}
