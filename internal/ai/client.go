package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/embedding"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	"tendero/internal/ai/component"
	"tendero/internal/config"
	"tendero/internal/model"
)

// Client AI 能力层客户端
// 职责: 封装对话模型与向量化模型，提供统一接口
// 所有方法在提供方调用期间不持有任何进程内锁
type Client struct {
	cfg       *config.AIConfig
	chatModel einomodel.ChatModel
	embedder  embedding.Embedder
}

// NewClient 创建 AI 客户端
func NewClient(ctx context.Context, aiCfg *config.AIConfig, embedCfg *config.EmbeddingConfig) (*Client, error) {
	if aiCfg.APIKey == "" {
		log.Warn().Msg("AI API key not configured, model calls will fail")
	}

	chatModel, err := component.NewChatModel(ctx, aiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	embedder, err := component.NewEmbedder(ctx, embedCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	return &Client{
		cfg:       aiCfg,
		chatModel: chatModel,
		embedder:  embedder,
	}, nil
}

// Complete 以系统指令 + 对话上下文生成回复
func (c *Client) Complete(ctx context.Context, system string, transcript []*schema.Message) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	messages := make([]*schema.Message, 0, len(transcript)+1)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	messages = append(messages, transcript...)

	response, err := c.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", &model.ProviderError{Op: "complete", Err: err}
	}
	if response.Content == "" {
		return "", &model.ProviderError{Op: "complete", Err: fmt.Errorf("empty response from chat model")}
	}

	return response.Content, nil
}

// Embed 计算文本向量
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	vectors, err := c.embedder.EmbedStrings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("embedder returned no vector")
	}

	return vectors[0], nil
}

const classifyIntentPrompt = `You are an intent classifier for a storefront shopping assistant.
Classify the user message into exactly one of:
product_inquiry, purchase, cart, checkout, general.
Reply with JSON only: {"intent": "<label>", "confidence": <0..1>}

User message: %s`

// ClassifyIntent 通过模型对意图做分类（关键词未命中时的兜底）
func (c *Client) ClassifyIntent(ctx context.Context, text string) (Intent, float64, error) {
	raw, err := c.completeRaw(ctx, fmt.Sprintf(classifyIntentPrompt, text))
	if err != nil {
		return IntentGeneral, 0, &model.ProviderError{Op: "classify", Err: err}
	}

	var parsed struct {
		Intent     string  `json:"intent"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return IntentGeneral, 0, &model.ProviderError{Op: "classify", Err: fmt.Errorf("unparseable classifier output: %w", err)}
	}

	return ParseIntent(parsed.Intent), parsed.Confidence, nil
}

const classifyAffirmationPrompt = `The shopping assistant asked the user a yes/no question.
Classify the user's reply as one of: affirmative, negative, unclear.
Reply with JSON only: {"label": "<label>", "confidence": <0..1>}

User reply: %s`

// ClassifyAffirmation 通过模型判断模糊回复是肯定还是否定
func (c *Client) ClassifyAffirmation(ctx context.Context, text string) (string, float64, error) {
	raw, err := c.completeRaw(ctx, fmt.Sprintf(classifyAffirmationPrompt, text))
	if err != nil {
		return "unclear", 0, &model.ProviderError{Op: "classify", Err: err}
	}

	var parsed struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return "unclear", 0, &model.ProviderError{Op: "classify", Err: fmt.Errorf("unparseable classifier output: %w", err)}
	}

	switch strings.ToLower(strings.TrimSpace(parsed.Label)) {
	case "affirmative", "negative":
		return strings.ToLower(strings.TrimSpace(parsed.Label)), parsed.Confidence, nil
	default:
		return "unclear", parsed.Confidence, nil
	}
}

// completeRaw 单轮无系统指令调用
func (c *Client) completeRaw(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	response, err := c.chatModel.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", err
	}
	return response.Content, nil
}

// withTimeout 应用配置的提供方超时
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, c.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// extractJSON 截取模型输出中的首个 JSON 对象
// 模型偶尔会在 JSON 前后包裹说明文字或代码块标记
func extractJSON(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
