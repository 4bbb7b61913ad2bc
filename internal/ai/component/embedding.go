package component

import (
	"context"
	"fmt"

	dashscopeembed "github.com/cloudwego/eino-ext/components/embedding/dashscope"
	openaiembed "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"tendero/internal/config"
)

// NewEmbedder 创建向量化 Embedder
// 支持多种 Provider: openai, dashscope
func NewEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return newOpenAIEmbedder(ctx, cfg)
	case "dashscope":
		return newDashScopeEmbedder(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// newOpenAIEmbedder 创建 OpenAI Embedder
func newOpenAIEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	embedCfg := &openaiembed.EmbeddingConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}

	// Base URL (用于代理或兼容 API)
	if cfg.BaseURL != "" {
		embedCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		embedCfg.Timeout = cfg.Timeout
	}

	return openaiembed.NewEmbedder(ctx, embedCfg)
}

// newDashScopeEmbedder 创建 DashScope Embedder
func newDashScopeEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	embedCfg := &dashscopeembed.EmbeddingConfig{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}

	return dashscopeembed.NewEmbedder(ctx, embedCfg)
}
