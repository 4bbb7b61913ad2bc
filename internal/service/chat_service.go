package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tendero/internal/ai"
	"tendero/internal/config"
	"tendero/internal/dialogue"
	"tendero/internal/memory"
	"tendero/internal/model"
	"tendero/internal/repository"
	"tendero/internal/retrieval"
)

// 提供方故障时的兜底回复，保证用户永远能收到消息
const fallbackReply = "Lo siento, ahora mismo no puedo responderte. Inténtalo de nuevo en unos minutos."

const systemPromptWithContext = `Eres el asistente de compras de esta tienda. Responde en el idioma del cliente,
de forma breve y amable. Usa únicamente la siguiente información de la tienda
cuando sea relevante; si no cubre la pregunta, dilo con honestidad:

%s`

const systemPromptGeneral = `Eres el asistente de compras de esta tienda. Responde en el idioma del cliente,
de forma breve y amable. Si no conoces un dato de la tienda, dilo con honestidad
y ofrece avisar a un agente humano.`

// 商品咨询时注入系统指令的目录条数上限
const catalogSummaryLimit = 20

// ChatService 对话编排服务
// 职责: 串联台账、意图、购买状态机、检索与记忆，产出单条回复
// 流程: 定位对话 -> 落用户消息 -> 意图 -> 状态机短路或 RAG 生成 -> 落机器人消息
type ChatService struct {
	aiClient *ai.Client
	ledger   *LedgerService
	memory   *memory.Assembler
	index    *retrieval.Index
	dialogue *dialogue.Engine
	products *repository.ProductRepo
	cfg      *config.AssistantConfig
}

// NewChatService 创建对话编排服务
func NewChatService(aiClient *ai.Client, ledger *LedgerService, assembler *memory.Assembler, index *retrieval.Index, engine *dialogue.Engine, products *repository.ProductRepo, cfg *config.AssistantConfig) *ChatService {
	return &ChatService{
		aiClient: aiClient,
		ledger:   ledger,
		memory:   assembler,
		index:    index,
		dialogue: engine,
		products: products,
		cfg:      cfg,
	}
}

// HandleMessage 处理一条用户消息
func (s *ChatService) HandleMessage(ctx context.Context, req *model.ChatMessageRequest) (*model.ChatMessageResponse, error) {
	start := time.Now()

	conv, resolution, err := s.ledger.EnsureConversation(ctx, req.TenantID, req.ConversationID, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("tenant_id", req.TenantID).
		Str("conversation_id", conv.ID.Hex()).
		Str("resolution", string(resolution)).
		Logger()

	// 用户消息先落库：后续任何一步失败，这条消息都已在台账中
	if _, err := s.ledger.LogMessage(ctx, conv.ID, model.SenderUser, req.Message, model.MessageTypeText, nil); err != nil {
		return nil, err
	}

	intent := s.detectIntent(ctx, req.Message, logger)

	resp := &model.ChatMessageResponse{
		Intent:         string(intent),
		ConversationID: conv.ID.Hex(),
	}

	// 进行中的购买流程优先于常规问答
	if intent.IsPurchaseFlow() || s.dialogue.Active(ctx, conv.ID.Hex()) {
		step, err := s.dialogue.Step(ctx, dialogue.StepInput{
			ConversationID: conv.ID.Hex(),
			TenantID:       req.TenantID,
			Text:           req.Message,
			Intent:         intent,
		})
		if err != nil {
			logger.Error().Err(err).Msg("dialogue step failed")
			return nil, err
		}

		if step.Handled {
			s.logBotReply(ctx, conv.ID, step.Reply, model.MessageTypeStructured, step.Metadata, logger)

			resp.Reply = step.Reply
			resp.Cart = step.Cart
			resp.RedirectCheckout = step.RedirectCheckout
			resp.ProcessingTimeMs = time.Since(start).Milliseconds()
			logger.Info().Str("intent", string(intent)).Str("stage", string(step.Stage)).
				Int64("elapsed_ms", resp.ProcessingTimeMs).Msg("dialogue turn completed")
			return resp, nil
		}
		// 状态机放行：回落到常规问答路径，购买状态原样保留
	}

	search := s.index.Search(ctx, req.TenantID, req.Message, s.cfg.TopK, s.cfg.ScoreThreshold)
	if search.Err != nil {
		logger.Warn().Err(search.Err).Msg("retrieval degraded, replying without store knowledge")
	}

	system := systemPromptGeneral
	if search.Context != "" {
		system = fmt.Sprintf(systemPromptWithContext, search.Context)
	}
	if intent == ai.IntentProductInquiry {
		if summary := s.catalogSummary(ctx, req.TenantID); summary != "" {
			system += "\n\nCatálogo de la tienda:\n" + summary
		}
	}

	transcript := s.memory.Build(ctx, conv.ID, req.Message)

	reply, err := s.aiClient.Complete(ctx, system, transcript)
	if err != nil {
		// 提供方故障不是用户的错：降级回复并照常落库
		logger.Error().Err(err).Msg("completion failed, using fallback reply")
		reply = fallbackReply
	}

	s.logBotReply(ctx, conv.ID, reply, model.MessageTypeText, nil, logger)

	resp.Reply = reply
	resp.Sources = search.Sources
	resp.ProcessingTimeMs = time.Since(start).Milliseconds()
	logger.Info().Str("intent", string(intent)).
		Int("sources", len(search.Sources)).
		Float64("relevance", search.RelevanceScore).
		Int64("elapsed_ms", resp.ProcessingTimeMs).
		Msg("chat turn completed")

	return resp, nil
}

// detectIntent 关键词优先，未命中走模型分类，置信度不足回落 general
func (s *ChatService) detectIntent(ctx context.Context, text string, logger zerolog.Logger) ai.Intent {
	intent, confidence := ai.DetectIntent(text)
	if confidence > 0 {
		return intent
	}

	intent, confidence, err := s.aiClient.ClassifyIntent(ctx, text)
	if err != nil {
		logger.Warn().Err(err).Msg("intent classification failed, defaulting to general")
		return ai.IntentGeneral
	}
	if confidence < s.cfg.IntentConfidence {
		return ai.IntentGeneral
	}
	return intent
}

// catalogSummary 商品咨询时折叠进系统指令的目录摘要
// 目录读取失败就地降级为空摘要
func (s *ChatService) catalogSummary(ctx context.Context, tenantID string) string {
	products, err := s.products.ListByTenant(ctx, tenantID, catalogSummaryLimit)
	if err != nil {
		log.Warn().Err(err).Str("tenant_id", tenantID).Msg("catalog summary lookup failed")
		return ""
	}

	var b strings.Builder
	for _, p := range products {
		fmt.Fprintf(&b, "- %s (%s): $%.2f", p.Name, p.Category, p.Price)
		if p.Stock == 0 {
			b.WriteString(" [agotado]")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// logBotReply 落机器人回复；失败只告警，不丢弃已生成的回复
func (s *ChatService) logBotReply(ctx context.Context, conversationID primitive.ObjectID, reply string, msgType model.MessageType, metadata map[string]any, logger zerolog.Logger) {
	if _, err := s.ledger.LogMessage(ctx, conversationID, model.SenderBot, reply, msgType, metadata); err != nil {
		logger.Warn().Err(err).Msg("failed to store bot reply")
	}
}
