package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"tendero/internal/model"
	"tendero/internal/repository"
)

// Resolution 对话定位方式，随响应日志输出便于排查
type Resolution string

const (
	ResolvedByID      Resolution = "found_by_id"
	ResolvedBySession Resolution = "found_by_session"
	ResolvedByUser    Resolution = "found_by_user"
	ResolvedByCreate  Resolution = "created"
)

// ConversationStore 台账依赖的对话存储能力
type ConversationStore interface {
	Create(ctx context.Context, conv *model.Conversation) error
	FindByID(ctx context.Context, id string) (*model.Conversation, error)
	FindBySession(ctx context.Context, tenantID, sessionID string) (*model.Conversation, error)
	FindLatestByUser(ctx context.Context, tenantID, userID string) (*model.Conversation, error)
	ListPersisted(ctx context.Context, tenantID string, limit, offset int64) ([]*model.Conversation, error)
	ApplyMessageRollup(ctx context.Context, id primitive.ObjectID, sender model.Sender, preview string, threshold int) (*model.Conversation, error)
	Update(ctx context.Context, id string, update bson.M) error
}

// MessageStore 台账依赖的消息存储能力
type MessageStore interface {
	Insert(ctx context.Context, msg *model.Message) error
	ListRecent(ctx context.Context, conversationID primitive.ObjectID, limit int64) ([]*model.Message, error)
	FindLastStructured(ctx context.Context, conversationID primitive.ObjectID) (*model.Message, error)
}

// LedgerService 对话台账服务
// 职责: 对话的定位与创建、消息落库、汇总字段与持久化晋升
type LedgerService struct {
	conversations      ConversationStore
	messages           MessageStore
	promotionThreshold int
	previewLength      int
}

// NewLedgerService 创建对话台账服务
func NewLedgerService(conversations ConversationStore, messages MessageStore, promotionThreshold, previewLength int) *LedgerService {
	return &LedgerService{
		conversations:      conversations,
		messages:           messages,
		promotionThreshold: promotionThreshold,
		previewLength:      previewLength,
	}
}

// EnsureConversation 定位或创建对话
// 解析顺序: conversation_id -> (tenant, session) -> 用户最近活跃对话 -> 新建。
// 新建依赖 session_id；并发新建同一会话时败者回读胜者记录，调用方无感知
func (s *LedgerService) EnsureConversation(ctx context.Context, tenantID, conversationID, sessionID, userID string) (*model.Conversation, Resolution, error) {
	if tenantID == "" {
		return nil, "", model.ErrInvalidTenant
	}

	if conversationID != "" {
		conv, err := s.conversations.FindByID(ctx, conversationID)
		if err != nil {
			return nil, "", err
		}
		if conv.TenantID != tenantID {
			// 跨租户的对话 ID 按不存在处理，不泄露其它商家的数据
			return nil, "", model.ErrNotFound
		}
		return conv, ResolvedByID, nil
	}

	if sessionID != "" {
		conv, err := s.conversations.FindBySession(ctx, tenantID, sessionID)
		if err == nil {
			return conv, ResolvedBySession, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, "", err
		}
	}

	if userID != "" {
		conv, err := s.conversations.FindLatestByUser(ctx, tenantID, userID)
		if err == nil {
			return conv, ResolvedByUser, nil
		}
		if !errors.Is(err, model.ErrNotFound) {
			return nil, "", err
		}
	}

	if sessionID == "" {
		return nil, "", model.ErrSessionRequired
	}

	conv := &model.Conversation{
		TenantID:  tenantID,
		SessionID: sessionID,
		UserID:    userID,
		Status:    model.ConversationStatusActive,
	}
	err := s.conversations.Create(ctx, conv)
	if err == nil {
		return conv, ResolvedByCreate, nil
	}
	if errors.Is(err, repository.ErrDuplicateSession) {
		// 并发竞争：回读唯一索引的胜者
		winner, readErr := s.conversations.FindBySession(ctx, tenantID, sessionID)
		if readErr != nil {
			return nil, "", readErr
		}
		return winner, ResolvedBySession, nil
	}
	return nil, "", err
}

// LogResult 消息落库结果
// Conversation 为 nil 表示消息已落库但汇总更新失败，
// 汇总字段随下一条消息的更新自愈
type LogResult struct {
	Message      *model.Message
	Conversation *model.Conversation
}

// LogMessage 落一条消息并原子更新对话汇总字段
// 内容为空在任何副作用之前拒绝；消息落库成功但汇总更新失败时
// 消息保留并照常返回，只缺汇总后的对话快照
func (s *LedgerService) LogMessage(ctx context.Context, conversationID primitive.ObjectID, sender model.Sender, content string, msgType model.MessageType, metadata map[string]any) (*LogResult, error) {
	if strings.TrimSpace(content) == "" {
		return nil, model.ErrEmptyContent
	}

	msg := &model.Message{
		ConversationID: conversationID,
		Content:        content,
		Sender:         sender,
		Type:           msgType,
		Metadata:       metadata,
	}
	if err := s.messages.Insert(ctx, msg); err != nil {
		return nil, err
	}

	conv, err := s.conversations.ApplyMessageRollup(ctx, conversationID, sender, s.preview(content), s.promotionThreshold)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID.Hex()).
			Msg("message stored but rollup update failed")
		return &LogResult{Message: msg}, nil
	}
	return &LogResult{Message: msg, Conversation: conv}, nil
}

// GetRecentMessages 读取对话最近消息（时间正序）
// 读取失败降级为空列表：历史缺失只影响上下文质量，不应阻断调用方
func (s *LedgerService) GetRecentMessages(ctx context.Context, conversationID primitive.ObjectID, limit int64) []*model.Message {
	msgs, err := s.messages.ListRecent(ctx, conversationID, limit)
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID.Hex()).
			Msg("failed to load recent messages")
		return []*model.Message{}
	}
	return msgs
}

// GetConversation 读取对话，租户不匹配按不存在处理
func (s *LedgerService) GetConversation(ctx context.Context, tenantID, id string) (*model.Conversation, error) {
	conv, err := s.conversations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.TenantID != tenantID {
		return nil, model.ErrNotFound
	}
	return conv, nil
}

// ListConversations 租户下已晋升持久化的对话列表
func (s *LedgerService) ListConversations(ctx context.Context, tenantID string, limit, offset int64) ([]*model.Conversation, error) {
	if tenantID == "" {
		return nil, model.ErrInvalidTenant
	}
	return s.conversations.ListPersisted(ctx, tenantID, limit, offset)
}

// UpdateConversation 运营侧对对话可变字段的部分更新
// metadata 为键级合并，不整体替换已有元数据
func (s *LedgerService) UpdateConversation(ctx context.Context, tenantID, id string, req *model.UpdateConversationRequest) (*model.Conversation, error) {
	if _, err := s.GetConversation(ctx, tenantID, id); err != nil {
		return nil, err
	}

	set := bson.M{}
	if req.Status != nil {
		switch *req.Status {
		case model.ConversationStatusActive, model.ConversationStatusEscalated, model.ConversationStatusClosed:
			set["status"] = *req.Status
		default:
			return nil, model.ErrInvalidStatus
		}
	}
	if req.Priority != nil {
		set["priority"] = *req.Priority
	}
	if req.AssignedTo != nil {
		set["assigned_to"] = *req.AssignedTo
	}
	if req.Tags != nil {
		set["tags"] = req.Tags
	}
	for k, v := range req.Metadata {
		set["metadata."+k] = v
	}

	if len(set) > 0 {
		if err := s.conversations.Update(ctx, id, bson.M{"$set": set}); err != nil {
			return nil, err
		}
	}

	return s.GetConversation(ctx, tenantID, id)
}

// LastDialogueMetadata 读取对话最近一条结构化消息的元数据
// 购买会话状态缓存未命中时据此尽力重建
func (s *LedgerService) LastDialogueMetadata(ctx context.Context, conversationID string) (map[string]any, error) {
	objectID, err := primitive.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, model.ErrInvalidID
	}

	msg, err := s.messages.FindLastStructured(ctx, objectID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return msg.Metadata, nil
}

// preview 截取汇总展示用的消息预览（按字符截断）
func (s *LedgerService) preview(content string) string {
	runes := []rune(content)
	if len(runes) <= s.previewLength {
		return content
	}
	return string(runes[:s.previewLength])
}
