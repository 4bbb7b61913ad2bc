package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConversationStatus 对话状态
type ConversationStatus string

const (
	ConversationStatusActive    ConversationStatus = "active"    // 进行中
	ConversationStatusEscalated ConversationStatus = "escalated" // 已转人工
	ConversationStatusClosed    ConversationStatus = "closed"    // 已关闭
)

// Conversation 对话实体
// 每个租户（商家）下按 session_id 唯一，message_count 严格等于其下消息行数
// is_persisted 为单向晋升标记：一旦为 true 永不回退
type Conversation struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	UserID    string             `bson:"user_id,omitempty" json:"user_id,omitempty"` // 匿名访客为空
	SessionID string             `bson:"session_id" json:"session_id"`

	Status   ConversationStatus `bson:"status" json:"status"`
	Priority string             `bson:"priority,omitempty" json:"priority,omitempty"`

	MessageCount int  `bson:"message_count" json:"message_count"`
	IsPersisted  bool `bson:"is_persisted" json:"is_persisted"`

	// 列表展示用的汇总字段，随每条消息写入同步更新
	LastMessagePreview string    `bson:"last_message_preview,omitempty" json:"last_message_preview,omitempty"`
	LastMessageSender  Sender    `bson:"last_message_sender,omitempty" json:"last_message_sender,omitempty"`
	LastActivity       time.Time `bson:"last_activity,omitempty" json:"last_activity,omitempty"`

	AssignedTo string         `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	Tags       []string       `bson:"tags,omitempty" json:"tags,omitempty"`
	Metadata   map[string]any `bson:"metadata,omitempty" json:"metadata,omitempty"`

	StartedAt *time.Time `bson:"started_at,omitempty" json:"started_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (c *Conversation) Collection() string { return "conversations" }

// EnsureIndexes 创建和维护索引
// (tenant_id, session_id) 唯一索引是并发创建幂等性的基础：
// 竞争创建时败者触发重复键错误，由 Ledger 回读胜者记录
func (c *Conversation) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(c.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "session_id", Value: 1}},
			Options: options.Index().SetName("idx_tenant_session").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "user_id", Value: 1}, {Key: "last_activity", Value: -1}},
			Options: options.Index().SetName("idx_tenant_user_activity"),
		},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "is_persisted", Value: 1}, {Key: "last_activity", Value: -1}},
			Options: options.Index().SetName("idx_tenant_persisted_activity"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
