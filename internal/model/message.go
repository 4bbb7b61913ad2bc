package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sender 消息发送方
type Sender string

const (
	SenderUser  Sender = "user"  // 终端用户
	SenderBot   Sender = "bot"   // 导购助手
	SenderAdmin Sender = "admin" // 人工客服
)

// MessageType 消息类型
type MessageType string

const (
	MessageTypeText       MessageType = "text"       // 纯文本
	MessageTypeStructured MessageType = "structured" // 携带结构化元数据（商品、按钮、购物车快照等）
)

// Message 消息实体，创建后不可变
type Message struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ConversationID primitive.ObjectID `bson:"conversation_id" json:"conversation_id"`
	Content        string             `bson:"content" json:"content"`
	Sender         Sender             `bson:"sender" json:"sender"`
	Type           MessageType        `bson:"type" json:"type"`
	Metadata       map[string]any     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// Collection 返回集合名称
func (m *Message) Collection() string { return "messages" }

// EnsureIndexes 创建和维护索引
func (m *Message) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(m.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_conversation_created"),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
