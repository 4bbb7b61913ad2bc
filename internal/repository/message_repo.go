package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tendero/internal/model"
)

// MessageRepo 消息仓库
// 消息只增不改：同一对话的并发重复提交会合法地产生两条消息行，
// 读侧（记忆装配）负责去重，写侧不做任何合并
type MessageRepo struct {
	collection *mongo.Collection
}

// NewMessageRepo 创建消息仓库
func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{
		collection: db.Collection("messages"),
	}
}

// Insert 追加消息
func (r *MessageRepo) Insert(ctx context.Context, msg *model.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.Type == "" {
		msg.Type = model.MessageTypeText
	}

	result, err := r.collection.InsertOne(ctx, msg)
	if err != nil {
		return err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		msg.ID = oid
	}
	return nil
}

// ListRecent 查询对话最近 limit 条消息，按时间正序返回
// 倒序取最近一段再反转，窗口之外的旧消息不加载
func (r *MessageRepo) ListRecent(ctx context.Context, conversationID primitive.ObjectID, limit int64) ([]*model.Message, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var msgs []*model.Message
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}

	// 反转为正序（最早的在前）
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	return msgs, nil
}

// FindLastStructured 查询对话最近一条结构化消息
// 购买会话状态缓存未命中时，从其 metadata 尽力重建
func (r *MessageRepo) FindLastStructured(ctx context.Context, conversationID primitive.ObjectID) (*model.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var msg model.Message
	err := r.collection.FindOne(ctx, bson.M{
		"conversation_id": conversationID,
		"type":            model.MessageTypeStructured,
	}, opts).Decode(&msg)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	return &msg, nil
}

// CountByConversation 统计对话消息数
func (r *MessageRepo) CountByConversation(ctx context.Context, conversationID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"conversation_id": conversationID})
}
