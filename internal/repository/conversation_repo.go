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

// ErrDuplicateSession 并发创建同一 (tenant, session) 对话时的唯一索引冲突
var ErrDuplicateSession = errors.New("conversation already exists for session")

// ConversationRepo 对话仓库
type ConversationRepo struct {
	collection *mongo.Collection
}

// NewConversationRepo 创建对话仓库
func NewConversationRepo(db *mongo.Database) *ConversationRepo {
	return &ConversationRepo{
		collection: db.Collection("conversations"),
	}
}

// Create 创建对话
// (tenant_id, session_id) 唯一索引冲突时返回 ErrDuplicateSession，
// 调用方应回读竞争胜者的记录而不是向上传播冲突
func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) error {
	now := time.Now()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	if conv.Status == "" {
		conv.Status = model.ConversationStatusActive
	}

	result, err := r.collection.InsertOne(ctx, conv)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateSession
		}
		return err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		conv.ID = oid
	}
	return nil
}

// FindByID 根据 ID 查询
func (r *ConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, model.ErrInvalidID
	}

	var conv model.Conversation
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	return &conv, nil
}

// FindBySession 根据会话 ID 查询
func (r *ConversationRepo) FindBySession(ctx context.Context, tenantID, sessionID string) (*model.Conversation, error) {
	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{
		"tenant_id":  tenantID,
		"session_id": sessionID,
	}).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	return &conv, nil
}

// FindLatestByUser 查询用户最近活跃的对话
func (r *ConversationRepo) FindLatestByUser(ctx context.Context, tenantID, userID string) (*model.Conversation, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "last_activity", Value: -1}})

	var conv model.Conversation
	err := r.collection.FindOne(ctx, bson.M{
		"tenant_id": tenantID,
		"user_id":   userID,
	}, opts).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	return &conv, nil
}

// ListPersisted 查询租户下已晋升持久化的对话列表
// 未晋升的对话（寒暄、弃用会话）不出现在运营侧列表中
func (r *ConversationRepo) ListPersisted(ctx context.Context, tenantID string, limit, offset int64) ([]*model.Conversation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "last_activity", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{
		"tenant_id":    tenantID,
		"is_persisted": true,
	}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var convs []*model.Conversation
	if err := cursor.All(ctx, &convs); err != nil {
		return nil, err
	}

	return convs, nil
}

// ApplyMessageRollup 消息写入后的汇总字段原子更新
// 单次更新完成：message_count 自增、last_* 刷新、started_at 首次落值、
// 以及消息数达到晋升阈值时把 is_persisted 置为 true（单向，不会回退）
// 汇总值派生自本次更新而非独立缓存的计数器，保证与消息行严格一致
func (r *ConversationRepo) ApplyMessageRollup(ctx context.Context, id primitive.ObjectID, sender model.Sender, preview string, threshold int) (*model.Conversation, error) {
	now := time.Now()
	newCount := bson.D{{Key: "$add", Value: bson.A{
		bson.D{{Key: "$ifNull", Value: bson.A{"$message_count", 0}}}, 1,
	}}}

	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "message_count", Value: newCount},
			{Key: "is_persisted", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gte", Value: bson.A{newCount, threshold}}},
				true,
				bson.D{{Key: "$ifNull", Value: bson.A{"$is_persisted", false}}},
			}}}},
			{Key: "last_message_preview", Value: preview},
			{Key: "last_message_sender", Value: sender},
			{Key: "last_activity", Value: now},
			{Key: "started_at", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$started_at", now}}}},
			{Key: "updated_at", Value: now},
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv model.Conversation
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	return &conv, nil
}

// Update 更新对话
func (r *ConversationRepo) Update(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return model.ErrInvalidID
	}

	if setDoc, ok := update["$set"].(bson.M); ok {
		setDoc["updated_at"] = time.Now()
	} else {
		update["$set"] = bson.M{"updated_at": time.Now()}
	}
	_, err = r.collection.UpdateByID(ctx, objectID, update)
	return err
}
