package model

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// KnowledgeDocument 知识库文档
// 按 (tenant_id, doc_id) 唯一，重建索引时整体替换，不做局部修改
type KnowledgeDocument struct {
	TenantID   string    `bson:"tenant_id" json:"tenant_id"`
	DocID      string    `bson:"doc_id" json:"doc_id"`
	Text       string    `bson:"text" json:"text"`
	Embedding  []float64 `bson:"embedding" json:"-"`
	Dimensions int       `bson:"dimensions" json:"dimensions"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at" json:"updated_at"`
}

// Collection 返回集合名称
func (d *KnowledgeDocument) Collection() string { return "knowledge_documents" }

// EnsureIndexes 创建和维护索引
func (d *KnowledgeDocument) EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	coll := db.Collection(d.Collection())
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "doc_id", Value: 1}},
			Options: options.Index().SetName("idx_tenant_doc").SetUnique(true),
		},
	}
	_, err := coll.Indexes().CreateMany(ctx, indexes)
	return err
}
