package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tendero/internal/model"
)

// KnowledgeRepo 知识库文档仓库
type KnowledgeRepo struct {
	collection *mongo.Collection
}

// NewKnowledgeRepo 创建知识库文档仓库
func NewKnowledgeRepo(db *mongo.Database) *KnowledgeRepo {
	return &KnowledgeRepo{
		collection: db.Collection("knowledge_documents"),
	}
}

// Upsert 写入或整体替换文档
// 同 doc_id 重新入库时整条替换，不做局部修改
func (r *KnowledgeRepo) Upsert(ctx context.Context, doc *model.KnowledgeDocument) error {
	now := time.Now()
	doc.UpdatedAt = now

	filter := bson.M{"tenant_id": doc.TenantID, "doc_id": doc.DocID}
	update := bson.M{
		"$set": bson.M{
			"text":       doc.Text,
			"embedding":  doc.Embedding,
			"dimensions": doc.Dimensions,
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"created_at": now},
	}

	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// ListByTenant 查询租户全部知识文档
func (r *KnowledgeRepo) ListByTenant(ctx context.Context, tenantID string) ([]*model.KnowledgeDocument, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []*model.KnowledgeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	return docs, nil
}

// ListTenants 枚举存在知识文档的租户
// 启动时据此按租户回灌内存索引
func (r *KnowledgeRepo) ListTenants(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "tenant_id", bson.M{})
	if err != nil {
		return nil, err
	}

	tenants := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			tenants = append(tenants, s)
		}
	}
	return tenants, nil
}

// Delete 删除文档
func (r *KnowledgeRepo) Delete(ctx context.Context, tenantID, docID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"tenant_id": tenantID, "doc_id": docID})
	return err
}
