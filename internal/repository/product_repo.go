package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tendero/internal/model"
)

// ProductRepo 商品目录仓库（只读）
// 目录由外围商城系统维护，这里仅供购买会话做候选匹配
type ProductRepo struct {
	collection *mongo.Collection
}

// NewProductRepo 创建商品目录仓库
func NewProductRepo(db *mongo.Database) *ProductRepo {
	return &ProductRepo{
		collection: db.Collection("products"),
	}
}

// ListByTenant 查询租户商品列表
func (r *ProductRepo) ListByTenant(ctx context.Context, tenantID string, limit int64) ([]*model.Product, error) {
	opts := options.Find().SetLimit(limit)

	cursor, err := r.collection.Find(ctx, bson.M{"tenant_id": tenantID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var products []*model.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, err
	}

	return products, nil
}

// FindByID 根据商品 ID 查询
func (r *ProductRepo) FindByID(ctx context.Context, tenantID, productID string) (*model.Product, error) {
	var product model.Product
	err := r.collection.FindOne(ctx, bson.M{"tenant_id": tenantID, "id": productID}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}

	return &product, nil
}
