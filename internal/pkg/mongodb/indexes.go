package mongodb

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"

	"tendero/internal/model"
)

// EnsureIndexes 创建所有模型的索引
// 应用启动时的统一入口，所有模型均实现 Model 接口
func EnsureIndexes(db *mongo.Database) error {
	ctx := context.Background()

	models := []Model{
		&model.Conversation{},
		&model.Message{},
		&model.KnowledgeDocument{},
		&model.Product{},
	}

	return EnsureAllIndexes(ctx, db, models...)
}
