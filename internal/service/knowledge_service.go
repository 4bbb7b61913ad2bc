package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"tendero/internal/model"
	"tendero/internal/repository"
	"tendero/internal/retrieval"
)

// KnowledgeService 知识库服务
// 职责: 文档入库（向量化 + 内存索引 + 持久化）与租户索引重建
type KnowledgeService struct {
	docs  *repository.KnowledgeRepo
	index *retrieval.Index
}

// NewKnowledgeService 创建知识库服务
func NewKnowledgeService(docs *repository.KnowledgeRepo, index *retrieval.Index) *KnowledgeService {
	return &KnowledgeService{
		docs:  docs,
		index: index,
	}
}

// IndexDocument 文档入库
// 先向量化并写入内存索引，再把文本与向量落盘；同 doc_id 整体覆盖。
// 落盘失败只告警不回滚内存索引，下一次重建会重新对齐
func (s *KnowledgeService) IndexDocument(ctx context.Context, req *model.IndexDocumentRequest) (*model.IndexDocumentResponse, error) {
	if req.TenantID == "" {
		return nil, model.ErrInvalidTenant
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, model.ErrEmptyContent
	}

	doc, err := s.index.IndexDocument(ctx, req.TenantID, req.DocID, req.Text)
	if err != nil {
		return nil, err
	}

	record := &model.KnowledgeDocument{
		TenantID:   req.TenantID,
		DocID:      req.DocID,
		Text:       req.Text,
		Embedding:  doc.Vector,
		Dimensions: len(doc.Vector),
	}
	if err := s.docs.Upsert(ctx, record); err != nil {
		log.Warn().Err(err).Str("tenant_id", req.TenantID).Str("doc_id", req.DocID).
			Msg("document indexed in memory but persistence failed")
	}

	return &model.IndexDocumentResponse{
		OK:         true,
		DocID:      req.DocID,
		Dimensions: len(doc.Vector),
	}, nil
}

// ReindexTenant 重建租户索引
// 遍历租户全部持久化文档逐一重新向量化，成功的整体原子替换租户索引；
// 单篇失败跳过并计数，不中断整体重建
func (s *KnowledgeService) ReindexTenant(ctx context.Context, tenantID string) (*model.ReindexResponse, error) {
	if tenantID == "" {
		return nil, model.ErrInvalidTenant
	}

	records, err := s.docs.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	resp := &model.ReindexResponse{Total: len(records)}
	rebuilt := make([]retrieval.Document, 0, len(records))
	for _, record := range records {
		vector, err := s.index.Embed(ctx, record.Text)
		if err != nil {
			resp.Failed++
			log.Warn().Err(err).Str("tenant_id", tenantID).Str("doc_id", record.DocID).
				Msg("reindex: embedding failed, document skipped")
			continue
		}

		rebuilt = append(rebuilt, retrieval.Document{
			DocID:  record.DocID,
			Text:   record.Text,
			Vector: vector,
		})
		resp.Succeeded++

		record.Embedding = vector
		record.Dimensions = len(vector)
		if err := s.docs.Upsert(ctx, record); err != nil {
			log.Warn().Err(err).Str("doc_id", record.DocID).Msg("reindex: failed to persist refreshed embedding")
		}
	}

	s.index.ReplaceTenant(tenantID, rebuilt)
	log.Info().Str("tenant_id", tenantID).Int("total", resp.Total).
		Int("succeeded", resp.Succeeded).Int("failed", resp.Failed).
		Msg("tenant index rebuilt")

	return resp, nil
}

// Warm 启动时用持久化向量回灌内存索引
// 不重新向量化；缺向量的文档跳过，等待显式重建
func (s *KnowledgeService) Warm(ctx context.Context) error {
	tenants, err := s.docs.ListTenants(ctx)
	if err != nil {
		return err
	}

	for _, tenantID := range tenants {
		records, err := s.docs.ListByTenant(ctx, tenantID)
		if err != nil {
			return err
		}

		docs := make([]retrieval.Document, 0, len(records))
		for _, record := range records {
			if len(record.Embedding) == 0 {
				continue
			}
			docs = append(docs, retrieval.Document{
				DocID:  record.DocID,
				Text:   record.Text,
				Vector: record.Embedding,
			})
		}
		s.index.ReplaceTenant(tenantID, docs)
		log.Info().Str("tenant_id", tenantID).Int("documents", len(docs)).Msg("retrieval index warmed")
	}

	return nil
}
