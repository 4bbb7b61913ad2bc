package retrieval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"tendero/internal/model"
)

// Embedder 向量化提供方
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Document 已入库的检索文档
type Document struct {
	DocID  string
	Text   string
	Vector []float64
}

// Result 单条检索命中
type Result struct {
	DocID      string
	Text       string
	Similarity float64
}

// SearchResult 检索结果
// 提供方故障时结果为空、RelevanceScore 为 0，错误挂在 Err 上供上层告警，
// 检索失败从不阻断回复
type SearchResult struct {
	Results        []Result
	Context        string // 命中文本按相似度降序以换行拼接
	RelevanceScore float64
	Sources        []model.Source
	Err            error
}

const snippetLength = 200

// Index 租户级内存检索索引
// 读多写少：重建索引时整个租户切片原子替换，读方看到旧版或新版，绝无中间态
type Index struct {
	mu       sync.RWMutex
	tenants  map[string][]Document
	embedder Embedder
}

// NewIndex 创建检索索引
func NewIndex(embedder Embedder) *Index {
	return &Index{
		tenants:  make(map[string][]Document),
		embedder: embedder,
	}
}

// IndexDocument 向量化文本并写入租户索引，同 ID 覆盖
// 返回入库的文档（含向量），调用方可据此落盘；向量化期间不持锁
func (x *Index) IndexDocument(ctx context.Context, tenantID, docID, text string) (Document, error) {
	vector, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return Document{}, &model.EmbeddingError{Op: "index", Err: err}
	}

	doc := Document{DocID: docID, Text: text, Vector: vector}
	x.Put(tenantID, doc)
	return doc, nil
}

// Embed 暴露底层向量化能力（重建索引时逐篇调用）
func (x *Index) Embed(ctx context.Context, text string) ([]float64, error) {
	return x.embedder.Embed(ctx, text)
}

// Put 以已计算好的向量写入租户索引，同 ID 覆盖
// 用于启动时从持久化存储回灌，避免重新向量化
func (x *Index) Put(tenantID string, doc Document) {
	x.mu.Lock()
	defer x.mu.Unlock()

	docs := x.tenants[tenantID]
	for i := range docs {
		if docs[i].DocID == doc.DocID {
			docs[i] = doc
			x.tenants[tenantID] = docs
			return
		}
	}
	x.tenants[tenantID] = append(docs, doc)
}

// ReplaceTenant 整体替换租户索引（重建入口）
func (x *Index) ReplaceTenant(tenantID string, docs []Document) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tenants[tenantID] = docs
}

// DropTenant 移除租户索引
func (x *Index) DropTenant(tenantID string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.tenants, tenantID)
}

// Count 租户索引内文档数
func (x *Index) Count(tenantID string) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.tenants[tenantID])
}

// Search 余弦相似度检索
// 仅保留相似度 ≥ threshold 的条目，按相似度降序，最多返回 k 条；
// 租户无索引、无命中或向量化失败时均返回空结果而非错误
func (x *Index) Search(ctx context.Context, tenantID, query string, k int, threshold float64) *SearchResult {
	empty := &SearchResult{}

	x.mu.RLock()
	docs := x.tenants[tenantID]
	x.mu.RUnlock()

	if len(docs) == 0 {
		return empty
	}

	queryVector, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return &SearchResult{Err: &model.EmbeddingError{Op: "search", Err: err}}
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		similarity := Cosine(queryVector, doc.Vector)
		if similarity >= threshold {
			results = append(results, Result{
				DocID:      doc.DocID,
				Text:       doc.Text,
				Similarity: similarity,
			})
		}
	}

	if len(results) == 0 {
		return empty
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}

	texts := make([]string, len(results))
	sources := make([]model.Source, len(results))
	for i, r := range results {
		texts[i] = r.Text
		sources[i] = model.Source{
			DocID:      r.DocID,
			Similarity: r.Similarity,
			Snippet:    snippet(r.Text),
		}
	}

	return &SearchResult{
		Results:        results,
		Context:        strings.Join(texts, "\n"),
		RelevanceScore: results[0].Similarity,
		Sources:        sources,
	}
}

// Cosine 余弦相似度: 点积除以模长之积
// 任一向量为零向量或维度不一致时返回 0 而不报错
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// snippet 截取引用摘要（按字符而非字节，避免截断多字节文本）
func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLength {
		return text
	}
	return string(runes[:snippetLength])
}
