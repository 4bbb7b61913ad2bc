package model

import (
	"errors"
	"fmt"
)

// 错误分类：
//   - 校验错误在任何副作用之前拒绝，原样返回给调用方
//   - 提供方故障（向量化/对话模型）就地降级，用户始终能收到回复
//   - 持久化冲突（并发建会话）内部回读解决，永不暴露给终端用户
var (
	ErrEmptyContent    = errors.New("message content is empty")
	ErrInvalidTenant   = errors.New("tenant id is empty")
	ErrInvalidID       = errors.New("malformed identifier")
	ErrNotFound        = errors.New("record not found")
	ErrSessionRequired = errors.New("session or user identifier is required")
	ErrInvalidStatus   = errors.New("invalid conversation status")
)

// EmbeddingError 向量化提供方故障
// 检索路径捕获后降级为空结果，错误随结果带回供上层告警
type EmbeddingError struct {
	Op  string // index / search / reindex
	Err error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding %s failed: %v", e.Op, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// ProviderError 对话模型提供方故障
type ProviderError struct {
	Op  string // complete / classify
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("model %s failed: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
