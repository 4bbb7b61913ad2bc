package model

// ChatMessageRequest 对话消息请求
// conversation_id / session_id / user_id 三者按序用于定位对话，至少提供 session_id
type ChatMessageRequest struct {
	TenantID       string `json:"tenant_id" binding:"required"`
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
	SessionToken   string `json:"session_token,omitempty"` // 签名会话令牌，优先于裸 session_id
	UserID         string `json:"user_id,omitempty"`
}

// IndexDocumentRequest 知识文档入库请求
type IndexDocumentRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	DocID    string `json:"doc_id" binding:"required"`
	Text     string `json:"text" binding:"required"`
}

// ReindexRequest 租户知识库重建请求
type ReindexRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
}

// UpdateConversationRequest 对话部分更新请求
// 仅允许更新可变字段；metadata 为增量合并而非整体替换
type UpdateConversationRequest struct {
	Status     *ConversationStatus `json:"status,omitempty"`
	Priority   *string             `json:"priority,omitempty"`
	AssignedTo *string             `json:"assigned_to,omitempty"`
	Tags       []string            `json:"tags,omitempty"`
	Metadata   map[string]any      `json:"metadata,omitempty"`
}

// CreateSessionRequest 会话令牌创建请求
type CreateSessionRequest struct {
	TenantID string `json:"tenant_id" binding:"required"`
	UserID   string `json:"user_id,omitempty"`
}
