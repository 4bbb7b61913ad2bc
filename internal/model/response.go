package model

import "time"

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Source 知识检索引用
type Source struct {
	DocID      string  `json:"doc_id"`
	Similarity float64 `json:"similarity"`
	Snippet    string  `json:"snippet"`
}

// CartItem 购物车行项目
type CartItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// CartSnapshot 购物车快照
type CartSnapshot struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

// ChatMessageResponse 对话消息响应
type ChatMessageResponse struct {
	Reply            string        `json:"reply"`
	Intent           string        `json:"intent"`
	ConversationID   string        `json:"conversation_id"`
	Sources          []Source      `json:"sources,omitempty"`
	Cart             *CartSnapshot `json:"cart,omitempty"`
	RedirectCheckout bool          `json:"redirect_checkout,omitempty"` // 购买流程完成，前端应跳转支付
	ProcessingTimeMs int64         `json:"processing_time_ms"`
}

// IndexDocumentResponse 知识文档入库响应
type IndexDocumentResponse struct {
	OK         bool   `json:"ok"`
	DocID      string `json:"doc_id"`
	Dimensions int    `json:"dimensions"`
}

// ReindexResponse 租户知识库重建响应
type ReindexResponse struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// SessionResponse 会话令牌响应
type SessionResponse struct {
	SessionID string    `json:"session_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
