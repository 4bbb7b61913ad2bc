package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tendero/internal/model"
	"tendero/internal/pkg/session"
)

// SessionHandler 挂件会话令牌处理器
type SessionHandler struct {
	issuer *session.Issuer
}

// NewSessionHandler 创建会话令牌处理器
func NewSessionHandler(issuer *session.Issuer) *SessionHandler {
	return &SessionHandler{issuer: issuer}
}

// Create 签发新会话令牌
// 店铺页面的聊天挂件启动时调用，后续消息携带令牌而非裸 session_id
func (h *SessionHandler) Create(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	sessionID, token, expiresAt, err := h.issuer.Issue(req.TenantID, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Failed to issue session token",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, model.SessionResponse{
		SessionID: sessionID,
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
