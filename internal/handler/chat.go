package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tendero/internal/model"
	"tendero/internal/pkg/session"
	"tendero/internal/service"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	svc      *service.ChatService
	sessions *session.Issuer
}

// NewChatHandler 创建对话处理器
func NewChatHandler(svc *service.ChatService, sessions *session.Issuer) *ChatHandler {
	return &ChatHandler{
		svc:      svc,
		sessions: sessions,
	}
}

// Chat 对话接口
// 携带 session_token 时以令牌内的会话标识为准，裸 session_id 被忽略
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	if req.SessionToken != "" {
		claims, err := h.sessions.Validate(req.SessionToken)
		if err != nil {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{
				Code:    40101,
				Message: "Invalid or expired session token",
			})
			return
		}
		if claims.TenantID != req.TenantID {
			c.JSON(http.StatusUnauthorized, model.ErrorResponse{
				Code:    40102,
				Message: "Session token does not belong to this tenant",
			})
			return
		}
		req.SessionID = claims.SessionID
		if req.UserID == "" {
			req.UserID = claims.UserID
		}
	}

	resp, err := h.svc.HandleMessage(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
