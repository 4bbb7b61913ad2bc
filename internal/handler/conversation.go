package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tendero/internal/model"
	"tendero/internal/service"
)

// ConversationHandler 对话管理处理器（商家运营侧）
type ConversationHandler struct {
	ledger *service.LedgerService
}

// NewConversationHandler 创建对话管理处理器
func NewConversationHandler(ledger *service.LedgerService) *ConversationHandler {
	return &ConversationHandler{ledger: ledger}
}

// List 获取租户已持久化的对话列表
func (h *ConversationHandler) List(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40003,
			Message: "tenant_id is required",
		})
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	convs, err := h.ledger.ListConversations(c.Request.Context(), tenantID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
		"total":         len(convs),
	})
}

// Get 获取对话详情，可携带 ?messages=N 一并返回最近消息
func (h *ConversationHandler) Get(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40003,
			Message: "tenant_id is required",
		})
		return
	}

	conv, err := h.ledger.GetConversation(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"conversation": conv}
	if n, _ := strconv.ParseInt(c.Query("messages"), 10, 64); n > 0 {
		resp["messages"] = h.ledger.GetRecentMessages(c.Request.Context(), conv.ID, n)
	}

	c.JSON(http.StatusOK, resp)
}

// Update 部分更新对话（状态、优先级、指派、标签、元数据合并）
func (h *ConversationHandler) Update(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40003,
			Message: "tenant_id is required",
		})
		return
	}

	var req model.UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	conv, err := h.ledger.UpdateConversation(c.Request.Context(), tenantID, c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Messages 获取对话最近消息（时间正序）
func (h *ConversationHandler) Messages(c *gin.Context) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40003,
			Message: "tenant_id is required",
		})
		return
	}

	conv, err := h.ledger.GetConversation(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	msgs := h.ledger.GetRecentMessages(c.Request.Context(), conv.ID, limit)

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
		"total":    len(msgs),
	})
}
