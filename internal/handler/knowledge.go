package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tendero/internal/model"
	"tendero/internal/service"
)

// KnowledgeHandler 知识库管理处理器（商家运营侧）
type KnowledgeHandler struct {
	svc *service.KnowledgeService
}

// NewKnowledgeHandler 创建知识库管理处理器
func NewKnowledgeHandler(svc *service.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{svc: svc}
}

// IndexDocument 文档入库接口
func (h *KnowledgeHandler) IndexDocument(c *gin.Context) {
	var req model.IndexDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	resp, err := h.svc.IndexDocument(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Reindex 租户索引重建接口
func (h *KnowledgeHandler) Reindex(c *gin.Context) {
	var req model.ReindexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40001,
			Message: "Invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	resp, err := h.svc.ReindexTenant(c.Request.Context(), req.TenantID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
