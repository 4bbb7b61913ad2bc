package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tendero/internal/model"
)

// respondError 统一错误映射
// 校验类错误 400、缺会话标识 400、记录不存在 404，其余按 500 兜底
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40002,
			Message: "Message content is empty",
		})
	case errors.Is(err, model.ErrInvalidTenant):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40003,
			Message: "tenant_id is required",
		})
	case errors.Is(err, model.ErrSessionRequired):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40004,
			Message: "session_id or user_id is required",
		})
	case errors.Is(err, model.ErrInvalidID):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40005,
			Message: "Malformed identifier",
		})
	case errors.Is(err, model.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Code:    40006,
			Message: "Invalid conversation status",
		})
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, model.ErrorResponse{
			Code:    40401,
			Message: "Record not found",
		})
	default:
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Code:    50001,
			Message: "Internal error",
			Detail:  err.Error(),
		})
	}
}
