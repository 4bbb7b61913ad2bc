package middleware

import (
	"github.com/gin-gonic/gin"

	"tendero/internal/pkg/id"
)

const requestIDHeader = "X-Request-ID"

// RequestID 请求 ID 中间件
// 透传调用方携带的 X-Request-ID，没有则生成一个
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = id.New()
		}

		c.Set("request_id", requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}
