package api

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yourusername/async-resource/internal/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID はリクエストIDを context に載せ、レスポンスヘッダーにも返すミドルウェアです。
// クライアントが X-Request-ID を送ってきた場合はそれを使います。
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), id))
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
