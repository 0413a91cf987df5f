package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// Timeout 只設定請求期限，逾時的回應由 handler 依解析結果決定
func Timeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
