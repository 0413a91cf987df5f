package middleware

import (
	"recipe-resolver/internal/core/resolver"

	"github.com/gin-gonic/gin"
)

// abortWithEnvelope 中斷請求，回應與解析結果相同的錯誤格式
func abortWithEnvelope(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, resolver.ErrorEnvelope("", message, 0))
}
