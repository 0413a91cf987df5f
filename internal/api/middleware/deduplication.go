package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"
)

const (
	defaultDedupWindow = time.Second
	maxFingerprints    = 10000
)

// Deduplication 請求去重中間件，同一用戶端在視窗內送出相同的 POST 會被拒絕
func Deduplication(cfg *config.Config) gin.HandlerFunc {
	window := defaultDedupWindow
	if cfg != nil && cfg.DedupWindow > 0 {
		window = cfg.DedupWindow
	}

	// 指紋過期即自動清除
	seen := expirable.NewLRU[string, struct{}](maxFingerprints, nil, window)

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		fingerprint := c.ClientIP() + ":" + c.Request.Method + ":" + c.Request.URL.Path
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogWarn("Failed to read request body", zap.Error(err))
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					abortWithEnvelope(c, http.StatusRequestEntityTooLarge,
						fmt.Sprintf("request body too large (max %d bytes)", tooLarge.Limit))
					return
				}
				abortWithEnvelope(c, http.StatusBadRequest, "failed to read request body")
				return
			}
			hash := sha256.Sum256(body)
			fingerprint += ":" + hex.EncodeToString(hash[:])

			// 恢復請求體
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		if seen.Contains(fingerprint) {
			common.LogInfo("Duplicate request rejected",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
				zap.Duration("window", window),
			)
			abortWithEnvelope(c, http.StatusTooManyRequests, "duplicate request, retry later")
			return
		}
		seen.Add(fingerprint, struct{}{})

		c.Next()
	}
}
