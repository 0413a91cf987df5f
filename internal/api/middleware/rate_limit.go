package middleware

import (
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// 同時追蹤的用戶端上限
const maxTrackedClients = 10000

// RateLimiter 令牌桶限流器
type RateLimiter struct {
	mu       sync.Mutex
	tokens   float64
	capacity float64
	rate     float64
	lastTime time.Time
	now      func() time.Time
}

// NewRateLimiter 創建新的限流器，window 內最多 requests 次
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:   float64(requests),
		capacity: float64(requests),
		rate:     float64(requests) / window.Seconds(),
		lastTime: time.Now(),
		now:      time.Now,
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	elapsed := now.Sub(rl.lastTime).Seconds()
	rl.lastTime = now
	rl.tokens = math.Min(rl.capacity, rl.tokens+elapsed*rl.rate)

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// RateLimit 依用戶端 IP 限流的中間件
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.Requests <= 0 || cfg.Window <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	// 閒置超過數個視窗的用戶端直接淘汰，令牌早已補滿
	clients := expirable.NewLRU[string, *RateLimiter](maxTrackedClients, nil, 4*cfg.Window)
	var mu sync.Mutex

	limiterFor := func(ip string) *RateLimiter {
		mu.Lock()
		defer mu.Unlock()
		if rl, ok := clients.Get(ip); ok {
			return rl
		}
		rl := NewRateLimiter(cfg.Requests, cfg.Window)
		clients.Add(ip, rl)
		return rl
	}

	retryAfter := fmt.Sprintf("%d", int(math.Ceil(cfg.Window.Seconds())))

	return func(c *gin.Context) {
		if !limiterFor(c.ClientIP()).Allow() {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)
			c.Header("Retry-After", retryAfter)
			abortWithEnvelope(c, http.StatusTooManyRequests, common.ErrTooManyRequests.Message)
			return
		}

		c.Next()
	}
}
