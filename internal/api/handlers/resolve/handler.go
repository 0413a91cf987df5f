package resolve

import (
	"context"
	"errors"
	"net/http"

	"recipe-resolver/internal/api/middleware"
	"recipe-resolver/internal/core/resolver"
	"recipe-resolver/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Resolver 意圖解析器，*resolver.Engine 實作此介面
type Resolver interface {
	Resolve(ctx context.Context, classification string, bag resolver.EntityBag, confidence float64) *resolver.Envelope
}

// Request 已分類的請求
type Request struct {
	Classification string         `json:"classification"`
	Entities       map[string]any `json:"entities"`
	Confidence     float64        `json:"confidence"`
}

// Handler 意圖解析處理器
type Handler struct {
	engine Resolver
}

// NewHandler 創建意圖解析處理器
func NewHandler(engine Resolver) *Handler {
	return &Handler{engine: engine}
}

// HandleResolve 意圖由請求體的 classification 決定
func (h *Handler) HandleResolve(c *gin.Context) {
	h.handle(c, "")
}

// ForIntent 意圖由路徑決定，請求體的 classification 會被忽略
func (h *Handler) ForIntent(intent resolver.Intent) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.handle(c, string(intent))
	}
}

func (h *Handler) handle(c *gin.Context, pathIntent string) {
	requestID := common.RequestID(c)
	ctx := common.WithRequestID(c.Request.Context(), requestID)

	var req Request
	if err := common.DecodeJSON(c.Request.Body, &req); err != nil {
		common.LogWarn("請求格式無效",
			zap.String("request_id", requestID),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		status, message := http.StatusBadRequest, "malformed request body: "+err.Error()
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status, message = http.StatusRequestEntityTooLarge, "request body too large"
		}
		c.JSON(status, resolver.ErrorEnvelope(pathIntent, message, 0))
		return
	}

	classification := req.Classification
	if pathIntent != "" {
		classification = pathIntent
	}
	c.Set(middleware.ClassificationKey, classification)

	env := h.engine.Resolve(ctx, classification, resolver.EntityBag(req.Entities), req.Confidence)

	if env.Failed() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.JSON(http.StatusGatewayTimeout, env)
		return
	}
	c.JSON(http.StatusOK, env)
}
