package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"recipe-resolver/internal/core/ai/service"
	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 資料庫探測的時間上限
const probeTimeout = 2 * time.Second

// GenerativeBackend 生成式後端狀態來源
type GenerativeBackend interface {
	Status() service.Status
}

// DatasetBackend 資料庫狀態來源
type DatasetBackend interface {
	Available(ctx context.Context) bool
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status              string                 `json:"status"`
	Timestamp           time.Time              `json:"timestamp"`
	Version             string                 `json:"version"`
	GenerativeAvailable bool                   `json:"generative_available"`
	DatasetAvailable    bool                   `json:"dataset_available"`
	Generative          service.Status         `json:"generative"`
	Runtime             map[string]interface{} `json:"runtime"`
}

// Handler 健康檢查處理器
type Handler struct {
	cfg        *config.Config
	generative GenerativeBackend
	dataset    DatasetBackend
}

// NewHandler 創建健康檢查處理器，任一後端可為 nil
func NewHandler(cfg *config.Config, generative GenerativeBackend, dataset DatasetBackend) *Handler {
	return &Handler{cfg: cfg, generative: generative, dataset: dataset}
}

func (h *Handler) backends(ctx context.Context) (service.Status, bool) {
	var st service.Status
	if h.generative != nil {
		st = h.generative.Status()
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	datasetUp := h.dataset != nil && h.dataset.Available(ctx)
	return st, datasetUp
}

// HealthCheck 回報兩個解析層的可用狀態，兩者皆不可用時為 degraded
func (h *Handler) HealthCheck(c *gin.Context) {
	gen, datasetUp := h.backends(c.Request.Context())

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status := "ok"
	if !gen.Available && !datasetUp {
		status = "degraded"
	}

	response := HealthResponse{
		Status:              status,
		Timestamp:           time.Now(),
		GenerativeAvailable: gen.Available,
		DatasetAvailable:    datasetUp,
		Generative:          gen,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.cfg != nil {
		response.Version = h.cfg.App.Version
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("status", status),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 至少一個解析層可用才算就緒
func (h *Handler) ReadinessCheck(c *gin.Context) {
	gen, datasetUp := h.backends(c.Request.Context())
	if !gen.Available && !datasetUp {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
