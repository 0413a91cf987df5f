package api

import (
	"time"

	"recipe-resolver/internal/api/handlers/health"
	"recipe-resolver/internal/api/handlers/resolve"
	"recipe-resolver/internal/api/middleware"
	"recipe-resolver/internal/core/resolver"
	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Dependencies 路由需要的已初始化服務
type Dependencies struct {
	Engine     resolve.Resolver
	Generative health.GenerativeBackend
	Dataset    health.DatasetBackend
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	router.Use(middleware.BodySizeLimit(cfg.Server.MaxBodyBytes))

	// 健康檢查路由
	healthHandler := health.NewHandler(cfg, deps.Generative, deps.Dataset)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	// API 路由組
	api := router.Group("/api/v1")
	api.Use(
		middleware.RateLimit(cfg.RateLimit),
		middleware.Deduplication(cfg),
		middleware.Timeout(cfg.Server.RequestTimeout),
	)
	{
		h := resolve.NewHandler(deps.Engine)
		api.POST("/resolve", h.HandleResolve)
		for _, intent := range resolver.Intents {
			api.POST("/"+string(intent), h.ForIntent(intent))
		}
	}

	common.LogInfo("Router setup completed",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Duration("request_timeout", cfg.Server.RequestTimeout),
		zap.Int64("max_body_size", cfg.Server.MaxBodyBytes),
	)

	return router
}
