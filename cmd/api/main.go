package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recipe-resolver/internal/api"
	"recipe-resolver/internal/api/handlers/health"
	"recipe-resolver/internal/core/ai/cache"
	"recipe-resolver/internal/core/ai/queue"
	"recipe-resolver/internal/core/ai/service"
	"recipe-resolver/internal/core/dataset"
	"recipe-resolver/internal/core/recipe"
	"recipe-resolver/internal/core/resolver"
	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"go.uber.org/zap"
)

func main() {
	// 載入設定（包含 .env）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化 logger（需在載入 config 後）
	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	ctx := context.Background()

	// 初始化生成式後端：快取、隊列、提供者
	responseCache, err := cache.New(cfg.Cache)
	if err != nil {
		common.LogFatal("Failed to initialize cache", zap.Error(err))
	}
	provider, err := service.NewProvider(ctx, cfg)
	if err != nil {
		common.LogFatal("Failed to initialize generative provider", zap.Error(err))
	}
	if provider == nil {
		common.LogWarn("生成式後端未設定，只使用資料庫解析",
			zap.String("provider", cfg.AI.Provider),
		)
	}
	aiService := service.NewService(cfg, provider, responseCache, queue.NewManager(cfg.Queue))
	defer aiService.Close()

	generator, err := recipe.NewGenerator(aiService)
	if err != nil {
		common.LogFatal("Failed to initialize recipe generator", zap.Error(err))
	}

	// 資料庫不可用時仍可啟動，只剩生成式解析
	var (
		searcher      resolver.CandidateSearcher
		datasetHealth health.DatasetBackend
	)
	if cfg.Dataset.Enabled {
		store, err := dataset.NewPostgresStore(cfg.Dataset)
		if err != nil {
			common.LogError("資料庫連線失敗，停用資料庫解析", zap.Error(err))
		} else {
			defer store.Close()
			datasetResolver := dataset.NewResolver(store, cfg.Dataset.FetchCap)
			searcher = datasetResolver
			datasetHealth = datasetResolver
		}
	}

	engine := resolver.NewEngine(generator, searcher, resolver.Defaults{
		MaxRecipes:        cfg.Engine.MaxRecipes,
		MaxSubstitutes:    cfg.Engine.MaxSubstitutes,
		MaxContextResults: cfg.Engine.MaxContextResults,
		MaxResultsCap:     cfg.Engine.MaxResultsCap,
	})

	router := api.SetupRouter(cfg, api.Dependencies{
		Engine:     engine,
		Generative: aiService,
		Dataset:    datasetHealth,
	})

	// 設置 HTTP 服務器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.Bool("generative_available", aiService.Available()),
			zap.Bool("dataset_enabled", searcher != nil),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			common.LogFatal("Failed to start server", zap.Error(err))
		}
	}()

	// 等待中斷信號
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	common.LogInfo("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}

	common.LogInfo("Server exited")
}
