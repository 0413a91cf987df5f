package service

import (
	"context"
	"fmt"
	"strings"

	"recipe-resolver/internal/core/ai/gemini"
	"recipe-resolver/internal/core/ai/openrouter"
	"recipe-resolver/internal/core/ai/provider"
	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"go.uber.org/zap"
)

// NewProvider 依 ai.provider 建立生成式後端。
//
// 後端關閉或沒有 API key 時回傳 nil, nil，表示生成層不可用而不是啟動失敗。
func NewProvider(ctx context.Context, cfg *config.Config) (provider.Provider, error) {
	switch strings.ToLower(cfg.AI.Provider) {
	case "", "openrouter":
		if !cfg.OpenRouter.Enabled || cfg.OpenRouter.APIKey == "" {
			common.LogWarn("OpenRouter 未設定，生成式後端不可用")
			return nil, nil
		}
		common.LogInfo("使用 OpenRouter",
			zap.String("model", cfg.OpenRouter.Model),
			zap.String("key_hint", common.MaskSecret(cfg.OpenRouter.APIKey)),
		)
		return openrouter.NewClient(cfg.OpenRouter), nil

	case "gemini":
		if !cfg.Gemini.Enabled || cfg.Gemini.APIKey == "" {
			common.LogWarn("Gemini 未設定，生成式後端不可用")
			return nil, nil
		}
		client, err := gemini.NewClient(ctx, cfg.Gemini)
		if err != nil {
			return nil, err
		}
		common.LogInfo("使用 Gemini", zap.String("model", cfg.Gemini.Model))
		return client, nil
	}
	return nil, fmt.Errorf("unsupported ai provider: %s", cfg.AI.Provider)
}
