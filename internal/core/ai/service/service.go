package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"recipe-resolver/internal/core/ai/cache"
	"recipe-resolver/internal/core/ai/provider"
	"recipe-resolver/internal/core/ai/queue"
	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"go.uber.org/zap"
)

const defaultRequestTimeout = 60 * time.Second

// Response AI 回應結構
type Response struct {
	Content  string
	CacheHit bool
}

// Status AI 服務狀態，供健康檢查使用
type Status struct {
	Available bool          `json:"available"`
	Provider  string        `json:"provider,omitempty"`
	Model     string        `json:"model,omitempty"`
	Queue     *queue.Status `json:"queue,omitempty"`
	Cache     *cache.Stats  `json:"cache,omitempty"`
}

// Service AI 服務：快取、隊列、提供者
type Service struct {
	provider provider.Provider
	cache    cache.Cache
	queue    *queue.Manager
	timeout  time.Duration
}

// NewService 創建 AI 服務。provider 為 nil 時服務不可用，但仍可安全呼叫
func NewService(cfg *config.Config, p provider.Provider, c cache.Cache, q *queue.Manager) *Service {
	timeout := cfg.AI.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Service{
		provider: p,
		cache:    c,
		queue:    q,
		timeout:  timeout,
	}
}

// Available 是否已設定生成式後端
func (s *Service) Available() bool {
	return s != nil && s.provider != nil
}

// Accept 檢查回應內容，回傳錯誤的回應不會寫入快取
type Accept func(content string) error

// ProcessRequest 統一對外方法。
//
// accept 不為 nil 時，快取命中與新回應都要先通過 accept，
// 只有通過的回應才會寫入快取。
func (s *Service) ProcessRequest(ctx context.Context, prompt string, accept Accept) (*Response, error) {
	if !s.Available() {
		return nil, common.ErrGenerativeUnavailable
	}
	if accept == nil {
		accept = func(string) error { return nil }
	}

	// 統一 prompt 格式，連續空白合併為一格，確保快取 key 一致
	prompt = strings.Join(strings.Fields(prompt), " ")
	if prompt == "" {
		return nil, common.NewValidationError("prompt is empty")
	}

	key, err := cache.Key(s.provider.Name(), s.provider.GetModel(), prompt)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if val, ok := s.cache.Get(ctx, key); ok && val != "" {
			if err := accept(val); err == nil {
				return &Response{Content: val, CacheHit: true}, nil
			}
			// 舊的快取內容不再可用，移除後重新呼叫提供者
			common.LogWarn("快取內容未通過檢查，重新請求", zap.String("key", key))
			s.forget(ctx, key)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, err := s.submit(ctx, prompt)
	if err != nil {
		if errors.Is(err, common.ErrQueueFull) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, common.ErrAIServiceError.Wrap(err)
	}

	if err := accept(content); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, content); err != nil {
			common.LogWarn("快取寫入失敗", zap.Error(err))
		}
	}
	return &Response{Content: content}, nil
}

func (s *Service) forget(ctx context.Context, key string) {
	if err := s.cache.Delete(ctx, key); err != nil {
		common.LogWarn("快取刪除失敗", zap.Error(err))
	}
}

func (s *Service) submit(ctx context.Context, prompt string) (string, error) {
	job := func(ctx context.Context) (string, error) {
		start := time.Now()
		resp, err := s.provider.Generate(ctx, provider.UserPrompt(prompt))
		common.LogAICall(s.provider.Name(), time.Since(start), err)
		if err != nil {
			return "", err
		}
		return resp.Content, nil
	}

	if s.queue == nil {
		return job(ctx)
	}
	return s.queue.Submit(ctx, job)
}

// Status 取得服務狀態
func (s *Service) Status() Status {
	if s == nil {
		return Status{}
	}
	st := Status{Available: s.Available()}
	if s.provider != nil {
		st.Provider = s.provider.Name()
		st.Model = s.provider.GetModel()
	}
	if s.queue != nil {
		st.Queue = s.queue.GetQueueStatus()
	}
	if s.cache != nil {
		stats := s.cache.Stats()
		st.Cache = &stats
	}
	return st
}

// Close 依序關閉隊列、快取與提供者
func (s *Service) Close() error {
	if s.queue != nil {
		s.queue.Close()
	}
	var errs []error
	if s.cache != nil {
		errs = append(errs, s.cache.Close())
	}
	if s.provider != nil {
		errs = append(errs, s.provider.Close())
	}
	return errors.Join(errs...)
}
