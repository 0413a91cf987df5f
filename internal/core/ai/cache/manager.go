package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"github.com/gowebpki/jcs"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

// Cache AI 回應快取
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Stats() Stats
	Close() error
}

// Stats 快取統計
type Stats struct {
	Backend   string `json:"backend"`
	Size      int    `json:"size"`
	Hits      int64  `json:"hits"`
	Misses    int64  `json:"misses"`
	Evictions int64  `json:"evictions"`
	Errors    int64  `json:"errors"`
}

// counters 兩種後端共用的命中統計
type counters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	errors    atomic.Int64
}

func (c *counters) snapshot(backend string, size int) Stats {
	return Stats{
		Backend:   backend,
		Size:      size,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Errors:    c.errors.Load(),
	}
}

// Key 以提供者、模型與提示詞的 RFC 8785 標準化 JSON 計算快取鍵
func Key(provider, model, prompt string) (string, error) {
	raw, err := json.Marshal(map[string]string{
		"provider": provider,
		"model":    model,
		"prompt":   prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal cache key: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("failed to canonicalize cache key: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// New 依設定建立快取，關閉時回傳 nil
func New(cfg config.CacheConfig) (Cache, error) {
	if !cfg.Enabled {
		common.LogInfo("Cache disabled")
		return nil, nil
	}
	switch cfg.Backend {
	case "redis":
		rc, err := NewRedisCache(cfg)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case "", "memory":
		return NewManager(cfg), nil
	}
	return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
}

// Manager 行程內快取，容量與存活時間由設定決定
type Manager struct {
	lru   *expirable.LRU[string, string]
	stats counters
}

// NewManager 創建新的緩存管理器
func NewManager(cfg config.CacheConfig) *Manager {
	m := &Manager{}
	m.lru = expirable.NewLRU(cfg.MaxSize, func(string, string) {
		m.stats.evictions.Add(1)
	}, cfg.TTL)

	common.LogInfo("快取管理員已初始化",
		zap.String("backend", "memory"),
		zap.Int("max_size", cfg.MaxSize),
		zap.Duration("ttl", cfg.TTL),
	)
	return m
}

// Get 獲取緩存值
func (m *Manager) Get(_ context.Context, key string) (string, bool) {
	val, ok := m.lru.Get(key)
	if !ok {
		m.stats.misses.Add(1)
		common.LogCacheMiss("memory", key)
		return "", false
	}
	m.stats.hits.Add(1)
	common.LogCacheHit("memory", key)
	return val, true
}

// Set 設置緩存值
func (m *Manager) Set(_ context.Context, key, value string) error {
	m.lru.Add(key, value)
	return nil
}

// Delete 刪除緩存值
func (m *Manager) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Stats 獲取緩存統計信息
func (m *Manager) Stats() Stats {
	return m.stats.snapshot("memory", m.lru.Len())
}

// Close 關閉緩存管理器
func (m *Manager) Close() error {
	stats := m.Stats()
	m.lru.Purge()
	common.LogInfo("快取管理員已關閉",
		zap.Int64("hits", stats.Hits),
		zap.Int64("misses", stats.Misses),
		zap.Int64("evictions", stats.Evictions),
	)
	return nil
}

// ttlOrDefault 存活時間未設定時使用一天
func ttlOrDefault(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 24 * time.Hour
	}
	return ttl
}
