package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"recipe-resolver/internal/infrastructure/config"
	"recipe-resolver/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const redisPingTimeout = 3 * time.Second

// RedisCache 多個實例共用的快取
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  counters
}

// NewRedisCache 創建 Redis 快取並確認連線
func NewRedisCache(cfg config.CacheConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	common.LogInfo("快取管理員已初始化",
		zap.String("backend", "redis"),
		zap.String("addr", cfg.RedisAddr),
		zap.Duration("ttl", cfg.TTL),
	)
	return newRedisCache(client, cfg), nil
}

func newRedisCache(client *redis.Client, cfg config.CacheConfig) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    ttlOrDefault(cfg.TTL),
	}
}

// Get Redis 錯誤一律視為未命中
func (r *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.stats.errors.Add(1)
			common.LogWarn("Redis 快取讀取失敗", zap.Error(err))
		}
		r.stats.misses.Add(1)
		common.LogCacheMiss("redis", key)
		return "", false
	}
	r.stats.hits.Add(1)
	common.LogCacheHit("redis", key)
	return val, true
}

// Set 設置緩存
func (r *RedisCache) Set(ctx context.Context, key, value string) error {
	if err := r.client.Set(ctx, r.prefix+key, value, r.ttl).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("failed to set cache: %w", err)
	}
	return nil
}

// Delete 刪除快取鍵，鍵不存在不算錯誤
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		r.stats.errors.Add(1)
		return fmt.Errorf("failed to delete cache: %w", err)
	}
	return nil
}

// Stats Redis 的鍵數量不計入，Size 固定為 -1
func (r *RedisCache) Stats() Stats {
	return r.stats.snapshot("redis", -1)
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
