// Package cache 实现回测报告的 Redis 缓存。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/wyfcoding/copytrading/internal/backtest/domain"
	pkgcache "github.com/wyfcoding/copytrading/pkg/cache"
)

const resultKeyPrefix = "backtest:result:"

// RedisResultCache 回测报告缓存，命中时避免反序列化数据库中的完整结果
type RedisResultCache struct {
	cache *pkgcache.RedisCache
	ttl   time.Duration
}

// NewRedisResultCache 创建报告缓存实例
func NewRedisResultCache(cache *pkgcache.RedisCache, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{cache: cache, ttl: ttl}
}

// GetResult 读取缓存的回测报告，返回是否命中
func (c *RedisResultCache) GetResult(ctx context.Context, taskID string) (*domain.BacktestResult, bool, error) {
	var result domain.BacktestResult
	hit, err := c.cache.GetJSON(ctx, resultKeyPrefix+taskID, &result)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}
	if !hit {
		return nil, false, nil
	}
	return &result, true, nil
}

// SetResult 写入回测报告缓存
func (c *RedisResultCache) SetResult(ctx context.Context, taskID string, result *domain.BacktestResult) error {
	if err := c.cache.SetJSON(ctx, resultKeyPrefix+taskID, result, c.ttl); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}
