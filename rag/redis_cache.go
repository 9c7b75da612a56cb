package rag

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/scribeworks/quill/internal/cache"
)

// RedisCache is a DocumentCache over the shared Redis cache manager, letting
// replicas of the service share one fused-set memo.
type RedisCache struct {
	manager *cache.Manager
	logger  *zap.Logger
}

// NewRedisCache wraps a cache manager. A nil logger disables logging.
func NewRedisCache(manager *cache.Manager, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{
		manager: manager,
		logger:  logger.With(zap.String("component", "document_cache")),
	}
}

func cacheKey(key string) string { return "quill:fused:" + key }

func (c *RedisCache) Get(ctx context.Context, key string) ([]Document, bool) {
	var docs []Document
	err := c.manager.GetJSON(ctx, cacheKey(key), &docs)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn("document cache read failed", zap.Error(err))
		}
		return nil, false
	}
	return docs, true
}

func (c *RedisCache) Put(ctx context.Context, key string, docs []Document, ttl time.Duration) {
	if err := c.manager.SetJSON(ctx, cacheKey(key), docs, ttl); err != nil {
		c.logger.Warn("document cache write failed", zap.Error(err))
	}
}
