package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/domain/repository"
	"splat-anim-ai/pkg/metrics"
)

// CritiqueCache 基于 Redis 的评审缓存
type CritiqueCache struct {
	cache  *jsonCache
	client *Client
	ttl    time.Duration
}

// NewCritiqueCache 创建评审缓存
func NewCritiqueCache(client *Client, ttl time.Duration) *CritiqueCache {
	return &CritiqueCache{
		cache:  newJSONCache(client),
		client: client,
		ttl:    ttl,
	}
}

var _ repository.CritiqueCache = (*CritiqueCache)(nil)

// GetOrLoad 读取缓存，未命中时执行 loader 并写回
func (c *CritiqueCache) GetOrLoad(ctx context.Context, key string, loader repository.CritiqueLoader) (entity.Critique, error) {
	raw, hit, err := c.cache.getOrLoad(ctx, c.client.Key("critique", key), c.ttl, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		return entity.Critique{}, err
	}
	if hit {
		metrics.CritiqueTotal.WithLabelValues("cached").Inc()
	}

	var out entity.Critique
	if err := json.Unmarshal(raw, &out); err != nil {
		return entity.Critique{}, fmt.Errorf("decode cached critique: %w", err)
	}
	return out, nil
}
