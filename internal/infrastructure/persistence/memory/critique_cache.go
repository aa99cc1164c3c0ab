// Package memory 提供未启用 Redis 时的进程内实现
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/domain/repository"
	"splat-anim-ai/pkg/metrics"
)

type critiqueEntry struct {
	value     entity.Critique
	expiresAt time.Time
}

// CritiqueCache 进程内评审缓存，过期条目在读取时淘汰
type CritiqueCache struct {
	ttl   time.Duration
	now   func() time.Time
	group singleflight.Group

	mu      sync.RWMutex
	entries map[string]critiqueEntry
}

// NewCritiqueCache 创建进程内评审缓存，ttl<=0 表示不过期
func NewCritiqueCache(ttl time.Duration) *CritiqueCache {
	return &CritiqueCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]critiqueEntry),
	}
}

var _ repository.CritiqueCache = (*CritiqueCache)(nil)

func (c *CritiqueCache) get(key string) (entity.Critique, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return entity.Critique{}, false
	}
	if !e.expiresAt.IsZero() && c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return entity.Critique{}, false
	}
	return e.value, true
}

// GetOrLoad 读取缓存，未命中时执行 loader 并写回
func (c *CritiqueCache) GetOrLoad(ctx context.Context, key string, loader repository.CritiqueLoader) (entity.Critique, error) {
	if v, ok := c.get(key); ok {
		metrics.CritiqueTotal.WithLabelValues("cached").Inc()
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		e := critiqueEntry{value: v}
		if c.ttl > 0 {
			e.expiresAt = c.now().Add(c.ttl)
		}
		c.mu.Lock()
		c.entries[key] = e
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		return entity.Critique{}, err
	}
	return res.(entity.Critique), nil
}

// Len 当前缓存条目数
func (c *CritiqueCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
