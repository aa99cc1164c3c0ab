package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"splat-anim-ai/pkg/tracer"
)

// jsonCache 以 JSON 存取值；同键并发的回源请求合并为一次
type jsonCache struct {
	client *Client
	group  singleflight.Group
}

func newJSONCache(client *Client) *jsonCache {
	return &jsonCache{client: client}
}

// get 读取原始字节，未命中时返回 redis.Nil
func (c *jsonCache) get(ctx context.Context, key string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "cache.get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	raw, err := c.client.rdb.Get(ctx, key).Bytes()
	switch {
	case IsNil(err):
		span.SetAttributes(attribute.Bool("cache.hit", false))
	case err != nil:
		tracer.Fail(span, err)
	default:
		span.SetAttributes(attribute.Bool("cache.hit", true))
	}
	return raw, err
}

func (c *jsonCache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return c.client.rdb.Set(ctx, key, raw, ttl).Err()
}

// getOrLoad 命中时返回 (raw, true)；否则执行 loader 并尽力回写
// Redis 读写失败只降级为直接回源，loader 的错误原样返回且不缓存。
func (c *jsonCache) getOrLoad(ctx context.Context, key string, ttl time.Duration, loader func(ctx context.Context) (any, error)) ([]byte, bool, error) {
	ctx, span := tracer.Start(ctx, "cache.getOrLoad",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	if raw, err := c.client.rdb.Get(ctx, key).Bytes(); err == nil {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return raw, true, nil
	} else if !IsNil(err) {
		span.RecordError(err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	v, err, shared := c.group.Do(key, func() (any, error) {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", key, err)
		}
		if err := c.client.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
			span.RecordError(err)
		}
		return raw, nil
	})
	span.SetAttributes(attribute.Bool("cache.shared", shared))
	if err != nil {
		tracer.Fail(span, err)
		return nil, false, err
	}
	return v.([]byte), false, nil
}

func (c *jsonCache) del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.rdb.Del(ctx, keys...).Err()
}
