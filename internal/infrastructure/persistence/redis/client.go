// Package redis 提供评审缓存、演化快照、事件流与限流的 Redis 实现
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"splat-anim-ai/internal/config"
	"splat-anim-ai/pkg/tracer"
)

// Client Redis 客户端，所有键都带配置的前缀
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient 创建 Redis 客户端并在 DialTimeout 内完成一次 PING
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", rdb.Options().Addr, err)
	}

	return &Client{
		rdb:    rdb,
		prefix: strings.Trim(strings.TrimSpace(cfg.KeyPrefix), ":"),
	}, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck 健康检查
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "redis.HealthCheck")
	defer span.End()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		tracer.Fail(span, err)
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// Key 拼接带前缀的键
func (c *Client) Key(parts ...string) string {
	key := strings.Join(parts, ":")
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// AppendStream 以近似裁剪的方式追加一条流消息，返回消息 ID
func (c *Client) AppendStream(ctx context.Context, stream string, maxLen int64, values map[string]any) (string, error) {
	key := c.Key(stream)
	ctx, span := tracer.Start(ctx, "redis.XAdd",
		trace.WithAttributes(attribute.String("redis.stream", key)))
	defer span.End()

	id, err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: key,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		tracer.Fail(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("redis.stream_id", id))
	return id, nil
}

// IsNil 检查是否为 redis.Nil 错误
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
