// Package messaging 把会话事件镜像到 Redis Stream，供外部展示层订阅
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"splat-anim-ai/internal/domain/entity"
	redisinfra "splat-anim-ai/internal/infrastructure/persistence/redis"
)

// StreamSessionEvents 会话事件流（带 Redis 键前缀）
const StreamSessionEvents = "stream:session:events"

const defaultMaxLen = 10000

// envelope 流消息体；session_id 与 field 同时平铺在流字段中，消费方无需解码即可过滤
type envelope struct {
	ID         string              `json:"id"`
	Event      entity.SessionEvent `json:"event"`
	ProducedAt time.Time           `json:"produced_at"`
}

// Producer 会话事件生产者
type Producer struct {
	client *redisinfra.Client
	maxLen int64
}

// NewProducer 创建生产者；maxLen 为流的近似上限
func NewProducer(client *redisinfra.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = defaultMaxLen
	}
	return &Producer{client: client, maxLen: maxLen}
}

// PublishSessionEvent 追加一条会话事件，返回流消息 ID
func (p *Producer) PublishSessionEvent(ctx context.Context, ev entity.SessionEvent) (string, error) {
	data, err := json.Marshal(envelope{
		ID:         uuid.NewString(),
		Event:      ev,
		ProducedAt: time.Now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal session event: %w", err)
	}

	id, err := p.client.AppendStream(ctx, StreamSessionEvents, p.maxLen, map[string]any{
		"session_id": ev.SessionID,
		"field":      string(ev.Field),
		"run_id":     ev.RunID,
		"data":       string(data),
	})
	if err != nil {
		return "", fmt.Errorf("publish session event: %w", err)
	}
	return id, nil
}
