// Package session 管理查看会话：场景、当前运行、播放参数与事件通知
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/pkg/logger"
)

const defaultSubscriberBuffer = 16

// EventSink 事件的外部镜像（如 Redis Stream）
type EventSink interface {
	PublishSessionEvent(ctx context.Context, ev entity.SessionEvent) (string, error)
}

// Subscription 一个订阅者；C 在 Unsubscribe 后关闭
type Subscription struct {
	C <-chan entity.SessionEvent

	id        uint64
	sessionID string
	ch        chan entity.SessionEvent
	dropped   atomic.Int64
}

// Dropped 因缓冲区满而丢弃的事件数
func (s *Subscription) Dropped() int64 { return s.dropped.Load() }

// Bus 进程内事件总线
// Publish 从不阻塞：订阅者缓冲区满时事件被丢弃，订阅者应在收到通知后重新读取状态。
type Bus struct {
	sink    EventSink
	timeout time.Duration

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// NewBus 创建事件总线，sink 可为 nil
func NewBus(sink EventSink) *Bus {
	return &Bus{
		sink:    sink,
		timeout: 2 * time.Second,
		subs:    make(map[uint64]*Subscription),
	}
}

// Subscribe 订阅某个会话的事件，sessionID 为空表示订阅全部
func (b *Bus) Subscribe(sessionID string, buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan entity.SessionEvent, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &Subscription{C: ch, id: b.nextID, sessionID: sessionID, ch: ch}
	b.subs[sub.id] = sub
	return sub
}

// Unsubscribe 取消订阅并关闭通道，重复调用无副作用
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[sub.id]; !ok {
		return
	}
	delete(b.subs, sub.id)
	close(sub.ch)
}

// Publish 广播事件
func (b *Bus) Publish(ev entity.SessionEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}

	b.mu.RLock()
	for _, sub := range b.subs {
		if sub.sessionID != "" && sub.sessionID != ev.SessionID {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped.Add(1)
		}
	}
	b.mu.RUnlock()

	if b.sink != nil {
		go b.mirror(ev)
	}
}

func (b *Bus) mirror(ev entity.SessionEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	ctx = logger.WithContext(ctx, logger.SessionIDKey, ev.SessionID)
	if _, err := b.sink.PublishSessionEvent(ctx, ev); err != nil {
		logger.Warn(ctx, "failed to mirror session event", "field", string(ev.Field), "error", err.Error())
	}
}

// Subscribers 当前订阅者数量
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
