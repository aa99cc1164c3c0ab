package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splat-anim-ai/internal/domain/entity"
)

type chanSink struct {
	events chan entity.SessionEvent
	err    error
}

func (s *chanSink) PublishSessionEvent(_ context.Context, ev entity.SessionEvent) (string, error) {
	s.events <- ev
	return "1-0", s.err
}

func TestBusFiltersBySession(t *testing.T) {
	bus := NewBus(nil)
	a := bus.Subscribe("a", 4)
	all := bus.Subscribe("", 4)
	defer bus.Unsubscribe(a)
	defer bus.Unsubscribe(all)

	bus.Publish(entity.SessionEvent{SessionID: "b", Field: entity.EventFieldFPS})
	bus.Publish(entity.SessionEvent{SessionID: "a", Field: entity.EventFieldAnimation})

	got := <-a.C
	assert.Equal(t, entity.EventFieldAnimation, got.Field)
	assert.False(t, got.At.IsZero())
	assert.Len(t, a.C, 0)
	assert.Len(t, all.C, 2)
}

func TestBusPublishNeverBlocks(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("s", 1)
	defer bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(entity.SessionEvent{SessionID: "s", Field: entity.EventFieldEvolution})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Equal(t, int64(9), sub.Dropped())
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := NewBus(nil)
	sub := bus.Subscribe("s", 0)
	require.Equal(t, 1, bus.Subscribers())

	bus.Unsubscribe(sub)
	bus.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)
	assert.Zero(t, bus.Subscribers())

	assert.NotPanics(t, func() {
		bus.Publish(entity.SessionEvent{SessionID: "s", Field: entity.EventFieldFPS})
	})
}

func TestBusMirrorsToSink(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ok", nil},
		{"sink error is swallowed", errors.New("redis down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &chanSink{events: make(chan entity.SessionEvent, 1), err: tt.err}
			bus := NewBus(sink)
			bus.Publish(entity.SessionEvent{SessionID: "s", Field: entity.EventFieldFPS, FPS: 50})

			select {
			case ev := <-sink.events:
				assert.Equal(t, 50, ev.FPS)
			case <-time.After(time.Second):
				t.Fatal("event was not mirrored")
			}
		})
	}
}
