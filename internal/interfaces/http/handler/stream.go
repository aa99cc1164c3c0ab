package handler

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"splat-anim-ai/internal/application/session"
	"splat-anim-ai/internal/interfaces/http/dto"
)

// StreamHandler 会话事件流处理器
type StreamHandler struct {
	sessions  *session.Manager
	keepAlive time.Duration
}

// NewStreamHandler 创建事件流处理器
func NewStreamHandler(sessions *session.Manager) *StreamHandler {
	return &StreamHandler{sessions: sessions, keepAlive: 15 * time.Second}
}

// Events 订阅会话事件
// @Summary 订阅会话事件
// @Description 通过 SSE 推送会话中变化的字段（animation / evolution / fps）
// @Tags Sessions
// @Produce text/event-stream
// @Param id path string true "会话 ID"
// @Success 200 "SSE stream"
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/sessions/{id}/events [get]
func (h *StreamHandler) Events(c *gin.Context) {
	s, err := h.sessions.Get(dto.BindSessionID(c))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	bus := h.sessions.Bus()
	sub := bus.Subscribe(s.ID(), 0)
	defer bus.Unsubscribe(sub)

	// 设置 SSE 响应头
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	c.SSEvent("ready", gin.H{"session_id": s.ID()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Field), ev)
			return true

		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC().Format(time.RFC3339)})
			return true

		case <-c.Request.Context().Done():
			// 客户端断开
			return false
		}
	})
}
