package entity

import "time"

// EventField 会话中发生变化的字段
type EventField string

const (
	EventFieldAnimation EventField = "animation"
	EventFieldEvolution EventField = "evolution"
	EventFieldFPS       EventField = "fps"
)

// SessionEvent 会话状态变化通知，只携带变化的字段名与少量定位信息
type SessionEvent struct {
	SessionID   string     `json:"session_id"`
	Field       EventField `json:"field"`
	RunID       string     `json:"run_id,omitempty"`
	AnimationID string     `json:"animation_id,omitempty"`
	FPS         int        `json:"fps,omitempty"`
	At          time.Time  `json:"at"`
}
