package entity

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	apperrors "splat-anim-ai/pkg/errors"
)

// FeedbackEntry 一条人工反馈及其产生的动画
type FeedbackEntry struct {
	Text      string
	Animation *Animation
	AppliedAt time.Time
}

// AnimationEvolution 一次生成会话的完整谱系
// 只允许追加和替换 final 指针，从不删除；被新运行取代（Seal）后所有写操作都返回 ErrSuperseded。
type AnimationEvolution struct {
	id     string
	config GeneratorConfig

	final atomic.Pointer[Animation]

	mu            sync.RWMutex
	sampled       []*Animation
	improved      []*Animation
	feedback      []FeedbackEntry
	feedbackIndex map[string]*Animation
	degraded      bool
	sealed        bool
}

// NewAnimationEvolution 创建空谱系
func NewAnimationEvolution(cfg GeneratorConfig) *AnimationEvolution {
	return &AnimationEvolution{
		id:            uuid.NewString(),
		config:        cfg,
		feedbackIndex: make(map[string]*Animation),
	}
}

// ID 谱系 ID（即运行 ID）
func (e *AnimationEvolution) ID() string { return e.id }

// Config 生成参数
func (e *AnimationEvolution) Config() GeneratorConfig { return e.config }

// FinalAnimation 当前最佳动画，运行完成前可能为 nil
func (e *AnimationEvolution) FinalAnimation() *Animation {
	return e.final.Load()
}

// SetFinal 原子替换当前最佳动画
func (e *AnimationEvolution) SetFinal(a *Animation) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.sealed {
		return apperrors.ErrSuperseded
	}
	e.final.Store(a)
	return nil
}

// AppendSampled 追加一个采样阶段的候选
func (e *AnimationEvolution) AppendSampled(a *Animation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return apperrors.ErrSuperseded
	}
	e.sampled = append(e.sampled, a)
	return nil
}

// AppendImproved 追加一个自动改进阶段的候选
func (e *AnimationEvolution) AppendImproved(a *Animation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return apperrors.ErrSuperseded
	}
	e.improved = append(e.improved, a)
	return nil
}

// RecordFeedback 记录人工反馈结果，并无条件设为最终动画
// 相同文本会覆盖查找表，但历史列表保留每一次记录。
func (e *AnimationEvolution) RecordFeedback(text string, a *Animation) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return apperrors.ErrSuperseded
	}
	e.feedback = append(e.feedback, FeedbackEntry{Text: text, Animation: a, AppliedAt: time.Now().UTC()})
	e.feedbackIndex[text] = a
	e.final.Store(a)
	return nil
}

// MarkDegraded 标记为使用了兜底动画
func (e *AnimationEvolution) MarkDegraded() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sealed {
		return apperrors.ErrSuperseded
	}
	e.degraded = true
	return nil
}

// Seal 标记谱系已被取代，之后迟到的结果都会被丢弃
func (e *AnimationEvolution) Seal() {
	e.mu.Lock()
	e.sealed = true
	e.mu.Unlock()
}

// Sealed 是否已被取代
func (e *AnimationEvolution) Sealed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sealed
}

// Degraded 是否使用了兜底动画
func (e *AnimationEvolution) Degraded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.degraded
}

// AutoSampled 采样阶段候选（按追加顺序的副本）
func (e *AnimationEvolution) AutoSampled() []*Animation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Animation(nil), e.sampled...)
}

// AutoImproved 自动改进阶段候选（旧的在前）
func (e *AnimationEvolution) AutoImproved() []*Animation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]*Animation(nil), e.improved...)
}

// FeedbackHistory 人工反馈历史（按应用顺序）
func (e *AnimationEvolution) FeedbackHistory() []FeedbackEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]FeedbackEntry(nil), e.feedback...)
}

// FeedbackToAnimation 反馈文本到最近一次产生的动画的映射（副本）
func (e *AnimationEvolution) FeedbackToAnimation() map[string]*Animation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[string]*Animation, len(e.feedbackIndex))
	for k, v := range e.feedbackIndex {
		out[k] = v
	}
	return out
}

// Find 在整个谱系中按 ID 查找动画
func (e *AnimationEvolution) Find(id string) (*Animation, bool) {
	if f := e.final.Load(); f != nil && f.ID() == id {
		return f, true
	}
	for _, a := range e.Lineage() {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// Lineage 按 采样 -> 改进 -> 反馈 顺序返回全部动画
func (e *AnimationEvolution) Lineage() []*Animation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Animation, 0, len(e.sampled)+len(e.improved)+len(e.feedback))
	out = append(out, e.sampled...)
	out = append(out, e.improved...)
	for _, f := range e.feedback {
		out = append(out, f.Animation)
	}
	return out
}

// FeedbackView 反馈记录视图
type FeedbackView struct {
	Text        string    `json:"text"`
	AnimationID string    `json:"animation_id"`
	AppliedAt   time.Time `json:"applied_at"`
}

// EvolutionSnapshot 谱系的可序列化快照
type EvolutionSnapshot struct {
	ID                  string            `json:"id"`
	Config              GeneratorConfig   `json:"config"`
	FinalAnimationID    string            `json:"final_animation_id,omitempty"`
	Degraded            bool              `json:"degraded"`
	Animations          []AnimationView   `json:"animations"`
	AutoSampled         []string          `json:"auto_sampled"`
	AutoImproved        []string          `json:"auto_improved"`
	FeedbackHistory     []FeedbackView    `json:"feedback_history"`
	FeedbackToAnimation map[string]string `json:"feedback_to_animation"`
	TakenAt             time.Time         `json:"taken_at"`
}

// Snapshot 生成当前谱系快照
func (e *AnimationEvolution) Snapshot() EvolutionSnapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	snap := EvolutionSnapshot{
		ID:                  e.id,
		Config:              e.config,
		Degraded:            e.degraded,
		AutoSampled:         make([]string, 0, len(e.sampled)),
		AutoImproved:        make([]string, 0, len(e.improved)),
		FeedbackHistory:     make([]FeedbackView, 0, len(e.feedback)),
		FeedbackToAnimation: make(map[string]string, len(e.feedbackIndex)),
		TakenAt:             time.Now().UTC(),
	}

	seen := make(map[string]struct{})
	add := func(a *Animation) {
		if a == nil {
			return
		}
		if _, ok := seen[a.ID()]; ok {
			return
		}
		seen[a.ID()] = struct{}{}
		snap.Animations = append(snap.Animations, a.View())
	}

	for _, a := range e.sampled {
		snap.AutoSampled = append(snap.AutoSampled, a.ID())
		add(a)
	}
	for _, a := range e.improved {
		snap.AutoImproved = append(snap.AutoImproved, a.ID())
		add(a)
	}
	for _, f := range e.feedback {
		snap.FeedbackHistory = append(snap.FeedbackHistory, FeedbackView{
			Text:        f.Text,
			AnimationID: f.Animation.ID(),
			AppliedAt:   f.AppliedAt,
		})
		add(f.Animation)
	}
	for k, v := range e.feedbackIndex {
		snap.FeedbackToAnimation[k] = v.ID()
	}
	if f := e.final.Load(); f != nil {
		snap.FinalAnimationID = f.ID()
		add(f)
	}
	return snap
}
