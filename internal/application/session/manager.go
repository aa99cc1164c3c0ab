package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"splat-anim-ai/internal/application/animation"
	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/domain/repository"
	"splat-anim-ai/internal/sandbox"
	apperrors "splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/logger"
	"splat-anim-ai/pkg/metrics"
)

// Config 会话管理配置
type Config struct {
	DefaultFPS      int
	DemoScenePoints int
	Limits          sandbox.Limits
	// SnapshotTimeout 单次快照写入的超时
	SnapshotTimeout time.Duration
}

// Session 一个查看会话
type Session struct {
	id        string
	scene     *entity.Scene
	exec      *sandbox.Executor
	createdAt time.Time

	mu       sync.RWMutex
	fps      int
	gen      *animation.Generator
	cancel   context.CancelFunc
	selected *entity.Animation
	programs map[string]*sandbox.Program
}

// ID 会话 ID
func (s *Session) ID() string { return s.id }

// Scene 会话场景
func (s *Session) Scene() *entity.Scene { return s.scene }

// CreatedAt 创建时间
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// FPS 当前播放帧率
func (s *Session) FPS() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fps
}

// Evolution 当前运行的演化记录，尚未生成时为 nil
func (s *Session) Evolution() *entity.AnimationEvolution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.gen == nil {
		return nil
	}
	return s.gen.Evolution()
}

// Active 当前播放的动画：手动选中的优先，否则为最终动画
func (s *Session) Active() *entity.Animation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected != nil {
		return s.selected
	}
	if s.gen == nil {
		return nil
	}
	return s.gen.Evolution().FinalAnimation()
}

func (s *Session) generator() *animation.Generator {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Manager 会话管理器
type Manager struct {
	engine *animation.Engine
	render animation.Renderer
	bus    *Bus
	store  repository.EvolutionSnapshotStore
	cfg    Config

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager 创建会话管理器
func NewManager(engine *animation.Engine, render animation.Renderer, bus *Bus, store repository.EvolutionSnapshotStore, cfg Config) *Manager {
	if cfg.DefaultFPS == 0 {
		cfg.DefaultFPS = entity.DefaultFPS
	}
	if cfg.DemoScenePoints <= 0 {
		cfg.DemoScenePoints = 2000
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = 5 * time.Second
	}
	return &Manager{
		engine:   engine,
		render:   render,
		bus:      bus,
		store:    store,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// Bus 返回事件总线
func (m *Manager) Bus() *Bus { return m.bus }

// Len 当前会话数
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Create 创建会话；scene 为 nil 时使用演示球体
func (m *Manager) Create(ctx context.Context, scene *entity.Scene) *Session {
	if scene == nil {
		scene = entity.DemoSphere(m.cfg.DemoScenePoints)
	}
	s := &Session{
		id:        uuid.NewString(),
		scene:     scene,
		exec:      sandbox.NewExecutor(scene, m.cfg.Limits),
		createdAt: time.Now().UTC(),
		fps:       m.cfg.DefaultFPS,
		programs:  make(map[string]*sandbox.Program),
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	logger.Info(logger.WithContext(ctx, logger.SessionIDKey, s.id), "session created", "points", scene.Len())
	return s
}

// Get 查找会话
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

// Delete 关闭会话：取消运行并删除快照
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return apperrors.ErrSessionNotFound
	}
	metrics.ActiveSessions.Dec()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.gen != nil {
		s.gen.Seal()
	}
	s.mu.Unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		logger.Warn(ctx, "failed to delete evolution snapshots", "session_id", id, "error", err.Error())
	}
	return nil
}

// Generate 启动新的生成运行并等待其完成
// 同一会话中仍在进行的旧运行会被取消并封存。
func (m *Manager) Generate(ctx context.Context, id string, cfg entity.GeneratorConfig) (*entity.AnimationEvolution, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, id)
	if cfg.FPS == 0 {
		cfg.FPS = s.FPS()
	}

	var gen *animation.Generator
	onChange := func(field string) {
		m.publish(s, entity.EventField(field), gen)
		m.persist(ctx, s.id, gen)
	}
	gen, err = animation.NewGenerator(m.engine, cfg, s.scene, m.cfg.Limits, onChange)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	if s.gen != nil {
		s.gen.Seal()
		logger.Info(ctx, "previous run superseded", "run_id", s.gen.Evolution().ID())
	}
	s.gen = gen
	s.cancel = cancel
	s.selected = nil
	s.programs = make(map[string]*sandbox.Program)
	s.mu.Unlock()

	runErr := gen.Run(runCtx)

	s.mu.Lock()
	if s.gen == gen {
		s.cancel = nil
	}
	s.mu.Unlock()

	if runErr != nil {
		return gen.Evolution(), runErr
	}
	return gen.Evolution(), nil
}

// Feedback 对当前运行应用人工反馈
func (m *Manager) Feedback(ctx context.Context, id, text string) (*entity.Animation, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	gen := s.generator()
	if gen == nil {
		return nil, apperrors.ErrNoAnimation
	}

	ctx = logger.WithContext(ctx, logger.SessionIDKey, id)
	anim, err := gen.ApplyFeedback(ctx, text)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.gen == gen {
		s.selected = nil
	}
	s.mu.Unlock()
	return anim, nil
}

// SetActive 选中谱系中任意一个动画用于播放
func (m *Manager) SetActive(id, animationID string) (*entity.Animation, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	gen := s.generator()
	if gen == nil {
		return nil, apperrors.ErrNoAnimation
	}
	anim, ok := gen.Evolution().Find(animationID)
	if !ok {
		return nil, apperrors.ErrAnimationNotFound.WithDetail(animationID)
	}

	s.mu.Lock()
	s.selected = anim
	s.mu.Unlock()

	m.bus.Publish(entity.SessionEvent{
		SessionID:   s.id,
		Field:       entity.EventFieldAnimation,
		RunID:       gen.Evolution().ID(),
		AnimationID: anim.ID(),
	})
	return anim, nil
}

// SetFPS 修改播放帧率
func (m *Manager) SetFPS(id string, fps int) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if !supportedFPS(fps) {
		return apperrors.ErrInvalidParam.WithDetail("unsupported fps")
	}

	s.mu.Lock()
	s.fps = fps
	s.mu.Unlock()

	m.bus.Publish(entity.SessionEvent{SessionID: s.id, Field: entity.EventFieldFPS, FPS: fps})
	return nil
}

// Frame 以会话当前帧率计算活动动画的某一帧
func (m *Manager) Frame(ctx context.Context, id string, index int) (*sandbox.Frame, *entity.Animation, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, nil, err
	}
	anim := s.Active()
	if anim == nil {
		return nil, nil, apperrors.ErrNoAnimation
	}

	fps := s.FPS()
	total := anim.TotalFrames(fps)
	if index < 0 || index >= total {
		return nil, nil, apperrors.ErrInvalidParam.WithDetail("frame out of range")
	}

	prog, err := m.program(s, anim)
	if err != nil {
		return nil, nil, err
	}
	frame, err := prog.Run(ctx, sandbox.FrameInput{Frame: index, FPS: fps, Duration: anim.Duration()})
	if err != nil {
		return nil, nil, err
	}
	return frame, anim, nil
}

// Render 渲染活动动画某一帧的预览图
func (m *Manager) Render(ctx context.Context, id string, index int, angle entity.VisionAngle) ([]byte, error) {
	frame, _, err := m.Frame(ctx, id, index)
	if err != nil {
		return nil, err
	}
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	return m.render.Render(ctx, s.scene, frame, angle)
}

// Snapshots 列出会话保存过的谱系快照
func (m *Manager) Snapshots(ctx context.Context, id string) ([]repository.SnapshotSummary, error) {
	return m.store.List(ctx, id)
}

// LatestSnapshot 返回最近保存的谱系快照
func (m *Manager) LatestSnapshot(ctx context.Context, id string) (*entity.EvolutionSnapshot, error) {
	return m.store.Latest(ctx, id)
}

// Close 取消所有运行
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	}
}

// program 编译结果按动画 ID 缓存；动画不可变，缓存随新运行清空
func (m *Manager) program(s *Session, anim *entity.Animation) (*sandbox.Program, error) {
	s.mu.RLock()
	prog, ok := s.programs[anim.ID()]
	s.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := s.exec.Compile(anim.Functions())
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.programs[anim.ID()] = prog
	s.mu.Unlock()
	return prog, nil
}

func (m *Manager) publish(s *Session, field entity.EventField, gen *animation.Generator) {
	ev := entity.SessionEvent{SessionID: s.id, Field: field}
	if gen != nil {
		evo := gen.Evolution()
		ev.RunID = evo.ID()
		if final := evo.FinalAnimation(); final != nil && field == entity.EventFieldAnimation {
			ev.AnimationID = final.ID()
		}
	}
	m.bus.Publish(ev)
}

func (m *Manager) persist(ctx context.Context, sessionID string, gen *animation.Generator) {
	if gen == nil || m.store == nil || gen.Evolution().Sealed() {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.SnapshotTimeout)
	defer cancel()
	if err := m.store.Save(ctx, sessionID, gen.Evolution().Snapshot()); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn(ctx, "failed to save evolution snapshot", "error", err.Error())
	}
}

func supportedFPS(fps int) bool {
	for _, v := range entity.SupportedFPS {
		if v == fps {
			return true
		}
	}
	return false
}
