package animation

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/sandbox"
	apperrors "splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/logger"
	"splat-anim-ai/pkg/metrics"
)

// ChangeFunc 演化状态变化回调，field 取值 animation / evolution
type ChangeFunc func(field string)

// Generator 单个生成运行：持有配置、场景与演化记录
type Generator struct {
	engine *Engine
	run    *run

	started atomic.Bool
	// finished 在 Run 返回后置位，此前拒绝反馈
	finished atomic.Bool
	// feedbackMu 串行化 ApplyFeedback
	feedbackMu sync.Mutex
}

// NewGenerator 创建生成器；配置会先补默认值再校验
func NewGenerator(engine *Engine, cfg entity.GeneratorConfig, scene *entity.Scene, limits sandbox.Limits, onChange ChangeFunc) (*Generator, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, apperrors.ErrInvalidParam.WithDetail(err.Error())
	}
	if scene == nil || scene.Len() == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("scene is empty")
	}
	return &Generator{
		engine: engine,
		run: &run{
			cfg:      cfg,
			scene:    scene,
			exec:     sandbox.NewExecutor(scene, limits),
			evo:      entity.NewAnimationEvolution(cfg),
			onChange: onChange,
		},
	}, nil
}

// Config 返回生效的配置
func (g *Generator) Config() entity.GeneratorConfig { return g.run.cfg }

// Evolution 返回演化记录
func (g *Generator) Evolution() *entity.AnimationEvolution { return g.run.evo }

// Executor 返回绑定到该场景的执行器
func (g *Generator) Executor() *sandbox.Executor { return g.run.exec }

// Run 执行采样与自动改进，只能调用一次
func (g *Generator) Run(ctx context.Context) error {
	if !g.started.CompareAndSwap(false, true) {
		return apperrors.ErrConflict.WithDetail("generator already ran")
	}
	defer g.finished.Store(true)
	ctx = logger.WithRun(ctx, g.run.evo.ID(), "")
	logger.Info(ctx, "generation run started",
		"n_samples", g.run.cfg.NSamples,
		"n_improves", g.run.cfg.NImproves,
		"vision_angles", len(g.run.cfg.VisionAngles),
		"points", g.run.scene.Len(),
	)
	return g.engine.Run(ctx, g.run)
}

// ApplyFeedback 根据反馈文本精修当前动画；成功时无条件替换最终动画
// Run 尚未返回时返回 ErrConflict
func (g *Generator) ApplyFeedback(ctx context.Context, text string) (*entity.Animation, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		metrics.FeedbackTotal.WithLabelValues("invalid").Inc()
		return nil, apperrors.ErrInvalidParam.WithDetail("feedback text is empty")
	}

	g.feedbackMu.Lock()
	defer g.feedbackMu.Unlock()

	if g.run.evo.Sealed() {
		return nil, apperrors.ErrSuperseded
	}
	if g.started.Load() && !g.finished.Load() {
		metrics.FeedbackTotal.WithLabelValues("in_progress").Inc()
		return nil, apperrors.ErrConflict.WithDetail("generation run still in progress")
	}
	current := g.run.evo.FinalAnimation()
	if current == nil {
		metrics.FeedbackTotal.WithLabelValues("no_animation").Inc()
		return nil, apperrors.ErrNoAnimation
	}

	ctx = logger.WithRun(ctx, g.run.evo.ID(), "")
	anim, err := g.engine.Refine(ctx, g.run, current, text)
	if err != nil {
		metrics.FeedbackTotal.WithLabelValues("failed").Inc()
		logger.Warn(ctx, "feedback refinement failed", "error", err.Error())
		return nil, err
	}
	if err := g.run.evo.RecordFeedback(text, anim); err != nil {
		return nil, err
	}
	metrics.FeedbackTotal.WithLabelValues("applied").Inc()
	logger.Info(ctx, "feedback applied", "animation_id", anim.ID(), "parent_id", current.ID())
	g.run.notify("evolution")
	g.run.notify("animation")
	return anim, nil
}

// Seal 终止本次运行，之后的写入都会被丢弃
func (g *Generator) Seal() { g.run.evo.Seal() }
