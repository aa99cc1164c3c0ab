package animation

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/sandbox"
	apperrors "splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/logger"
	"splat-anim-ai/pkg/metrics"
	"splat-anim-ai/pkg/tracer"
)

// EngineConfig 引擎配置
type EngineConfig struct {
	// Workers 采样阶段并发上限
	Workers int
	// ProbeFrame 候选过滤使用的帧，<0 表示中间帧
	ProbeFrame int
}

// Engine 采样 -> 评审 -> 自动改进 的演化流程
type Engine struct {
	synth  CodeSynthesizer
	critic VisionCritic
	cfg    EngineConfig
}

// NewEngine 创建演化引擎
func NewEngine(synth CodeSynthesizer, critic VisionCritic, cfg EngineConfig) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Engine{synth: synth, critic: critic, cfg: cfg}
}

// run 单次运行的上下文
type run struct {
	cfg      entity.GeneratorConfig
	scene    *entity.Scene
	exec     *sandbox.Executor
	evo      *entity.AnimationEvolution
	onChange func(field string)
}

func (r *run) notify(field string) {
	if r.onChange != nil {
		r.onChange(field)
	}
}

func (e *Engine) probe(cfg entity.GeneratorConfig) sandbox.FrameInput {
	in := sandbox.FrameInput{FPS: cfg.FPS, Duration: cfg.Duration}
	total := cfg.TotalFrames()
	switch {
	case e.cfg.ProbeFrame < 0:
		in.Frame = sandbox.MiddleFrame(cfg.FPS, cfg.Duration)
	case e.cfg.ProbeFrame >= total:
		in.Frame = total - 1
	default:
		in.Frame = e.cfg.ProbeFrame
	}
	return in
}

// evaluate 校验候选、评审并构造动画；任何校验失败都返回错误且不产生动画
func (e *Engine) evaluate(ctx context.Context, r *run, cand *Candidate, origin entity.Origin, parentID string) (*entity.Animation, error) {
	prog, _, err := r.exec.ValidateAndRun(ctx, cand.Functions, e.probe(r.cfg))
	if err != nil {
		return nil, err
	}
	crit := e.critic.Critique(ctx, CritiqueRequest{Config: r.cfg, Candidate: cand, Program: prog, Scene: r.scene})

	title := cand.Title
	if title == "" {
		title = r.cfg.Title
	}
	return entity.NewAnimation(entity.AnimationParams{
		Title:       title,
		Description: r.cfg.Description,
		Duration:    r.cfg.Duration,
		Functions:   cand.Functions,
		Summaries:   crit.Summaries,
		Score:       crit.Score,
		Origin:      origin,
		ParentID:    parentID,
	}), nil
}

// Run 执行完整的生成流程，结果写入 r.evo
func (e *Engine) Run(ctx context.Context, r *run) error {
	ctx, span := tracer.Start(ctx, "animation.Run")
	defer span.End()
	start := time.Now()

	best, err := e.sample(ctx, r)
	if err != nil {
		e.finish(ctx, start, err, r)
		return err
	}
	if err := r.evo.SetFinal(best); err != nil {
		e.finish(ctx, start, err, r)
		return err
	}
	r.notify("animation")

	if r.cfg.HasVision() {
		best, err = e.improve(ctx, r, best)
		if err != nil {
			e.finish(ctx, start, err, r)
			return err
		}
		if err := r.evo.SetFinal(best); err != nil {
			e.finish(ctx, start, err, r)
			return err
		}
		r.notify("animation")
	} else if r.cfg.NImproves > 0 {
		logger.Info(ctx, "no vision angles, skipping automatic improvement", "n_improves", r.cfg.NImproves)
	}

	e.finish(ctx, start, nil, r)
	return nil
}

func (e *Engine) finish(ctx context.Context, start time.Time, err error, r *run) {
	status := "ok"
	switch {
	case err != nil && (errors.Is(err, apperrors.ErrSuperseded) || errors.Is(err, apperrors.ErrCanceled)):
		status = "canceled"
	case err != nil:
		status = "error"
	case r.evo.Degraded():
		status = "degraded"
	}
	metrics.RunsTotal.WithLabelValues(status).Inc()
	metrics.RunDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error(ctx, "generation run finished with error", err, "status", status)
		return
	}
	final := r.evo.FinalAnimation()
	logger.Info(ctx, "generation run finished",
		"status", status,
		"final_animation_id", final.ID(),
		"score", final.Score(),
		"sampled", len(r.evo.AutoSampled()),
		"improved", len(r.evo.AutoImproved()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// sample 并发合成 NSamples 个候选，按提交顺序追加存活者
func (e *Engine) sample(ctx context.Context, r *run) (*entity.Animation, error) {
	ctx = logger.WithRun(ctx, "", "sample")
	ctx, span := tracer.Start(ctx, "animation.sample")
	defer span.End()

	temps := Temperatures{Design: r.cfg.DesignTemperature, Code: r.cfg.CodeTemperature}
	results := make([]*entity.Animation, r.cfg.NSamples)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i := 0; i < r.cfg.NSamples; i++ {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			anim, err := e.candidate(gctx, r, initialBrief(r.cfg), temps, entity.OriginSample, "")
			if err != nil {
				logger.Warn(gctx, "sample discarded", "index", i, "error", err.Error())
				return nil
			}
			results[i] = anim
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, apperrors.ErrCanceled.WithError(err)
	}

	var best *entity.Animation
	for _, anim := range results {
		if anim == nil {
			continue
		}
		if err := r.evo.AppendSampled(anim); err != nil {
			return nil, err
		}
		// 严格大于：同分保留最早提交的
		if best == nil || anim.Score() > best.Score() {
			best = anim
		}
	}
	if best != nil {
		r.notify("evolution")
		return best, nil
	}

	logger.Warn(ctx, "no sample survived, falling back to static scene", "n_samples", r.cfg.NSamples)
	fallback, err := e.evaluate(ctx, r, &Candidate{Title: r.cfg.Title, Functions: entity.IdentityFunctions()}, entity.OriginFallback, "")
	if err != nil {
		return nil, apperrors.ErrGenerationFailed.WithDetail("identity fallback failed").WithError(err)
	}
	if err := r.evo.MarkDegraded(); err != nil {
		return nil, err
	}
	r.notify("evolution")
	return fallback, nil
}

// improve 顺序执行 NImproves 轮自动改进
func (e *Engine) improve(ctx context.Context, r *run, best *entity.Animation) (*entity.Animation, error) {
	ctx = logger.WithRun(ctx, "", "improve")
	ctx, span := tracer.Start(ctx, "animation.improve")
	defer span.End()

	temps := Temperatures{Design: r.cfg.DesignTemperature, Code: r.cfg.CodeTemperature}
	for round := 0; round < r.cfg.NImproves; round++ {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.ErrCanceled.WithError(err)
		}

		anim, err := e.candidate(ctx, r, improveBrief(r.cfg, best), temps, entity.OriginImprove, best.ID())
		if err != nil {
			metrics.ImproveRoundsTotal.WithLabelValues("abandoned").Inc()
			logger.Warn(ctx, "improve round abandoned", "round", round, "error", err.Error())
			continue
		}
		if err := r.evo.AppendImproved(anim); err != nil {
			return nil, err
		}
		r.notify("evolution")

		if anim.Score() >= best.Score() {
			metrics.ImproveRoundsTotal.WithLabelValues("promoted").Inc()
			logger.Info(ctx, "improved animation promoted", "round", round, "score", anim.Score(), "previous", best.Score())
			best = anim
		} else {
			metrics.ImproveRoundsTotal.WithLabelValues("kept").Inc()
		}
	}
	return best, nil
}

// Refine 按人工反馈生成新动画；失败返回 ErrRefinementFailure
func (e *Engine) Refine(ctx context.Context, r *run, current *entity.Animation, text string) (*entity.Animation, error) {
	ctx = logger.WithRun(ctx, "", "feedback")
	ctx, span := tracer.Start(ctx, "animation.feedback")
	defer span.End()

	temps := Temperatures{Design: r.cfg.DesignTemperature, Code: r.cfg.CodeTemperature}
	anim, err := e.candidate(ctx, r, feedbackBrief(r.cfg, current, text), temps, entity.OriginFeedback, current.ID())
	if err != nil {
		tracer.Fail(span, err)
		return nil, apperrors.ErrRefinementFailure.WithError(err)
	}
	return anim, nil
}

// candidate 合成 + 校验 + 评审，并记录候选指标
func (e *Engine) candidate(ctx context.Context, r *run, b Brief, temps Temperatures, origin entity.Origin, parentID string) (*entity.Animation, error) {
	phase := string(origin)
	cand, err := e.synth.Synthesize(ctx, b, temps)
	if err != nil {
		metrics.CandidatesTotal.WithLabelValues(phase, "synthesis_failure").Inc()
		return nil, err
	}
	anim, err := e.evaluate(ctx, r, cand, origin, parentID)
	if err != nil {
		outcome := "runtime_fault"
		if errors.Is(err, apperrors.ErrSandboxViolation) {
			outcome = "sandbox_violation"
		}
		metrics.CandidatesTotal.WithLabelValues(phase, outcome).Inc()
		return nil, err
	}
	metrics.CandidatesTotal.WithLabelValues(phase, "accepted").Inc()
	return anim, nil
}
