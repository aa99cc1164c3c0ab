package sandbox

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"splat-anim-ai/internal/domain/entity"
	apperrors "splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/metrics"
	"splat-anim-ai/pkg/tracer"
)

// Limits 沙箱资源限制
type Limits struct {
	Timeout       time.Duration
	MaxStatements int
	MaxNodes      int
	MaxDepth      int
	MaxSourceLen  int
}

// DefaultLimits 默认限制
func DefaultLimits() Limits {
	return Limits{
		Timeout:       2 * time.Second,
		MaxStatements: 64,
		MaxNodes:      2048,
		MaxDepth:      48,
		MaxSourceLen:  8192,
	}
}

// FrameInput 逐帧输入
type FrameInput struct {
	Frame    int
	FPS      int
	Duration int
}

// TotalFrames 总帧数
func (f FrameInput) TotalFrames() int {
	return f.FPS * f.Duration
}

// MiddleFrame 中间帧
func MiddleFrame(fps, duration int) int {
	return fps * duration / 2
}

// Frame 一帧的输出
type Frame struct {
	Index     int          `json:"index"`
	Centers   [][3]float64 `json:"centers"`
	RGBs      [][3]float64 `json:"rgbs"`
	Opacities []float64    `json:"opacities"`
}

// Len 点数
func (f *Frame) Len() int {
	return len(f.Opacities)
}

// Executor 在固定场景上编译并执行动画函数
type Executor struct {
	scene  *entity.Scene
	limits Limits
}

// NewExecutor 创建执行器
func NewExecutor(scene *entity.Scene, limits Limits) *Executor {
	return &Executor{scene: scene, limits: limits}
}

// Scene 返回执行器绑定的场景
func (e *Executor) Scene() *entity.Scene {
	return e.scene
}

// Program 已通过静态检查的三个函数，不可变，可并发执行
type Program struct {
	scene  *entity.Scene
	limits Limits
	bodies map[entity.FunctionKind]*Source
}

// Compile 解析并静态检查三个函数体
func (e *Executor) Compile(fns entity.Functions) (*Program, error) {
	p := &Program{
		scene:  e.scene,
		limits: e.limits,
		bodies: make(map[entity.FunctionKind]*Source, len(entity.FunctionKinds)),
	}
	for _, kind := range entity.FunctionKinds {
		code := fns.Get(kind)
		if e.limits.MaxSourceLen > 0 && len(code) > e.limits.MaxSourceLen {
			return nil, violation(kind, fmt.Errorf("source longer than %d bytes", e.limits.MaxSourceLen))
		}
		src, err := Parse(code)
		if err != nil {
			return nil, violation(kind, err)
		}
		if err := check(kind, src, e.limits); err != nil {
			return nil, violation(kind, err)
		}
		p.bodies[kind] = src
	}
	return p, nil
}

// Run 在一个新的求值环境中计算一帧
func (p *Program) Run(ctx context.Context, in FrameInput) (frame *Frame, err error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "sandbox.Run")
	defer func() {
		if r := recover(); r != nil {
			frame = nil
			err = apperrors.ErrRuntimeFault.WithDetail(fmt.Sprintf("panic: %v", r))
		}
		metrics.ExecutorDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.ExecutorFaultsTotal.WithLabelValues("runtime").Inc()
			tracer.Fail(span, err)
		}
		span.End()
	}()

	if p.limits.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.limits.Timeout)
		defer cancel()
	}

	n := p.scene.Len()
	outputs := make(map[string][]float64, 7)
	for _, kind := range entity.FunctionKinds {
		cols, err := p.runOne(ctx, kind, in)
		if err != nil {
			return nil, err
		}
		for name, col := range cols {
			outputs[name] = col
		}
	}

	frame = &Frame{
		Index:     in.Frame,
		Centers:   make([][3]float64, n),
		RGBs:      make([][3]float64, n),
		Opacities: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		for k, name := range [3]string{"x", "y", "z"} {
			v := outputs[name][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.ErrRuntimeFault.WithDetail(fmt.Sprintf("non-finite %s at point %d", name, i))
			}
			frame.Centers[i][k] = v
		}
		for k, name := range [3]string{"r", "g", "b"} {
			v := outputs[name][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, apperrors.ErrRuntimeFault.WithDetail(fmt.Sprintf("non-finite %s at point %d", name, i))
			}
			frame.RGBs[i][k] = clamp01(v)
		}
		v := outputs["a"][i]
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, apperrors.ErrRuntimeFault.WithDetail(fmt.Sprintf("non-finite a at point %d", i))
		}
		frame.Opacities[i] = clamp01(v)
	}
	return frame, nil
}

// runOne 执行单个函数体，返回其输出列
func (p *Program) runOne(ctx context.Context, kind entity.FunctionKind, in FrameInput) (map[string][]float64, error) {
	n := p.scene.Len()
	e := &env{ctx: ctx, n: n, vars: make(map[string]value, 32)}

	for _, name := range []string{"x", "y", "z", "r", "g", "b", "a"} {
		col, _ := p.scene.Column(name)
		e.vars[name] = value{col: col}
	}
	idx := make([]float64, n)
	for i := range idx {
		idx[i] = float64(i)
	}
	e.vars["i"] = value{col: idx}
	e.vars["n"] = scalar(float64(n))

	fps := float64(in.FPS)
	frames := float64(in.TotalFrames())
	progress := 0.0
	if frames > 1 {
		progress = float64(in.Frame) / (frames - 1)
	}
	e.vars["frame"] = scalar(float64(in.Frame))
	e.vars["fps"] = scalar(fps)
	e.vars["duration"] = scalar(float64(in.Duration))
	e.vars["frames"] = scalar(frames)
	e.vars["p"] = scalar(progress)
	if fps > 0 {
		e.vars["t"] = scalar(float64(in.Frame) / fps)
	} else {
		e.vars["t"] = scalar(0)
	}

	if err := e.run(p.bodies[kind]); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, apperrors.ErrRuntimeFault.WithDetail(fmt.Sprintf("%s: time budget exceeded", kind)).WithError(err)
		}
		return nil, apperrors.ErrRuntimeFault.WithDetail(string(kind)).WithError(err)
	}

	out := make(map[string][]float64, 3)
	for _, name := range Outputs(kind) {
		v := e.vars[name]
		out[name] = e.column(v)
	}
	return out, nil
}

// ValidateAndRun 编译并在指定帧执行，任何失败都淘汰该候选
func (e *Executor) ValidateAndRun(ctx context.Context, fns entity.Functions, in FrameInput) (*Program, *Frame, error) {
	prog, err := e.Compile(fns)
	if err != nil {
		return nil, nil, err
	}
	frame, err := prog.Run(ctx, in)
	if err != nil {
		return nil, nil, err
	}
	return prog, frame, nil
}

func violation(kind entity.FunctionKind, err error) error {
	metrics.ExecutorFaultsTotal.WithLabelValues("violation").Inc()
	return apperrors.ErrSandboxViolation.WithDetail(string(kind)).WithError(err)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
