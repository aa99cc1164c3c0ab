package animation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/domain/repository"
	"splat-anim-ai/internal/sandbox"
	wfchain "splat-anim-ai/internal/workflow/chain"
	wfmodel "splat-anim-ai/internal/workflow/model"
	workflowport "splat-anim-ai/internal/workflow/port"
	"splat-anim-ai/pkg/logger"
	"splat-anim-ai/pkg/metrics"
	"splat-anim-ai/pkg/tracer"
)

// Renderer 把一帧渲染成 PNG
type Renderer interface {
	Render(ctx context.Context, scene *entity.Scene, frame *sandbox.Frame, angle entity.VisionAngle) ([]byte, error)
}

// CritiqueRequest 一次评审的输入
type CritiqueRequest struct {
	Config    entity.GeneratorConfig
	Candidate *Candidate
	Program   *sandbox.Program
	Scene     *entity.Scene
}

// VisionCritic 对已校验的候选打分并总结
// 实现不得返回错误：失败时给出中性结果。
type VisionCritic interface {
	Critique(ctx context.Context, req CritiqueRequest) entity.Critique
}

// CriticConfig 评审配置
type CriticConfig struct {
	Provider string
	// Frames 每个视角渲染的代表帧数量（首/中/尾）
	Frames  int
	Timeout time.Duration
}

// Critic 基于渲染图的视觉评审
type Critic struct {
	chain    *wfchain.CritiqueChain
	renderer Renderer
	cache    repository.CritiqueCache
	cfg      CriticConfig
}

// NewCritic 创建视觉评审
func NewCritic(factory workflowport.ChatModelFactory, renderer Renderer, cache repository.CritiqueCache, cfg CriticConfig) *Critic {
	if cfg.Frames <= 0 {
		cfg.Frames = 3
	}
	return &Critic{
		chain:    wfchain.NewCritiqueChain(factory),
		renderer: renderer,
		cache:    cache,
		cfg:      cfg,
	}
}

// Critique 评审候选；无视角时直接返回中性结果
func (c *Critic) Critique(ctx context.Context, req CritiqueRequest) entity.Critique {
	if len(req.Config.VisionAngles) == 0 {
		metrics.CritiqueTotal.WithLabelValues("neutral").Inc()
		return entity.NeutralCritique()
	}

	ctx, span := tracer.Start(ctx, "animation.Critique")
	defer span.End()

	load := func(ctx context.Context) (entity.Critique, error) {
		return c.critique(ctx, req)
	}

	var (
		out entity.Critique
		err error
	)
	if c.cache != nil {
		out, err = c.cache.GetOrLoad(ctx, critiqueKey(req), load)
	} else {
		out, err = load(ctx)
	}
	if err != nil {
		tracer.Fail(span, err)
		logger.Warn(ctx, "vision critique failed, using neutral score", "error", err.Error())
		metrics.CritiqueTotal.WithLabelValues("degraded").Inc()
		return entity.NeutralCritique()
	}
	return out
}

func (c *Critic) critique(ctx context.Context, req CritiqueRequest) (entity.Critique, error) {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	cfg := req.Config
	views := make([]wfmodel.RenderedView, 0, len(cfg.VisionAngles)*c.cfg.Frames)
	for _, idx := range RepresentativeFrames(cfg.TotalFrames(), c.cfg.Frames) {
		frame, err := req.Program.Run(ctx, sandbox.FrameInput{Frame: idx, FPS: cfg.FPS, Duration: cfg.Duration})
		if err != nil {
			return entity.Critique{}, fmt.Errorf("evaluate frame %d: %w", idx, err)
		}
		for _, angle := range cfg.VisionAngles {
			png, err := c.renderer.Render(ctx, req.Scene, frame, angle)
			if err != nil {
				return entity.Critique{}, fmt.Errorf("render %s frame %d: %w", angle, idx, err)
			}
			views = append(views, wfmodel.RenderedView{Angle: string(angle), Frame: idx, PNG: png})
		}
	}

	fns := req.Candidate.Functions
	out, err := c.chain.Invoke(ctx, &wfmodel.CritiqueInput{
		Title:       req.Candidate.Title,
		Description: cfg.Description,
		Duration:    cfg.Duration,
		FPS:         cfg.FPS,
		Centers:     fns.Centers,
		RGBs:        fns.RGBs,
		Opacities:   fns.Opacities,
		Views:       views,
		Provider:    c.cfg.Provider,
	})
	if err != nil {
		return entity.Critique{}, err
	}

	metrics.CritiqueTotal.WithLabelValues("scored").Inc()
	return entity.Critique{
		Summaries: entity.Summaries{
			General:   strings.TrimSpace(out.Summary),
			Centers:   strings.TrimSpace(out.Centers),
			RGBs:      strings.TrimSpace(out.RGBs),
			Opacities: strings.TrimSpace(out.Opacities),
		},
		Score: NormalizeScore(out.Score),
	}, nil
}

// NormalizeScore 把 1..10 的评分映射到 [0,1]
func NormalizeScore(raw float64) float64 {
	return math.Max(0, math.Min(1, (raw-1)/9))
}

// RepresentativeFrames 在 [0,total) 中均匀取 k 帧，始终包含首尾
func RepresentativeFrames(total, k int) []int {
	if total <= 0 {
		return nil
	}
	if k <= 1 || total == 1 {
		return []int{total / 2}
	}
	if k > total {
		k = total
	}
	out := make([]int, 0, k)
	for i := 0; i < k; i++ {
		idx := int(math.Round(float64(i) * float64(total-1) / float64(k-1)))
		if len(out) > 0 && out[len(out)-1] == idx {
			continue
		}
		out = append(out, idx)
	}
	return out
}

// critiqueKey 内容哈希：代码 + 描述 + 视角 + 时间参数
func critiqueKey(req CritiqueRequest) string {
	h := sha256.New()
	cfg := req.Config
	fns := req.Candidate.Functions
	fmt.Fprintf(h, "%s\x00%d\x00%d\x00", cfg.Description, cfg.Duration, cfg.FPS)
	for _, a := range cfg.VisionAngles {
		fmt.Fprintf(h, "%s,", a)
	}
	fmt.Fprintf(h, "\x00%s\x00%s\x00%s", fns.Centers, fns.RGBs, fns.Opacities)
	if req.Scene != nil {
		lo, hi := req.Scene.Bounds()
		fmt.Fprintf(h, "\x00%d\x00%v\x00%v", req.Scene.Len(), lo, hi)
	}
	return hex.EncodeToString(h.Sum(nil))
}
