package animation

import (
	"context"
	"strings"
	"time"

	"splat-anim-ai/internal/domain/entity"
	wfchain "splat-anim-ai/internal/workflow/chain"
	wfmodel "splat-anim-ai/internal/workflow/model"
	workflowport "splat-anim-ai/internal/workflow/port"
	apperrors "splat-anim-ai/pkg/errors"
	"splat-anim-ai/pkg/logger"
	"splat-anim-ai/pkg/tracer"
)

// CodeSynthesizer 把 Brief 变成候选函数
type CodeSynthesizer interface {
	Synthesize(ctx context.Context, b Brief, temps Temperatures) (*Candidate, error)
}

// SynthesizerConfig 合成器配置
type SynthesizerConfig struct {
	DesignProvider string
	CodeProvider   string
	Timeout        time.Duration
}

// Synthesizer 两阶段合成：设计方案 -> 代码
// 无共享可变状态，可并发使用。
type Synthesizer struct {
	design *wfchain.DesignChain
	code   *wfchain.CodeChain
	cfg    SynthesizerConfig
}

// NewSynthesizer 创建合成器
func NewSynthesizer(factory workflowport.ChatModelFactory, cfg SynthesizerConfig) *Synthesizer {
	return &Synthesizer{
		design: wfchain.NewDesignChain(factory),
		code:   wfchain.NewCodeChain(factory),
		cfg:    cfg,
	}
}

// Synthesize 生成候选；设计阶段失败时原样重试一次，代码阶段失败时用严格提示词重试一次。
// 上下文已取消时不再重试
func (s *Synthesizer) Synthesize(ctx context.Context, b Brief, temps Temperatures) (*Candidate, error) {
	ctx, span := tracer.Start(ctx, "animation.Synthesize")
	defer span.End()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	contextBlock := b.ContextBlock()
	designTemp, codeTemp := temps.Design, temps.Code

	designIn := &wfmodel.DesignInput{
		Title:        b.Title,
		Description:  b.Description,
		Duration:     b.Duration,
		FPS:          b.FPS,
		ContextBlock: contextBlock,
		Provider:     s.cfg.DesignProvider,
		Temperature:  &designTemp,
	}
	planMsg, err := s.design.Invoke(ctx, designIn)
	if err != nil && ctx.Err() == nil {
		logger.Warn(ctx, "design stage failed, retrying",
			"brief", string(b.Kind),
			"error", err.Error(),
		)
		planMsg, err = s.design.Invoke(ctx, designIn)
	}
	if err != nil {
		tracer.Fail(span, err)
		return nil, apperrors.ErrSynthesisFailure.WithDetail("design stage").WithError(err)
	}
	plan := strings.TrimSpace(planMsg.Content)

	in := &wfmodel.CodeInput{
		Title:        b.Title,
		Description:  b.Description,
		Duration:     b.Duration,
		FPS:          b.FPS,
		Plan:         plan,
		ContextBlock: contextBlock,
		Provider:     s.cfg.CodeProvider,
		Temperature:  &codeTemp,
	}
	out, err := s.code.Invoke(ctx, in)
	if err != nil && ctx.Err() == nil {
		logger.Warn(ctx, "code stage failed, retrying with strict prompt",
			"brief", string(b.Kind),
			"error", err.Error(),
		)
		strict := *in
		strict.Strict = true
		out, err = s.code.Invoke(ctx, &strict)
	}
	if err != nil {
		tracer.Fail(span, err)
		return nil, apperrors.ErrSynthesisFailure.WithDetail("code stage").WithError(err)
	}

	title := strings.TrimSpace(out.Title)
	if title == "" {
		title = b.Title
	}
	return &Candidate{
		Title: title,
		Functions: entity.Functions{
			Centers:   strings.TrimSpace(out.Centers),
			RGBs:      strings.TrimSpace(out.RGBs),
			Opacities: strings.TrimSpace(out.Opacities),
		},
	}, nil
}
