// Package animation 实现动画生成与精修引擎
package animation

import (
	"fmt"
	"strings"

	"splat-anim-ai/internal/domain/entity"
)

// BriefKind 合成请求类型
type BriefKind string

const (
	BriefInitial  BriefKind = "initial"
	BriefImprove  BriefKind = "improve"
	BriefFeedback BriefKind = "feedback"
)

// Brief 一次代码合成的输入
type Brief struct {
	Kind        BriefKind
	Title       string
	Description string
	Duration    int
	FPS         int

	// Current 改进/反馈时的基准动画
	Current *entity.Animation
	// Feedback 人工反馈文本
	Feedback string
}

// Temperatures 两阶段的采样温度
type Temperatures struct {
	Design float32
	Code   float32
}

// Candidate 合成出的未校验函数集合
type Candidate struct {
	Title     string
	Functions entity.Functions
}

func initialBrief(cfg entity.GeneratorConfig) Brief {
	return Brief{
		Kind:        BriefInitial,
		Title:       cfg.Title,
		Description: cfg.Description,
		Duration:    cfg.Duration,
		FPS:         cfg.FPS,
	}
}

func improveBrief(cfg entity.GeneratorConfig, current *entity.Animation) Brief {
	b := initialBrief(cfg)
	b.Kind = BriefImprove
	b.Current = current
	return b
}

func feedbackBrief(cfg entity.GeneratorConfig, current *entity.Animation, text string) Brief {
	b := initialBrief(cfg)
	b.Kind = BriefFeedback
	b.Current = current
	b.Feedback = text
	return b
}

// ContextBlock 渲染附加给模型的上下文
func (b Brief) ContextBlock() string {
	if b.Current == nil {
		return ""
	}

	var sb strings.Builder
	fns := b.Current.Functions()
	sums := b.Current.Summaries()

	switch b.Kind {
	case BriefImprove:
		sb.WriteString("Improve the current animation using the visual analysis below.\n")
		if s := strings.TrimSpace(sums.General); s != "" {
			fmt.Fprintf(&sb, "Overall analysis: %s\n", s)
		}
		for _, kind := range entity.FunctionKinds {
			fmt.Fprintf(&sb, "\n## %s\n", kind)
			fmt.Fprintf(&sb, "Initial prompt: %s\n", strings.TrimSpace(b.Description))
			if s := strings.TrimSpace(sums.Get(kind)); s != "" {
				fmt.Fprintf(&sb, "Initial analysis: %s\n", s)
			}
			fmt.Fprintf(&sb, "Initial function:\n%s\n", orPlaceholder(fns.Get(kind)))
		}
	case BriefFeedback:
		fmt.Fprintf(&sb, "Apply this feedback to the current animation:\n%s\n", strings.TrimSpace(b.Feedback))
		for _, kind := range entity.FunctionKinds {
			fmt.Fprintf(&sb, "\n## %s\nCurrent function:\n%s\n", kind, orPlaceholder(fns.Get(kind)))
		}
	}
	return strings.TrimSpace(sb.String())
}

func orPlaceholder(code string) string {
	if strings.TrimSpace(code) == "" {
		return "(empty: rest values)"
	}
	return strings.TrimSpace(code)
}
