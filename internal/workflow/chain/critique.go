package chain

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "splat-anim-ai/internal/domain/service"
	wfmodel "splat-anim-ai/internal/workflow/model"
	wfnode "splat-anim-ai/internal/workflow/node"
	workflowport "splat-anim-ai/internal/workflow/port"
	workflowprompt "splat-anim-ai/internal/workflow/prompt"
	"splat-anim-ai/pkg/logger"
)

// CritiqueChain 渲染图 + 代码 -> 逐函数评审与评分
type CritiqueChain struct {
	factory workflowport.ChatModelFactory
}

func NewCritiqueChain(factory workflowport.ChatModelFactory) *CritiqueChain {
	return &CritiqueChain{factory: factory}
}

func (c *CritiqueChain) Invoke(ctx context.Context, in *wfmodel.CritiqueInput) (*wfmodel.CritiqueOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if len(in.Views) == 0 {
		return nil, fmt.Errorf("at least one rendered view is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "animation_critique", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	msgs, err := formatCritiqueMessages(ctx, in)
	if err != nil {
		return nil, err
	}

	opts := buildModelOptions(in.Temperature, in.MaxTokens, in.Model)
	outMsg, err := chatModel.Generate(ctx, msgs, append(opts, critiqueResponseFormat())...)
	if err != nil && wfnode.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_object not supported, fallback to prompt-only",
			"provider", strings.TrimSpace(in.Provider),
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, opts...)
	}
	if err != nil {
		return nil, err
	}
	if outMsg == nil {
		return nil, fmt.Errorf("empty llm response")
	}
	return wfnode.ParseCritiqueOutput(outMsg.Content)
}

func formatCritiqueMessages(ctx context.Context, in *wfmodel.CritiqueInput) ([]*schema.Message, error) {
	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptCritiqueV1)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(in.Views))
	for i, v := range in.Views {
		labels = append(labels, fmt.Sprintf("image %d: angle=%s frame=%d", i+1, v.Angle, v.Frame))
	}

	msgs, err := tpl.Format(ctx, map[string]any{
		"title":       strings.TrimSpace(in.Title),
		"description": strings.TrimSpace(in.Description),
		"duration":    in.Duration,
		"fps":         in.FPS,
		"centers":     strings.TrimSpace(in.Centers),
		"rgbs":        strings.TrimSpace(in.RGBs),
		"opacities":   strings.TrimSpace(in.Opacities),
		"views":       strings.Join(labels, "\n"),
	})
	if err != nil {
		return nil, err
	}
	if len(msgs) == 0 {
		return nil, fmt.Errorf("critique template produced no messages")
	}

	// 最后一条用户消息改为图文混合内容
	user := msgs[len(msgs)-1]
	parts := make([]schema.ChatMessagePart, 0, len(in.Views)+1)
	parts = append(parts, schema.ChatMessagePart{Type: schema.ChatMessagePartTypeText, Text: user.Content})
	for _, v := range in.Views {
		parts = append(parts, schema.ChatMessagePart{
			Type: schema.ChatMessagePartTypeImageURL,
			ImageURL: &schema.ChatMessageImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(v.PNG),
			},
		})
	}
	user.Content = ""
	user.MultiContent = parts
	return msgs, nil
}

func critiqueResponseFormat() model.Option {
	return openaiopts.WithExtraFields(map[string]any{
		"response_format": map[string]any{"type": "json_object"},
	})
}
