package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	llmctx "splat-anim-ai/internal/domain/service"
	wfmodel "splat-anim-ai/internal/workflow/model"
	workflowport "splat-anim-ai/internal/workflow/port"
	workflowprompt "splat-anim-ai/internal/workflow/prompt"
)

// DesignChain 描述 -> 运动设计方案
type DesignChain struct {
	factory workflowport.ChatModelFactory
}

func NewDesignChain(factory workflowport.ChatModelFactory) *DesignChain {
	return &DesignChain{factory: factory}
}

func (c *DesignChain) Invoke(ctx context.Context, in *wfmodel.DesignInput) (*schema.Message, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("description is required")
	}

	ctx = llmctx.WithWorkflowProvider(ctx, "animation_design", strings.TrimSpace(in.Provider))
	chatModel, err := c.factory.Get(ctx, strings.TrimSpace(in.Provider))
	if err != nil {
		return nil, err
	}

	tpl, err := defaultPromptRegistry.ChatTemplate(workflowprompt.PromptDesignV1)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, map[string]any{
		"title":         strings.TrimSpace(in.Title),
		"description":   strings.TrimSpace(in.Description),
		"duration":      in.Duration,
		"fps":           in.FPS,
		"context_block": strings.TrimSpace(in.ContextBlock),
	})
	if err != nil {
		return nil, err
	}

	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(in.Temperature, in.MaxTokens, in.Model)...)
	if err != nil {
		return nil, err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, fmt.Errorf("empty llm response")
	}
	return outMsg, nil
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

func buildModelOptions(temperature *float32, maxTokens *int, modelName string) []model.Option {
	opts := make([]model.Option, 0, 4)
	if temperature != nil {
		opts = append(opts, model.WithTemperature(*temperature))
	}
	if maxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*maxTokens))
	}
	if strings.TrimSpace(modelName) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(modelName)))
	}
	return opts
}
