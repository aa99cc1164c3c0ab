package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "splat-anim-ai/internal/domain/service"
	wfmodel "splat-anim-ai/internal/workflow/model"
	wfnode "splat-anim-ai/internal/workflow/node"
	workflowport "splat-anim-ai/internal/workflow/port"
	workflowprompt "splat-anim-ai/internal/workflow/prompt"
	"splat-anim-ai/pkg/logger"
)

// CodeChain 设计方案 -> 三个函数体
type CodeChain struct {
	factory workflowport.ChatModelFactory

	chainOnce sync.Once
	chain     compose.Runnable[*wfmodel.CodeInput, *wfmodel.CodeOutput]
	chainErr  error
}

func NewCodeChain(factory workflowport.ChatModelFactory) *CodeChain {
	return &CodeChain{factory: factory}
}

// Invoke 生成并解析函数体；模型错误与无法解析的输出都作为错误返回
func (c *CodeChain) Invoke(ctx context.Context, in *wfmodel.CodeInput) (*wfmodel.CodeOutput, error) {
	if c == nil || c.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := c.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, in)
}

type codeChainState struct {
	In       *wfmodel.CodeInput
	Messages []*schema.Message
	OutMsg   *schema.Message
}

func (c *CodeChain) getChain() (compose.Runnable[*wfmodel.CodeInput, *wfmodel.CodeOutput], error) {
	c.chainOnce.Do(func() {
		c.chain, c.chainErr = c.buildChain(context.Background())
	})
	return c.chain, c.chainErr
}

func (c *CodeChain) buildChain(ctx context.Context) (compose.Runnable[*wfmodel.CodeInput, *wfmodel.CodeOutput], error) {
	chain := compose.NewChain[*wfmodel.CodeInput, *wfmodel.CodeOutput]()

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, in *wfmodel.CodeInput) (*codeChainState, error) {
			if in == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if strings.TrimSpace(in.Description) == "" {
				return nil, fmt.Errorf("description is required")
			}
			msgs, err := formatCodeMessages(ctx, in)
			if err != nil {
				return nil, err
			}
			return &codeChainState{In: in, Messages: msgs}, nil
		}),
		compose.WithNodeName("code.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *codeChainState) (*codeChainState, error) {
			if st == nil || st.In == nil {
				return nil, fmt.Errorf("state is nil")
			}

			workflow := "animation_code"
			if st.In.Strict {
				workflow = "animation_code_fallback"
			}
			ctx = llmctx.WithWorkflowProvider(ctx, workflow, strings.TrimSpace(st.In.Provider))
			chatModel, err := c.factory.Get(ctx, strings.TrimSpace(st.In.Provider))
			if err != nil {
				return nil, err
			}

			// 兜底提示词要求代码块格式，不附带 JSON schema
			enableSchema := !st.In.Strict
			outMsg, err := chatModel.Generate(ctx, st.Messages, buildCodeModelOptions(st.In, enableSchema)...)
			if err != nil && enableSchema && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"provider", strings.TrimSpace(st.In.Provider),
					"model", strings.TrimSpace(st.In.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildCodeModelOptions(st.In, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("code.llm"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *codeChainState) (*wfmodel.CodeOutput, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			out, err := wfnode.ParseCodeOutput(st.OutMsg.Content)
			if err != nil {
				return nil, err
			}
			if strings.TrimSpace(out.Title) == "" {
				out.Title = strings.TrimSpace(st.In.Title)
			}
			return out, nil
		}),
		compose.WithNodeName("code.parse"),
	)

	return chain.Compile(ctx)
}

func formatCodeMessages(ctx context.Context, in *wfmodel.CodeInput) ([]*schema.Message, error) {
	id := workflowprompt.PromptCodeV1
	if in.Strict {
		id = workflowprompt.PromptCodeFallbackV1
	}
	tpl, err := defaultPromptRegistry.ChatTemplate(id)
	if err != nil {
		return nil, err
	}
	return tpl.Format(ctx, map[string]any{
		"title":         strings.TrimSpace(in.Title),
		"description":   strings.TrimSpace(in.Description),
		"duration":      in.Duration,
		"fps":           in.FPS,
		"plan":          strings.TrimSpace(in.Plan),
		"context_block": strings.TrimSpace(in.ContextBlock),
	})
}

func buildCodeModelOptions(in *wfmodel.CodeInput, enableSchema bool) []model.Option {
	opts := buildModelOptions(in.Temperature, in.MaxTokens, in.Model)
	if enableSchema {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   "animation_functions",
					"strict": false,
					"schema": codeJSONSchema(),
				},
			},
		}))
	}
	return opts
}

func codeJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"centers", "rgbs", "opacities"},
		"properties": map[string]any{
			"title":     map[string]any{"type": "string"},
			"centers":   map[string]any{"type": "string"},
			"rgbs":      map[string]any{"type": "string"},
			"opacities": map[string]any{"type": "string"},
		},
	}
}
