// Package service 存放跨层共享的领域上下文
package service

import (
	"context"
	"strings"
)

const unknownLabel = "unknown"

type llmCallKey struct{}

// llmCall 一次模型调用的归属，供回调打指标与 Span 属性
type llmCall struct {
	workflow string
	provider string
}

// WithWorkflowProvider 标记后续模型调用所属的工作流与 provider；空值保留外层标记
func WithWorkflowProvider(ctx context.Context, workflow, provider string) context.Context {
	call := callFromContext(ctx)
	if w := strings.TrimSpace(workflow); w != "" {
		call.workflow = w
	}
	if p := strings.TrimSpace(provider); p != "" {
		call.provider = p
	}
	return context.WithValue(ctx, llmCallKey{}, call)
}

// WorkflowFromContext 读取工作流名
func WorkflowFromContext(ctx context.Context) string {
	return labelOrUnknown(callFromContext(ctx).workflow)
}

// ProviderFromContext 读取 provider 名
func ProviderFromContext(ctx context.Context) string {
	return labelOrUnknown(callFromContext(ctx).provider)
}

func callFromContext(ctx context.Context) llmCall {
	if ctx == nil {
		return llmCall{}
	}
	call, _ := ctx.Value(llmCallKey{}).(llmCall)
	return call
}

func labelOrUnknown(s string) string {
	if s == "" {
		return unknownLabel
	}
	return s
}
