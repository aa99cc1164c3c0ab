package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWorkflowProviderLabels(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", WorkflowFromContext(ctx))
	assert.Equal(t, "unknown", ProviderFromContext(ctx))

	ctx = WithWorkflowProvider(ctx, " animation_code ", "openai")
	assert.Equal(t, "animation_code", WorkflowFromContext(ctx))
	assert.Equal(t, "openai", ProviderFromContext(ctx))

	// 空 provider 保留外层标记
	inner := WithWorkflowProvider(ctx, "animation_critique", "")
	assert.Equal(t, "animation_critique", WorkflowFromContext(inner))
	assert.Equal(t, "openai", ProviderFromContext(inner))
	assert.Equal(t, "animation_code", WorkflowFromContext(ctx))
}
