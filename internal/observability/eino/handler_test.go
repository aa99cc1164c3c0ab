package eino

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	llmctx "splat-anim-ai/internal/domain/service"
	"splat-anim-ai/pkg/metrics"
)

func TestChatModelHandlerCountsCalls(t *testing.T) {
	h := newChatModelCallbackHandler()
	base := llmctx.WithWorkflowProvider(context.Background(), "animation_design", "test-provider")

	tests := []struct {
		name   string
		model  string
		status string
		fail   bool
	}{
		{name: "success", model: "model-a", status: "success"},
		{name: "error keeps start model name", model: "model-b", status: "error", fail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := metrics.LLMCallTotal.WithLabelValues("animation_design", "test-provider", tt.model, tt.status)
			before := testutil.ToFloat64(counter)

			ctx := h.OnStart(base, nil, &model.CallbackInput{
				Messages: []*schema.Message{schema.UserMessage("hi")},
				Config:   &model.Config{Model: tt.model},
			})
			if tt.fail {
				h.OnError(ctx, nil, errors.New("boom"))
			} else {
				h.OnEnd(ctx, nil, &model.CallbackOutput{
					Message:    schema.AssistantMessage("ok", nil),
					TokenUsage: &model.TokenUsage{PromptTokens: 3, CompletionTokens: 5},
				})
			}

			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}
