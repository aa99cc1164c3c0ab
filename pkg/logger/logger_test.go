package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureJSON(t *testing.T) *bytes.Buffer {
	t.Helper()
	prev := defaultLogger
	t.Cleanup(func() { defaultLogger = prev })

	var buf bytes.Buffer
	defaultLogger = slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return &buf
}

func TestFromContextCarriesKeys(t *testing.T) {
	buf := captureJSON(t)

	ctx := WithContext(context.Background(), SessionIDKey, "s-1")
	ctx = WithRun(ctx, "run-9", "improve")
	Info(ctx, "round finished", "round", 2)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "s-1", line["session_id"])
	assert.Equal(t, "run-9", line["run_id"])
	assert.Equal(t, "improve", line["phase"])
	assert.EqualValues(t, 2, line["round"])
	assert.NotContains(t, line, "trace_id")
}

func TestErrorAddsErrorField(t *testing.T) {
	buf := captureJSON(t)

	Error(context.Background(), "render failed", assert.AnError)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, assert.AnError.Error(), line["error"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), in)
	}
}
