package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("SPLAT_TEST_SET", "from-env")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "set variable", in: "a: ${SPLAT_TEST_SET}", want: "a: from-env"},
		{name: "set variable ignores default", in: "a: ${SPLAT_TEST_SET:fallback}", want: "a: from-env"},
		{name: "default", in: "a: ${SPLAT_TEST_UNSET:fallback}", want: "a: fallback"},
		{name: "empty default", in: "a: ${SPLAT_TEST_UNSET:}", want: "a: "},
		{name: "undefined kept", in: "a: ${SPLAT_TEST_UNSET}", want: "a: ${SPLAT_TEST_UNSET}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expandEnv(tt.in))
		})
	}
}

func TestLoadFromMergesEnvironmentFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
app:
  name: splat-anim-ai
llm:
  vision_provider: ${SPLAT_TEST_VISION:openai}
  providers:
    openai:
      model: gpt-4o
    claude:
      model: claude-vision
generation:
  fps: 24
  workers: 4
`)
	writeConfig(t, dir, "config.staging.yaml", `
generation:
  workers: 2
`)
	t.Setenv("APP_ENV", "staging")
	t.Setenv("SPLAT_TEST_VISION", "claude")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "splat-anim-ai", cfg.App.Name)
	assert.Equal(t, "claude", cfg.LLM.VisionProvider)
	assert.Equal(t, "gpt-4o", cfg.LLM.Providers["openai"].Model)
	assert.Equal(t, 24, cfg.Generation.FPS)
	assert.Equal(t, 2, cfg.Generation.Workers)

	// 未在文件中出现的字段取默认值
	assert.Equal(t, -1, cfg.Generation.ProbeFrame)
	assert.Equal(t, 2*time.Second, cfg.Generation.Sandbox.Timeout)
	assert.Equal(t, 256, cfg.Generation.Render.Width)
	assert.False(t, cfg.Cache.Redis.Enabled)
	assert.Equal(t, 30, cfg.Security.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.Security.RateLimit.Window)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
}

func TestLoadFromMissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}

func TestLoadFromRepositoryConfig(t *testing.T) {
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(filepath.Join("..", "..", "configs"))
	require.NoError(t, err)

	assert.Equal(t, "error", cfg.Observability.Logging.Level)
	assert.Equal(t, 2, cfg.Generation.Workers)
	assert.Contains(t, []int{8, 24, 50}, cfg.Generation.FPS)
	assert.NotEmpty(t, cfg.LLM.Providers)
}

func TestLoadFromRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unsupported fps", body: "generation:\n  fps: 30\n"},
		{name: "sample rate above one", body: "observability:\n  tracing:\n    sample_rate: 2\n"},
		{name: "undefined stage provider", body: "llm:\n  code_provider: local\n"},
		{name: "rate limit without window", body: "security:\n  rate_limit:\n    enabled: true\n    window: 0s\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, "config.yaml", tt.body)
			t.Setenv("APP_ENV", "none")

			_, err := LoadFrom(dir)
			assert.Error(t, err)
		})
	}
}
