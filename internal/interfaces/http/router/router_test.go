package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splat-anim-ai/internal/application/animation"
	"splat-anim-ai/internal/application/session"
	"splat-anim-ai/internal/config"
	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/infrastructure/persistence/memory"
	"splat-anim-ai/internal/interfaces/http/handler"
	"splat-anim-ai/internal/interfaces/http/middleware"
	"splat-anim-ai/internal/sandbox"
	"splat-anim-ai/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.InitDiscard()
}

type staticProviders []string

func (p staticProviders) Providers() []string { return p }

type waveSynth struct{}

func (waveSynth) Synthesize(_ context.Context, b animation.Brief, _ animation.Temperatures) (*animation.Candidate, error) {
	return &animation.Candidate{
		Title:     b.Title,
		Functions: entity.Functions{Centers: "z = z + 0.1 * sin(tau * p + x)"},
	}, nil
}

type neutralCritic struct{}

func (neutralCritic) Critique(context.Context, animation.CritiqueRequest) entity.Critique {
	return entity.NeutralCritique()
}

type pngRenderer struct{}

func (pngRenderer) Render(context.Context, *entity.Scene, *sandbox.Frame, entity.VisionAngle) ([]byte, error) {
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

func newTestRouter(t *testing.T, providers []string, limiter middleware.RateLimiter) *gin.Engine {
	t.Helper()

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: limiter != nil, Limit: 1, Window: time.Minute}

	engine := animation.NewEngine(waveSynth{}, neutralCritic{}, animation.EngineConfig{Workers: 1, ProbeFrame: -1})
	manager := session.NewManager(engine, pngRenderer{}, session.NewBus(nil), memory.NewSnapshotStore(), session.Config{
		DefaultFPS:      8,
		DemoScenePoints: 16,
		Limits:          sandbox.DefaultLimits(),
	})
	t.Cleanup(manager.Close)

	handlers := Handlers{
		Health:  handler.NewHealthHandler(nil, staticProviders(providers), manager, "test"),
		Session: handler.NewSessionHandler(manager),
		Stream:  handler.NewStreamHandler(manager),
	}
	return New(cfg, handlers, limiter).Engine()
}

func do(engine *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type sessionEnvelope struct {
	Code int `json:"code"`
	Data struct {
		ID                string `json:"id"`
		Points            int    `json:"points"`
		FPS               int    `json:"fps"`
		ActiveAnimationID string `json:"active_animation_id"`
	} `json:"data"`
}

func createSession(t *testing.T, engine *gin.Engine) string {
	t.Helper()
	w := do(engine, http.MethodPost, "/v1/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp sessionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, 16, resp.Data.Points)
	assert.Equal(t, 8, resp.Data.FPS)
	return resp.Data.ID
}

func TestSystemEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		providers []string
		path      string
		want      int
	}{
		{name: "health", path: "/health", want: http.StatusOK},
		{name: "live", path: "/live", want: http.StatusOK},
		{name: "ready with provider", providers: []string{"openai"}, path: "/ready", want: http.StatusOK},
		{name: "ready without provider", path: "/ready", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestRouter(t, tt.providers, nil)
			w := do(engine, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSessionLifecycle(t *testing.T) {
	engine := newTestRouter(t, []string{"openai"}, nil)
	id := createSession(t, engine)

	w := do(engine, http.MethodGet, "/v1/sessions/"+id+"/functions", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(engine, http.MethodPost, "/v1/sessions/"+id+"/generate", map[string]any{
		"title":       "wave",
		"description": "a gentle wave",
		"duration":    1,
		"n_samples":   2,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(engine, http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp sessionEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.ActiveAnimationID)

	w = do(engine, http.MethodGet, "/v1/sessions/"+id+"/frames/3", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var frame struct {
		Data struct {
			AnimationID string       `json:"animation_id"`
			Frame       int          `json:"frame"`
			Centers     [][3]float64 `json:"centers"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &frame))
	assert.Equal(t, resp.Data.ActiveAnimationID, frame.Data.AnimationID)
	assert.Equal(t, 3, frame.Data.Frame)
	assert.Len(t, frame.Data.Centers, 16)

	w = do(engine, http.MethodGet, "/v1/sessions/"+id+"/frames/8", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(engine, http.MethodGet, "/v1/sessions/"+id+"/functions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sin(tau * p + x)")

	w = do(engine, http.MethodGet, "/v1/sessions/"+id+"/render/0?angle=back-left", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))

	w = do(engine, http.MethodGet, "/v1/sessions/"+id+"/evolution", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"live"`)

	w = do(engine, http.MethodGet, "/v1/sessions/"+id+"/evolution?source=snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"runs"`)

	w = do(engine, http.MethodPut, "/v1/sessions/"+id+"/fps", map[string]any{"fps": 24})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fps":24`)

	w = do(engine, http.MethodDelete, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(engine, http.MethodGet, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionRequestErrors(t *testing.T) {
	engine := newTestRouter(t, []string{"openai"}, nil)
	id := createSession(t, engine)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{name: "unknown session", method: http.MethodGet, path: "/v1/sessions/missing", want: http.StatusNotFound},
		{name: "generate without description", method: http.MethodPost, path: "/v1/sessions/" + id + "/generate", body: map[string]any{"duration": 1}, want: http.StatusBadRequest},
		{name: "generate bad duration", method: http.MethodPost, path: "/v1/sessions/" + id + "/generate", body: map[string]any{"description": "x", "duration": 99}, want: http.StatusBadRequest},
		{name: "generate unknown preset", method: http.MethodPost, path: "/v1/sessions/" + id + "/generate", body: map[string]any{"description": "x", "vision_preset": "sideways"}, want: http.StatusBadRequest},
		{name: "feedback before generate", method: http.MethodPost, path: "/v1/sessions/" + id + "/feedback", body: map[string]any{"feedback": "faster"}, want: http.StatusNotFound},
		{name: "unsupported fps", method: http.MethodPut, path: "/v1/sessions/" + id + "/fps", body: map[string]any{"fps": 30}, want: http.StatusBadRequest},
		{name: "frame not a number", method: http.MethodGet, path: "/v1/sessions/" + id + "/frames/abc", want: http.StatusBadRequest},
		{name: "unknown render angle", method: http.MethodGet, path: "/v1/sessions/" + id + "/render/0?angle=sideways", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(engine, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestRateLimitOnlyGuardsModelRoutes(t *testing.T) {
	engine := newTestRouter(t, []string{"openai"}, denyLimiter{})
	id := createSession(t, engine)

	w := do(engine, http.MethodPost, "/v1/sessions/"+id+"/generate", map[string]any{"description": "x"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(engine, http.MethodPost, "/v1/sessions/"+id+"/feedback", map[string]any{"feedback": "x"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(engine, http.MethodGet, "/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
