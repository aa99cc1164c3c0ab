package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"splat-anim-ai/internal/infrastructure/persistence/redis"
)

const readyTimeout = 2 * time.Second

// ProviderLister 列出已配置的 LLM Provider
type ProviderLister interface {
	Providers() []string
}

// SessionCounter 报告当前会话数
type SessionCounter interface {
	Len() int
}

// probe 一项就绪检查；required 为 false 时失败只降级不影响就绪
type probe struct {
	name     string
	required bool
	check    func(ctx context.Context) (string, error)
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version  string
	sessions SessionCounter
	probes   []probe
	noRedis  bool
}

// NewHealthHandler 创建健康检查处理器；未启用 Redis 时 redisClient 为 nil
func NewHealthHandler(redisClient *redis.Client, providers ProviderLister, sessions SessionCounter, version string) *HealthHandler {
	h := &HealthHandler{version: version, sessions: sessions, noRedis: redisClient == nil}

	h.probes = append(h.probes, probe{name: "llm", required: true, check: func(context.Context) (string, error) {
		if providers == nil {
			return "", fmt.Errorf("no llm provider configured")
		}
		names := providers.Providers()
		if len(names) == 0 {
			return "", fmt.Errorf("no llm provider configured")
		}
		return fmt.Sprintf("%d providers", len(names)), nil
	}})

	if redisClient != nil {
		h.probes = append(h.probes, probe{name: "redis", required: true, check: func(ctx context.Context) (string, error) {
			return "", redisClient.HealthCheck(ctx)
		}})
	}
	return h
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version,omitempty"`
	Sessions *int   `json:"sessions,omitempty"`
}

type probeResult struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

type readinessResponse struct {
	Status string                  `json:"status"`
	Checks map[string]*probeResult `json:"checks"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok", Version: h.version}
	if h.sessions != nil {
		n := h.sessions.Len()
		resp.Sessions = &n
	}
	c.JSON(http.StatusOK, resp)
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Description 并发执行各项依赖检查，任一必需项失败返回 503
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	var mu sync.Mutex
	resp := readinessResponse{Status: "ok", Checks: make(map[string]*probeResult, len(h.probes)+1)}
	if h.noRedis {
		resp.Checks["redis"] = &probeResult{Status: "disabled"}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, p := range h.probes {
		g.Go(func() error {
			start := time.Now()
			detail, err := p.check(gctx)
			res := &probeResult{Status: "ok", Detail: detail, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				res.Status = "error"
				res.Error = err.Error()
			}

			mu.Lock()
			defer mu.Unlock()
			resp.Checks[p.name] = res
			if err != nil && p.required {
				resp.Status = "not_ready"
			}
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
