package wire

import (
	"context"

	"splat-anim-ai/internal/application/animation"
	"splat-anim-ai/internal/application/session"
	"splat-anim-ai/internal/config"
	"splat-anim-ai/internal/domain/repository"
	"splat-anim-ai/internal/infrastructure/llm"
	"splat-anim-ai/internal/infrastructure/messaging"
	"splat-anim-ai/internal/infrastructure/persistence/memory"
	"splat-anim-ai/internal/infrastructure/persistence/redis"
	"splat-anim-ai/internal/infrastructure/render"
	"splat-anim-ai/internal/interfaces/http/handler"
	"splat-anim-ai/internal/interfaces/http/middleware"
	"splat-anim-ai/internal/interfaces/http/router"
	"splat-anim-ai/internal/sandbox"
	"splat-anim-ai/pkg/logger"
)

// eventStreamMaxLen 会话事件流的近似最大长度
const eventStreamMaxLen = 10000

// ProvideRedisClientOptional 提供 Redis 客户端；未启用或不可达时返回 nil，回退到内存实现
func ProvideRedisClientOptional(ctx context.Context, cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Cache.Redis.Enabled {
		logger.Info(ctx, "redis disabled, using in-memory critique cache and snapshot store")
		return nil, func() {}, nil
	}
	client, err := redis.NewClient(ctx, &cfg.Cache.Redis)
	if err != nil {
		logger.Warn(ctx, "redis not available, falling back to in-memory stores", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideCritiqueCache 提供评审缓存
func ProvideCritiqueCache(cfg *config.Config, client *redis.Client) repository.CritiqueCache {
	ttl := cfg.Generation.CritiqueCacheTTL
	if client == nil {
		return memory.NewCritiqueCache(ttl)
	}
	return redis.NewCritiqueCache(client, ttl)
}

// ProvideSnapshotStore 提供谱系快照存储
func ProvideSnapshotStore(cfg *config.Config, client *redis.Client) repository.EvolutionSnapshotStore {
	if client == nil {
		return memory.NewSnapshotStore()
	}
	return redis.NewSnapshotStore(client, cfg.Generation.SnapshotTTL)
}

// ProvideEventSink 提供事件镜像；未启用 Redis 时不镜像
func ProvideEventSink(client *redis.Client) session.EventSink {
	if client == nil {
		return nil
	}
	return messaging.NewProducer(client, eventStreamMaxLen)
}

// ProvideRateLimiter 提供限流器；未启用 Redis 时不限流
func ProvideRateLimiter(client *redis.Client) middleware.RateLimiter {
	if client == nil {
		return nil
	}
	return redis.NewRateLimiter(client)
}

// ProvideRenderer 提供预览渲染器
func ProvideRenderer(cfg *config.Config) *render.SplatRenderer {
	return render.NewSplatRenderer(cfg.Generation.Render)
}

// ProvideSynthesizer 提供代码合成器
func ProvideSynthesizer(factory *llm.EinoFactory, cfg *config.Config) *animation.Synthesizer {
	return animation.NewSynthesizer(factory, animation.SynthesizerConfig{
		DesignProvider: cfg.LLM.DesignProvider,
		CodeProvider:   cfg.LLM.CodeProvider,
		Timeout:        cfg.Generation.SynthesisTimeout,
	})
}

// ProvideCritic 提供视觉评审
func ProvideCritic(factory *llm.EinoFactory, renderer *render.SplatRenderer, cache repository.CritiqueCache, cfg *config.Config) *animation.Critic {
	return animation.NewCritic(factory, renderer, cache, animation.CriticConfig{
		Provider: cfg.LLM.VisionProvider,
		Frames:   cfg.Generation.CritiqueFrames,
		Timeout:  cfg.Generation.CritiqueTimeout,
	})
}

// ProvideEngine 提供演化引擎
func ProvideEngine(synth *animation.Synthesizer, critic *animation.Critic, cfg *config.Config) *animation.Engine {
	return animation.NewEngine(synth, critic, animation.EngineConfig{
		Workers:    cfg.Generation.Workers,
		ProbeFrame: cfg.Generation.ProbeFrame,
	})
}

// ProvideSessionManager 提供会话管理器
func ProvideSessionManager(
	engine *animation.Engine,
	renderer *render.SplatRenderer,
	bus *session.Bus,
	store repository.EvolutionSnapshotStore,
	cfg *config.Config,
) (*session.Manager, func()) {
	sb := cfg.Generation.Sandbox
	m := session.NewManager(engine, renderer, bus, store, session.Config{
		DefaultFPS:      cfg.Generation.FPS,
		DemoScenePoints: cfg.Generation.DemoScenePoints,
		Limits: sandbox.Limits{
			Timeout:       sb.Timeout,
			MaxStatements: sb.MaxStatements,
			MaxNodes:      sb.MaxNodes,
			MaxDepth:      sb.MaxDepth,
			MaxSourceLen:  sb.MaxSourceLen,
		},
	})
	return m, m.Close
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(client *redis.Client, factory *llm.EinoFactory, manager *session.Manager, cfg *config.Config) *handler.HealthHandler {
	return handler.NewHealthHandler(client, factory, manager, cfg.App.Version)
}

// ProvideRouter 提供路由器
func ProvideRouter(cfg *config.Config, handlers router.Handlers, limiter middleware.RateLimiter) *router.Router {
	return router.New(cfg, handlers, limiter)
}
