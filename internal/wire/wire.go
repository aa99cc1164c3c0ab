//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	"github.com/google/wire"

	"splat-anim-ai/internal/application/session"
	"splat-anim-ai/internal/config"
	"splat-anim-ai/internal/infrastructure/llm"
	"splat-anim-ai/internal/interfaces/http/handler"
	"splat-anim-ai/internal/interfaces/http/router"
)

// InitializeApp 初始化整个应用（带路由器）
func InitializeApp(ctx context.Context, cfg *config.Config) (*router.Router, func(), error) {
	wire.Build(
		StoreSet,
		EngineSet,
		RouterSet,
	)
	return nil, nil, nil
}

// StoreSet 缓存与快照存储提供者集合（Redis 可选）
var StoreSet = wire.NewSet(
	ProvideRedisClientOptional,
	ProvideCritiqueCache,
	ProvideSnapshotStore,
	ProvideEventSink,
	ProvideRateLimiter,
)

// EngineSet 动画生成提供者集合
var EngineSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideRenderer,
	ProvideSynthesizer,
	ProvideCritic,
	ProvideEngine,
	session.NewBus,
	ProvideSessionManager,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewSessionHandler,
	handler.NewStreamHandler,
	wire.Struct(new(router.Handlers), "*"),
	ProvideRouter,
)
