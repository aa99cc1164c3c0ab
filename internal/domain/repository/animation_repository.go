package repository

import (
	"context"
	"time"

	"splat-anim-ai/internal/domain/entity"
)

// CritiqueLoader 缓存未命中时执行实际评审
type CritiqueLoader func(ctx context.Context) (entity.Critique, error)

// CritiqueCache 按内容哈希缓存评审结果
// 并发的相同 key 只会执行一次 loader；loader 返回错误时不写缓存。
type CritiqueCache interface {
	GetOrLoad(ctx context.Context, key string, loader CritiqueLoader) (entity.Critique, error)
}

// SnapshotSummary 一条已保存快照的索引信息
type SnapshotSummary struct {
	RunID   string    `json:"run_id"`
	TakenAt time.Time `json:"taken_at"`
}

// EvolutionSnapshotStore 保存会话的演化快照
type EvolutionSnapshotStore interface {
	Save(ctx context.Context, sessionID string, snap entity.EvolutionSnapshot) error
	Latest(ctx context.Context, sessionID string) (*entity.EvolutionSnapshot, error)
	List(ctx context.Context, sessionID string) ([]SnapshotSummary, error)
	Delete(ctx context.Context, sessionID string) error
}
