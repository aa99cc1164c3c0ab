package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/domain/repository"
	"splat-anim-ai/pkg/tracer"
)

// SnapshotStore 把每次运行的演化快照以 JSON 写入 Redis
//
// 键布局：
//   - {prefix}:session:{sid}:evolution:{run_id}  快照内容
//   - {prefix}:session:{sid}:runs                 run_id -> 快照时间（毫秒）
type SnapshotStore struct {
	client *Client
	cache  *jsonCache
	ttl    time.Duration
}

// NewSnapshotStore 创建快照存储
func NewSnapshotStore(client *Client, ttl time.Duration) *SnapshotStore {
	return &SnapshotStore{client: client, cache: newJSONCache(client), ttl: ttl}
}

var _ repository.EvolutionSnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) snapshotKey(sessionID, runID string) string {
	return s.client.Key("session", sessionID, "evolution", runID)
}

func (s *SnapshotStore) indexKey(sessionID string) string {
	return s.client.Key("session", sessionID, "runs")
}

// Save 覆盖写入运行的最新快照
func (s *SnapshotStore) Save(ctx context.Context, sessionID string, snap entity.EvolutionSnapshot) error {
	ctx, span := tracer.Start(ctx, "snapshot.Save",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("run.id", snap.ID),
		))
	defer span.End()

	if err := s.cache.set(ctx, s.snapshotKey(sessionID, snap.ID), snap, s.ttl); err != nil {
		tracer.Fail(span, err)
		return err
	}

	pipe := s.client.rdb.TxPipeline()
	pipe.HSet(ctx, s.indexKey(sessionID), snap.ID, snap.TakenAt.UnixMilli())
	pipe.Expire(ctx, s.indexKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		tracer.Fail(span, err)
		return fmt.Errorf("update snapshot index: %w", err)
	}
	return nil
}

// List 按时间倒序列出会话的快照
func (s *SnapshotStore) List(ctx context.Context, sessionID string) ([]repository.SnapshotSummary, error) {
	ctx, span := tracer.Start(ctx, "snapshot.List",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	entries, err := s.client.rdb.HGetAll(ctx, s.indexKey(sessionID)).Result()
	if err != nil {
		tracer.Fail(span, err)
		return nil, err
	}

	out := make([]repository.SnapshotSummary, 0, len(entries))
	for runID, ms := range entries {
		v, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, repository.SnapshotSummary{RunID: runID, TakenAt: time.UnixMilli(v).UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

// Latest 返回最近一次运行的快照，不存在时返回 (nil, nil)
func (s *SnapshotStore) Latest(ctx context.Context, sessionID string) (*entity.EvolutionSnapshot, error) {
	runs, err := s.List(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, r := range runs {
		raw, err := s.cache.get(ctx, s.snapshotKey(sessionID, r.RunID))
		if IsNil(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var snap entity.EvolutionSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("decode snapshot %s: %w", r.RunID, err)
		}
		return &snap, nil
	}
	return nil, nil
}

// Delete 删除会话的全部快照
func (s *SnapshotStore) Delete(ctx context.Context, sessionID string) error {
	runs, err := s.List(ctx, sessionID)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(runs)+1)
	for _, r := range runs {
		keys = append(keys, s.snapshotKey(sessionID, r.RunID))
	}
	keys = append(keys, s.indexKey(sessionID))
	return s.cache.del(ctx, keys...)
}
