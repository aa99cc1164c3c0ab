package memory

import (
	"context"
	"sort"
	"sync"

	"splat-anim-ai/internal/domain/entity"
	"splat-anim-ai/internal/domain/repository"
)

// SnapshotStore 进程内演化快照存储
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]map[string]entity.EvolutionSnapshot
}

// NewSnapshotStore 创建进程内快照存储
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{snaps: make(map[string]map[string]entity.EvolutionSnapshot)}
}

var _ repository.EvolutionSnapshotStore = (*SnapshotStore)(nil)

func (s *SnapshotStore) Save(_ context.Context, sessionID string, snap entity.EvolutionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs, ok := s.snaps[sessionID]
	if !ok {
		runs = make(map[string]entity.EvolutionSnapshot)
		s.snaps[sessionID] = runs
	}
	runs[snap.ID] = snap
	return nil
}

func (s *SnapshotStore) List(_ context.Context, sessionID string) ([]repository.SnapshotSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]repository.SnapshotSummary, 0, len(s.snaps[sessionID]))
	for id, snap := range s.snaps[sessionID] {
		out = append(out, repository.SnapshotSummary{RunID: id, TakenAt: snap.TakenAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	return out, nil
}

func (s *SnapshotStore) Latest(ctx context.Context, sessionID string) (*entity.EvolutionSnapshot, error) {
	runs, err := s.List(ctx, sessionID)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.snaps[sessionID][runs[0].RunID]
	return &snap, nil
}

func (s *SnapshotStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.snaps, sessionID)
	s.mu.Unlock()
	return nil
}
