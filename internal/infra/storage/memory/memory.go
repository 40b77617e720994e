package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/storage"
)

// MemoryStorage keeps the latest snapshot of every resource in process memory.
// Older snapshots are replaced, so its size is bounded by the number of resources.
type MemoryStorage struct {
	latest map[string]*domain.Snapshot
	mu     sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{latest: make(map[string]*domain.Snapshot)}
}

var _ storage.SnapshotRepository = (*MemoryStorage)(nil)

func key(resource domain.Resource, deviceID string) string {
	return string(resource) + ":" + deviceID
}

func (s *MemoryStorage) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest[key(snapshot.Resource, snapshot.DeviceID)] = snapshot
	return nil
}

func (s *MemoryStorage) Latest(ctx context.Context, resource domain.Resource, deviceID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snap, ok := s.latest[key(resource, deviceID)]; ok {
		return snap, nil
	}
	return nil, storage.ErrSnapshotNotFound
}

func (s *MemoryStorage) LatestAll(ctx context.Context) ([]*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Snapshot, 0, len(s.latest))
	for _, snap := range s.latest {
		result = append(result, snap)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Resource != result[j].Resource {
			return result[i].Resource < result[j].Resource
		}
		return result[i].DeviceID < result[j].DeviceID
	})
	return result, nil
}

// Len returns the number of stored snapshots.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.latest)
}

func (s *MemoryStorage) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for k, snap := range s.latest {
		if snap.CreatedAt < cutoff {
			delete(s.latest, k)
			deleted++
		}
	}
	return deleted, nil
}
