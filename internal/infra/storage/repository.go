package storage

import (
	"context"
	"errors"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

var (
	// ErrSnapshotNotFound is returned when no snapshot exists for a resource
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// SnapshotRepository records the history of published payloads
type SnapshotRepository interface {
	// Save appends a snapshot
	Save(ctx context.Context, snapshot *domain.Snapshot) error

	// Latest returns the newest snapshot of one resource instance
	Latest(ctx context.Context, resource domain.Resource, deviceID string) (*domain.Snapshot, error)

	// LatestAll returns the newest snapshot of every resource instance
	LatestAll(ctx context.Context) ([]*domain.Snapshot, error)

	// DeleteOlderThan removes snapshots created before cutoff (unix seconds)
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
}
