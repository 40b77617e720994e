package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/storage"
)

const (
	insertSnapshot = `
		INSERT INTO snapshots (id, resource, device_id, available, payload, created_at)
		VALUES (:id, :resource, :device_id, :available, :payload, :created_at)`

	selectLatest = `
		SELECT id, resource, device_id, available, payload, created_at
		FROM snapshots
		WHERE resource = $1 AND device_id = $2
		ORDER BY created_at DESC
		LIMIT 1`

	selectLatestAll = `
		SELECT DISTINCT ON (resource, device_id)
			id, resource, device_id, available, payload, created_at
		FROM snapshots
		ORDER BY resource, device_id, created_at DESC`

	deleteOlderThan = `DELETE FROM snapshots WHERE created_at < $1`
)

// SnapshotRepo implements storage.SnapshotRepository on PostgreSQL.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new snapshot repository.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

var _ storage.SnapshotRepository = (*SnapshotRepo)(nil)

func (r *SnapshotRepo) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	if _, err := r.db.NamedExecContext(ctx, insertSnapshot, snapshot); err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

func (r *SnapshotRepo) Latest(ctx context.Context, resource domain.Resource, deviceID string) (*domain.Snapshot, error) {
	var snap domain.Snapshot
	err := r.db.GetContext(ctx, &snap, selectLatest, resource, deviceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest snapshot: %w", err)
	}
	return &snap, nil
}

func (r *SnapshotRepo) LatestAll(ctx context.Context) ([]*domain.Snapshot, error) {
	var snaps []*domain.Snapshot
	if err := r.db.SelectContext(ctx, &snaps, selectLatestAll); err != nil {
		return nil, fmt.Errorf("failed to list latest snapshots: %w", err)
	}
	return snaps, nil
}

func (r *SnapshotRepo) DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, deleteOlderThan, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots: %w", err)
	}
	return n, nil
}
