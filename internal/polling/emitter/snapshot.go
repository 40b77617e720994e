package emitter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/storage"
)

// SnapshotEmitter records every delivered update in a SnapshotRepository.
type SnapshotEmitter struct {
	repo storage.SnapshotRepository
}

// NewSnapshotEmitter creates an emitter backed by repo.
func NewSnapshotEmitter(repo storage.SnapshotRepository) *SnapshotEmitter {
	return &SnapshotEmitter{repo: repo}
}

func (e *SnapshotEmitter) Emit(ctx context.Context, update domain.Update) error {
	snap := &domain.Snapshot{
		ID:        uuid.New().String(),
		Resource:  update.Resource,
		DeviceID:  update.ID,
		Available: update.Available,
		CreatedAt: update.At.Unix(),
	}
	if update.Payload != nil {
		payload, err := json.Marshal(update.Payload)
		if err != nil {
			return fmt.Errorf("encode payload %s: %w", update.Key(), err)
		}
		snap.Payload = payload
	}

	if err := e.repo.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot %s: %w", update.Key(), err)
	}
	return nil
}

func (e *SnapshotEmitter) Close() error { return nil }
