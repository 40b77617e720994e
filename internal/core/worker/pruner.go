package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/fleetwatch/internal/infra/storage"
	"github.com/vietddude/fleetwatch/internal/polling/metrics"
)

// Pruner deletes snapshot history based on retention policy.
type Pruner struct {
	retention time.Duration
	repo      storage.SnapshotRepository
	now       func() time.Time
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.SnapshotRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		now:       time.Now,
	}
}

// Interval returns how often the pruner runs: 10% of retention, clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	interval := min(p.retention/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune removes every snapshot older than the retention period.
func (p *Pruner) Prune(ctx context.Context) int64 {
	threshold := p.now().Add(-p.retention).Unix()

	deleted, err := p.repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		slog.Error("Failed to prune snapshots", "error", err)
		return 0
	}
	if deleted > 0 {
		metrics.SnapshotsPruned.Add(float64(deleted))
		slog.Debug("Pruned snapshots", "count", deleted, "threshold", threshold)
	}
	return deleted
}
