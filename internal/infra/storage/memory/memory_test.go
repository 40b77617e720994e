package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/storage"
)

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	if _, err := s.Latest(ctx, domain.ResourceVehicle, "VIN1"); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	snaps := []*domain.Snapshot{
		{ID: "1", Resource: domain.ResourceVehicle, DeviceID: "VIN1", CreatedAt: 100},
		{ID: "2", Resource: domain.ResourceEnergyLive, DeviceID: "123", CreatedAt: 150},
		{ID: "3", Resource: domain.ResourceVehicle, DeviceID: "VIN1", CreatedAt: 200},
	}
	for _, snap := range snaps {
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	latest, err := s.Latest(ctx, domain.ResourceVehicle, "VIN1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != "3" {
		t.Errorf("latest = %s, want 3", latest.ID)
	}

	all, err := s.LatestAll(ctx)
	if err != nil {
		t.Fatalf("LatestAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("LatestAll returned %d, want 2", len(all))
	}
	if all[0].Resource != domain.ResourceEnergyLive || all[1].ID != "3" {
		t.Errorf("unexpected order: %s, %s", all[0].ID, all[1].ID)
	}

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}

	deleted, err := s.DeleteOlderThan(ctx, 160)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}
	if _, err := s.Latest(ctx, domain.ResourceEnergyLive, "123"); !errors.Is(err, storage.ErrSnapshotNotFound) {
		t.Errorf("expected pruned snapshot to be gone, got %v", err)
	}
}

func TestMemoryStorage_BoundedByResources(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	for i := 0; i < 1000; i++ {
		snap := &domain.Snapshot{
			ID:        fmt.Sprintf("%d", i),
			Resource:  domain.ResourceVehicle,
			DeviceID:  "VIN1",
			CreatedAt: int64(i),
		}
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}
	_ = s.Save(ctx, &domain.Snapshot{ID: "site", Resource: domain.ResourceEnergySite, DeviceID: "123"})

	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	latest, err := s.Latest(ctx, domain.ResourceVehicle, "VIN1")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != "999" {
		t.Errorf("latest = %s, want 999", latest.ID)
	}
}
