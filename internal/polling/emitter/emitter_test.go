package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

type mockEmitter struct {
	mu      sync.Mutex
	updates []domain.Update
	err     error
	closed  bool
}

func (m *mockEmitter) Emit(ctx context.Context, update domain.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.updates = append(m.updates, update)
	return nil
}

func (m *mockEmitter) Close() error {
	m.closed = true
	return nil
}

func (m *mockEmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

func testUpdate(payload any, available bool) domain.Update {
	return domain.Update{
		Resource:  domain.ResourceEnergyLive,
		ID:        "123",
		Available: available,
		Payload:   payload,
		At:        time.Unix(1700000000, 0),
	}
}

func TestFanout_DeliversToAll(t *testing.T) {
	a, b := &mockEmitter{}, &mockEmitter{err: errors.New("down")}
	c := &mockEmitter{}

	f := NewFanout()
	f.Add("a", a)
	f.Add("b", b)
	f.Add("c", c)

	err := f.Emit(context.Background(), testUpdate(&domain.LiveStatus{}, true))
	if err == nil {
		t.Fatal("expected error from failing emitter")
	}
	if a.count() != 1 || c.count() != 1 {
		t.Errorf("healthy emitters got (%d, %d) updates, want (1, 1)", a.count(), c.count())
	}

	if err := f.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed || !b.closed || !c.closed {
		t.Error("all emitters should be closed")
	}
}

func TestChangeFilter(t *testing.T) {
	inner := &mockEmitter{}
	f := NewChangeFilter(inner)
	ctx := context.Background()

	p1 := &domain.LiveStatus{SolarPower: 1}
	p2 := &domain.LiveStatus{SolarPower: 1}

	_ = f.Emit(ctx, testUpdate(p1, true))
	_ = f.Emit(ctx, testUpdate(p1, true))
	if inner.count() != 1 {
		t.Errorf("repeated update forwarded: count = %d, want 1", inner.count())
	}

	_ = f.Emit(ctx, testUpdate(p1, false))
	if inner.count() != 2 {
		t.Errorf("availability change not forwarded: count = %d, want 2", inner.count())
	}

	_ = f.Emit(ctx, testUpdate(p2, false))
	if inner.count() != 3 {
		t.Errorf("new payload not forwarded: count = %d, want 3", inner.count())
	}

	_ = f.Emit(ctx, testUpdate(nil, true))
	_ = f.Emit(ctx, testUpdate(nil, true))
	if inner.count() != 4 {
		t.Errorf("nil payload handling: count = %d, want 4", inner.count())
	}
}

func TestChangeFilter_RetriesAfterError(t *testing.T) {
	inner := &mockEmitter{err: errors.New("down")}
	f := NewChangeFilter(inner)
	ctx := context.Background()
	p := &domain.LiveStatus{}

	if err := f.Emit(ctx, testUpdate(p, true)); err == nil {
		t.Fatal("expected error")
	}
	inner.mu.Lock()
	inner.err = nil
	inner.mu.Unlock()

	if err := f.Emit(ctx, testUpdate(p, true)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.count() != 1 {
		t.Errorf("count = %d, want 1", inner.count())
	}
}

func TestEncode(t *testing.T) {
	data, err := Encode(testUpdate(&domain.LiveStatus{SolarPower: 1500}, true))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	var msg struct {
		Resource  string         `json:"resource"`
		ID        string         `json:"id"`
		Available bool           `json:"available"`
		Payload   map[string]any `json:"payload"`
		At        int64          `json:"at"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if msg.Resource != "energy_live" || msg.ID != "123" || !msg.Available || msg.At != 1700000000 {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Payload["solar_power"] != float64(1500) {
		t.Errorf("payload solar_power = %v, want 1500", msg.Payload["solar_power"])
	}
}
