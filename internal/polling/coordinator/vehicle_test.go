package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/fleetapi"
	"github.com/vietddude/fleetwatch/internal/polling/emitter"
	"github.com/vietddude/fleetwatch/internal/polling/recovery"
	"github.com/vietddude/fleetwatch/internal/polling/throttle"
)

const (
	vehicleInterval = 90 * time.Second
	vehicleWait     = 15 * time.Minute
)

func testConfig(idleGrace time.Duration) throttle.Config {
	return throttle.Config{
		VehicleInterval:  vehicleInterval,
		VehicleWait:      vehicleWait,
		VehicleIdleGrace: idleGrace,
		EnergyInterval:   60 * time.Second,
	}
}

func assertCounts(t *testing.T, api *mockFleet, wantState, wantData int) {
	t.Helper()
	state, data := api.counts()
	if state != wantState || data != wantData {
		t.Errorf("calls (state, data) = (%d, %d), want (%d, %d)", state, data, wantState, wantData)
	}
	if state < data {
		t.Errorf("state calls %d < data calls %d", state, data)
	}
}

func TestVehicle_AsleepSkipsDataFetch(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	api.data = activeData()
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), clk)

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 1, 1)
	first, _ := c.Data()

	api.set(func(m *mockFleet) { m.state = domain.WakeStateAsleep })
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 2, 1)

	snap, ok := c.Data()
	if !ok {
		t.Fatal("expected data after asleep cycle")
	}
	if snap.State != domain.WakeStateAsleep {
		t.Errorf("snapshot state = %q, want asleep", snap.State)
	}
	if snap.Data != first.Data {
		t.Error("asleep snapshot should reuse the previous payload")
	}
	if !c.Available() {
		t.Error("asleep vehicle should stay available")
	}
	if got := c.Scheduler().State().CurrentInterval; got != vehicleInterval {
		t.Errorf("interval = %v, want %v", got, vehicleInterval)
	}
}

type countingEmitter struct {
	mu sync.Mutex
	n  int
}

func (e *countingEmitter) Emit(ctx context.Context, update domain.Update) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.n++
	return nil
}

func (e *countingEmitter) Close() error { return nil }

func (e *countingEmitter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.n
}

func TestVehicle_AsleepCyclesPublishOnce(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	api.data = activeData()
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), clk)

	inner := &countingEmitter{}
	c.Subscribe(emitter.Listener(ctx, emitter.NewChangeFilter(inner)))

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	api.set(func(m *mockFleet) { m.state = domain.WakeStateAsleep })

	var first *domain.VehicleSnapshot
	for i := 0; i < 50; i++ {
		clk.Advance(vehicleInterval)
		if err := c.RefreshOnce(ctx); err != nil {
			t.Fatalf("cycle %d: unexpected error: %v", i, err)
		}
		snap, _ := c.Data()
		if first == nil {
			first = snap
		} else if snap != first {
			t.Fatalf("cycle %d: asleep snapshot was rebuilt", i)
		}
	}
	assertCounts(t, api, 51, 1)

	// One awake publish plus one for falling asleep.
	if got := inner.count(); got != 2 {
		t.Errorf("published = %d, want 2", got)
	}

	// Waking up publishes again.
	api.set(func(m *mockFleet) { m.state = domain.WakeStateOnline })
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := inner.count(); got != 3 {
		t.Errorf("published = %d, want 3", got)
	}
}

func TestVehicle_StateCheckFailure(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), clk)

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api.set(func(m *mockFleet) { m.stateErr = &fleetapi.APIError{Status: 500, Message: "internal"} })
	clk.Advance(vehicleInterval)
	err := c.RefreshOnce(ctx)

	var rerr *recovery.RefreshError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected RefreshError, got %v", err)
	}
	if rerr.Kind != recovery.KindTransient {
		t.Errorf("Kind = %v, want transient", rerr.Kind)
	}
	assertCounts(t, api, 2, 1)

	status := c.Status()
	if status.Available {
		t.Error("failed state check should mark the vehicle unavailable")
	}
	if status.Failures != 1 {
		t.Errorf("failures = %d, want 1", status.Failures)
	}
	if status.Halted {
		t.Error("transient failure should not halt")
	}

	api.set(func(m *mockFleet) { m.stateErr = nil })
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Available() {
		t.Error("vehicle should be available after a successful refresh")
	}
}

func TestVehicle_OfflineRace(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	api.data = activeData()
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), clk)

	rec := &recorder{}
	c.Subscribe(rec.listen)

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 1, 1)

	// State says online, data call says offline.
	api.set(func(m *mockFleet) { m.dataErr = fleetapi.ErrVehicleOffline })
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("offline race should not be an error: %v", err)
	}
	assertCounts(t, api, 2, 2)

	status := c.Status()
	if !status.Available {
		t.Error("offline race should not change availability")
	}
	if status.Failures != 0 {
		t.Errorf("failures = %d, want 0", status.Failures)
	}
	if status.Activity != throttle.ActivityAwakeActive.String() {
		t.Errorf("activity = %s, want active", status.Activity)
	}
	if want := clk.Now().Add(vehicleInterval); !status.NextRefreshAt.Equal(want) {
		t.Errorf("next refresh = %v, want %v", status.NextRefreshAt, want)
	}
	if !rec.last().Available {
		t.Error("listeners should see the vehicle as available")
	}

	// Now the state check reports asleep: no data call.
	api.set(func(m *mockFleet) { m.state = domain.WakeStateAsleep })
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 3, 2)
}

func TestVehicle_StateOfflineAssumesAwake(t *testing.T) {
	ctx := context.Background()
	api := newMockFleet()
	api.stateErr = fleetapi.ErrVehicleOffline
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), newManualClock())

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 1, 1)
	if _, ok := c.Data(); !ok {
		t.Error("expected data from the full fetch")
	}
}

// A single idle reading is enough to grant the sleep window.
func TestVehicle_IdleWaitThenRevert(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), clk)

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Scheduler().State().CurrentInterval; got != vehicleWait {
		t.Fatalf("interval after idle = %v, want %v", got, vehicleWait)
	}

	// Baseline tick inside the window does nothing.
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 1, 1)

	// Still awake when the window ends: back to the baseline.
	clk.Advance(vehicleWait - vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 2, 2)
	if got := c.Scheduler().State().CurrentInterval; got != vehicleInterval {
		t.Errorf("interval after failed sleep = %v, want %v", got, vehicleInterval)
	}

	// The next idle reading grants the window again.
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 3, 3)
	if got := c.Scheduler().State().CurrentInterval; got != vehicleWait {
		t.Errorf("interval after second idle = %v, want %v", got, vehicleWait)
	}
}

func TestVehicle_SleepTimelineWithIdleGrace(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	c := NewVehicleCoordinator(api, "LRW123", testConfig(vehicleWait), clk)

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []struct {
		name     string
		advance  time.Duration
		active   bool
		wantData int
	}{
		{"idle long enough, grant wait", vehicleWait + vehicleInterval, false, 2},
		{"inside wait", vehicleInterval, false, 2},
		{"still inside wait", vehicleInterval, false, 2},
		{"did not sleep, back to normal", vehicleWait, false, 3},
		{"regular polling", vehicleInterval, false, 4},
		{"vehicle active", vehicleInterval, true, 5},
		{"no wait when active", vehicleWait, true, 6},
		{"still no wait", vehicleWait, true, 7},
	}

	for _, step := range steps {
		if step.active {
			api.set(func(m *mockFleet) { m.data = activeData() })
		}
		clk.Advance(step.advance)
		if err := c.RefreshOnce(ctx); err != nil {
			t.Fatalf("%s: unexpected error: %v", step.name, err)
		}
		if _, data := api.counts(); data != step.wantData {
			t.Errorf("%s: data calls = %d, want %d", step.name, data, step.wantData)
		}
	}
	assertCounts(t, api, 7, 7)
}

func TestVehicle_RateLimited(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	api.dataErr = &fleetapi.RateLimitedError{After: int(vehicleInterval.Seconds()) + 10}
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), clk)

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("rate limit should be absorbed: %v", err)
	}
	assertCounts(t, api, 1, 1)
	if _, ok := c.Data(); ok {
		t.Error("no payload should be published on rate limit")
	}

	clk.Advance(vehicleInterval)
	_ = c.RefreshOnce(ctx)
	assertCounts(t, api, 1, 1)

	api.set(func(m *mockFleet) { m.dataErr = nil })
	clk.Advance(vehicleInterval)
	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertCounts(t, api, 2, 2)
}

func TestVehicle_FatalResetsPolicy(t *testing.T) {
	ctx := context.Background()
	clk := newManualClock()
	api := newMockFleet()
	c := NewVehicleCoordinator(api, "LRW123", testConfig(0), clk)

	if err := c.RefreshOnce(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.Status().Activity; got != throttle.ActivityAwakeIdle.String() {
		t.Fatalf("activity = %s, want idle", got)
	}

	api.set(func(m *mockFleet) { m.stateErr = fleetapi.ErrOAuthExpired })
	clk.Advance(vehicleWait)
	if err := c.RefreshOnce(ctx); err == nil {
		t.Fatal("expected fatal error")
	}

	status := c.Status()
	if !status.Halted {
		t.Error("coordinator should be halted")
	}
	if status.Activity != throttle.ActivityUnknown.String() {
		t.Errorf("activity = %s, want unknown", status.Activity)
	}
	if status.Available {
		t.Error("halted vehicle should be unavailable")
	}

	clk.Advance(vehicleWait)
	_ = c.RefreshOnce(ctx)
	assertCounts(t, api, 2, 1)
}
