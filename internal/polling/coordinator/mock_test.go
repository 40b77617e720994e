package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

// =============================================================================
// Manual Clock
// =============================================================================

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// =============================================================================
// Mock Fleet API
// =============================================================================

type mockFleet struct {
	mu sync.Mutex

	state    domain.WakeState
	stateErr error
	data     *domain.VehicleData
	dataErr  error
	live     *domain.LiveStatus
	liveErr  error
	site     *domain.SiteInfo
	siteErr  error

	stateCalls int
	dataCalls  int
	liveCalls  int
	siteCalls  int
}

func newMockFleet() *mockFleet {
	return &mockFleet{
		state: domain.WakeStateOnline,
		data:  idleData(),
		live:  &domain.LiveStatus{SolarPower: 1200, PercentageCharged: 80},
		site:  &domain.SiteInfo{ID: "123", SiteName: "Home"},
	}
}

func idleData() *domain.VehicleData {
	return &domain.VehicleData{
		VIN:         "LRW123",
		State:       domain.WakeStateOnline,
		ChargeState: domain.ChargeState{BatteryLevel: 77, ChargingState: "Disconnected"},
	}
}

func activeData() *domain.VehicleData {
	d := idleData()
	d.ChargeState.ChargingState = "Charging"
	return d
}

func (m *mockFleet) VehicleState(ctx context.Context, vin string) (*domain.VehicleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateCalls++
	if m.stateErr != nil {
		return nil, m.stateErr
	}
	return &domain.VehicleState{VIN: vin, State: m.state}, nil
}

func (m *mockFleet) VehicleData(ctx context.Context, vin string) (*domain.VehicleData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	if m.dataErr != nil {
		return nil, m.dataErr
	}
	return m.data, nil
}

func (m *mockFleet) LiveStatus(ctx context.Context, siteID string) (*domain.LiveStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveCalls++
	if m.liveErr != nil {
		return nil, m.liveErr
	}
	return m.live, nil
}

func (m *mockFleet) SiteInfo(ctx context.Context, siteID string) (*domain.SiteInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.siteCalls++
	if m.siteErr != nil {
		return nil, m.siteErr
	}
	return m.site, nil
}

func (m *mockFleet) set(fn func(m *mockFleet)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func (m *mockFleet) counts() (state, data int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateCalls, m.dataCalls
}

func (m *mockFleet) liveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.liveCalls
}

// recorder collects listener updates.
type recorder struct {
	mu      sync.Mutex
	updates []domain.Update
}

func (r *recorder) listen(u domain.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func (r *recorder) last() domain.Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates[len(r.updates)-1]
}
