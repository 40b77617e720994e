package control

import (
	"context"
	"sync"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/fleetapi"
)

// =============================================================================
// Mock Fleet API
// =============================================================================

type mockAPI struct {
	mu sync.Mutex

	products    []domain.Product
	productsErr error
	stateErr    error
	dataErr     error
	liveErr     error
	siteErr     error

	dataCalls int
	liveCalls int
}

var _ fleetapi.Client = (*mockAPI)(nil)

func newMockAPI() *mockAPI {
	return &mockAPI{
		products: []domain.Product{
			{VIN: "LRW123", DisplayName: "Model Y", State: domain.WakeStateOnline},
			{EnergySiteID: 42, SiteName: "Home"},
		},
	}
}

func (m *mockAPI) Products(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products, m.productsErr
}

func (m *mockAPI) VehicleState(ctx context.Context, vin string) (*domain.VehicleState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateErr != nil {
		return nil, m.stateErr
	}
	return &domain.VehicleState{VIN: vin, State: domain.WakeStateOnline}, nil
}

func (m *mockAPI) VehicleData(ctx context.Context, vin string) (*domain.VehicleData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataCalls++
	if m.dataErr != nil {
		return nil, m.dataErr
	}
	return &domain.VehicleData{
		VIN:         vin,
		State:       domain.WakeStateOnline,
		ChargeState: domain.ChargeState{BatteryLevel: 64, ChargingState: "Disconnected"},
	}, nil
}

func (m *mockAPI) LiveStatus(ctx context.Context, siteID string) (*domain.LiveStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.liveCalls++
	if m.liveErr != nil {
		return nil, m.liveErr
	}
	return &domain.LiveStatus{SolarPower: 3400, PercentageCharged: 91}, nil
}

func (m *mockAPI) SiteInfo(ctx context.Context, siteID string) (*domain.SiteInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.siteErr != nil {
		return nil, m.siteErr
	}
	return &domain.SiteInfo{ID: siteID, SiteName: "Home", BackupReservePercent: 20}, nil
}
