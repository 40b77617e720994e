package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/fleetapi"
	"github.com/vietddude/fleetwatch/internal/polling/metrics"
	"github.com/vietddude/fleetwatch/internal/polling/throttle"
)

// VehicleAPI is the part of the remote client used for vehicles.
type VehicleAPI interface {
	VehicleState(ctx context.Context, vin string) (*domain.VehicleState, error)
	VehicleData(ctx context.Context, vin string) (*domain.VehicleData, error)
}

// VehicleCoordinator polls one vehicle.
type VehicleCoordinator = Coordinator[*domain.VehicleSnapshot]

// NewVehicleCoordinator creates a coordinator driven by a sleep policy.
func NewVehicleCoordinator(api VehicleAPI, vin string, cfg throttle.Config, clock Clock) *VehicleCoordinator {
	if clock == nil {
		clock = SystemClock{}
	}
	r := &vehicleRefresher{
		api:    api,
		vin:    vin,
		clock:  clock,
		policy: throttle.NewSleepPolicy(vin, cfg.Sleep(), clock.Now()),
	}
	return New[*domain.VehicleSnapshot](Options{
		Resource: domain.ResourceVehicle,
		ID:       vin,
		Interval: cfg.VehicleInterval,
		Clock:    clock,
	}, r)
}

type vehicleRefresher struct {
	api    VehicleAPI
	vin    string
	clock  Clock
	policy *throttle.SleepPolicy

	// last full payload, reused while the vehicle sleeps
	last *domain.VehicleData
	// prev is the last published snapshot. An unchanged asleep cycle returns
	// it again so change filters see the same payload.
	prev *domain.VehicleSnapshot
}

func (r *vehicleRefresher) Refresh(ctx context.Context) (Result[*domain.VehicleSnapshot], error) {
	metrics.RemoteCallsTotal.WithLabelValues(string(domain.ResourceVehicle), "vehicle_state").Inc()

	wake := domain.WakeStateOnline
	state, err := r.api.VehicleState(ctx, r.vin)
	switch {
	case err == nil:
		wake = state.State
	case errors.Is(err, fleetapi.ErrVehicleOffline):
		// Still resolving, assume awake and try the full fetch.
	default:
		return Result[*domain.VehicleSnapshot]{}, err
	}

	if !wake.Awake() {
		interval := r.policy.Asleep(ctx, r.clock.Now())
		snap := r.prev
		if snap == nil || snap.State != wake || snap.Data != r.last {
			snap = &domain.VehicleSnapshot{
				VIN:      r.vin,
				State:    wake,
				Activity: throttle.ActivityAsleep.String(),
				Data:     r.last,
			}
			r.prev = snap
		}
		return Result[*domain.VehicleSnapshot]{Payload: snap, Interval: interval}, nil
	}

	metrics.RemoteCallsTotal.WithLabelValues(string(domain.ResourceVehicle), "vehicle_data").Inc()
	data, err := r.api.VehicleData(ctx, r.vin)
	if err != nil {
		if errors.Is(err, fleetapi.ErrVehicleOffline) {
			r.policy.OfflineRace(ctx)
		}
		return Result[*domain.VehicleSnapshot]{}, err
	}

	activity := throttle.ClassifyActivity(data)
	interval := r.policy.Observe(ctx, r.clock.Now(), activity)
	r.last = data
	r.prev = &domain.VehicleSnapshot{
		VIN:      r.vin,
		State:    domain.WakeStateOnline,
		Activity: activity.String(),
		Data:     data,
	}

	return Result[*domain.VehicleSnapshot]{Payload: r.prev, Interval: interval}, nil
}

func (r *vehicleRefresher) Reset(ctx context.Context, now time.Time) {
	r.policy.Reset(ctx, now)
}

func (r *vehicleRefresher) ActivityName() string {
	return r.policy.Activity().String()
}
