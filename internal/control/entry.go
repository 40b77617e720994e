package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/infra/fleetapi"
	"github.com/vietddude/fleetwatch/internal/polling/coordinator"
	"github.com/vietddude/fleetwatch/internal/polling/recovery"
	"github.com/vietddude/fleetwatch/internal/polling/throttle"
)

// EntryState is the lifecycle state of the configured account.
type EntryState string

const (
	StateNotLoaded  EntryState = "not_loaded"
	StateLoaded     EntryState = "loaded"
	StateSetupRetry EntryState = "setup_retry"
	StateSetupError EntryState = "setup_error"
)

// VehicleData is the runtime data of one vehicle.
type VehicleData struct {
	Product     domain.Product
	Coordinator *coordinator.VehicleCoordinator
}

// EnergySiteData is the runtime data of one energy site.
type EnergySiteData struct {
	Product domain.Product
	Live    *coordinator.EnergyLiveCoordinator
	Info    *coordinator.EnergySiteCoordinator
}

// RuntimeData holds every coordinator of a loaded entry.
type RuntimeData struct {
	Vehicles    []*VehicleData
	EnergySites []*EnergySiteData
}

// Handles returns every coordinator in setup order.
func (r *RuntimeData) Handles() []coordinator.Handle {
	if r == nil {
		return nil
	}
	handles := make([]coordinator.Handle, 0, len(r.Vehicles)+2*len(r.EnergySites))
	for _, v := range r.Vehicles {
		handles = append(handles, v.Coordinator)
	}
	for _, s := range r.EnergySites {
		handles = append(handles, s.Live, s.Info)
	}
	return handles
}

// EntryConfig selects which products are polled and how often.
type EntryConfig struct {
	Throttle      throttle.Config
	VINs          []string // empty = all
	EnergySiteIDs []string // empty = all
	Clock         coordinator.Clock
}

// Entry owns the coordinators of one account from setup to unload.
type Entry struct {
	api fleetapi.Client
	cfg EntryConfig
	log *slog.Logger

	mu       sync.RWMutex
	listener coordinator.Listener
	state    EntryState
	err      error
	data     *RuntimeData
}

// NewEntry creates an entry in the not_loaded state.
func NewEntry(api fleetapi.Client, cfg EntryConfig) *Entry {
	if cfg.Clock == nil {
		cfg.Clock = coordinator.SystemClock{}
	}
	return &Entry{
		api:   api,
		cfg:   cfg,
		log:   slog.Default().With("component", "entry"),
		state: StateNotLoaded,
	}
}

// SetListener registers the listener subscribed to every coordinator built by
// the next Setup, so the initial refresh is delivered too.
func (e *Entry) SetListener(l coordinator.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listener = l
}

// Setup discovers products, builds their coordinators and runs the initial
// refreshes concurrently. The returned state tells the caller whether to run,
// retry later or give up.
func (e *Entry) Setup(ctx context.Context) (EntryState, error) {
	e.Unload()

	products, err := e.api.Products(ctx)
	if err != nil {
		return e.fail(ctx, nil, fmt.Errorf("failed to fetch products: %w", err))
	}

	data := e.build(products)
	e.mu.RLock()
	listener := e.listener
	e.mu.RUnlock()
	if listener != nil {
		for _, h := range data.Handles() {
			h.Subscribe(listener)
		}
	}

	e.log.Info("Discovered products",
		"vehicles", len(data.Vehicles),
		"energy_sites", len(data.EnergySites),
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range data.Handles() {
		g.Go(func() error {
			if err := h.RefreshOnce(gctx); err != nil {
				return fmt.Errorf("initial refresh of %s %s: %w", h.Resource(), h.ID(), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return e.fail(ctx, data, err)
	}

	e.mu.Lock()
	e.state = StateLoaded
	e.err = nil
	e.data = data
	e.mu.Unlock()

	e.log.Info("Entry loaded")
	return StateLoaded, nil
}

func (e *Entry) build(products []domain.Product) *RuntimeData {
	data := &RuntimeData{}
	for _, p := range products {
		switch {
		case p.IsVehicle():
			if len(e.cfg.VINs) > 0 && !slices.Contains(e.cfg.VINs, p.VIN) {
				continue
			}
			data.Vehicles = append(data.Vehicles, &VehicleData{
				Product:     p,
				Coordinator: coordinator.NewVehicleCoordinator(e.api, p.VIN, e.cfg.Throttle, e.cfg.Clock),
			})

		case p.IsEnergySite():
			id := strconv.FormatInt(p.EnergySiteID, 10)
			if len(e.cfg.EnergySiteIDs) > 0 && !slices.Contains(e.cfg.EnergySiteIDs, id) {
				continue
			}
			data.EnergySites = append(data.EnergySites, &EnergySiteData{
				Product: p,
				Live:    coordinator.NewEnergyLiveCoordinator(e.api, id, e.cfg.Throttle.EnergyInterval, e.cfg.Clock),
				Info:    coordinator.NewEnergySiteCoordinator(e.api, id, e.cfg.Throttle.EnergyInterval, e.cfg.Clock),
			})

		default:
			e.log.Debug("Skipping unsupported product", "product", p)
		}
	}
	return data
}

func (e *Entry) fail(ctx context.Context, data *RuntimeData, err error) (EntryState, error) {
	for _, h := range data.Handles() {
		h.Stop()
	}

	state := SetupOutcome(err)
	if ctx.Err() != nil {
		state = StateNotLoaded
	}

	e.mu.Lock()
	e.state = state
	e.err = err
	e.data = nil
	e.mu.Unlock()

	switch state {
	case StateSetupRetry:
		e.log.Warn("Setup failed, will retry", "error", err)
	case StateSetupError:
		e.log.Error("Setup failed, user action required", "error", err)
	}
	return state, err
}

// SetupOutcome maps an initial refresh error to the entry state.
// Auth failures and unrecognized errors need user action, everything else
// the client can report is retried later.
func SetupOutcome(err error) EntryState {
	if err == nil {
		return StateLoaded
	}
	if errors.Is(err, context.Canceled) {
		return StateNotLoaded
	}

	rerr, ok := recovery.Classify(err)
	if !ok || rerr.Fatal() {
		return StateSetupError
	}
	return StateSetupRetry
}

// Fail moves a loaded entry to setup_error after a runtime fatal error.
func (e *Entry) Fail(err error) {
	e.Unload()

	e.mu.Lock()
	e.state = StateSetupError
	e.err = err
	e.mu.Unlock()
}

// Unload stops every coordinator and clears the runtime data.
func (e *Entry) Unload() {
	e.mu.Lock()
	data := e.data
	e.data = nil
	if e.state == StateLoaded {
		e.state = StateNotLoaded
	}
	e.mu.Unlock()

	for _, h := range data.Handles() {
		h.Stop()
	}
}

// Data returns the runtime data, nil unless loaded.
func (e *Entry) Data() *RuntimeData {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.data
}

// State returns the entry state name.
func (e *Entry) State() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return string(e.state)
}

// Err returns the error that caused the current state, if any.
func (e *Entry) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Statuses returns the status of every coordinator.
func (e *Entry) Statuses() []coordinator.Status {
	handles := e.Data().Handles()
	statuses := make([]coordinator.Status, 0, len(handles))
	for _, h := range handles {
		statuses = append(statuses, h.Status())
	}
	return statuses
}
