// Package coordinator owns the refresh loops that poll the remote API.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/fleetwatch/internal/core/domain"
	"github.com/vietddude/fleetwatch/internal/polling/metrics"
	"github.com/vietddude/fleetwatch/internal/polling/recovery"
)

// Result is what a refresher produced in one cycle.
type Result[T any] struct {
	Payload T
	// Interval until the next cycle. Zero means baseline.
	Interval time.Duration
}

// Refresher performs the remote calls of one refresh cycle.
type Refresher[T any] interface {
	Refresh(ctx context.Context) (Result[T], error)
}

// RefreshFunc adapts a plain function to Refresher.
type RefreshFunc[T any] func(ctx context.Context) (Result[T], error)

func (f RefreshFunc[T]) Refresh(ctx context.Context) (Result[T], error) {
	return f(ctx)
}

// Resetter is implemented by refreshers that keep state which must be
// dropped on a fatal error.
type Resetter interface {
	Reset(ctx context.Context, now time.Time)
}

// ActivityReporter is implemented by refreshers that track device activity.
type ActivityReporter interface {
	ActivityName() string
}

// Listener receives an update after every completed cycle.
type Listener func(domain.Update)

// Options configures a Coordinator.
type Options struct {
	Resource domain.Resource
	ID       string
	Interval time.Duration
	Clock    Clock

	// OfflineIsTransient makes a device-offline error mark the resource
	// unavailable. When false the error is absorbed without any state change.
	OfflineIsTransient bool
}

// Status is a point-in-time view of a coordinator.
type Status struct {
	Resource        domain.Resource `json:"resource"`
	ID              string          `json:"id"`
	Running         bool            `json:"running"`
	Available       bool            `json:"available"`
	HasData         bool            `json:"has_data"`
	Halted          bool            `json:"halted"`
	Failures        int             `json:"failures"`
	LastError       string          `json:"last_error,omitempty"`
	Activity        string          `json:"activity,omitempty"`
	CurrentInterval time.Duration   `json:"current_interval"`
	NextRefreshAt   time.Time       `json:"next_refresh_at"`
	LastSuccessAt   time.Time       `json:"last_success_at"`
}

// Coordinator runs the refresh loop of a single remote resource.
type Coordinator[T any] struct {
	opts      Options
	refresher Refresher[T]
	sched     *Scheduler
	logger    *slog.Logger

	inFlight atomic.Bool
	running  atomic.Bool
	stopped  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	payload    T
	hasPayload bool
	available  bool
	failures   int
	lastErr    error
	listeners  map[uuid.UUID]Listener
	onFatal    func(err error)
}

// New creates a coordinator. Nothing is fetched until RefreshOnce or Start.
func New[T any](opts Options, refresher Refresher[T]) *Coordinator[T] {
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &Coordinator[T]{
		opts:      opts,
		refresher: refresher,
		sched:     NewScheduler(opts.Clock, opts.Interval),
		logger:    slog.Default().With("resource", string(opts.Resource), "id", opts.ID),
		stop:      make(chan struct{}),
		available: true,
		listeners: make(map[uuid.UUID]Listener),
	}
}

// Resource returns the resource kind.
func (c *Coordinator[T]) Resource() domain.Resource {
	return c.opts.Resource
}

// ID returns the resource identifier.
func (c *Coordinator[T]) ID() string {
	return c.opts.ID
}

// Scheduler exposes the schedule for inspection.
func (c *Coordinator[T]) Scheduler() *Scheduler {
	return c.sched
}

// Data returns the last published payload.
func (c *Coordinator[T]) Data() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.payload, c.hasPayload
}

// Available reports the current availability flag.
func (c *Coordinator[T]) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.available
}

// OnFatal registers a callback invoked once the coordinator halts.
func (c *Coordinator[T]) OnFatal(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onFatal = fn
}

// Subscribe registers a listener and returns a function removing it.
func (c *Coordinator[T]) Subscribe(l Listener) func() {
	id := uuid.New()

	c.mu.Lock()
	c.listeners[id] = l
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// RefreshOnce runs one refresh cycle.
//
// It returns nil when the cycle succeeded, was skipped, or failed in a way the
// coordinator absorbs (rate limiting, device offline). A *recovery.RefreshError
// is returned for transient and fatal failures, and unrecognized errors are
// returned as is after halting the coordinator.
func (c *Coordinator[T]) RefreshOnce(ctx context.Context) error {
	if c.stopped.Load() {
		return nil
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		metrics.RefreshCyclesTotal.WithLabelValues(string(c.opts.Resource), c.opts.ID, "coalesced").Inc()
		return nil
	}
	defer c.inFlight.Store(false)

	if c.sched.Halted() {
		return nil
	}
	if !c.sched.Ready() {
		metrics.RefreshCyclesTotal.WithLabelValues(string(c.opts.Resource), c.opts.ID, "skipped").Inc()
		c.notify()
		return nil
	}

	start := time.Now()
	res, err := c.refresher.Refresh(ctx)
	metrics.RefreshLatency.WithLabelValues(string(c.opts.Resource)).Observe(time.Since(start).Seconds())

	if c.stopped.Load() {
		return nil
	}

	if err != nil {
		return c.handleError(ctx, err)
	}

	c.mu.Lock()
	c.payload = res.Payload
	c.hasPayload = true
	c.available = true
	c.failures = 0
	c.lastErr = nil
	c.mu.Unlock()

	c.sched.Succeeded(res.Interval)
	metrics.RefreshCyclesTotal.WithLabelValues(string(c.opts.Resource), c.opts.ID, "success").Inc()
	c.notify()
	return nil
}

func (c *Coordinator[T]) handleError(ctx context.Context, err error) error {
	// Shutdown is not a remote failure.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	rerr, ok := recovery.Classify(err)
	if !ok {
		c.halt(ctx, err)
		return err
	}

	metrics.RefreshErrorsTotal.WithLabelValues(string(c.opts.Resource), c.opts.ID, rerr.Kind.String()).Inc()

	switch {
	case rerr.Fatal():
		c.halt(ctx, rerr)
		return rerr

	case rerr.Kind == recovery.KindRateLimited:
		c.sched.RateLimited(rerr.RetryAfter)
		c.logger.Warn("Rate limited", "retry_after", rerr.RetryAfter, "next", c.sched.State().NextAllowedAt)
		c.notify()
		return nil

	case rerr.Kind == recovery.KindDeviceOffline && !c.opts.OfflineIsTransient:
		c.logger.Debug("Device offline, will retry", "error", err)
		c.sched.Retry()
		c.notify()
		return nil

	case rerr.Kind == recovery.KindDeviceOffline:
		c.logger.Debug("Device offline, marking unavailable", "error", err)
		c.markFailed(rerr)
		c.sched.Retry()
		c.notify()
		return nil

	default:
		c.logger.Warn("Refresh failed", "error", err)
		c.markFailed(rerr)
		c.sched.Retry()
		c.notify()
		return rerr
	}
}

func (c *Coordinator[T]) markFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = false
	c.failures++
	c.lastErr = err
}

// halt stops scheduling until the coordinator is rebuilt.
func (c *Coordinator[T]) halt(ctx context.Context, err error) {
	c.logger.Error("Refresh failed permanently, polling halted", "error", err)

	c.mu.Lock()
	c.available = false
	c.lastErr = err
	onFatal := c.onFatal
	c.mu.Unlock()

	c.sched.Halt()
	if r, ok := c.refresher.(Resetter); ok {
		r.Reset(ctx, c.opts.Clock.Now())
	}
	metrics.RefreshCyclesTotal.WithLabelValues(string(c.opts.Resource), c.opts.ID, "halted").Inc()
	c.notify()

	if onFatal != nil {
		onFatal(err)
	}
}

// notify delivers the current state to every listener. No-op after Stop.
func (c *Coordinator[T]) notify() {
	if c.stopped.Load() {
		return
	}

	c.mu.RLock()
	update := domain.Update{
		Resource:  c.opts.Resource,
		ID:        c.opts.ID,
		Available: c.available,
		At:        c.opts.Clock.Now(),
	}
	if c.hasPayload {
		update.Payload = c.payload
	}
	listeners := make([]Listener, 0, len(c.listeners))
	for _, l := range c.listeners {
		listeners = append(listeners, l)
	}
	available := c.available
	c.mu.RUnlock()

	if available {
		metrics.Available.WithLabelValues(string(c.opts.Resource), c.opts.ID).Set(1)
	} else {
		metrics.Available.WithLabelValues(string(c.opts.Resource), c.opts.ID).Set(0)
	}
	metrics.NextRefreshSeconds.WithLabelValues(string(c.opts.Resource), c.opts.ID).Set(c.sched.Wait().Seconds())

	for _, l := range listeners {
		l(update)
	}
}

// Start runs the timer loop until ctx is done, Stop is called or the
// coordinator halts. It blocks.
func (c *Coordinator[T]) Start(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("coordinator %s/%s already running", c.opts.Resource, c.opts.ID)
	}
	defer c.running.Store(false)

	if c.opts.Interval <= 0 {
		return fmt.Errorf("coordinator %s/%s: interval must be positive", c.opts.Resource, c.opts.ID)
	}

	timer := time.NewTimer(c.sched.Wait())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.stop:
			return nil
		case <-timer.C:
			if err := c.RefreshOnce(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				c.logger.Debug("Refresh cycle returned error", "error", err)
			}
			if c.sched.Halted() {
				return nil
			}
			timer.Reset(c.sched.Wait())
		}
	}
}

// Stop cancels the timer loop. Results of an in-flight cycle are dropped.
func (c *Coordinator[T]) Stop() {
	c.stopped.Store(true)
	c.stopOnce.Do(func() { close(c.stop) })
}

// Status returns a snapshot for health checks and the CLI.
func (c *Coordinator[T]) Status() Status {
	st := c.sched.State()

	c.mu.RLock()
	status := Status{
		Resource:        c.opts.Resource,
		ID:              c.opts.ID,
		Running:         c.running.Load(),
		Available:       c.available,
		HasData:         c.hasPayload,
		Halted:          st.Halted,
		Failures:        c.failures,
		CurrentInterval: st.CurrentInterval,
		NextRefreshAt:   st.NextAllowedAt,
		LastSuccessAt:   st.LastSuccessAt,
	}
	if c.lastErr != nil {
		status.LastError = c.lastErr.Error()
	}
	c.mu.RUnlock()

	if r, ok := c.refresher.(ActivityReporter); ok {
		status.Activity = r.ActivityName()
	}
	return status
}

// Handle is the type-erased view of a coordinator used by the lifecycle
// manager, health checks and publishers.
type Handle interface {
	Resource() domain.Resource
	ID() string
	RefreshOnce(ctx context.Context) error
	Start(ctx context.Context) error
	Stop()
	Subscribe(l Listener) func()
	OnFatal(fn func(err error))
	Status() Status
}

var (
	_ Handle = (*VehicleCoordinator)(nil)
	_ Handle = (*EnergyLiveCoordinator)(nil)
	_ Handle = (*EnergySiteCoordinator)(nil)
)
