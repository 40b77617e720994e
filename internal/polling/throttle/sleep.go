package throttle

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/looplab/fsm"

	"github.com/vietddude/fleetwatch/internal/core/domain"
)

// Phases of the sleep policy.
const (
	PhaseChecking        = "checking"
	PhaseWaitingForSleep = "waiting_for_sleep"
)

// Events driving the sleep policy.
const (
	EventIdle  = "idle"
	EventSlept = "slept"
	EventWoke  = "woke"
	EventReset = "reset"
)

// Activity is the vehicle activity derived from the last refresh cycle.
type Activity int

const (
	ActivityUnknown Activity = iota
	ActivityAwakeActive
	ActivityAwakeIdle
	ActivityAsleep
)

func (a Activity) String() string {
	switch a {
	case ActivityAwakeActive:
		return "active"
	case ActivityAwakeIdle:
		return "idle"
	case ActivityAsleep:
		return "asleep"
	default:
		return "unknown"
	}
}

// ClassifyActivity derives the activity from a full data payload.
// Anything that would keep the vehicle awake on its own counts as active.
func ClassifyActivity(data *domain.VehicleData) Activity {
	if data == nil {
		return ActivityUnknown
	}
	if data.ChargeState.ChargingState == "Charging" {
		return ActivityAwakeActive
	}
	if s := data.DriveState.ShiftState; s != nil {
		switch *s {
		case "D", "R", "N":
			return ActivityAwakeActive
		}
	}
	if data.VehicleState.IsUserPresent || data.VehicleState.SentryMode || data.ClimateState.IsClimateOn {
		return ActivityAwakeActive
	}
	return ActivityAwakeIdle
}

// SleepConfig holds the intervals used by SleepPolicy.
type SleepConfig struct {
	Interval  time.Duration
	Wait      time.Duration
	IdleGrace time.Duration
}

// SleepPolicy decides the next interval of a vehicle coordinator.
//
// In the checking phase every cycle starts with the wake-state check. Once the
// vehicle has been idle for IdleGrace the policy grants a long wait so that no
// call keeps the vehicle awake. The cycle after the wait goes back to checking
// whether or not the vehicle managed to fall asleep.
type SleepPolicy struct {
	cfg    SleepConfig
	fsm    *fsm.FSM
	logger *slog.Logger

	mu         sync.Mutex
	activity   Activity
	lastActive time.Time
}

// NewSleepPolicy creates a policy in the checking phase.
// now starts the idle clock.
func NewSleepPolicy(vin string, cfg SleepConfig, now time.Time) *SleepPolicy {
	p := &SleepPolicy{
		cfg:        cfg,
		logger:     slog.Default().With("vin", vin),
		lastActive: now,
	}

	events := fsm.Events{
		{Name: EventIdle, Src: []string{PhaseChecking}, Dst: PhaseWaitingForSleep},
		{Name: EventSlept, Src: []string{PhaseWaitingForSleep}, Dst: PhaseChecking},
		{Name: EventWoke, Src: []string{PhaseWaitingForSleep}, Dst: PhaseChecking},
		{Name: EventReset, Src: []string{PhaseWaitingForSleep}, Dst: PhaseChecking},
	}

	callbacks := fsm.Callbacks{
		"enter_state": func(_ context.Context, e *fsm.Event) {
			p.logger.Debug("Sleep policy transition", "event", e.Event, "from", e.Src, "to", e.Dst)
		},
	}

	p.fsm = fsm.NewFSM(PhaseChecking, events, callbacks)
	return p
}

// Phase returns the current phase.
func (p *SleepPolicy) Phase() string {
	return p.fsm.Current()
}

// Activity returns the activity of the last cycle.
func (p *SleepPolicy) Activity() Activity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.activity
}

// Asleep records that the wake-state check reported the vehicle asleep.
func (p *SleepPolicy) Asleep(ctx context.Context, now time.Time) time.Duration {
	p.mu.Lock()
	p.activity = ActivityAsleep
	p.lastActive = now
	p.mu.Unlock()

	p.fire(ctx, EventSlept)
	return p.cfg.Interval
}

// Observe records the activity derived from a successful full fetch and
// returns the interval until the next cycle.
func (p *SleepPolicy) Observe(ctx context.Context, now time.Time, activity Activity) time.Duration {
	p.mu.Lock()
	p.activity = activity
	if activity == ActivityAwakeActive {
		p.lastActive = now
	}
	idleFor := now.Sub(p.lastActive)
	p.mu.Unlock()

	if p.Phase() == PhaseWaitingForSleep {
		// The wait is over and the vehicle is still awake.
		p.mu.Lock()
		p.lastActive = now
		p.mu.Unlock()
		p.fire(ctx, EventWoke)
		return p.cfg.Interval
	}

	if activity == ActivityAwakeIdle && idleFor >= p.cfg.IdleGrace {
		p.fire(ctx, EventIdle)
		return p.cfg.Wait
	}
	return p.cfg.Interval
}

// OfflineRace handles a full fetch that reported offline right after the
// wake-state check reported awake. Activity is left untouched.
func (p *SleepPolicy) OfflineRace(ctx context.Context) time.Duration {
	p.fire(ctx, EventWoke)
	return p.cfg.Interval
}

// Reset drops everything learned so far. Called on fatal errors.
func (p *SleepPolicy) Reset(ctx context.Context, now time.Time) {
	p.mu.Lock()
	p.activity = ActivityUnknown
	p.lastActive = now
	p.mu.Unlock()

	p.fire(ctx, EventReset)
}

// fire triggers an event if the current phase allows it.
func (p *SleepPolicy) fire(ctx context.Context, event string) {
	if !p.fsm.Can(event) {
		return
	}
	if err := p.fsm.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			p.logger.Warn("Sleep policy event failed", "event", event, "error", err)
		}
	}
}
