package coordinator

import (
	"sync"
	"time"

	"github.com/vietddude/fleetwatch/internal/polling/throttle"
)

// ScheduleState is the per-coordinator timing state.
type ScheduleState struct {
	NextAllowedAt   time.Time
	CurrentInterval time.Duration
	LastSuccessAt   time.Time // zero until the first success
	Halted          bool
}

// Scheduler decides when the next remote call is allowed.
type Scheduler struct {
	clock    Clock
	baseline time.Duration

	mu    sync.Mutex
	state ScheduleState
}

// NewScheduler creates a scheduler that allows a call immediately.
func NewScheduler(clock Clock, baseline time.Duration) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		clock:    clock,
		baseline: baseline,
		state:    ScheduleState{CurrentInterval: baseline},
	}
}

// Baseline returns the regular interval.
func (s *Scheduler) Baseline() time.Duration {
	return s.baseline
}

// Ready reports whether a remote call is allowed now.
func (s *Scheduler) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.Halted && !s.clock.Now().Before(s.state.NextAllowedAt)
}

// Wait returns the time left until the next allowed call.
func (s *Scheduler) Wait() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d := s.state.NextAllowedAt.Sub(s.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// Succeeded records a successful call. A non-positive interval means baseline.
func (s *Scheduler) Succeeded(interval time.Duration) {
	if interval <= 0 {
		interval = s.baseline
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.state.CurrentInterval = interval
	s.state.LastSuccessAt = now
	s.state.NextAllowedAt = now.Add(interval)
}

// Retry schedules the next attempt one baseline interval from now.
func (s *Scheduler) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.CurrentInterval = s.baseline
	s.state.NextAllowedAt = s.clock.Now().Add(s.baseline)
}

// RateLimited pushes the next attempt out by the server supplied wait.
// Without a hint it behaves like Retry.
func (s *Scheduler) RateLimited(after time.Duration) {
	if after <= 0 {
		s.Retry()
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.NextAllowedAt = throttle.OnRateLimited(s.clock.Now(), after)
}

// Halt stops all further scheduling.
func (s *Scheduler) Halt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Halted = true
}

// Halted reports whether Halt was called.
func (s *Scheduler) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Halted
}

// State returns a copy of the schedule state.
func (s *Scheduler) State() ScheduleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
