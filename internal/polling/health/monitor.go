package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/fleetwatch/internal/polling/coordinator"
)

// Source exposes the coordinators of the running entry.
type Source interface {
	Statuses() []coordinator.Status
	State() string
}

// Monitor aggregates health status from the coordinators.
type Monitor struct {
	source   Source
	cacheTTL time.Duration

	lastCheck  time.Time
	lastReport map[string]ResourceHealth
	mu         sync.RWMutex
}

// NewMonitor creates a new health monitor. Reports are cached for cacheTTL.
func NewMonitor(source Source, cacheTTL time.Duration) *Monitor {
	return &Monitor{
		source:     source,
		cacheTTL:   cacheTTL,
		lastReport: make(map[string]ResourceHealth),
	}
}

// CheckHealth evaluates every coordinator.
func (m *Monitor) CheckHealth(ctx context.Context) map[string]ResourceHealth {
	m.mu.Lock()
	defer m.mu.Unlock()

	if time.Since(m.lastCheck) < m.cacheTTL && len(m.lastReport) > 0 {
		return m.lastReport
	}

	report := make(map[string]ResourceHealth)
	for _, st := range m.source.Statuses() {
		h := ResourceHealth{
			Resource:      string(st.Resource),
			ID:            st.ID,
			Status:        StatusHealthy,
			Available:     st.Available,
			Halted:        st.Halted,
			Failures:      st.Failures,
			LastError:     st.LastError,
			Activity:      st.Activity,
			NextRefreshAt: st.NextRefreshAt,
			LastSuccessAt: st.LastSuccessAt,
		}

		switch {
		case st.Halted:
			h.Status = StatusCritical
		case !st.Available:
			h.Status = StatusDegraded
		}

		report[string(st.Resource)+":"+st.ID] = h
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}

// Report returns the full health report.
func (m *Monitor) Report(ctx context.Context) HealthReport {
	resources := m.CheckHealth(ctx)
	return HealthReport{
		SystemStatus: Aggregate(resources),
		EntryState:   m.source.State(),
		Resources:    resources,
	}
}
