// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ResourceHealth contains health details for one polled resource.
type ResourceHealth struct {
	Resource      string       `json:"resource"`
	ID            string       `json:"id"`
	Status        SystemStatus `json:"status"`
	Available     bool         `json:"available"`
	Halted        bool         `json:"halted"`
	Failures      int          `json:"failures"`
	LastError     string       `json:"last_error,omitempty"`
	Activity      string       `json:"activity,omitempty"`
	NextRefreshAt time.Time    `json:"next_refresh_at"`
	LastSuccessAt time.Time    `json:"last_success_at"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus              `json:"system_status"`
	EntryState   string                    `json:"entry_state"`
	Resources    map[string]ResourceHealth `json:"resources"`
}

// Aggregate returns the worst status of the report.
func Aggregate(resources map[string]ResourceHealth) SystemStatus {
	status := StatusHealthy
	for _, r := range resources {
		if r.Status == StatusCritical {
			return StatusCritical
		}
		if r.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
