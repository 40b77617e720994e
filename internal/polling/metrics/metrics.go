package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshCyclesTotal tracks completed refresh cycles per resource and outcome
	RefreshCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_refresh_cycles_total",
			Help: "Total number of refresh cycles by outcome",
		},
		[]string{"resource", "id", "outcome"},
	)

	// RemoteCallsTotal tracks remote API calls per method
	RemoteCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_remote_calls_total",
			Help: "Total number of remote API calls",
		},
		[]string{"resource", "method"},
	)

	// RefreshErrorsTotal tracks classified refresh errors
	RefreshErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_refresh_errors_total",
			Help: "Total number of refresh errors by kind",
		},
		[]string{"resource", "id", "kind"},
	)

	// RefreshLatency tracks the duration of a refresh cycle that called the API
	RefreshLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_refresh_latency_seconds",
			Help:    "Refresh cycle latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource"},
	)

	// Available is 1 while the resource is available
	Available = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetwatch_available",
			Help: "Whether the resource is currently available",
		},
		[]string{"resource", "id"},
	)

	// NextRefreshSeconds is the wait until the next allowed remote call
	NextRefreshSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fleetwatch_next_refresh_seconds",
			Help: "Seconds until the next allowed refresh",
		},
		[]string{"resource", "id"},
	)

	// PublishErrorsTotal tracks failed publisher deliveries
	PublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_publish_errors_total",
			Help: "Total number of failed publisher deliveries",
		},
		[]string{"emitter"},
	)

	// SnapshotsPruned tracks history rows removed by the retention pruner
	SnapshotsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fleetwatch_snapshots_pruned_total",
			Help: "Total number of pruned snapshot rows",
		},
	)

	// DBConnectionPoolUsage tracks the percentage of used connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fleetwatch_db_connection_pool_usage_percent",
			Help: "Percentage of open database connections",
		},
	)
)
