package config

import (
	"time"

	"github.com/vietddude/fleetwatch/internal/infra/mqtt"
	redisclient "github.com/vietddude/fleetwatch/internal/infra/redis"
	"github.com/vietddude/fleetwatch/internal/infra/storage/postgres"
	"github.com/vietddude/fleetwatch/internal/polling/throttle"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Fleet    FleetConfig        `yaml:"fleet"`
	Refresh  RefreshConfig      `yaml:"refresh"`
	MQTT     mqtt.Config        `yaml:"mqtt"`
	Redis    redisclient.Config `yaml:"redis"`
	Database DatabaseConfig     `yaml:"database"`
}

// ServerConfig holds HTTP and gRPC health server settings.
type ServerConfig struct {
	Port     int `yaml:"port"`
	GRPCPort int `yaml:"grpc_port"` // 0 = disabled
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// FleetConfig holds the remote API settings.
type FleetConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Token         string        `yaml:"token"`
	Timeout       time.Duration `yaml:"timeout"`
	VINs          []string      `yaml:"vins"`            // empty = every vehicle on the account
	EnergySiteIDs []string      `yaml:"energy_site_ids"` // empty = every energy site on the account
}

// RefreshConfig holds the polling intervals.
type RefreshConfig struct {
	VehicleInterval    time.Duration `yaml:"vehicle_interval"`
	VehicleWait        time.Duration `yaml:"vehicle_wait"`
	VehicleIdleGrace   time.Duration `yaml:"vehicle_idle_grace"`
	EnergyInterval     time.Duration `yaml:"energy_interval"`
	SetupRetryInterval time.Duration `yaml:"setup_retry_interval"`
}

// Throttle converts the refresh settings for the coordinators.
func (r RefreshConfig) Throttle() throttle.Config {
	return throttle.Config{
		VehicleInterval:  r.VehicleInterval,
		VehicleWait:      r.VehicleWait,
		VehicleIdleGrace: r.VehicleIdleGrace,
		EnergyInterval:   r.EnergyInterval,
	}
}

// DatabaseConfig holds snapshot history settings.
type DatabaseConfig struct {
	postgres.Config `yaml:",inline"`
	RetentionPeriod time.Duration `yaml:"retention_period"` // 0 = infinite
}
