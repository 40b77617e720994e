package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/fleetwatch/internal/polling/throttle"
)

// DefaultBaseURL is the North America Fleet API endpoint.
const DefaultBaseURL = "https://fleet-api.prd.na.vn.cloud.tesla.com"

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Fleet.BaseURL == "" {
		cfg.Fleet.BaseURL = DefaultBaseURL
	}
	if cfg.Fleet.Timeout == 0 {
		cfg.Fleet.Timeout = 30 * time.Second
	}

	defaults := throttle.DefaultConfig()
	if cfg.Refresh.VehicleInterval == 0 {
		cfg.Refresh.VehicleInterval = defaults.VehicleInterval
	}
	if cfg.Refresh.VehicleWait == 0 {
		cfg.Refresh.VehicleWait = defaults.VehicleWait
	}
	if cfg.Refresh.EnergyInterval == 0 {
		cfg.Refresh.EnergyInterval = defaults.EnergyInterval
	}
	if cfg.Refresh.SetupRetryInterval == 0 {
		cfg.Refresh.SetupRetryInterval = 30 * time.Second
	}

	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "fleetwatch"
	}
	if cfg.Redis.TTL == 0 {
		cfg.Redis.TTL = time.Hour
	}
}

// Validate checks the settings needed to run the service.
func (c *AppConfig) Validate() error {
	var errs []error
	if c.Fleet.Token == "" {
		errs = append(errs, errors.New("fleet.token is required"))
	}
	if u, err := url.Parse(c.Fleet.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("fleet.base_url %q must be an absolute URL", c.Fleet.BaseURL))
	}
	if c.Refresh.VehicleInterval < 0 || c.Refresh.VehicleWait < 0 || c.Refresh.VehicleIdleGrace < 0 ||
		c.Refresh.EnergyInterval < 0 || c.Refresh.SetupRetryInterval < 0 {
		errs = append(errs, errors.New("refresh intervals must not be negative"))
	}
	if c.MQTT.QoS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS))
	}
	return errors.Join(errs...)
}
