package throttle

import "time"

// Config holds the timing knobs shared by the refresh coordinators.
type Config struct {
	// Baseline spacing between vehicle refresh cycles (default: 90s)
	VehicleInterval time.Duration

	// Grace window granted to an idle vehicle so it can fall asleep (default: 15m)
	VehicleWait time.Duration

	// How long a vehicle must stay idle before the wait is granted (default: 0, one idle reading)
	VehicleIdleGrace time.Duration

	// Baseline spacing for both energy coordinators (default: 60s)
	EnergyInterval time.Duration
}

// DefaultConfig returns the production timing.
func DefaultConfig() Config {
	return Config{
		VehicleInterval:  90 * time.Second,
		VehicleWait:      15 * time.Minute,
		VehicleIdleGrace: 0,
		EnergyInterval:   60 * time.Second,
	}
}

// Sleep returns the sleep policy settings derived from the config.
func (c Config) Sleep() SleepConfig {
	return SleepConfig{
		Interval:  c.VehicleInterval,
		Wait:      c.VehicleWait,
		IdleGrace: c.VehicleIdleGrace,
	}
}
