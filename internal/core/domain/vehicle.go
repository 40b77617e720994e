package domain

// WakeState is the coarse vehicle state reported by the cheap wake-state call.
type WakeState string

const (
	WakeStateOnline  WakeState = "online"
	WakeStateAsleep  WakeState = "asleep"
	WakeStateOffline WakeState = "offline"
	WakeStateUnknown WakeState = ""
)

// Awake reports whether a full data fetch is worth attempting.
func (s WakeState) Awake() bool {
	return s == WakeStateOnline
}

// VehicleState is the response of the wake-state check.
type VehicleState struct {
	VIN         string    `json:"vin"`
	DisplayName string    `json:"display_name"`
	State       WakeState `json:"state"`
}

// VehicleData is the full telemetry payload.
type VehicleData struct {
	VIN          string       `json:"vin"`
	State        WakeState    `json:"state"`
	ChargeState  ChargeState  `json:"charge_state"`
	DriveState   DriveState   `json:"drive_state"`
	VehicleState VehicleInfo  `json:"vehicle_state"`
	ClimateState ClimateState `json:"climate_state"`
}

type ChargeState struct {
	BatteryLevel   int     `json:"battery_level"`
	BatteryRange   float64 `json:"battery_range"`
	ChargeLimitSOC int     `json:"charge_limit_soc"`
	ChargingState  string  `json:"charging_state"` // Charging, Complete, Disconnected, Stopped
	ChargerPower   float64 `json:"charger_power"`
}

type DriveState struct {
	ShiftState *string  `json:"shift_state"` // nil when parked long enough
	Speed      *float64 `json:"speed"`
	Power      float64  `json:"power"`
}

type VehicleInfo struct {
	IsUserPresent bool    `json:"is_user_present"`
	SentryMode    bool    `json:"sentry_mode"`
	Locked        bool    `json:"locked"`
	Odometer      float64 `json:"odometer"`
}

type ClimateState struct {
	IsClimateOn bool     `json:"is_climate_on"`
	InsideTemp  *float64 `json:"inside_temp"`
	OutsideTemp *float64 `json:"outside_temp"`
}

// VehicleSnapshot is the payload published by the vehicle coordinator.
// Data may be shared between consecutive snapshots when the vehicle sleeps.
type VehicleSnapshot struct {
	VIN      string       `json:"vin"`
	State    WakeState    `json:"state"`
	Activity string       `json:"activity"`
	Data     *VehicleData `json:"data,omitempty"`
}
