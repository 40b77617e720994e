package domain

// LiveStatus is the energy site's real-time power flow.
type LiveStatus struct {
	SolarPower        float64 `json:"solar_power"`
	BatteryPower      float64 `json:"battery_power"`
	LoadPower         float64 `json:"load_power"`
	GridPower         float64 `json:"grid_power"`
	PercentageCharged float64 `json:"percentage_charged"`
	EnergyLeft        float64 `json:"energy_left"`
	TotalPackEnergy   float64 `json:"total_pack_energy"`
	GridStatus        string  `json:"grid_status"`
	IslandStatus      string  `json:"island_status"`
	StormModeActive   bool    `json:"storm_mode_active"`
	Timestamp         string  `json:"timestamp"`
}

// SiteInfo is the energy site's slowly changing configuration.
type SiteInfo struct {
	ID                   string  `json:"id"`
	SiteName             string  `json:"site_name"`
	BackupReservePercent float64 `json:"backup_reserve_percent"`
	DefaultRealMode      string  `json:"default_real_mode"`
	InstallationDate     string  `json:"installation_date"`
	Version              string  `json:"version"`
	BatteryCount         int     `json:"battery_count"`
	NameplatePower       float64 `json:"nameplate_power"`
	NameplateEnergy      float64 `json:"nameplate_energy"`
}
