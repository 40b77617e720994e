package domain

// Product is an entry of the account's product list: a vehicle or an energy site.
type Product struct {
	VIN          string    `json:"vin,omitempty"`
	DisplayName  string    `json:"display_name,omitempty"`
	State        WakeState `json:"state,omitempty"`
	EnergySiteID int64     `json:"energy_site_id,omitempty"`
	SiteName     string    `json:"site_name,omitempty"`
}

// IsVehicle reports whether the product is a vehicle.
func (p Product) IsVehicle() bool {
	return p.VIN != ""
}

// IsEnergySite reports whether the product is an energy site.
func (p Product) IsEnergySite() bool {
	return p.EnergySiteID != 0
}

// Snapshot is a persisted copy of a published payload.
type Snapshot struct {
	ID        string   `db:"id"`
	Resource  Resource `db:"resource"`
	DeviceID  string   `db:"device_id"`
	Available bool     `db:"available"`
	Payload   []byte   `db:"payload"`
	CreatedAt int64    `db:"created_at"`
}
