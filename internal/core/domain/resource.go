package domain

import "time"

// Resource identifies the kind of remote resource a coordinator polls.
type Resource string

const (
	ResourceVehicle    Resource = "vehicle"
	ResourceEnergyLive Resource = "energy_live"
	ResourceEnergySite Resource = "energy_site"
)

// Update is what a coordinator hands to its listeners after every cycle.
// Payload is shared by reference and must not be mutated by listeners.
type Update struct {
	Resource  Resource
	ID        string
	Available bool
	Payload   any
	At        time.Time
}

// Key returns a stable identifier for the resource instance.
func (u Update) Key() string {
	return string(u.Resource) + ":" + u.ID
}
