package driver

import (
	"time"

	"github.com/mimisupply/delivery/internal/util/geo"
)

type VehicleType string

const (
	VehicleBicycle VehicleType = "bicycle"
	VehicleScooter VehicleType = "scooter"
	VehicleCar     VehicleType = "car"
)

// Driver is a read-only snapshot from the driver directory. Availability may
// go stale between fetch and assignment; callers must re-validate with a
// directory reservation before committing an assignment.
type Driver struct {
	ID                  string      `json:"id"`
	Location            geo.Point   `json:"location"`
	Online              bool        `json:"online"`
	Available           bool        `json:"available"`
	Rating              float64     `json:"rating"`
	CompletedDeliveries int         `json:"completed_deliveries"`
	VehicleType         VehicleType `json:"vehicle_type"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

func (d Driver) Eligible() bool {
	return d.Online && d.Available
}
