package matching

import (
	"context"

	"github.com/mimisupply/delivery/internal/types/driver"
	"github.com/mimisupply/delivery/internal/util/geo"
)

// DriverDirectory is the external driver-location service. Snapshots it
// returns may be stale; Reserve is the availability compare-and-swap a caller
// must win before committing an assignment.
type DriverDirectory interface {
	Nearby(ctx context.Context, loc geo.Point, radiusKm float64) ([]driver.Driver, error)
	Reserve(ctx context.Context, driverID string) (bool, error)
	Release(ctx context.Context, driverID string) error
}
