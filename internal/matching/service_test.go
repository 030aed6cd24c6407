package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mimisupply/delivery/internal/types/driver"
	"github.com/mimisupply/delivery/internal/util/geo"
	"github.com/stretchr/testify/assert"
)

type mockDirectory struct {
	nearbyFn  func(ctx context.Context, loc geo.Point, radiusKm float64) ([]driver.Driver, error)
	reserveFn func(ctx context.Context, driverID string) (bool, error)
	releaseFn func(ctx context.Context, driverID string) error
}

func (m *mockDirectory) Nearby(ctx context.Context, loc geo.Point, radiusKm float64) ([]driver.Driver, error) {
	return m.nearbyFn(ctx, loc, radiusKm)
}

func (m *mockDirectory) Reserve(ctx context.Context, driverID string) (bool, error) {
	return m.reserveFn(ctx, driverID)
}

func (m *mockDirectory) Release(ctx context.Context, driverID string) error {
	return m.releaseFn(ctx, driverID)
}

// pickup is the origin; driver latitudes below are chosen so that
// 0.0045 deg ~ 0.50 km and 0.00468 deg ~ 0.52 km.
var pickup = geo.Point{Lat: 0, Lon: 0}

func atKmNorth(km float64) geo.Point {
	return geo.Point{Lat: km / 111.195, Lon: 0}
}

func poolDirectory(pool []driver.Driver) *mockDirectory {
	return &mockDirectory{
		nearbyFn: func(ctx context.Context, loc geo.Point, radiusKm float64) ([]driver.Driver, error) {
			return pool, nil
		},
	}
}

func TestMatchAllOffline(t *testing.T) {
	pool := []driver.Driver{
		{ID: "d1", Online: false, Available: true, Location: atKmNorth(0.5)},
		{ID: "d2", Online: true, Available: false, Location: atKmNorth(0.5)},
	}
	svc := NewService(poolDirectory(pool))

	_, err := svc.Match(context.Background(), MatchRequest{Pickup: pickup, SearchRadiusKm: 10})
	assert.ErrorIs(t, err, ErrNoAvailableDrivers)
}

func TestMatchEmptyPool(t *testing.T) {
	svc := NewService(poolDirectory(nil))
	_, err := svc.Match(context.Background(), MatchRequest{Pickup: pickup, SearchRadiusKm: 10})
	assert.ErrorIs(t, err, ErrNoAvailableDrivers)
}

func TestMatchDirectoryError(t *testing.T) {
	dirErr := errors.New("connection refused")
	svc := NewService(&mockDirectory{
		nearbyFn: func(ctx context.Context, loc geo.Point, radiusKm float64) ([]driver.Driver, error) {
			return nil, dirErr
		},
	})
	_, err := svc.Match(context.Background(), MatchRequest{Pickup: pickup})
	assert.ErrorIs(t, err, dirErr)
}

func TestMatchPrefersCloserDriver(t *testing.T) {
	pool := []driver.Driver{
		{ID: "far", Online: true, Available: true, Rating: 5.0, Location: atKmNorth(2.0)},
		{ID: "near", Online: true, Available: true, Rating: 3.0, Location: atKmNorth(0.5)},
	}
	svc := NewService(poolDirectory(pool))

	d, err := svc.Match(context.Background(), MatchRequest{Pickup: pickup, SearchRadiusKm: 10})
	assert.NoError(t, err)
	assert.Equal(t, "near", d.ID)
}

func TestMatchRatingBreaksDistanceTie(t *testing.T) {
	// 0.50 km vs 0.52 km is inside the 0.1 km epsilon, so the higher
	// rating wins despite being marginally farther.
	pool := []driver.Driver{
		{ID: "closer", Online: true, Available: true, Rating: 4.5, Location: atKmNorth(0.50)},
		{ID: "rated", Online: true, Available: true, Rating: 4.9, Location: atKmNorth(0.52)},
	}
	svc := NewService(poolDirectory(pool))

	d, err := svc.Match(context.Background(), MatchRequest{Pickup: pickup, SearchRadiusKm: 10})
	assert.NoError(t, err)
	assert.Equal(t, "rated", d.ID)
}

func TestMatchLoadBalancing(t *testing.T) {
	pool := []driver.Driver{
		{ID: "busy", Online: true, Available: true, Rating: 4.8, CompletedDeliveries: 900, Location: atKmNorth(0.50)},
		{ID: "idle", Online: true, Available: true, Rating: 4.8, CompletedDeliveries: 12, Location: atKmNorth(0.52)},
	}
	svc := NewService(poolDirectory(pool))

	d, err := svc.Match(context.Background(), MatchRequest{Pickup: pickup, SearchRadiusKm: 10, UseLoadBalancing: true})
	assert.NoError(t, err)
	assert.Equal(t, "idle", d.ID)

	// Without load balancing the tie falls through to the stable ID order.
	d, err = svc.Match(context.Background(), MatchRequest{Pickup: pickup, SearchRadiusKm: 10})
	assert.NoError(t, err)
	assert.Equal(t, "busy", d.ID)
}

func TestMatchVehicleFilter(t *testing.T) {
	pool := []driver.Driver{
		{ID: "bike", Online: true, Available: true, Rating: 4.0, VehicleType: driver.VehicleBicycle, Location: atKmNorth(0.5)},
		{ID: "car", Online: true, Available: true, Rating: 4.0, VehicleType: driver.VehicleCar, Location: atKmNorth(2.0)},
	}
	svc := NewService(poolDirectory(pool))

	d, err := svc.Match(context.Background(), MatchRequest{
		Pickup:           pickup,
		SearchRadiusKm:   10,
		PreferredVehicle: driver.VehicleCar,
	})
	assert.NoError(t, err)
	assert.Equal(t, "car", d.ID)
}

func TestMatchVehicleFilterFallsBack(t *testing.T) {
	// No car in the pool: the filter falls back to the unfiltered set
	// instead of failing the match.
	pool := []driver.Driver{
		{ID: "bike", Online: true, Available: true, Rating: 4.0, VehicleType: driver.VehicleBicycle, Location: atKmNorth(0.5)},
	}
	svc := NewService(poolDirectory(pool))

	d, err := svc.Match(context.Background(), MatchRequest{
		Pickup:           pickup,
		SearchRadiusKm:   10,
		PreferredVehicle: driver.VehicleCar,
	})
	assert.NoError(t, err)
	assert.Equal(t, "bike", d.ID)
}

func TestMatchMaxDistance(t *testing.T) {
	pool := []driver.Driver{
		{ID: "far", Online: true, Available: true, Rating: 5.0, Location: atKmNorth(5.6)},
	}
	svc := NewService(poolDirectory(pool))

	_, err := svc.Match(context.Background(), MatchRequest{
		Pickup:         pickup,
		SearchRadiusKm: 10,
		MaxDistanceKm:  5,
	})
	assert.ErrorIs(t, err, ErrNoAvailableDrivers)
}

func TestMatchDeterminism(t *testing.T) {
	pool := []driver.Driver{
		{ID: "a", Online: true, Available: true, Rating: 4.2, Location: atKmNorth(0.50)},
		{ID: "b", Online: true, Available: true, Rating: 4.2, Location: atKmNorth(0.52)},
		{ID: "c", Online: true, Available: true, Rating: 4.9, Location: atKmNorth(1.7)},
	}
	svc := NewService(poolDirectory(pool))
	req := MatchRequest{Pickup: pickup, SearchRadiusKm: 10}

	first, err := svc.Match(context.Background(), req)
	assert.NoError(t, err)
	for i := 0; i < 20; i++ {
		d, err := svc.Match(context.Background(), req)
		assert.NoError(t, err)
		assert.Equal(t, first.ID, d.ID)
	}
}

func TestEstimates(t *testing.T) {
	svc := NewService(poolDirectory(nil))
	d := driver.Driver{ID: "d1", VehicleType: driver.VehicleCar, Location: atKmNorth(15)}

	// 15 km at 30 km/h is 30 minutes plus the handoff buffer.
	pickupETA := svc.EstimatePickupTime(d, pickup)
	assert.InDelta(t, float64(35*time.Minute), float64(pickupETA), float64(time.Minute))

	// Unknown vehicle type uses the default speed instead of crashing.
	del := svc.EstimateDeliveryTime(driver.Driver{ID: "x", Location: atKmNorth(1)}, pickup, atKmNorth(5))
	assert.Greater(t, del, pickupETA-30*time.Minute)
}

func TestOptimizeAssignmentsSpreadsOrders(t *testing.T) {
	drivers := []driver.Driver{
		{ID: "d1", Online: true, Available: true, Rating: 4.5, Location: atKmNorth(0.5), VehicleType: driver.VehicleCar},
		{ID: "d2", Online: true, Available: true, Rating: 4.5, Location: atKmNorth(0.65), VehicleType: driver.VehicleCar},
	}
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	orders := []BatchOrder{
		{OrderID: "o1", Pickup: pickup, Delivery: atKmNorth(3), CreatedAt: base},
		{OrderID: "o2", Pickup: pickup, Delivery: atKmNorth(4), CreatedAt: base.Add(time.Minute)},
		{OrderID: "o3", Pickup: pickup, Delivery: atKmNorth(5), CreatedAt: base.Add(2 * time.Minute)},
	}
	svc := NewService(poolDirectory(nil))

	assignments := svc.OptimizeAssignments(orders, drivers, 2, true)

	assigned := map[string]string{}
	for _, a := range assignments {
		assert.LessOrEqual(t, len(a.OrderIDs), 2)
		assert.Greater(t, a.EstimatedCompletion, time.Duration(0))
		for _, id := range a.OrderIDs {
			_, dup := assigned[id]
			assert.False(t, dup, "order assigned twice")
			assigned[id] = a.Driver.ID
		}
	}
	assert.Len(t, assigned, 3, "every feasible order gets exactly one driver")
}

func TestOptimizeAssignmentsNoCapacity(t *testing.T) {
	drivers := []driver.Driver{
		{ID: "d1", Online: true, Available: true, Rating: 4.5, Location: atKmNorth(0.5)},
	}
	orders := []BatchOrder{
		{OrderID: "o1", Pickup: pickup, Delivery: atKmNorth(3)},
		{OrderID: "o2", Pickup: pickup, Delivery: atKmNorth(4)},
	}
	svc := NewService(poolDirectory(nil))

	assignments := svc.OptimizeAssignments(orders, drivers, 1, false)
	assert.Len(t, assignments, 1)
	assert.Len(t, assignments[0].OrderIDs, 1, "second order has no remaining capacity")
}
