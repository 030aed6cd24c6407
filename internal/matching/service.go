package matching

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mimisupply/delivery/internal/types/driver"
	"github.com/mimisupply/delivery/internal/util/geo"
)

var ErrNoAvailableDrivers = errors.New("no available drivers")

// tieEpsilonKm is the distance below which two candidates count as equally
// close and rating decides instead.
const tieEpsilonKm = 0.1

// Average travel speed per vehicle type, km/h, used for ETA heuristics.
var vehicleSpeedKmh = map[driver.VehicleType]float64{
	driver.VehicleBicycle: 15,
	driver.VehicleScooter: 25,
	driver.VehicleCar:     30,
}

const defaultSpeedKmh = 20

// handoffBuffer covers parking, pickup and drop-off time on top of travel.
const handoffBuffer = 5 * time.Minute

type MatchRequest struct {
	Pickup           geo.Point
	Delivery         geo.Point
	SearchRadiusKm   float64            // radius for the directory fetch
	MaxDistanceKm    float64            // 0 means unbounded
	PreferredVehicle driver.VehicleType // empty means any
	UseLoadBalancing bool
}

// Assignment pairs a driver with the orders routed to them in one batch.
// It is not persisted; only the driver id written onto each order survives.
type Assignment struct {
	Driver              driver.Driver
	OrderIDs            []string
	EstimatedCompletion time.Duration
}

type Service struct {
	dir DriverDirectory
}

func NewService(dir DriverDirectory) *Service {
	return &Service{dir: dir}
}

type candidate struct {
	driver.Driver
	distanceKm float64
}

// Match selects the best driver for a pickup/delivery pair, or reports
// ErrNoAvailableDrivers. The chosen driver is not reserved here.
func (s *Service) Match(ctx context.Context, req MatchRequest) (*driver.Driver, error) {
	pool, err := s.dir.Nearby(ctx, req.Pickup, req.SearchRadiusKm)
	if err != nil {
		return nil, fmt.Errorf("fetch driver pool: %w", err)
	}

	cands := rank(pool, req)
	if len(cands) == 0 {
		return nil, ErrNoAvailableDrivers
	}
	best := cands[0].Driver
	return &best, nil
}

// rank filters and orders the candidate pool per the matching policy.
func rank(pool []driver.Driver, req MatchRequest) []candidate {
	eligible := make([]candidate, 0, len(pool))
	for _, d := range pool {
		if !d.Eligible() {
			continue
		}
		eligible = append(eligible, candidate{Driver: d, distanceKm: geo.DistanceKm(d.Location, req.Pickup)})
	}
	if len(eligible) == 0 {
		return nil
	}

	// Vehicle filter falls back to the unfiltered set when it would empty
	// the pool: a late delivery beats no delivery.
	if req.PreferredVehicle != "" {
		filtered := make([]candidate, 0, len(eligible))
		for _, c := range eligible {
			if c.VehicleType == req.PreferredVehicle {
				filtered = append(filtered, c)
			}
		}
		if len(filtered) > 0 {
			eligible = filtered
		}
	}

	if req.MaxDistanceKm > 0 {
		inRange := eligible[:0]
		for _, c := range eligible {
			if c.distanceKm <= req.MaxDistanceKm {
				inRange = append(inRange, c)
			}
		}
		eligible = inRange
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		return less(eligible[i], eligible[j], req.UseLoadBalancing)
	})
	return eligible
}

func less(a, b candidate, loadBalancing bool) bool {
	if math.Abs(a.distanceKm-b.distanceKm) >= tieEpsilonKm {
		return a.distanceKm < b.distanceKm
	}
	if a.Rating != b.Rating {
		return a.Rating > b.Rating
	}
	if loadBalancing && a.CompletedDeliveries != b.CompletedDeliveries {
		return a.CompletedDeliveries < b.CompletedDeliveries
	}
	return a.ID < b.ID
}

func travelTime(d driver.Driver, distanceKm float64) time.Duration {
	speed, ok := vehicleSpeedKmh[d.VehicleType]
	if !ok {
		speed = defaultSpeedKmh
	}
	return time.Duration(distanceKm / speed * float64(time.Hour))
}

// EstimatePickupTime estimates driver-to-pickup travel time.
func (s *Service) EstimatePickupTime(d driver.Driver, pickup geo.Point) time.Duration {
	return travelTime(d, geo.DistanceKm(d.Location, pickup)) + handoffBuffer
}

// EstimateDeliveryTime estimates the full driver-to-delivery duration.
func (s *Service) EstimateDeliveryTime(d driver.Driver, pickup, delivery geo.Point) time.Duration {
	return s.EstimatePickupTime(d, pickup) + travelTime(d, geo.DistanceKm(pickup, delivery)) + handoffBuffer
}

type BatchOrder struct {
	OrderID          string
	Pickup           geo.Point
	Delivery         geo.Point
	CreatedAt        time.Time
	PreferredVehicle driver.VehicleType
}

// OptimizeAssignments partitions pending orders across the driver set, oldest
// order first, bounded by maxPerDriver. Greedy, not globally optimal: each
// order takes the best-ranked driver that still has capacity.
func (s *Service) OptimizeAssignments(orders []BatchOrder, drivers []driver.Driver, maxPerDriver int, loadBalancing bool) []Assignment {
	if maxPerDriver <= 0 {
		maxPerDriver = 1
	}

	sorted := make([]BatchOrder, len(orders))
	copy(sorted, orders)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].OrderID < sorted[j].OrderID
	})

	byDriver := make(map[string]*Assignment)
	load := make(map[string]int)

	for _, o := range sorted {
		ranked := rank(drivers, MatchRequest{
			Pickup:           o.Pickup,
			PreferredVehicle: o.PreferredVehicle,
			UseLoadBalancing: loadBalancing,
		})
		for _, c := range ranked {
			if load[c.ID] >= maxPerDriver {
				continue
			}
			load[c.ID]++
			a, ok := byDriver[c.ID]
			if !ok {
				a = &Assignment{Driver: c.Driver}
				byDriver[c.ID] = a
			}
			a.OrderIDs = append(a.OrderIDs, o.OrderID)
			a.EstimatedCompletion += s.EstimateDeliveryTime(c.Driver, o.Pickup, o.Delivery)
			break
		}
	}

	out := make([]Assignment, 0, len(byDriver))
	for _, a := range byDriver {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Driver.ID < out[j].Driver.ID })
	return out
}
