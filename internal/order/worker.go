package order

import (
	"context"
	"errors"
	"time"

	"github.com/mimisupply/delivery/internal/logger"
	"github.com/mimisupply/delivery/internal/matching"
	"github.com/mimisupply/delivery/internal/payment"
	"github.com/mimisupply/delivery/internal/types/driver"
	"github.com/mimisupply/delivery/internal/types/order"
	"github.com/mimisupply/delivery/internal/util/geo"
	"go.uber.org/zap"
)

type Matcher interface {
	Match(ctx context.Context, req matching.MatchRequest) (*driver.Driver, error)
	EstimateDeliveryTime(d driver.Driver, pickup, delivery geo.Point) time.Duration
}

type Reserver interface {
	Reserve(ctx context.Context, driverID string) (bool, error)
	Release(ctx context.Context, driverID string) error
}

type Assigner interface {
	ListAwaitingAssignment(ctx context.Context) ([]order.Order, error)
	Assign(ctx context.Context, orderID, driverID string, eta time.Time) error
}

type AssignConfig struct {
	SearchRadiusKm   float64
	MaxDistanceKm    float64
	UseLoadBalancing bool
}

func assignWorker(
	ctx context.Context,
	id int,
	jobs <-chan order.Order,
	m Matcher,
	res Reserver,
	svc Assigner,
	cfg AssignConfig,
) {
	log := logger.Log.With(zap.Int("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case o, ok := <-jobs:
			if !ok {
				return
			}

			d, err := m.Match(ctx, matching.MatchRequest{
				Pickup:           o.PickupLocation,
				Delivery:         o.DeliveryAddress.Location,
				SearchRadiusKm:   cfg.SearchRadiusKm,
				MaxDistanceKm:    cfg.MaxDistanceKm,
				PreferredVehicle: driver.VehicleType(o.PreferredVehicle),
				UseLoadBalancing: cfg.UseLoadBalancing,
			})
			if err != nil {
				if errors.Is(err, matching.ErrNoAvailableDrivers) {
					log.Debug("no drivers for order", zap.String("order_id", o.ID))
				} else {
					log.Error("match failed", zap.String("order_id", o.ID), zap.Error(err))
				}
				continue
			}

			// The snapshot may be stale: only a won reservation commits.
			ok, err = res.Reserve(ctx, d.ID)
			if err != nil {
				log.Error("reserve failed", zap.String("driver_id", d.ID), zap.Error(err))
				continue
			}
			if !ok {
				log.Debug("driver no longer available", zap.String("driver_id", d.ID))
				continue
			}

			eta := time.Now().UTC().Add(m.EstimateDeliveryTime(*d, o.PickupLocation, o.DeliveryAddress.Location))
			if err := svc.Assign(ctx, o.ID, d.ID, eta); err != nil {
				// Losing the order CAS releases the driver for the next cycle.
				if rerr := res.Release(ctx, d.ID); rerr != nil {
					log.Error("release failed", zap.String("driver_id", d.ID), zap.Error(rerr))
				}
				if !errors.Is(err, order.ErrConflict) {
					log.Error("assign failed", zap.String("order_id", o.ID), zap.Error(err))
				}
				continue
			}
			log.Info("driver assigned",
				zap.String("order_id", o.ID),
				zap.String("driver_id", d.ID),
				zap.Time("eta", eta),
			)
		}
	}
}

// AssignmentLoop polls for paid orders without a driver and fans them out to
// a worker pool. Orders that cannot be matched this cycle are retried on the
// next tick.
func AssignmentLoop(
	ctx context.Context,
	m Matcher,
	res Reserver,
	svc Assigner,
	workerCount int,
	interval time.Duration,
	cfg AssignConfig,
) {
	jobs := make(chan order.Order, workerCount*3)

	for i := 1; i <= workerCount; i++ {
		go assignWorker(ctx, i, jobs, m, res, svc, cfg)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			close(jobs)
			return
		case <-ticker.C:
			orders, err := svc.ListAwaitingAssignment(ctx)
			if err != nil {
				logger.Log.Error("list awaiting assignment", zap.Error(err))
				continue
			}
			for _, o := range orders {
				select {
				case jobs <- o:
				default:
					// Queue full; the order waits for the next cycle.
				}
			}
		}
	}
}

type RefundRetrier interface {
	ListRefundPending(ctx context.Context) ([]order.Order, error)
	RetryRefund(ctx context.Context, o order.Order) error
}

// ReconcileRefundsLoop retries pending refunds left behind by a failed
// refund call during cancellation.
func ReconcileRefundsLoop(ctx context.Context, svc RefundRetrier, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := svc.ListRefundPending(ctx)
			if err != nil {
				logger.Log.Error("list pending refunds", zap.Error(err))
				continue
			}
			for _, o := range pending {
				if err := svc.RetryRefund(ctx, o); err != nil {
					if pe, ok := payment.AsError(err); ok && !pe.Retryable() {
						logger.Log.Error("refund permanently failing, needs manual follow-up",
							zap.String("order_id", o.ID),
							zap.String("kind", string(pe.Kind)),
						)
					} else {
						logger.Log.Warn("refund retry failed",
							zap.String("order_id", o.ID),
							zap.Error(err),
						)
					}
					continue
				}
				logger.Log.Info("pending refund issued",
					zap.String("order_id", o.ID),
					zap.Int64("amount", o.RefundAmount),
				)
			}
		}
	}
}
