package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mimisupply/delivery/internal/logger"
	"github.com/mimisupply/delivery/internal/notify"
	"github.com/mimisupply/delivery/internal/payment"
	"github.com/mimisupply/delivery/internal/pricing"
	"github.com/mimisupply/delivery/internal/types/order"
	typespricing "github.com/mimisupply/delivery/internal/types/pricing"
	"github.com/mimisupply/delivery/internal/util/geo"
	"go.uber.org/zap"
)

var (
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidItem            = errors.New("invalid cart item")
	ErrIncompleteAddress      = errors.New("delivery address incomplete")
	ErrInvalidTip             = errors.New("tip cannot be negative")
	ErrBelowMinimumOrder      = errors.New("subtotal below partner minimum")
	ErrInvalidTotal           = errors.New("order total must be positive")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrCancellationNotAllowed = errors.New("order can no longer be cancelled")
)

type Service struct {
	repo     OrderRepository
	calc     *pricing.Calculator
	payments payment.Gateway
	notifier notify.Notifier
}

func NewService(repo OrderRepository, calc *pricing.Calculator, payments payment.Gateway, notifier notify.Notifier) *Service {
	return &Service{repo: repo, calc: calc, payments: payments, notifier: notifier}
}

type CreateOrderRequest struct {
	CustomerID         string
	PartnerID          string
	PartnerLocation    geo.Point
	MinimumOrderAmount int64
	Items              []order.Item
	DeliveryAddress    order.Address
	PaymentMethod      string
	Tip                int64
	PreferredVehicle   string
}

func validateItems(items []order.Item) error {
	if len(items) == 0 {
		return ErrEmptyCart
	}
	for i, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: item %d quantity must be positive, got %d", ErrInvalidItem, i, it.Quantity)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: item %d unit price cannot be negative, got %d", ErrInvalidItem, i, it.UnitPrice)
		}
	}
	return nil
}

// CreateOrder prices the cart, authorizes payment and persists the order in
// status created. Payment errors are surfaced as-is; retry policy belongs to
// the caller.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	if err := validateItems(req.Items); err != nil {
		return nil, err
	}
	if !req.DeliveryAddress.Complete() {
		return nil, ErrIncompleteAddress
	}
	if req.Tip < 0 {
		return nil, ErrInvalidTip
	}
	if req.MinimumOrderAmount > 0 && !pricing.MeetsMinimumOrder(req.Items, req.MinimumOrderAmount) {
		return nil, ErrBelowMinimumOrder
	}

	breakdown := s.calc.QuoteForAddress(req.Items, req.PartnerLocation, req.DeliveryAddress, req.Tip)
	if breakdown.Total <= 0 {
		return nil, ErrInvalidTotal
	}

	items := make([]order.Item, len(req.Items))
	copy(items, req.Items)
	for i := range items {
		items[i].TotalPrice = items[i].UnitPrice * int64(items[i].Quantity)
	}

	now := time.Now().UTC()
	o := &order.Order{
		ID:               uuid.NewString(),
		CustomerID:       req.CustomerID,
		PartnerID:        req.PartnerID,
		Items:            items,
		Status:           order.StatusCreated,
		Subtotal:         breakdown.Subtotal,
		DeliveryFee:      breakdown.DeliveryFee,
		PlatformFee:      breakdown.PlatformFee,
		Tax:              breakdown.Tax,
		Tip:              breakdown.Tip,
		Total:            breakdown.Total,
		PickupLocation:   req.PartnerLocation,
		DeliveryAddress:  req.DeliveryAddress,
		RefundStatus:     order.RefundNone,
		PreferredVehicle: req.PreferredVehicle,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if _, err := s.payments.Authorize(ctx, payment.AuthorizeRequest{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Amount:        o.Total,
		PaymentMethod: req.PaymentMethod,
	}); err != nil {
		return nil, fmt.Errorf("authorize payment: %w", err)
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	return o, nil
}

// Quote prices a cart without creating anything and includes the suggested
// tip for the UI. Nothing is persisted.
func (s *Service) Quote(items []order.Item, partnerLoc geo.Point, addr order.Address, tip int64) (typespricing.Breakdown, int64, error) {
	if err := validateItems(items); err != nil {
		return typespricing.Breakdown{}, 0, err
	}
	b := s.calc.QuoteForAddress(items, partnerLoc, addr, tip)
	return b, s.calc.SuggestTip(b.Subtotal), nil
}

func (s *Service) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	return s.repo.FindOrderByID(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, customerID string) ([]order.Order, error) {
	return s.repo.ListOrdersByCustomer(ctx, customerID)
}

// Transition moves an order along the status table. Exactly one of two
// concurrent conflicting transitions wins; the loser gets order.ErrConflict.
func (s *Service) Transition(ctx context.Context, id string, to order.Status) (*order.Order, error) {
	o, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	from := o.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if err := s.repo.UpdateOrderStatus(ctx, id, from, to); err != nil {
		return nil, err
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	s.notifyStatus(ctx, o, from, to)
	return o, nil
}

type CancellationResult struct {
	RefundAmount int64              `json:"refund_amount"`
	RefundStatus order.RefundStatus `json:"refund_status"`
}

// Cancel transitions to cancelled and issues a full refund of the order
// total. If the refund call fails after the transition committed, the refund
// stays recorded as pending and the reconciler retries it; the status is not
// rolled back.
func (s *Service) Cancel(ctx context.Context, id, reason string) (*CancellationResult, error) {
	o, err := s.repo.FindOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Cancellable() {
		return nil, fmt.Errorf("%w: status %s", ErrCancellationNotAllowed, o.Status)
	}
	from := o.Status
	if err := s.repo.CancelOrder(ctx, id, from, reason, o.Total); err != nil {
		return nil, err
	}
	o.Status = order.StatusCancelled
	s.notifyStatus(ctx, o, from, order.StatusCancelled)

	result := &CancellationResult{RefundAmount: o.Total, RefundStatus: order.RefundPending}
	if err := s.payments.Refund(ctx, id, o.Total); err != nil {
		logger.Log.Warn("refund failed, left pending for reconciliation",
			zap.String("order_id", id),
			zap.Int64("amount", o.Total),
			zap.Error(err),
		)
		return result, nil
	}
	if err := s.repo.SetRefundStatus(ctx, id, order.RefundIssued); err != nil {
		return nil, fmt.Errorf("record refund: %w", err)
	}
	result.RefundStatus = order.RefundIssued
	return result, nil
}

// Assign commits a matched driver onto the order. The caller must already
// hold a directory reservation for the driver.
func (s *Service) Assign(ctx context.Context, orderID, driverID string, eta time.Time) error {
	return s.repo.AssignDriver(ctx, orderID, driverID, eta)
}

func (s *Service) ListAwaitingAssignment(ctx context.Context) ([]order.Order, error) {
	return s.repo.ListAwaitingAssignment(ctx)
}

func (s *Service) ListRefundPending(ctx context.Context) ([]order.Order, error) {
	return s.repo.ListRefundPending(ctx)
}

// RetryRefund is called by the reconciler for refund-pending orders.
// Transient errors leave the refund pending for the next cycle.
func (s *Service) RetryRefund(ctx context.Context, o order.Order) error {
	if err := s.payments.Refund(ctx, o.ID, o.RefundAmount); err != nil {
		return err
	}
	return s.repo.SetRefundStatus(ctx, o.ID, order.RefundIssued)
}

func (s *Service) notifyStatus(ctx context.Context, o *order.Order, from, to order.Status) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.StatusChanged(ctx, o, from, to); err != nil {
		logger.Log.Warn("status notification failed",
			zap.String("order_id", o.ID),
			zap.String("to", string(to)),
			zap.Error(err),
		)
	}
}
