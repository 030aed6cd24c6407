package order

import (
	"context"
	"time"

	"github.com/mimisupply/delivery/internal/types/order"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByID(ctx context.Context, id string) (*order.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]order.Order, error)

	// UpdateOrderStatus writes the new status only if the current status
	// still equals from; otherwise it returns order.ErrConflict.
	UpdateOrderStatus(ctx context.Context, id string, from, to order.Status) error

	// CancelOrder atomically moves the order from its expected status to
	// cancelled and records the reason and pending refund amount.
	CancelOrder(ctx context.Context, id string, from order.Status, reason string, refundAmount int64) error

	// AssignDriver writes the driver onto the order only while the slot is
	// empty and the order is still assignable; order.ErrConflict otherwise.
	AssignDriver(ctx context.Context, id, driverID string, eta time.Time) error

	ListAwaitingAssignment(ctx context.Context) ([]order.Order, error)
	ListRefundPending(ctx context.Context) ([]order.Order, error)
	SetRefundStatus(ctx context.Context, id string, status order.RefundStatus) error
}
