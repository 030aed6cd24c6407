package storage

import (
	"context"
	"time"

	"github.com/mimisupply/delivery/internal/types/account"
	"github.com/mimisupply/delivery/internal/types/order"
)

// AccountRepository handles customer identities.
type AccountRepository interface {
	CreateAccount(ctx context.Context, a *account.Account) error
	FindAccountByLogin(ctx context.Context, login string) (*account.Account, error)
}

// OrderRepository handles orders. Status and driver writes are
// compare-and-swap: they match on the expected current state and report
// order.ErrConflict when another writer won.
type OrderRepository interface {
	CreateOrder(ctx context.Context, o *order.Order) error
	FindOrderByID(ctx context.Context, id string) (*order.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]order.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to order.Status) error
	CancelOrder(ctx context.Context, id string, from order.Status, reason string, refundAmount int64) error
	AssignDriver(ctx context.Context, id, driverID string, eta time.Time) error
	ListAwaitingAssignment(ctx context.Context) ([]order.Order, error)
	ListRefundPending(ctx context.Context) ([]order.Order, error)
	SetRefundStatus(ctx context.Context, id string, status order.RefundStatus) error
}

// Storage unites all repositories.
type Storage interface {
	AccountRepository
	OrderRepository

	Ping(ctx context.Context) error
	Close() error
}
