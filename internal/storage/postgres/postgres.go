package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	acctsvc "github.com/mimisupply/delivery/internal/account"
	"github.com/mimisupply/delivery/internal/types/account"
	"github.com/mimisupply/delivery/internal/types/order"
	"github.com/mimisupply/delivery/internal/util/geo"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// Statuses an order may be in while still waiting for a driver.
const assignableStatuses = `('paymentConfirmed','accepted','preparing')`

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(dsn string) (*PostgresStorage, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	s := &PostgresStorage{db: db}

	if err := s.db.Ping(); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStorage) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
            id SERIAL PRIMARY KEY,
            login TEXT UNIQUE NOT NULL,
            password_hash TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            customer_id TEXT NOT NULL,
            partner_id TEXT NOT NULL,
            driver_id TEXT,
            items JSONB NOT NULL,
            status TEXT NOT NULL,
            subtotal BIGINT NOT NULL,
            delivery_fee BIGINT NOT NULL,
            platform_fee BIGINT NOT NULL,
            tax BIGINT NOT NULL,
            tip BIGINT NOT NULL,
            total BIGINT NOT NULL,
            pickup_location JSONB NOT NULL,
            delivery_address JSONB NOT NULL,
            cancel_reason TEXT NOT NULL DEFAULT '',
            refund_status TEXT NOT NULL DEFAULT 'none',
            refund_amount BIGINT NOT NULL DEFAULT 0,
            preferred_vehicle TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            estimated_delivery_at TIMESTAMPTZ,
            delivered_at TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_unassigned ON orders(status) WHERE driver_id IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_orders_refund_pending ON orders(refund_status) WHERE refund_status = 'pending'`,
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) CreateAccount(ctx context.Context, a *account.Account) error {
	q := `INSERT INTO accounts (login,password_hash,created_at) VALUES($1,$2,$3) RETURNING id`
	err := s.db.QueryRowContext(ctx, q, a.Login, a.PasswordHash, a.CreatedAt).Scan(&a.ID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return acctsvc.ErrAccountExists
	}
	return err
}

func (s *PostgresStorage) FindAccountByLogin(ctx context.Context, login string) (*account.Account, error) {
	a := &account.Account{}
	q := `SELECT id,login,password_hash,created_at FROM accounts WHERE login=$1`
	if err := s.db.QueryRowContext(ctx, q, login).
		Scan(&a.ID, &a.Login, &a.PasswordHash, &a.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("account not found")
		}
		return nil, err
	}
	return a, nil
}

func (s *PostgresStorage) CreateOrder(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	pickup, err := json.Marshal(o.PickupLocation)
	if err != nil {
		return fmt.Errorf("encode pickup location: %w", err)
	}
	addr, err := json.Marshal(o.DeliveryAddress)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	const q = `
        INSERT INTO orders (
            id, customer_id, partner_id, items, status,
            subtotal, delivery_fee, platform_fee, tax, tip, total,
            pickup_location, delivery_address, refund_status, preferred_vehicle,
            created_at, updated_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	_, err = s.db.ExecContext(ctx, q,
		o.ID, o.CustomerID, o.PartnerID, items, o.Status,
		o.Subtotal, o.DeliveryFee, o.PlatformFee, o.Tax, o.Tip, o.Total,
		pickup, addr, o.RefundStatus, o.PreferredVehicle,
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

const orderColumns = `
    id, customer_id, partner_id, driver_id, items, status,
    subtotal, delivery_fee, platform_fee, tax, tip, total,
    pickup_location, delivery_address, cancel_reason, refund_status, refund_amount,
    preferred_vehicle, created_at, updated_at, estimated_delivery_at, delivered_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o            order.Order
		driverID     sql.NullString
		items        []byte
		pickup       []byte
		addr         []byte
		estimatedAt  sql.NullTime
		deliveredAt  sql.NullTime
		cancelReason sql.NullString
	)
	if err := row.Scan(
		&o.ID, &o.CustomerID, &o.PartnerID, &driverID, &items, &o.Status,
		&o.Subtotal, &o.DeliveryFee, &o.PlatformFee, &o.Tax, &o.Tip, &o.Total,
		&pickup, &addr, &cancelReason, &o.RefundStatus, &o.RefundAmount,
		&o.PreferredVehicle, &o.CreatedAt, &o.UpdatedAt, &estimatedAt, &deliveredAt,
	); err != nil {
		return nil, err
	}
	if driverID.Valid {
		o.DriverID = &driverID.String
	}
	if cancelReason.Valid {
		o.CancelReason = cancelReason.String
	}
	if estimatedAt.Valid {
		t := estimatedAt.Time
		o.EstimatedDeliveryAt = &t
	}
	if deliveredAt.Valid {
		t := deliveredAt.Time
		o.DeliveredAt = &t
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	var loc geo.Point
	if err := json.Unmarshal(pickup, &loc); err != nil {
		return nil, fmt.Errorf("decode pickup location: %w", err)
	}
	o.PickupLocation = loc
	if err := json.Unmarshal(addr, &o.DeliveryAddress); err != nil {
		return nil, fmt.Errorf("decode address: %w", err)
	}
	return &o, nil
}

func (s *PostgresStorage) FindOrderByID(ctx context.Context, id string) (*order.Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders WHERE id = $1`
	o, err := scanOrder(s.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, order.ErrNotFound
	}
	return o, err
}

func (s *PostgresStorage) queryOrders(ctx context.Context, q string, args ...any) ([]order.Order, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func (s *PostgresStorage) ListOrdersByCustomer(ctx context.Context, customerID string) ([]order.Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC`
	return s.queryOrders(ctx, q, customerID)
}

func (s *PostgresStorage) UpdateOrderStatus(ctx context.Context, id string, from, to order.Status) error {
	const q = `
        UPDATE orders
        SET status = $1,
            updated_at = $2,
            delivered_at = CASE WHEN $1 = 'delivered' THEN $2 ELSE delivered_at END
        WHERE id = $3 AND status = $4`
	res, err := s.db.ExecContext(ctx, q, to, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrConflict
	}
	return nil
}

func (s *PostgresStorage) CancelOrder(ctx context.Context, id string, from order.Status, reason string, refundAmount int64) error {
	const q = `
        UPDATE orders
        SET status = 'cancelled',
            cancel_reason = $1,
            refund_status = 'pending',
            refund_amount = $2,
            updated_at = $3
        WHERE id = $4 AND status = $5`
	res, err := s.db.ExecContext(ctx, q, reason, refundAmount, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrConflict
	}
	return nil
}

func (s *PostgresStorage) AssignDriver(ctx context.Context, id, driverID string, eta time.Time) error {
	q := `
        UPDATE orders
        SET driver_id = $1,
            estimated_delivery_at = $2,
            updated_at = $3
        WHERE id = $4 AND driver_id IS NULL AND status IN ` + assignableStatuses
	res, err := s.db.ExecContext(ctx, q, driverID, eta, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return order.ErrConflict
	}
	return nil
}

func (s *PostgresStorage) ListAwaitingAssignment(ctx context.Context) ([]order.Order, error) {
	q := `SELECT` + orderColumns + `
        FROM orders
        WHERE driver_id IS NULL AND status IN ` + assignableStatuses + `
        ORDER BY created_at`
	return s.queryOrders(ctx, q)
}

func (s *PostgresStorage) ListRefundPending(ctx context.Context) ([]order.Order, error) {
	q := `SELECT` + orderColumns + ` FROM orders WHERE refund_status = 'pending' ORDER BY updated_at`
	return s.queryOrders(ctx, q)
}

func (s *PostgresStorage) SetRefundStatus(ctx context.Context, id string, status order.RefundStatus) error {
	const q = `UPDATE orders SET refund_status = $1, updated_at = $2 WHERE id = $3`
	_, err := s.db.ExecContext(ctx, q, status, time.Now().UTC(), id)
	return err
}
