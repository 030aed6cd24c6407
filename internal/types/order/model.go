package order

import (
	"time"

	"github.com/mimisupply/delivery/internal/util/geo"
)

type Status string

const (
	StatusCreated           Status = "created"
	StatusPaymentProcessing Status = "paymentProcessing"
	StatusPaymentConfirmed  Status = "paymentConfirmed"
	StatusAccepted          Status = "accepted"
	StatusPreparing         Status = "preparing"
	StatusReadyForPickup    Status = "readyForPickup"
	StatusPickedUp          Status = "pickedUp"
	StatusDelivering        Status = "delivering"
	StatusDelivered         Status = "delivered"
	StatusCancelled         Status = "cancelled"
	StatusFailed            Status = "failed"
)

// transitions is the allowed-transition table. Any (from, to) pair absent
// here is rejected.
var transitions = map[Status][]Status{
	StatusCreated:           {StatusPaymentProcessing, StatusCancelled, StatusFailed},
	StatusPaymentProcessing: {StatusPaymentConfirmed, StatusCancelled, StatusFailed},
	StatusPaymentConfirmed:  {StatusAccepted, StatusCancelled, StatusFailed},
	StatusAccepted:          {StatusPreparing, StatusCancelled, StatusFailed},
	StatusPreparing:         {StatusReadyForPickup, StatusCancelled, StatusFailed},
	StatusReadyForPickup:    {StatusPickedUp, StatusFailed},
	StatusPickedUp:          {StatusDelivering, StatusFailed},
	StatusDelivering:        {StatusDelivered, StatusFailed},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusFailed
}

// Cancellable reports whether an order in this status may still be cancelled.
// Once the partner has it ready for pickup, it may not.
func (s Status) Cancellable() bool {
	switch s {
	case StatusCreated, StatusPaymentProcessing, StatusPaymentConfirmed, StatusAccepted, StatusPreparing:
		return true
	}
	return false
}

type RefundStatus string

const (
	RefundNone    RefundStatus = "none"
	RefundPending RefundStatus = "pending"
	RefundIssued  RefundStatus = "issued"
)

// Address is the delivery destination. Region keys the tax-rate lookup.
type Address struct {
	Street   string    `json:"street"`
	City     string    `json:"city"`
	Region   string    `json:"region"`
	PostCode string    `json:"post_code"`
	Location geo.Point `json:"location"`
}

func (a Address) Complete() bool {
	return a.Street != "" && a.City != "" && a.Region != ""
}

// Item is a cart line frozen at order-creation time.
// All amounts are integer minor currency units.
type Item struct {
	ProductID    string `json:"product_id"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"unit_price"`
	TotalPrice   int64  `json:"total_price"`
	Instructions string `json:"instructions,omitempty"`
}

type Order struct {
	ID         string  `db:"id" json:"id"`
	CustomerID string  `db:"customer_id" json:"customer_id"`
	PartnerID  string  `db:"partner_id" json:"partner_id"`
	DriverID   *string `db:"driver_id" json:"driver_id,omitempty"`

	Items  []Item `json:"items"`
	Status Status `db:"status" json:"status"`

	Subtotal    int64 `db:"subtotal" json:"subtotal"`
	DeliveryFee int64 `db:"delivery_fee" json:"delivery_fee"`
	PlatformFee int64 `db:"platform_fee" json:"platform_fee"`
	Tax         int64 `db:"tax" json:"tax"`
	Tip         int64 `db:"tip" json:"tip"`
	Total       int64 `db:"total" json:"total"`

	// PickupLocation is the partner's coordinate snapshotted at creation;
	// driver matching measures candidate distance against it.
	PickupLocation  geo.Point `json:"pickup_location"`
	DeliveryAddress Address   `json:"delivery_address"`

	CancelReason string       `db:"cancel_reason" json:"cancel_reason,omitempty"`
	RefundStatus RefundStatus `db:"refund_status" json:"refund_status"`
	RefundAmount int64        `db:"refund_amount" json:"refund_amount"`

	PreferredVehicle string `db:"preferred_vehicle" json:"preferred_vehicle,omitempty"`

	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
	EstimatedDeliveryAt *time.Time `db:"estimated_delivery_at" json:"estimated_delivery_at,omitempty"`
	DeliveredAt         *time.Time `db:"delivered_at" json:"delivered_at,omitempty"`
}
