package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

// forward maps each status to its only legal successor on the happy path.
// Cancellation is handled separately.
var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:        OrderStatusConfirmed,
	OrderStatusConfirmed:      OrderStatusProcessing,
	OrderStatusProcessing:     OrderStatusOutForDelivery,
	OrderStatusOutForDelivery: OrderStatusDelivered,
}

// CanAdvance reports whether from -> to is a legal single-step forward
// transition. No skipping, no going backward.
func CanAdvance(from, to OrderStatus) bool {
	return forward[from] == to
}

// Cancellable reports whether an order in this status may still be
// cancelled at all.
func Cancellable(s OrderStatus) bool {
	return s == OrderStatusPending || s == OrderStatusConfirmed
}

// CancelCutoff is how far ahead of the delivery date cancellation closes.
const CancelCutoff = 24 * time.Hour

// WithinCancelWindow reports whether the delivery date is still far enough
// away to cancel. A nil date means the order has no delivery slot and no
// date gate applies.
func WithinCancelWindow(slotDate *time.Time, now time.Time) bool {
	if slotDate == nil {
		return true
	}
	return slotDate.After(now.Add(CancelCutoff))
}

// OrderLineItem snapshots a cart line at order time. ProductID goes nil if
// the product is later deleted; the captured name and price stay as placed.
type OrderLineItem struct {
	ProductID   *string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
}

type Order struct {
	ID            string
	UserID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Subtotal      decimal.Decimal
	DeliveryFee   decimal.Decimal
	Total         decimal.Decimal
	SlotID        *string
	Items         []OrderLineItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
