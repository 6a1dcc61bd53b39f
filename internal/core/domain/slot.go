package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeliverySlot is a bounded pool of deliveries for one date/time window.
// Invariant, enforced in storage: 0 <= Consumed <= Capacity.
type DeliverySlot struct {
	ID        string
	Date      time.Time
	StartTime string
	EndTime   string
	Price     decimal.Decimal
	Capacity  int
	Consumed  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Remaining is how many more orders the slot can accept.
func (s DeliverySlot) Remaining() int {
	return s.Capacity - s.Consumed
}
