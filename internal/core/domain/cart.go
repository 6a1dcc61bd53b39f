package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartOwner identifies whose cart an operation targets: a user id for
// authenticated callers, a session id for anonymous ones. Built once per
// request at the transport boundary and threaded through every call.
type CartOwner struct {
	UserID    string
	SessionID string
}

func (o CartOwner) Authenticated() bool {
	return o.UserID != ""
}

// Key is the storage key for the owner's cart in whichever backend holds it.
func (o CartOwner) Key() string {
	if o.Authenticated() {
		return o.UserID
	}
	return o.SessionID
}

// CartLine is one product in a cart. UnitPrice is captured when the line is
// first added and never recomputed from the catalog afterwards.
type CartLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	AddedAt   time.Time       `json:"added_at"`
}

// CartItem is a cart line as returned to callers, joined with current
// catalog state. StockExceeded flags lines whose quantity no longer fits
// the tracked stock; such lines are surfaced, not auto-corrected.
type CartItem struct {
	CartLine
	ProductName   string
	StockExceeded bool
}

type CartTotals struct {
	Subtotal      decimal.Decimal
	TotalItems    int
	DistinctItems int
}

// TotalsOf sums the surviving items of a cart read.
func TotalsOf(items []CartItem) CartTotals {
	t := CartTotals{Subtotal: decimal.Zero}
	for _, it := range items {
		t.Subtotal = t.Subtotal.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		t.TotalItems += it.Quantity
		t.DistinctItems++
	}
	return t
}
