package port

import (
	"context"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type OrderRepository interface {
	// CreateOrder persists the order and its line items, decrements tracked
	// stock per line, consumes the delivery slot, and clears the user's
	// cart — all in a single transaction. Any failure leaves nothing
	// committed. Returns domain.ErrInsufficientStock, ErrProductInactive,
	// ErrProductNotFound or ErrSlotFull when a line or the slot no longer
	// fits.
	CreateOrder(ctx context.Context, order domain.Order) error

	// GetOrder returns the order with its line items, or
	// domain.ErrOrderNotFound.
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)

	// ListOrders returns the user's orders, newest first, without line items.
	ListOrders(ctx context.Context, userID string) ([]domain.Order, error)

	// AdvanceStatus moves the order from exactly the given predecessor to
	// the given successor. Returns domain.ErrInvalidTransition if the order
	// is in any other status, domain.ErrOrderNotFound if absent.
	AdvanceStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error

	// CancelOrder verifies ownership and the cancellation gate, restores
	// stock for still-active products, releases the slot and marks the
	// order and its payment cancelled — all in a single transaction.
	CancelOrder(ctx context.Context, userID, orderID string, now time.Time) error
}
