package port

import (
	"context"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type SlotRepository interface {
	// GetSlot returns the slot or domain.ErrSlotNotFound.
	GetSlot(ctx context.Context, slotID string) (*domain.DeliverySlot, error)

	// ListAvailable returns slots on or after the given date that still
	// have remaining capacity, ordered by date and start time.
	ListAvailable(ctx context.Context, from time.Time) ([]domain.DeliverySlot, error)

	// Consume atomically takes one unit of slot capacity. Returns
	// domain.ErrSlotFull when the slot is at capacity, domain.ErrSlotNotFound
	// when absent. The check-and-increment is a single atomic unit.
	Consume(ctx context.Context, slotID string) error

	// Release returns one unit of slot capacity. Releasing an already-empty
	// slot is clamped to zero, not an error, so double cancellation stays
	// safe.
	Release(ctx context.Context, slotID string) error
}
