package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

// CartRepository is the uniform contract over both cart backends. ownerKey
// is a user id for the durable backend and a session id for the ephemeral
// one; callers never see which backend is active.
type CartRepository interface {
	// Lines returns the cart's lines ordered by when they were added.
	Lines(ctx context.Context, ownerKey string) ([]domain.CartLine, error)

	// UpsertLine inserts the line or overwrites the existing line for the
	// same product.
	UpsertLine(ctx context.Context, ownerKey string, line domain.CartLine) error

	// RemoveLine deletes the line for the product; absent lines are not an
	// error.
	RemoveLine(ctx context.Context, ownerKey, productID string) error

	// Clear deletes every line for the owner.
	Clear(ctx context.Context, ownerKey string) error
}

// DurableCartRepository is the user-keyed backend, which additionally
// absorbs a merged session cart at login.
type DurableCartRepository interface {
	CartRepository

	// MergeLines folds session cart lines into the user's cart as one
	// all-or-nothing unit: existing lines gain the incoming quantity, new
	// lines are created with the incoming price snapshot, and every result
	// is clamped to current tracked stock. Inactive or deleted products are
	// skipped.
	MergeLines(ctx context.Context, userID string, lines []domain.CartLine) error
}
