package port

import (
	"context"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CatalogRepository interface {
	// GetProduct returns nil, nil when the product does not exist.
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)

	// GetActivePromotion returns the promotion in effect at now, or nil, nil
	// when the product has none.
	GetActivePromotion(ctx context.Context, productID string, now time.Time) (*domain.Promotion, error)
}
