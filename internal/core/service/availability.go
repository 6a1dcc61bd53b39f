package service

import (
	"context"
	"fmt"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// AvailabilityGate validates requested quantities against current catalog
// state. It has no side effects; callers persist whatever it grants.
type AvailabilityGate struct {
	catalog port.CatalogRepository
}

func NewAvailabilityGate(catalog port.CatalogRepository) *AvailabilityGate {
	return &AvailabilityGate{catalog: catalog}
}

// Reserve computes how much of a product a cart may hold after requesting
// more, on top of what it already holds. When stock is tracked the result
// is clamped to the stock count; the caller must store the granted value.
// Rejects only when the product is missing, inactive, or no additional unit
// can be granted at all.
func (g *AvailabilityGate) Reserve(ctx context.Context, productID string, requested, alreadyHeld int) (int, error) {
	if requested <= 0 {
		return 0, fmt.Errorf("requested quantity must be positive, got %d", requested)
	}

	product, err := g.catalog.GetProduct(ctx, productID)
	if err != nil {
		return 0, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return 0, domain.ErrProductNotFound
	}
	if !product.IsActive {
		return 0, domain.ErrProductInactive
	}

	want := alreadyHeld + requested
	if !product.StockTracked() {
		return want, nil
	}

	stock := *product.StockQuantity
	if stock <= alreadyHeld {
		return 0, domain.ErrInsufficientStock
	}
	if want > stock {
		return stock, nil
	}
	return want, nil
}

// CheckExact validates that the cart may hold exactly qty of the product.
// Unlike Reserve it never clamps: an edit that does not fit is rejected so
// the user sees why it didn't take.
func (g *AvailabilityGate) CheckExact(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}

	product, err := g.catalog.GetProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return domain.ErrProductNotFound
	}
	if !product.IsActive {
		return domain.ErrProductInactive
	}
	if product.StockTracked() && qty > *product.StockQuantity {
		return domain.ErrInsufficientStock
	}
	return nil
}
