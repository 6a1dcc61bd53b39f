package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// CartService exposes one cart contract over two backends: durable rows for
// authenticated users, session storage for anonymous visitors. The backend
// is picked per call from the owner; callers never know which one is live.
type CartService struct {
	gate      *AvailabilityGate
	catalog   port.CatalogRepository
	durable   port.DurableCartRepository
	ephemeral port.CartRepository
}

func NewCartService(gate *AvailabilityGate, catalog port.CatalogRepository, durable port.DurableCartRepository, ephemeral port.CartRepository) *CartService {
	return &CartService{
		gate:      gate,
		catalog:   catalog,
		durable:   durable,
		ephemeral: ephemeral,
	}
}

func (s *CartService) backend(owner domain.CartOwner) port.CartRepository {
	if owner.Authenticated() {
		return s.durable
	}
	return s.ephemeral
}

// Items returns the cart joined with current catalog state. Lines whose
// product has been deleted or deactivated are removed from the backing
// store during the read; lines that no longer fit tracked stock are
// returned with StockExceeded set, not auto-corrected.
func (s *CartService) Items(ctx context.Context, owner domain.CartOwner) ([]domain.CartItem, error) {
	repo := s.backend(owner)

	lines, err := repo.Lines(ctx, owner.Key())
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	items := make([]domain.CartItem, 0, len(lines))
	for _, line := range lines {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product %s: %w", line.ProductID, err)
		}
		if product == nil || !product.IsActive {
			if err := repo.RemoveLine(ctx, owner.Key(), line.ProductID); err != nil {
				return nil, fmt.Errorf("sweep line %s: %w", line.ProductID, err)
			}
			continue
		}
		items = append(items, domain.CartItem{
			CartLine:      line,
			ProductName:   product.Name,
			StockExceeded: product.StockTracked() && line.Quantity > *product.StockQuantity,
		})
	}
	return items, nil
}

// Add puts qty more of a product into the cart, on top of any existing
// line. The stored quantity is clamped to tracked stock, and the price
// snapshot is recaptured at the current effective price.
func (s *CartService) Add(ctx context.Context, owner domain.CartOwner, productID string, qty int) error {
	repo := s.backend(owner)

	existing, err := s.findLine(ctx, repo, owner.Key(), productID)
	if err != nil {
		return err
	}

	held := 0
	if existing != nil {
		held = existing.Quantity
	}

	granted, err := s.gate.Reserve(ctx, productID, qty, held)
	if err != nil {
		return err
	}

	price, err := s.effectivePrice(ctx, productID)
	if err != nil {
		return err
	}

	line := domain.CartLine{
		ProductID: productID,
		Quantity:  granted,
		UnitPrice: price,
		AddedAt:   time.Now(),
	}
	if existing != nil {
		line.AddedAt = existing.AddedAt
	}

	if err := repo.UpsertLine(ctx, owner.Key(), line); err != nil {
		return fmt.Errorf("upsert line: %w", err)
	}
	return nil
}

// SetQuantity overwrites the line's quantity. Zero removes the line. Unlike
// Add, a quantity beyond tracked stock is rejected outright, never clamped,
// and the price snapshot is left untouched.
func (s *CartService) SetQuantity(ctx context.Context, owner domain.CartOwner, productID string, qty int) error {
	if qty == 0 {
		return s.Remove(ctx, owner, productID)
	}
	if qty < 0 {
		return fmt.Errorf("quantity must not be negative, got %d", qty)
	}

	if err := s.gate.CheckExact(ctx, productID, qty); err != nil {
		return err
	}

	repo := s.backend(owner)
	existing, err := s.findLine(ctx, repo, owner.Key(), productID)
	if err != nil {
		return err
	}

	line := domain.CartLine{
		ProductID: productID,
		Quantity:  qty,
		AddedAt:   time.Now(),
	}
	if existing != nil {
		line.UnitPrice = existing.UnitPrice
		line.AddedAt = existing.AddedAt
	} else {
		price, err := s.effectivePrice(ctx, productID)
		if err != nil {
			return err
		}
		line.UnitPrice = price
	}

	if err := repo.UpsertLine(ctx, owner.Key(), line); err != nil {
		return fmt.Errorf("upsert line: %w", err)
	}
	return nil
}

// Remove deletes the product's line. Removing an absent line is not an
// error.
func (s *CartService) Remove(ctx context.Context, owner domain.CartOwner, productID string) error {
	if err := s.backend(owner).RemoveLine(ctx, owner.Key(), productID); err != nil {
		return fmt.Errorf("remove line: %w", err)
	}
	return nil
}

// Clear deletes every line in the cart.
func (s *CartService) Clear(ctx context.Context, owner domain.CartOwner) error {
	if err := s.backend(owner).Clear(ctx, owner.Key()); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Totals sums the cart after the read-time sweep.
func (s *CartService) Totals(ctx context.Context, owner domain.CartOwner) (domain.CartTotals, error) {
	items, err := s.Items(ctx, owner)
	if err != nil {
		return domain.CartTotals{}, err
	}
	return domain.TotalsOf(items), nil
}

// Migrate folds the session cart into the user's durable cart at login.
// The merge is one all-or-nothing unit; the session cart is deleted only
// after the merge has committed, so a failed merge leaves it intact for
// retry. An empty session cart is a no-op. Migration clamps instead of
// rejecting: it must never block a login.
func (s *CartService) Migrate(ctx context.Context, sessionID, userID string) error {
	lines, err := s.ephemeral.Lines(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session cart: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}

	if err := s.durable.MergeLines(ctx, userID, lines); err != nil {
		return fmt.Errorf("merge cart: %w", err)
	}

	if err := s.ephemeral.Clear(ctx, sessionID); err != nil {
		return fmt.Errorf("clear session cart: %w", err)
	}
	return nil
}

func (s *CartService) findLine(ctx context.Context, repo port.CartRepository, ownerKey, productID string) (*domain.CartLine, error) {
	lines, err := repo.Lines(ctx, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	for i := range lines {
		if lines[i].ProductID == productID {
			return &lines[i], nil
		}
	}
	return nil, nil
}

// effectivePrice resolves the price to capture on a line: the active
// promotion price when one applies, the list price otherwise. A failing
// promotion lookup falls back to the list price rather than blocking the
// add.
func (s *CartService) effectivePrice(ctx context.Context, productID string) (decimal.Decimal, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return decimal.Zero, domain.ErrProductNotFound
	}

	now := time.Now()
	promo, err := s.catalog.GetActivePromotion(ctx, productID, now)
	if err != nil {
		return product.ListPrice, nil
	}
	return domain.EffectivePrice(*product, promo, now), nil
}
