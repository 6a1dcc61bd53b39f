package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Mock CatalogRepository
type fakeCatalog struct {
	mu       sync.Mutex
	products map[string]domain.Product
	promos   map[string]domain.Promotion
	promoErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: make(map[string]domain.Product),
		promos:   make(map[string]domain.Promotion),
	}
}

func (f *fakeCatalog) put(p domain.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = p
}

func (f *fakeCatalog) setStock(productID string, stock int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[productID]
	p.StockQuantity = &stock
	f.products[productID] = p
}

func (f *fakeCatalog) deactivate(productID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.products[productID]
	p.IsActive = false
	f.products[productID] = p
}

func (f *fakeCatalog) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCatalog) GetActivePromotion(ctx context.Context, productID string, now time.Time) (*domain.Promotion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.promoErr != nil {
		return nil, f.promoErr
	}
	promo, ok := f.promos[productID]
	if !ok || !promo.Active(now) {
		return nil, nil
	}
	return &promo, nil
}

func intPtr(n int) *int {
	return &n
}

func trackedProduct(id string, price string, stock int) domain.Product {
	return domain.Product{
		ID:            id,
		Name:          "product " + id,
		ListPrice:     decimal.RequireFromString(price),
		IsActive:      true,
		StockQuantity: intPtr(stock),
	}
}

func TestReserve_Clamp(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.put(trackedProduct("p1", "2.50", 5))
	gate := NewAvailabilityGate(catalog)

	granted, err := gate.Reserve(context.Background(), "p1", 3, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted != 3 {
		t.Errorf("expected 3, got %d", granted)
	}

	// Second add of 3 on top of 3 held clamps to stock, no error
	granted, err = gate.Reserve(context.Background(), "p1", 3, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted != 5 {
		t.Errorf("expected clamp to 5, got %d", granted)
	}
}

func TestReserve_UntrackedStock(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.put(domain.Product{ID: "p1", Name: "p1", ListPrice: decimal.New(1, 0), IsActive: true})
	gate := NewAvailabilityGate(catalog)

	granted, err := gate.Reserve(context.Background(), "p1", 100, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if granted != 150 {
		t.Errorf("expected 150, got %d", granted)
	}
}

func TestReserve_Rejections(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.put(trackedProduct("active", "1.00", 5))
	inactive := trackedProduct("inactive", "1.00", 5)
	inactive.IsActive = false
	catalog.put(inactive)
	catalog.put(trackedProduct("empty", "1.00", 0))
	gate := NewAvailabilityGate(catalog)

	if _, err := gate.Reserve(context.Background(), "missing", 1, 0); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got: %v", err)
	}
	if _, err := gate.Reserve(context.Background(), "inactive", 1, 0); !errors.Is(err, domain.ErrProductInactive) {
		t.Errorf("expected ErrProductInactive, got: %v", err)
	}
	if _, err := gate.Reserve(context.Background(), "empty", 1, 0); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}
	// Holding everything already: no additional unit possible
	if _, err := gate.Reserve(context.Background(), "active", 1, 5); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestCheckExact_RejectsWithoutClamping(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.put(trackedProduct("p1", "1.00", 5))
	gate := NewAvailabilityGate(catalog)

	if err := gate.CheckExact(context.Background(), "p1", 5); err != nil {
		t.Errorf("expected 5 to fit, got: %v", err)
	}
	if err := gate.CheckExact(context.Background(), "p1", 6); !errors.Is(err, domain.ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestCheckExact_MissingAndInactive(t *testing.T) {
	catalog := newFakeCatalog()
	p := trackedProduct("p1", "1.00", 5)
	p.IsActive = false
	catalog.put(p)
	gate := NewAvailabilityGate(catalog)

	if err := gate.CheckExact(context.Background(), "missing", 1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Errorf("expected ErrProductNotFound, got: %v", err)
	}
	if err := gate.CheckExact(context.Background(), "p1", 1); !errors.Is(err, domain.ErrProductInactive) {
		t.Errorf("expected ErrProductInactive, got: %v", err)
	}
}
