package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is catalog data read by the cart and order flows. StockQuantity
// nil means stock is not tracked for this product.
type Product struct {
	ID            string
	Name          string
	ListPrice     decimal.Decimal
	IsActive      bool
	StockQuantity *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StockTracked reports whether the product carries an exact stock count.
func (p Product) StockTracked() bool {
	return p.StockQuantity != nil
}

// Promotion is a time-boxed discounted price for a single product.
type Promotion struct {
	ProductID  string
	PromoPrice decimal.Decimal
	StartsAt   time.Time
	EndsAt     time.Time
}

// Active reports whether the promotion applies at the given instant.
func (p Promotion) Active(now time.Time) bool {
	return !now.Before(p.StartsAt) && !now.After(p.EndsAt)
}

// EffectivePrice resolves the price a cart line is captured at. A promotion
// applies only while active; everything else falls back to the list price.
func EffectivePrice(product Product, promo *Promotion, now time.Time) decimal.Decimal {
	if promo != nil && promo.Active(now) {
		return promo.PromoPrice
	}
	return product.ListPrice
}
