package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

// OrderService drives orders from placement through the status lifecycle.
// All counter-touching work (stock, slot capacity) happens inside single
// storage transactions owned by the repositories.
type OrderService struct {
	orders port.OrderRepository
	slots  port.SlotRepository
	cart   *CartService
}

func NewOrderService(orders port.OrderRepository, slots port.SlotRepository, cart *CartService) *OrderService {
	return &OrderService{
		orders: orders,
		slots:  slots,
		cart:   cart,
	}
}

// Checkout turns the user's durable cart into a pending order against the
// given delivery slot. Each line is re-validated against stock and the slot
// consumed inside the order transaction; any failure aborts the whole order
// and leaves the cart intact.
func (s *OrderService) Checkout(ctx context.Context, userID, slotID string) (*domain.Order, error) {
	owner := domain.CartOwner{UserID: userID}

	items, err := s.cart.Items(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	slot, err := s.slots.GetSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}

	totals := domain.TotalsOf(items)
	now := time.Now()

	order := domain.Order{
		ID:            uuid.New().String(),
		UserID:        userID,
		Status:        domain.OrderStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
		Subtotal:      totals.Subtotal,
		DeliveryFee:   slot.Price,
		Total:         totals.Subtotal.Add(slot.Price),
		SlotID:        &slot.ID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, it := range items {
		productID := it.ProductID
		order.Items = append(order.Items, domain.OrderLineItem{
			ProductID:   &productID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return &order, nil
}

// Get returns the order with its line items. The ownership check runs
// before anything about the order is revealed to the caller.
func (s *OrderService) Get(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrForbidden
	}
	return order, nil
}

// List returns the user's orders, newest first.
func (s *OrderService) List(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.orders.ListOrders(ctx, userID)
}

// Cancel cancels the user's order, restoring stock for its still-active
// products and releasing its delivery slot in one transaction. Fails with
// ErrInvalidTransition once the order has moved past confirmed, and with
// ErrCancelWindowClosed within a day of delivery.
func (s *OrderService) Cancel(ctx context.Context, userID, orderID string) error {
	return s.orders.CancelOrder(ctx, userID, orderID, time.Now())
}

// The forward transitions are guarded single-step advances: each succeeds
// only from its exact predecessor status and fails with
// ErrInvalidTransition otherwise.

func (s *OrderService) MarkConfirmed(ctx context.Context, orderID string) error {
	return s.advance(ctx, orderID, domain.OrderStatusPending, domain.OrderStatusConfirmed)
}

func (s *OrderService) MarkProcessing(ctx context.Context, orderID string) error {
	return s.advance(ctx, orderID, domain.OrderStatusConfirmed, domain.OrderStatusProcessing)
}

func (s *OrderService) MarkOutForDelivery(ctx context.Context, orderID string) error {
	return s.advance(ctx, orderID, domain.OrderStatusProcessing, domain.OrderStatusOutForDelivery)
}

func (s *OrderService) MarkDelivered(ctx context.Context, orderID string) error {
	return s.advance(ctx, orderID, domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered)
}

func (s *OrderService) advance(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	if !domain.CanAdvance(from, to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	return s.orders.AdvanceStatus(ctx, orderID, from, to)
}
