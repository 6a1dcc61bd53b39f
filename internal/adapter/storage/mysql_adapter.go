package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/storefront/internal/core/domain"
)

// MySQLAdapter is the durable backend: catalog reads, user carts, orders
// and delivery slots. Every read-validate-write against a stock or capacity
// counter runs inside a single transaction with row locks so concurrent
// checkouts cannot oversell.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// dbtx is satisfied by both *sql.DB and *sql.Tx, letting the slot counter
// statements run standalone or inside an order transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// --- catalog ---

func (m *MySQLAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var (
		p     domain.Product
		stock sql.NullInt64
	)
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, list_price, is_active, stock_quantity, created_at, updated_at
		FROM products WHERE id = ?`, productID,
	).Scan(&p.ID, &p.Name, &p.ListPrice, &p.IsActive, &stock, &p.CreatedAt, &p.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	if stock.Valid {
		v := int(stock.Int64)
		p.StockQuantity = &v
	}
	return &p, nil
}

func (m *MySQLAdapter) GetActivePromotion(ctx context.Context, productID string, now time.Time) (*domain.Promotion, error) {
	var promo domain.Promotion
	err := m.db.QueryRowContext(ctx, `
		SELECT product_id, promo_price, starts_at, ends_at
		FROM promotions
		WHERE product_id = ? AND starts_at <= ? AND ends_at >= ?
		ORDER BY promo_price
		LIMIT 1`, productID, now, now,
	).Scan(&promo.ProductID, &promo.PromoPrice, &promo.StartsAt, &promo.EndsAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query promotion: %w", err)
	}
	return &promo, nil
}

// --- durable cart ---

func (m *MySQLAdapter) Lines(ctx context.Context, ownerKey string) ([]domain.CartLine, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price, created_at
		FROM cart_lines WHERE user_id = ?
		ORDER BY created_at, product_id`, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.CartLine
	for rows.Next() {
		var line domain.CartLine
		if err := rows.Scan(&line.ProductID, &line.Quantity, &line.UnitPrice, &line.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func (m *MySQLAdapter) UpsertLine(ctx context.Context, ownerKey string, line domain.CartLine) error {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO cart_lines (user_id, product_id, quantity, unit_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE quantity = VALUES(quantity), unit_price = VALUES(unit_price), updated_at = NOW()`,
		ownerKey, line.ProductID, line.Quantity, line.UnitPrice, line.AddedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) RemoveLine(ctx context.Context, ownerKey, productID string) error {
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE user_id = ? AND product_id = ?`, ownerKey, productID)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Clear(ctx context.Context, ownerKey string) error {
	_, err := m.db.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE user_id = ?`, ownerKey)
	if err != nil {
		return fmt.Errorf("clear cart lines: %w", err)
	}
	return nil
}

// MergeLines folds session cart lines into the user's cart in one
// transaction. Quantities add up and are clamped to current tracked stock;
// deleted and inactive products are skipped. Existing lines keep their
// price snapshot, new lines take the session one.
func (m *MySQLAdapter) MergeLines(ctx context.Context, userID string, lines []domain.CartLine) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, line := range lines {
		var (
			active bool
			stock  sql.NullInt64
		)
		err := tx.QueryRowContext(ctx, `
			SELECT is_active, stock_quantity FROM products WHERE id = ? FOR UPDATE`,
			line.ProductID,
		).Scan(&active, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return fmt.Errorf("lock product %s: %w", line.ProductID, err)
		}
		if !active {
			continue
		}

		var existing int
		haveLine := true
		err = tx.QueryRowContext(ctx, `
			SELECT quantity FROM cart_lines WHERE user_id = ? AND product_id = ? FOR UPDATE`,
			userID, line.ProductID,
		).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			haveLine = false
		} else if err != nil {
			return fmt.Errorf("lock cart line %s: %w", line.ProductID, err)
		}

		merged := existing + line.Quantity
		if stock.Valid && merged > int(stock.Int64) {
			merged = int(stock.Int64)
		}
		if merged < 1 {
			continue
		}

		if haveLine {
			_, err = tx.ExecContext(ctx, `
				UPDATE cart_lines SET quantity = ?, updated_at = NOW()
				WHERE user_id = ? AND product_id = ?`,
				merged, userID, line.ProductID)
		} else {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO cart_lines (user_id, product_id, quantity, unit_price, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, NOW())`,
				userID, line.ProductID, merged, line.UnitPrice, line.AddedAt)
		}
		if err != nil {
			return fmt.Errorf("merge cart line %s: %w", line.ProductID, err)
		}
	}

	return tx.Commit()
}

// --- orders ---

// CreateOrder persists the order as one transaction: per line it locks the
// product row, re-validates availability and decrements tracked stock, then
// consumes the delivery slot, inserts the order and its items, and clears
// the user's cart. Any failure rolls the whole order back.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, item := range order.Items {
		if item.ProductID == nil {
			continue
		}
		var (
			active bool
			stock  sql.NullInt64
		)
		err := tx.QueryRowContext(ctx, `
			SELECT is_active, stock_quantity FROM products WHERE id = ? FOR UPDATE`,
			*item.ProductID,
		).Scan(&active, &stock)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		if err != nil {
			return fmt.Errorf("lock product %s: %w", *item.ProductID, err)
		}
		if !active {
			return domain.ErrProductInactive
		}
		if stock.Valid {
			if int(stock.Int64) < item.Quantity {
				return domain.ErrInsufficientStock
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE products SET stock_quantity = stock_quantity - ?, updated_at = NOW()
				WHERE id = ?`, item.Quantity, *item.ProductID); err != nil {
				return fmt.Errorf("decrement stock %s: %w", *item.ProductID, err)
			}
		}
	}

	if order.SlotID != nil {
		if err := consumeSlot(ctx, tx, *order.SlotID); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, status, payment_status, subtotal, delivery_fee, total, slot_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.UserID, order.Status, order.PaymentStatus,
		order.Subtotal, order.DeliveryFee, order.Total, order.SlotID,
		order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, product_id, product_name, quantity, unit_price)
			VALUES (?, ?, ?, ?, ?)`,
			order.ID, item.ProductID, item.ProductName, item.Quantity, item.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM cart_lines WHERE user_id = ?`, order.UserID)
	if err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}

	return tx.Commit()
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := scanOrder(m.db.QueryRowContext(ctx, `
		SELECT id, user_id, status, payment_status, subtotal, delivery_fee, total, slot_id, created_at, updated_at
		FROM orders WHERE id = ?`, orderID))
	if err != nil {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price
		FROM order_items WHERE order_id = ?
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item      domain.OrderLineItem
			productID sql.NullString
		)
		if err := rows.Scan(&productID, &item.ProductName, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		if productID.Valid {
			item.ProductID = &productID.String
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return order, nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, userID string) ([]domain.Order, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, user_id, status, payment_status, subtotal, delivery_fee, total, slot_id, created_at, updated_at
		FROM orders WHERE user_id = ?
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (m *MySQLAdapter) AdvanceStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) error {
	result, err := m.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = NOW()
		WHERE id = ? AND status = ?`, to, orderID, from)
	if err != nil {
		return fmt.Errorf("advance order status: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err := m.db.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE id = ?`, orderID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("check order: %w", err)
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

// CancelOrder runs the whole compensation as one transaction: lock the
// order row, verify ownership and the cancellation gate, restore stock for
// still-active tracked products, release the slot, then mark the order and
// its payment cancelled.
func (m *MySQLAdapter) CancelOrder(ctx context.Context, userID, orderID string, now time.Time) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		owner  string
		status domain.OrderStatus
		slotID sql.NullString
	)
	err = tx.QueryRowContext(ctx, `
		SELECT user_id, status, slot_id FROM orders WHERE id = ? FOR UPDATE`,
		orderID,
	).Scan(&owner, &status, &slotID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrOrderNotFound
	}
	if err != nil {
		return fmt.Errorf("lock order: %w", err)
	}

	if owner != userID {
		return domain.ErrForbidden
	}
	if !domain.Cancellable(status) {
		return domain.ErrInvalidTransition
	}

	if slotID.Valid {
		var slotDate time.Time
		err := tx.QueryRowContext(ctx, `
			SELECT slot_date FROM delivery_slots WHERE id = ?`, slotID.String,
		).Scan(&slotDate)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("query slot date: %w", err)
		}
		if err == nil && !domain.WithinCancelWindow(&slotDate, now) {
			return domain.ErrCancelWindowClosed
		}
	}

	// Deleted or deactivated products stay unrestored: they are no longer
	// sellable.
	_, err = tx.ExecContext(ctx, `
		UPDATE products p
		JOIN order_items oi ON oi.product_id = p.id
		SET p.stock_quantity = p.stock_quantity + oi.quantity, p.updated_at = NOW()
		WHERE oi.order_id = ? AND p.is_active = 1 AND p.stock_quantity IS NOT NULL`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("restore stock: %w", err)
	}

	if slotID.Valid {
		if err := releaseSlot(ctx, tx, slotID.String); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, payment_status = ?, updated_at = NOW()
		WHERE id = ?`,
		domain.OrderStatusCancelled, domain.PaymentStatusCancelled, orderID,
	)
	if err != nil {
		return fmt.Errorf("mark order cancelled: %w", err)
	}

	return tx.Commit()
}

// --- delivery slots ---

func (m *MySQLAdapter) GetSlot(ctx context.Context, slotID string) (*domain.DeliverySlot, error) {
	var s domain.DeliverySlot
	err := m.db.QueryRowContext(ctx, `
		SELECT id, slot_date, start_time, end_time, price, capacity, consumed, created_at, updated_at
		FROM delivery_slots WHERE id = ?`, slotID,
	).Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Price, &s.Capacity, &s.Consumed, &s.CreatedAt, &s.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query slot: %w", err)
	}
	return &s, nil
}

func (m *MySQLAdapter) ListAvailable(ctx context.Context, from time.Time) ([]domain.DeliverySlot, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, slot_date, start_time, end_time, price, capacity, consumed, created_at, updated_at
		FROM delivery_slots
		WHERE slot_date >= ? AND consumed < capacity
		ORDER BY slot_date, start_time`, from)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	var slots []domain.DeliverySlot
	for rows.Next() {
		var s domain.DeliverySlot
		if err := rows.Scan(&s.ID, &s.Date, &s.StartTime, &s.EndTime, &s.Price, &s.Capacity, &s.Consumed, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (m *MySQLAdapter) Consume(ctx context.Context, slotID string) error {
	return consumeSlot(ctx, m.db, slotID)
}

func (m *MySQLAdapter) Release(ctx context.Context, slotID string) error {
	return releaseSlot(ctx, m.db, slotID)
}

// consumeSlot is the single atomic check-and-increment on slot capacity.
func consumeSlot(ctx context.Context, q dbtx, slotID string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE delivery_slots SET consumed = consumed + 1, updated_at = NOW()
		WHERE id = ? AND consumed < capacity`, slotID)
	if err != nil {
		return fmt.Errorf("consume slot: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		var exists int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM delivery_slots WHERE id = ?`, slotID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrSlotNotFound
		}
		if err != nil {
			return fmt.Errorf("check slot: %w", err)
		}
		return domain.ErrSlotFull
	}
	return nil
}

// releaseSlot gives a unit of capacity back, clamped at zero so a repeated
// release never goes negative.
func releaseSlot(ctx context.Context, q dbtx, slotID string) error {
	_, err := q.ExecContext(ctx, `
		UPDATE delivery_slots SET consumed = GREATEST(consumed - 1, 0), updated_at = NOW()
		WHERE id = ?`, slotID)
	if err != nil {
		return fmt.Errorf("release slot: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order  domain.Order
		slotID sql.NullString
	)
	err := row.Scan(&order.ID, &order.UserID, &order.Status, &order.PaymentStatus,
		&order.Subtotal, &order.DeliveryFee, &order.Total, &slotID,
		&order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan order: %w", err)
	}
	if slotID.Valid {
		order.SlotID = &slotID.String
	}
	return &order, nil
}
