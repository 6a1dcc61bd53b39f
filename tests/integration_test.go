package tests

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	carts   *service.CartService
	orders  *service.OrderService
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	cache := storage.NewRedisAdapter(rdb)
	mysqlAdapter := storage.NewMySQLAdapter(db)
	gate := service.NewAvailabilityGate(mysqlAdapter)
	carts := service.NewCartService(gate, mysqlAdapter, mysqlAdapter, cache)
	orders := service.NewOrderService(mysqlAdapter, mysqlAdapter, carts)

	return &testEnv{
		redis:  rdb,
		mysql:  db,
		cache:  cache,
		db:     mysqlAdapter,
		carts:  carts,
		orders: orders,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

func (env *testEnv) seedProduct(t *testing.T, id string, price string, stock int) {
	t.Helper()
	_, err := env.mysql.ExecContext(context.Background(), `
		INSERT INTO products (id, name, list_price, is_active, stock_quantity, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, NOW(), NOW())
		ON DUPLICATE KEY UPDATE list_price = VALUES(list_price), is_active = 1,
			stock_quantity = VALUES(stock_quantity), updated_at = NOW()`,
		id, "product "+id, price, stock)
	if err != nil {
		t.Fatalf("seed product failed: %v", err)
	}
}

func (env *testEnv) seedSlot(t *testing.T, id string, date time.Time, capacity int) {
	t.Helper()
	_, err := env.mysql.ExecContext(context.Background(), `
		INSERT INTO delivery_slots (id, slot_date, start_time, end_time, price, capacity, consumed, created_at, updated_at)
		VALUES (?, ?, '09:00', '12:00', 4.99, ?, 0, NOW(), NOW())
		ON DUPLICATE KEY UPDATE slot_date = VALUES(slot_date), capacity = VALUES(capacity),
			consumed = 0, updated_at = NOW()`,
		id, date, capacity)
	if err != nil {
		t.Fatalf("seed slot failed: %v", err)
	}
}

func (env *testEnv) productStock(t *testing.T, id string) int {
	t.Helper()
	var stock int
	if err := env.mysql.QueryRowContext(context.Background(), `
		SELECT stock_quantity FROM products WHERE id = ?`, id).Scan(&stock); err != nil {
		t.Fatalf("read stock failed: %v", err)
	}
	return stock
}

func (env *testEnv) slotConsumed(t *testing.T, id string) int {
	t.Helper()
	var consumed int
	if err := env.mysql.QueryRowContext(context.Background(), `
		SELECT consumed FROM delivery_slots WHERE id = ?`, id).Scan(&consumed); err != nil {
		t.Fatalf("read slot failed: %v", err)
	}
	return consumed
}

func (env *testEnv) cleanUser(t *testing.T, userID string) {
	t.Helper()
	ctx := context.Background()
	env.mysql.ExecContext(ctx, `DELETE FROM cart_lines WHERE user_id = ?`, userID)
	env.mysql.ExecContext(ctx, `
		DELETE oi FROM order_items oi JOIN orders o ON o.id = oi.order_id WHERE o.user_id = ?`, userID)
	env.mysql.ExecContext(ctx, `DELETE FROM orders WHERE user_id = ?`, userID)
}

// Anonymous browsing, login migration, checkout and cancellation as one
// continuous customer journey across both cart backends.
func TestIntegration_AnonymousToDeliveredCancel(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	userID := "it-user-" + uuid.New().String()[:8]
	sessionID := "it-sess-" + uuid.New().String()[:8]
	anon := domain.CartOwner{SessionID: sessionID}
	user := domain.CartOwner{UserID: userID}

	env.seedProduct(t, "it-prod-a", "2.50", 10)
	env.seedProduct(t, "it-prod-b", "1.20", 5)
	env.seedSlot(t, "it-slot-flow", time.Now().AddDate(0, 0, 7), 3)
	env.cleanUser(t, userID)
	defer env.cleanUser(t, userID)
	env.cache.Clear(ctx, sessionID)

	// Anonymous session cart in Redis
	if err := env.carts.Add(ctx, anon, "it-prod-a", 2); err != nil {
		t.Fatalf("anonymous add failed: %v", err)
	}
	if err := env.carts.Add(ctx, anon, "it-prod-b", 8); err != nil {
		t.Fatalf("anonymous add failed: %v", err)
	}

	items, err := env.carts.Items(ctx, anon)
	if err != nil {
		t.Fatalf("anonymous items failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 session lines, got %d", len(items))
	}
	// 8 requested, 5 in stock: clamped
	for _, it := range items {
		if it.ProductID == "it-prod-b" && it.Quantity != 5 {
			t.Errorf("expected it-prod-b clamped to 5, got %d", it.Quantity)
		}
	}

	// Login: session cart folds into durable rows, session copy is gone
	if err := env.carts.Migrate(ctx, sessionID, userID); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	sessionLeft, _ := env.cache.Lines(ctx, sessionID)
	if len(sessionLeft) != 0 {
		t.Errorf("expected session cart deleted after migration, got %d lines", len(sessionLeft))
	}

	items, err = env.carts.Items(ctx, user)
	if err != nil {
		t.Fatalf("durable items failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 durable lines, got %d", len(items))
	}

	// Checkout against the slot
	order, err := env.orders.Checkout(ctx, userID, "it-slot-flow")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected order pending, got %s", order.Status)
	}
	wantSubtotal := decimal.RequireFromString("11.00") // 2*2.50 + 5*1.20
	if !order.Subtotal.Equal(wantSubtotal) {
		t.Errorf("expected subtotal %s, got %s", wantSubtotal, order.Subtotal)
	}
	if !order.Total.Equal(wantSubtotal.Add(decimal.RequireFromString("4.99"))) {
		t.Errorf("expected total 15.99, got %s", order.Total)
	}

	if got := env.productStock(t, "it-prod-a"); got != 8 {
		t.Errorf("expected it-prod-a stock 8, got %d", got)
	}
	if got := env.productStock(t, "it-prod-b"); got != 0 {
		t.Errorf("expected it-prod-b stock 0, got %d", got)
	}
	if got := env.slotConsumed(t, "it-slot-flow"); got != 1 {
		t.Errorf("expected slot consumed 1, got %d", got)
	}
	afterCheckout, _ := env.carts.Items(ctx, user)
	if len(afterCheckout) != 0 {
		t.Errorf("expected cart cleared after checkout, got %d lines", len(afterCheckout))
	}

	// Cancel inside the window: full restitution
	if err := env.orders.Cancel(ctx, userID, order.ID); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if got := env.productStock(t, "it-prod-a"); got != 10 {
		t.Errorf("expected it-prod-a stock restored to 10, got %d", got)
	}
	if got := env.productStock(t, "it-prod-b"); got != 5 {
		t.Errorf("expected it-prod-b stock restored to 5, got %d", got)
	}
	if got := env.slotConsumed(t, "it-slot-flow"); got != 0 {
		t.Errorf("expected slot released, got %d", got)
	}

	stored, err := env.orders.Get(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Status != domain.OrderStatusCancelled {
		t.Errorf("expected order cancelled, got %s", stored.Status)
	}
}

// Concurrent checkouts against a slot with a single remaining unit: exactly
// one order wins, the losers keep their carts.
func TestIntegration_SlotCapacityRace(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	env.seedProduct(t, "it-prod-race", "1.00", 1000)
	env.seedSlot(t, "it-slot-race", time.Now().AddDate(0, 0, 7), 1)

	const shoppers = 8
	userIDs := make([]string, shoppers)
	for i := range userIDs {
		userIDs[i] = "it-racer-" + uuid.New().String()[:8]
		env.cleanUser(t, userIDs[i])
		owner := domain.CartOwner{UserID: userIDs[i]}
		if err := env.carts.Add(ctx, owner, "it-prod-race", 1); err != nil {
			t.Fatalf("add failed: %v", err)
		}
	}
	defer func() {
		for _, id := range userIDs {
			env.cleanUser(t, id)
		}
	}()

	var (
		wg    sync.WaitGroup
		wins  atomic.Int32
		fulls atomic.Int32
	)
	for _, userID := range userIDs {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := env.orders.Checkout(ctx, userID, "it-slot-race")
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, domain.ErrSlotFull):
				fulls.Add(1)
			default:
				t.Errorf("unexpected checkout error: %v", err)
			}
		}(userID)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("expected exactly 1 winning checkout, got %d", wins.Load())
	}
	if fulls.Load() != shoppers-1 {
		t.Errorf("expected %d slot-full rejections, got %d", shoppers-1, fulls.Load())
	}
	if got := env.slotConsumed(t, "it-slot-race"); got != 1 {
		t.Errorf("expected slot consumed 1, got %d", got)
	}
	if got := env.productStock(t, "it-prod-race"); got != 999 {
		t.Errorf("expected stock 999, got %d", got)
	}

	// Losers keep their carts for another slot
	var kept int
	for _, id := range userIDs {
		lines, _ := env.db.Lines(ctx, id)
		if len(lines) == 1 {
			kept++
		}
	}
	if kept != shoppers-1 {
		t.Errorf("expected %d carts intact, got %d", shoppers-1, kept)
	}
}

// The full forward lifecycle, then a cancel attempt that must be refused.
func TestIntegration_StatusLifecycle(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	userID := "it-user-" + uuid.New().String()[:8]
	owner := domain.CartOwner{UserID: userID}

	env.seedProduct(t, "it-prod-life", "3.00", 10)
	env.seedSlot(t, "it-slot-life", time.Now().AddDate(0, 0, 7), 3)
	env.cleanUser(t, userID)
	defer env.cleanUser(t, userID)

	if err := env.carts.Add(ctx, owner, "it-prod-life", 1); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	order, err := env.orders.Checkout(ctx, userID, "it-slot-life")
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}

	steps := []func(context.Context, string) error{
		env.orders.MarkConfirmed,
		env.orders.MarkProcessing,
		env.orders.MarkOutForDelivery,
		env.orders.MarkDelivered,
	}
	for i, step := range steps {
		if err := step(ctx, order.ID); err != nil {
			t.Fatalf("step %d failed: %v", i, err)
		}
	}

	err = env.orders.Cancel(ctx, userID, order.ID)
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition cancelling a delivered order, got %v", err)
	}

	stored, _ := env.orders.Get(ctx, userID, order.ID)
	if stored.Status != domain.OrderStatusDelivered {
		t.Errorf("expected delivered, got %s", stored.Status)
	}
	// Delivered order keeps its stock and slot
	if got := env.productStock(t, "it-prod-life"); got != 9 {
		t.Errorf("expected stock 9, got %d", got)
	}
	if got := env.slotConsumed(t, "it-slot-life"); got != 1 {
		t.Errorf("expected slot consumed 1, got %d", got)
	}
}
