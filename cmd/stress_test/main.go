package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/rl1809/storefront/internal/adapter/storage"
	"github.com/rl1809/storefront/internal/core/domain"
)

const (
	slotID        = "stress-slot"
	slotCapacity  = 20
	totalRequests = 50
)

// Hammers one delivery slot with concurrent consume calls and checks that
// exactly capacity of them succeed: the check-and-increment must never let
// two callers take the last unit.
func main() {
	ctx := context.Background()

	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		log.Fatalf("failed to connect mysql: %v", err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping mysql: %v", err)
	}

	// Reset the slot
	if _, err := db.ExecContext(ctx, `
		INSERT INTO delivery_slots (id, slot_date, start_time, end_time, price, capacity, consumed)
		VALUES (?, DATE_ADD(CURDATE(), INTERVAL 7 DAY), '09:00', '12:00', 4.99, ?, 0)
		ON DUPLICATE KEY UPDATE capacity = ?, consumed = 0`,
		slotID, slotCapacity, slotCapacity); err != nil {
		log.Fatalf("failed to seed slot: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)

	var successCount atomic.Int32
	var fullCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := adapter.Consume(ctx, slotID)
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrSlotFull):
				fullCount.Add(1)
			default:
				log.Printf("consume error: %v", err)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	full := fullCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Slot Capacity:    %d\n", slotCapacity)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Consumed:         %d\n", success)
	fmt.Printf("Rejected (full):  %d\n", full)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == int32(slotCapacity) && full == int32(totalRequests-slotCapacity) {
		fmt.Printf("PASS: Exactly %d consumes succeeded, %d rejected\n", slotCapacity, totalRequests-slotCapacity)
	} else {
		fmt.Printf("FAIL: Expected %d success/%d full, got %d/%d\n",
			slotCapacity, totalRequests-slotCapacity, success, full)
	}

	var consumed int
	db.QueryRowContext(ctx, `SELECT consumed FROM delivery_slots WHERE id = ?`, slotID).Scan(&consumed)
	fmt.Printf("Final Consumed:   %d\n", consumed)

	if consumed == slotCapacity {
		fmt.Println("PASS: Slot filled exactly to capacity")
	} else {
		fmt.Printf("FAIL: Expected consumed %d, got %d\n", slotCapacity, consumed)
	}
}
