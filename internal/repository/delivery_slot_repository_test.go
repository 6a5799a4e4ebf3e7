package repository

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupDeliverySlotRepositoryTest(t *testing.T) (*GormDeliverySlotRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:slot_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.DeliverySlot{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewDeliverySlotRepository(db), db
}

func TestDeliverySlotReserveLazyCreatesRow(t *testing.T) {
	repo, db := setupDeliverySlotRepositoryTest(t)

	affected, err := repo.Reserve("2026-03-01", constants.DeliveryWindowMorning, 5)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if affected != 1 {
		t.Fatalf("reserve affected want 1 got %d", affected)
	}

	var slot models.DeliverySlot
	if err := db.Where("date = ? AND window = ?", "2026-03-01", constants.DeliveryWindowMorning).First(&slot).Error; err != nil {
		t.Fatalf("slot row should exist: %v", err)
	}
	if slot.MaxCapacity != 5 || slot.BookedCount != 1 {
		t.Fatalf("slot want capacity=5 booked=1 got capacity=%d booked=%d", slot.MaxCapacity, slot.BookedCount)
	}
}

func TestDeliverySlotReserveStopsAtCapacity(t *testing.T) {
	repo, _ := setupDeliverySlotRepositoryTest(t)

	for i := 0; i < 2; i++ {
		affected, err := repo.Reserve("2026-03-02", constants.DeliveryWindowAfternoon, 2)
		if err != nil || affected != 1 {
			t.Fatalf("reserve %d want 1 got affected=%d err=%v", i+1, affected, err)
		}
	}
	affected, err := repo.Reserve("2026-03-02", constants.DeliveryWindowAfternoon, 2)
	if err != nil {
		t.Fatalf("reserve beyond capacity failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("reserve beyond capacity want 0 got %d", affected)
	}
}

func TestDeliverySlotReserveRejectsBlocked(t *testing.T) {
	repo, _ := setupDeliverySlotRepositoryTest(t)

	if err := repo.UpsertConfig("2026-03-03", constants.DeliveryWindowMorning, 10, true); err != nil {
		t.Fatalf("upsert config failed: %v", err)
	}
	affected, err := repo.Reserve("2026-03-03", constants.DeliveryWindowMorning, 10)
	if err != nil {
		t.Fatalf("reserve on blocked slot failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("reserve on blocked slot want 0 got %d", affected)
	}
}

func TestDeliverySlotReserveWithoutDefaultCapacity(t *testing.T) {
	repo, _ := setupDeliverySlotRepositoryTest(t)

	affected, err := repo.Reserve("2026-03-04", constants.DeliveryWindowMorning, 0)
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if affected != 0 {
		t.Fatalf("reserve with zero default capacity want 0 got %d", affected)
	}
}

func TestDeliverySlotReleaseNeverGoesNegative(t *testing.T) {
	repo, db := setupDeliverySlotRepositoryTest(t)

	if _, err := repo.Reserve("2026-03-05", constants.DeliveryWindowMorning, 3); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	affected, err := repo.Release("2026-03-05", constants.DeliveryWindowMorning)
	if err != nil || affected != 1 {
		t.Fatalf("release want 1 got affected=%d err=%v", affected, err)
	}
	// 重复释放是幂等空操作
	affected, err = repo.Release("2026-03-05", constants.DeliveryWindowMorning)
	if err != nil || affected != 0 {
		t.Fatalf("second release want 0 got affected=%d err=%v", affected, err)
	}

	var slot models.DeliverySlot
	if err := db.Where("date = ?", "2026-03-05").First(&slot).Error; err != nil {
		t.Fatalf("load slot failed: %v", err)
	}
	if slot.BookedCount != 0 {
		t.Fatalf("booked count want 0 got %d", slot.BookedCount)
	}
}

func TestDeliverySlotUpsertConfigUpdatesExistingRow(t *testing.T) {
	repo, _ := setupDeliverySlotRepositoryTest(t)

	if _, err := repo.Reserve("2026-03-06", constants.DeliveryWindowAfternoon, 2); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := repo.UpsertConfig("2026-03-06", constants.DeliveryWindowAfternoon, 8, false); err != nil {
		t.Fatalf("upsert config failed: %v", err)
	}

	slot, err := repo.Get("2026-03-06", constants.DeliveryWindowAfternoon)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot == nil {
		t.Fatalf("slot should exist")
	}
	if slot.MaxCapacity != 8 {
		t.Fatalf("max capacity want 8 got %d", slot.MaxCapacity)
	}
	if slot.BookedCount != 1 {
		t.Fatalf("upsert should keep booked count, want 1 got %d", slot.BookedCount)
	}
}

func TestDeliverySlotListRange(t *testing.T) {
	repo, _ := setupDeliverySlotRepositoryTest(t)

	for _, date := range []string{"2026-03-10", "2026-03-11", "2026-03-20"} {
		if err := repo.UpsertConfig(date, constants.DeliveryWindowMorning, 5, false); err != nil {
			t.Fatalf("upsert %s failed: %v", date, err)
		}
	}

	slots, err := repo.ListRange("2026-03-10", "2026-03-15")
	if err != nil {
		t.Fatalf("list range failed: %v", err)
	}
	if len(slots) != 2 {
		t.Fatalf("list range want 2 got %d", len(slots))
	}
}

func TestDeliverySlotReserveConcurrentNeverOversells(t *testing.T) {
	repo, db := setupDeliverySlotRepositoryTest(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// 单连接池让内存 sqlite 在并发写下不报锁冲突，交错仍由调度决定
	sqlDB.SetMaxOpenConns(1)

	const attempts = 8
	var succeeded int64
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			affected, reserveErr := repo.Reserve("2026-03-08", constants.DeliveryWindowMorning, 1)
			if reserveErr != nil {
				t.Errorf("reserve failed: %v", reserveErr)
				return
			}
			atomic.AddInt64(&succeeded, affected)
		}()
	}
	close(start)
	wg.Wait()

	if succeeded != 1 {
		t.Fatalf("capacity-1 slot want exactly 1 successful reserve got %d", succeeded)
	}

	var slot models.DeliverySlot
	if err := db.Where("date = ? AND window = ?", "2026-03-08", constants.DeliveryWindowMorning).First(&slot).Error; err != nil {
		t.Fatalf("slot row should exist: %v", err)
	}
	if slot.BookedCount != 1 || slot.BookedCount > slot.MaxCapacity {
		t.Fatalf("booked want 1 within capacity got booked=%d capacity=%d", slot.BookedCount, slot.MaxCapacity)
	}
}
