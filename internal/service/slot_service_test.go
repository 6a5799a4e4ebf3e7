package service

import (
	"errors"
	"testing"

	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/repository"

	"gorm.io/gorm"
)

func newSlotServiceForTest(t *testing.T, db *gorm.DB) *SlotService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Delivery.DefaultSlotCapacity = 5
	cfg.Delivery.BookingHorizonDays = 7
	return NewSlotService(cfg, repository.NewDeliverySlotRepository(db))
}

func TestValidateSlot(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	date, window, err := svc.ValidateSlot(" 2026-05-01 ", "MORNING")
	if err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if date != "2026-05-01" || window != constants.DeliveryWindowMorning {
		t.Fatalf("normalize want 2026-05-01/morning got %s/%s", date, window)
	}

	if _, _, err := svc.ValidateSlot("01-05-2026", "morning"); !errors.Is(err, ErrSlotInvalid) {
		t.Fatalf("bad date want ErrSlotInvalid got %v", err)
	}
	if _, _, err := svc.ValidateSlot("2026-05-01", "evening"); !errors.Is(err, ErrSlotInvalid) {
		t.Fatalf("bad window want ErrSlotInvalid got %v", err)
	}
}

func TestCheckAvailableMissingRowUsesDefaultCapacity(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	availability, err := svc.CheckAvailable("2026-05-02", constants.DeliveryWindowMorning)
	if err != nil {
		t.Fatalf("check available failed: %v", err)
	}
	if availability.MaxCapacity != 5 || availability.Remaining != 5 {
		t.Fatalf("missing row want capacity=5 remaining=5 got %d/%d", availability.MaxCapacity, availability.Remaining)
	}
	if !availability.Available {
		t.Fatalf("missing row with default capacity should be available")
	}
}

func TestCheckAvailableBlockedSlot(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	if _, err := svc.Configure("2026-05-03", constants.DeliveryWindowAfternoon, 10, true); err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	availability, err := svc.CheckAvailable("2026-05-03", constants.DeliveryWindowAfternoon)
	if err != nil {
		t.Fatalf("check available failed: %v", err)
	}
	if availability.Available {
		t.Fatalf("blocked slot must not be available")
	}
	if availability.Remaining != 10 {
		t.Fatalf("blocked slot remaining want 10 got %d", availability.Remaining)
	}
}

func TestListAvailabilityFillsMissingSlots(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	slotRepo := repository.NewDeliverySlotRepository(db)
	if err := slotRepo.UpsertConfig("2026-05-11", constants.DeliveryWindowMorning, 2, false); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	result, err := svc.ListAvailability("2026-05-10", "2026-05-12")
	if err != nil {
		t.Fatalf("list availability failed: %v", err)
	}
	// 3 天 × 2 时段
	if len(result) != 6 {
		t.Fatalf("availability len want 6 got %d", len(result))
	}

	var configured *SlotAvailability
	for i := range result {
		if result[i].Date == "2026-05-11" && result[i].Window == constants.DeliveryWindowMorning {
			configured = &result[i]
		}
	}
	if configured == nil {
		t.Fatalf("configured slot missing from availability")
	}
	if configured.MaxCapacity != 2 {
		t.Fatalf("configured slot capacity want 2 got %d", configured.MaxCapacity)
	}
}

func TestListAvailabilityRejectsInvertedRange(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	if _, err := svc.ListAvailability("2026-05-12", "2026-05-10"); !errors.Is(err, ErrSlotInvalid) {
		t.Fatalf("inverted range want ErrSlotInvalid got %v", err)
	}
}

func TestListAvailabilityCapsRangeToHorizon(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	result, err := svc.ListAvailability("2026-05-10", "2026-06-30")
	if err != nil {
		t.Fatalf("list availability failed: %v", err)
	}
	// 超出预订上限的区间收口到 7 天 × 2 时段
	if len(result) != 14 {
		t.Fatalf("availability len want 14 got %d", len(result))
	}
}

func TestConfigureRejectsNegativeCapacity(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	if _, err := svc.Configure("2026-05-13", constants.DeliveryWindowMorning, -1, false); !errors.Is(err, ErrSlotInvalid) {
		t.Fatalf("negative capacity want ErrSlotInvalid got %v", err)
	}
}

func TestConfigureZeroCapacityClosesSlot(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSlotServiceForTest(t, db)

	availability, err := svc.Configure("2026-05-14", constants.DeliveryWindowMorning, 0, false)
	if err != nil {
		t.Fatalf("configure failed: %v", err)
	}
	if availability.Available {
		t.Fatalf("zero-capacity slot must not be available")
	}
	if availability.Remaining != 0 {
		t.Fatalf("remaining want 0 got %d", availability.Remaining)
	}
}
