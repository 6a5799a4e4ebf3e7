package service

import (
	"errors"
	"testing"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/repository"

	"gorm.io/gorm"
)

func newOrderServiceForTest(t *testing.T, db *gorm.DB) *OrderService {
	t.Helper()
	return NewOrderService(
		repository.NewOrderRepository(db),
		repository.NewDeliverySlotRepository(db),
		nil,
	)
}

func TestTransitionOrderTable(t *testing.T) {
	cases := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"pending to paid", constants.OrderStatusPendingPayment, constants.OrderStatusPaid, true},
		{"pending to cancelled", constants.OrderStatusPendingPayment, constants.OrderStatusCancelled, true},
		{"pending to delivered", constants.OrderStatusPendingPayment, constants.OrderStatusDelivered, false},
		{"paid to confirmed", constants.OrderStatusPaid, constants.OrderStatusConfirmed, true},
		{"paid to preparing", constants.OrderStatusPaid, constants.OrderStatusPreparing, false},
		{"confirmed to preparing", constants.OrderStatusConfirmed, constants.OrderStatusPreparing, true},
		{"preparing to out_for_delivery", constants.OrderStatusPreparing, constants.OrderStatusOutForDelivery, true},
		{"out_for_delivery to delivered", constants.OrderStatusOutForDelivery, constants.OrderStatusDelivered, true},
		{"delivered is terminal", constants.OrderStatusDelivered, constants.OrderStatusRefunded, false},
		{"cancelled is terminal", constants.OrderStatusCancelled, constants.OrderStatusPaid, false},
		{"refunded is terminal", constants.OrderStatusRefunded, constants.OrderStatusPendingPayment, false},
		{"no self transition", constants.OrderStatusPaid, constants.OrderStatusPaid, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := setupServiceTestDB(t)
			svc := newOrderServiceForTest(t, db)
			order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260412-0001", 1, "")
			if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", tc.from).Error; err != nil {
				t.Fatalf("set status failed: %v", err)
			}

			updated, err := svc.TransitionOrder(order.ID, tc.to, constants.StatusActorAdmin, "")
			if tc.allowed {
				if err != nil {
					t.Fatalf("transition %s -> %s should succeed: %v", tc.from, tc.to, err)
				}
				if updated.Status != tc.to {
					t.Fatalf("status want %s got %s", tc.to, updated.Status)
				}
				return
			}
			if !errors.Is(err, ErrOrderStatusInvalid) {
				t.Fatalf("transition %s -> %s want ErrOrderStatusInvalid got %v", tc.from, tc.to, err)
			}
		})
	}
}

func TestTransitionOrderRejectsUnknownStatus(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newOrderServiceForTest(t, db)
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260412-0002", 1, "")

	if _, err := svc.TransitionOrder(order.ID, "shipped", constants.StatusActorAdmin, ""); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("want ErrOrderStatusInvalid for unknown status got %v", err)
	}
}

func TestTransitionOrderNotFound(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newOrderServiceForTest(t, db)

	if _, err := svc.TransitionOrder(12345, constants.OrderStatusPaid, constants.StatusActorAdmin, ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound got %v", err)
	}
}

func TestCancelByBuyerReleasesSlot(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newOrderServiceForTest(t, db)

	slotRepo := repository.NewDeliverySlotRepository(db)
	if _, err := slotRepo.Reserve("2026-04-10", constants.DeliveryWindowMorning, 3); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260412-0003", 2, "")

	cancelled, err := svc.CancelByBuyer(order)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.OrderStatusCancelled {
		t.Fatalf("status want cancelled got %s", cancelled.Status)
	}
	if cancelled.CanceledAt == nil {
		t.Fatalf("canceled_at should be set")
	}

	slot, err := slotRepo.Get("2026-04-10", constants.DeliveryWindowMorning)
	if err != nil {
		t.Fatalf("get slot failed: %v", err)
	}
	if slot.BookedCount != 0 {
		t.Fatalf("cancel must release slot, booked want 0 got %d", slot.BookedCount)
	}
}

func TestCancelByBuyerRejectsSettledOrder(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newOrderServiceForTest(t, db)
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260412-0004", 2, "")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", constants.OrderStatusPaid).Error; err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	order.Status = constants.OrderStatusPaid

	if _, err := svc.CancelByBuyer(order); !errors.Is(err, ErrOrderStatusInvalid) {
		t.Fatalf("want ErrOrderStatusInvalid got %v", err)
	}
}

func TestCancelIfUnpaid(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newOrderServiceForTest(t, db)
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260412-0005", 0, "rosa@example.com")

	cancelled, err := svc.CancelIfUnpaid(order.ID)
	if err != nil {
		t.Fatalf("cancel if unpaid failed: %v", err)
	}
	if !cancelled {
		t.Fatalf("pending order should be cancelled")
	}

	// 已结算订单静默跳过
	paidOrder, _ := seedPendingOrderWithPayment(t, db, "ORD-20260412-0006", 0, "rosa@example.com")
	if err := db.Model(&models.Order{}).Where("id = ?", paidOrder.ID).Update("status", constants.OrderStatusPaid).Error; err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}
	cancelled, err = svc.CancelIfUnpaid(paidOrder.ID)
	if err != nil {
		t.Fatalf("cancel if unpaid on paid order failed: %v", err)
	}
	if cancelled {
		t.Fatalf("paid order must not be cancelled")
	}

	// 订单不存在也视为跳过
	cancelled, err = svc.CancelIfUnpaid(99999)
	if err != nil || cancelled {
		t.Fatalf("missing order want skip got cancelled=%v err=%v", cancelled, err)
	}
}

func TestGetGuestOrderRequiresEmail(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newOrderServiceForTest(t, db)
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260412-0007", 0, "rosa@example.com")

	found, err := svc.GetGuestOrder(order.OrderNo, "ROSA@example.com")
	if err != nil {
		t.Fatalf("guest lookup with case-insensitive email failed: %v", err)
	}
	if found.ID != order.ID {
		t.Fatalf("guest lookup found wrong order")
	}

	if _, err := svc.GetGuestOrder(order.OrderNo, ""); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("empty email want ErrOrderNotFound got %v", err)
	}
	if _, err := svc.GetGuestOrder(order.OrderNo, "otra@example.com"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("wrong email want ErrOrderNotFound got %v", err)
	}
}
