package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupOrderRepositoryTest(t *testing.T) (*GormOrderRepository, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:order_repo_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Order{},
		&models.OrderLine{},
		&models.OrderStatusHistory{},
		&models.Payment{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return NewOrderRepository(db), db
}

func seedOrderForTest(t *testing.T, repo *GormOrderRepository, orderNo string, userID uint, guestEmail, status, contactName string) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNo:        orderNo,
		UserID:         userID,
		GuestEmail:     guestEmail,
		Status:         status,
		Currency:       constants.SiteCurrencyDefault,
		DeliveryDate:   "2026-03-15",
		DeliveryWindow: constants.DeliveryWindowMorning,
		AddressSnapshot: models.JSON{
			"contact_name":  contactName,
			"contact_phone": "+51 900 000 000",
			"line1":         "Av. Principal 100",
		},
		Subtotal:    models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		TaxAmount:   models.NewMoneyFromDecimal(decimal.RequireFromString("3.60")),
		TotalAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("23.60")),
	}
	lines := []models.OrderLine{{
		ProductID: 1,
		SKU:       "SKU-1",
		Name:      "Producto de prueba",
		Quantity:  2,
		UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
		TaxRate:   models.Money{Decimal: decimal.RequireFromString("0.18")},
		LineTotal: models.NewLineAmount(decimal.RequireFromString("23.60")),
	}}
	if err := repo.Create(order, lines); err != nil {
		t.Fatalf("create order %s failed: %v", orderNo, err)
	}
	return order
}

func TestOrderRepositoryCreateAssignsLineOrderID(t *testing.T) {
	repo, db := setupOrderRepositoryTest(t)
	order := seedOrderForTest(t, repo, "ORD-20260315-0001", 1, "", constants.OrderStatusPendingPayment, "Ana Torres")

	var lines []models.OrderLine
	if err := db.Where("order_id = ?", order.ID).Find(&lines).Error; err != nil {
		t.Fatalf("load lines failed: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("lines want 1 got %d", len(lines))
	}
}

func TestOrderRepositoryGetByOrderNoAndGuest(t *testing.T) {
	repo, _ := setupOrderRepositoryTest(t)
	seedOrderForTest(t, repo, "ORD-20260315-0002", 0, "rosa@example.com", constants.OrderStatusPendingPayment, "Rosa Huamán")

	order, err := repo.GetByOrderNoAndGuest("ORD-20260315-0002", "rosa@example.com")
	if err != nil {
		t.Fatalf("guest lookup failed: %v", err)
	}
	if order == nil {
		t.Fatalf("guest lookup should find order")
	}

	// 邮箱不匹配时不返回订单
	order, err = repo.GetByOrderNoAndGuest("ORD-20260315-0002", "otra@example.com")
	if err != nil {
		t.Fatalf("guest lookup with wrong email failed: %v", err)
	}
	if order != nil {
		t.Fatalf("guest lookup with wrong email should return nil")
	}
}

func TestOrderRepositoryListByUserFiltersStatus(t *testing.T) {
	repo, _ := setupOrderRepositoryTest(t)
	seedOrderForTest(t, repo, "ORD-20260315-0003", 9, "", constants.OrderStatusPendingPayment, "Ana Torres")
	seedOrderForTest(t, repo, "ORD-20260315-0004", 9, "", constants.OrderStatusPaid, "Ana Torres")
	seedOrderForTest(t, repo, "ORD-20260315-0005", 8, "", constants.OrderStatusPaid, "Luis Vega")

	orders, total, err := repo.ListByUser(OrderListFilter{Page: 1, PageSize: 10, UserID: 9, Status: constants.OrderStatusPaid})
	if err != nil {
		t.Fatalf("list by user failed: %v", err)
	}
	if total != 1 || len(orders) != 1 {
		t.Fatalf("list by user want 1 got total=%d len=%d", total, len(orders))
	}
	if orders[0].OrderNo != "ORD-20260315-0004" {
		t.Fatalf("list by user matched wrong order: %s", orders[0].OrderNo)
	}
}

func TestOrderRepositoryListAdminSearchesAddressSnapshot(t *testing.T) {
	repo, _ := setupOrderRepositoryTest(t)
	seedOrderForTest(t, repo, "ORD-20260315-0006", 0, "rosa@example.com", constants.OrderStatusPendingPayment, "Rosa Huamán")
	seedOrderForTest(t, repo, "ORD-20260315-0007", 3, "", constants.OrderStatusPaid, "Pedro Salas")

	orders, total, err := repo.ListAdmin(OrderListFilter{Page: 1, PageSize: 10, Search: "Pedro"})
	if err != nil {
		t.Fatalf("admin search failed: %v", err)
	}
	if total != 1 || len(orders) != 1 {
		t.Fatalf("admin search want 1 got total=%d len=%d", total, len(orders))
	}
	if orders[0].OrderNo != "ORD-20260315-0007" {
		t.Fatalf("admin search matched wrong order: %s", orders[0].OrderNo)
	}

	orders, total, err = repo.ListAdmin(OrderListFilter{Page: 1, PageSize: 10, Search: "rosa@"})
	if err != nil {
		t.Fatalf("admin search by email failed: %v", err)
	}
	if total != 1 || orders[0].OrderNo != "ORD-20260315-0006" {
		t.Fatalf("admin search by email want ORD-20260315-0006 got total=%d", total)
	}
}

func TestOrderRepositoryUpdateStatusAndHistory(t *testing.T) {
	repo, _ := setupOrderRepositoryTest(t)
	order := seedOrderForTest(t, repo, "ORD-20260315-0008", 2, "", constants.OrderStatusPendingPayment, "Ana Torres")

	now := time.Now()
	if err := repo.UpdateStatus(order.ID, constants.OrderStatusPaid, map[string]interface{}{"paid_at": now}); err != nil {
		t.Fatalf("update status failed: %v", err)
	}
	if err := repo.AppendStatusHistory(&models.OrderStatusHistory{
		OrderID:   order.ID,
		Status:    constants.OrderStatusPaid,
		ChangedBy: constants.StatusActorGateway,
	}); err != nil {
		t.Fatalf("append history failed: %v", err)
	}

	updated, err := repo.GetByID(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if updated.Status != constants.OrderStatusPaid {
		t.Fatalf("status want paid got %s", updated.Status)
	}
	if updated.PaidAt == nil {
		t.Fatalf("paid_at should be set")
	}

	count, err := repo.CountStatusHistory(order.ID)
	if err != nil {
		t.Fatalf("count history failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("history count want 1 got %d", count)
	}
}
