package service

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const testWebhookSecret = "whsec_test_0123456789"

func newSettlementServiceForTest(t *testing.T, db *gorm.DB, gatewayURL string) *SettlementService {
	t.Helper()
	cfg := &config.Config{}
	cfg.Gateway.BaseURL = gatewayURL
	cfg.Gateway.SecretKey = "sk_test_secret"
	cfg.Gateway.WebhookSecret = testWebhookSecret
	cfg.Gateway.TimeoutSeconds = 2
	return NewSettlementService(
		cfg,
		repository.NewOrderRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewCartRepository(db),
		nil,
	)
}

func seedPendingOrderWithPayment(t *testing.T, db *gorm.DB, orderNo string, userID uint, guestEmail string) (*models.Order, *models.Payment) {
	t.Helper()
	order := &models.Order{
		OrderNo:        orderNo,
		UserID:         userID,
		GuestEmail:     guestEmail,
		Status:         constants.OrderStatusPendingPayment,
		Currency:       constants.SiteCurrencyDefault,
		DeliveryDate:   "2026-04-10",
		DeliveryWindow: constants.DeliveryWindowMorning,
		AddressSnapshot: models.JSON{
			"contact_name": "Rosa Huamán",
			"line1":        "Av. Brasil 540",
		},
		Subtotal:    models.NewMoneyFromDecimal(decimal.NewFromInt(20)),
		TaxAmount:   models.NewMoneyFromDecimal(decimal.RequireFromString("3.60")),
		TotalAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("23.60")),
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	payment := &models.Payment{
		OrderID:        order.ID,
		AmountCentimos: 2360,
		Currency:       order.Currency,
		Status:         constants.PaymentStatusPending,
	}
	if err := db.Create(payment).Error; err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	return order, payment
}

func TestCaptureSuccessSettlesOrder(t *testing.T) {
	db := setupServiceTestDB(t)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/charges" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_secret" {
			t.Errorf("unexpected authorization header %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chr_test_001","outcome":{"type":"venta_exitosa"}}`))
	}))
	defer gateway.Close()

	svc := newSettlementServiceForTest(t, db, gateway.URL)
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260410-0001", 0, "rosa@example.com")

	settled, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test_visa"})
	if err != nil {
		t.Fatalf("capture failed: %v", err)
	}
	if settled.Status != constants.PaymentStatusSucceeded {
		t.Fatalf("payment status want succeeded got %s", settled.Status)
	}
	if settled.GatewayChargeID != "chr_test_001" {
		t.Fatalf("charge id want chr_test_001 got %s", settled.GatewayChargeID)
	}
	if settled.PaidAt == nil {
		t.Fatalf("paid_at should be set")
	}

	var reloaded models.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.Status != constants.OrderStatusPaid {
		t.Fatalf("order status want paid got %s", reloaded.Status)
	}
	if reloaded.PaidAt == nil {
		t.Fatalf("order paid_at should be set")
	}

	var historyCount int64
	db.Model(&models.OrderStatusHistory{}).Where("order_id = ? AND status = ?", order.ID, constants.OrderStatusPaid).Count(&historyCount)
	if historyCount != 1 {
		t.Fatalf("paid history want 1 got %d", historyCount)
	}
	_ = payment
}

func TestCaptureDeclinedKeepsOrderRetryable(t *testing.T) {
	db := setupServiceTestDB(t)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"charge_id":"chr_test_002","decline_code":"card_declined","user_message":"Tarjeta rechazada"}`))
	}))
	defer gateway.Close()

	svc := newSettlementServiceForTest(t, db, gateway.URL)
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260410-0002", 0, "rosa@example.com")

	_, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test_declined"})
	if !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("want ErrPaymentDeclined got %v", err)
	}

	var failed models.Payment
	if err := db.First(&failed, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if failed.Status != constants.PaymentStatusFailed {
		t.Fatalf("payment status want failed got %s", failed.Status)
	}
	if failed.FailureReason != "Tarjeta rechazada" {
		t.Fatalf("failure reason want Tarjeta rechazada got %s", failed.FailureReason)
	}

	// 失败后补开新的待支付记录，订单保持待支付可重试
	pending, err := repository.NewPaymentRepository(db).GetPendingByOrder(order.ID)
	if err != nil {
		t.Fatalf("get pending failed: %v", err)
	}
	if pending == nil || pending.ID == payment.ID {
		t.Fatalf("a fresh pending payment should exist")
	}
	if pending.AmountCentimos != 2360 {
		t.Fatalf("replacement amount want 2360 got %d", pending.AmountCentimos)
	}

	var reloaded models.Order
	if err := db.First(&reloaded, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloaded.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("order should stay pending_payment, got %s", reloaded.Status)
	}
}

func TestCaptureGatewayUnreachableChangesNothing(t *testing.T) {
	db := setupServiceTestDB(t)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	gatewayURL := gateway.URL
	gateway.Close()

	svc := newSettlementServiceForTest(t, db, gatewayURL)
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260410-0003", 0, "rosa@example.com")

	_, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test_timeout"})
	if !errors.Is(err, ErrGatewayUnavailable) {
		t.Fatalf("want ErrGatewayUnavailable got %v", err)
	}

	var reloadedPayment models.Payment
	if err := db.First(&reloadedPayment, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloadedPayment.Status != constants.PaymentStatusPending {
		t.Fatalf("payment must stay pending on transport failure, got %s", reloadedPayment.Status)
	}
	var reloadedOrder models.Order
	if err := db.First(&reloadedOrder, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloadedOrder.Status != constants.OrderStatusPendingPayment {
		t.Fatalf("order must stay pending on transport failure, got %s", reloadedOrder.Status)
	}
}

func TestCaptureInvalidGatewayResponseChangesNothing(t *testing.T) {
	db := setupServiceTestDB(t)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"outcome":{"type":"venta_exitosa"}}`))
	}))
	defer gateway.Close()

	svc := newSettlementServiceForTest(t, db, gateway.URL)
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260410-0004", 0, "rosa@example.com")

	_, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test"})
	if !errors.Is(err, ErrGatewayResponseInvalid) {
		t.Fatalf("want ErrGatewayResponseInvalid got %v", err)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusPending {
		t.Fatalf("payment must stay pending, got %s", reloaded.Status)
	}
	_ = order
}

func TestCaptureRejectsSettledOrder(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260410-0005", 0, "rosa@example.com")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", constants.OrderStatusPaid).Error; err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	_, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test"})
	if !errors.Is(err, ErrOrderAlreadySettled) {
		t.Fatalf("want ErrOrderAlreadySettled got %v", err)
	}
}

func TestCaptureOwnershipMismatch(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260410-0006", 7, "")

	_, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test", RequestingUserID: 8})
	if !errors.Is(err, ErrOrderOwnershipMismatch) {
		t.Fatalf("want ErrOrderOwnershipMismatch got %v", err)
	}
}

func TestCaptureSettledOrderWinsOverOwnership(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	// 已结算优先于归属校验：他人请求已支付订单时不暴露归属信息
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260410-0007", 7, "")
	if err := db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", constants.OrderStatusPaid).Error; err != nil {
		t.Fatalf("mark paid failed: %v", err)
	}

	_, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test", RequestingUserID: 8})
	if !errors.Is(err, ErrOrderAlreadySettled) {
		t.Fatalf("want ErrOrderAlreadySettled got %v", err)
	}
}

func TestCaptureWithoutPendingPayment(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260410-0007", 0, "rosa@example.com")
	if err := db.Model(&models.Payment{}).Where("id = ?", payment.ID).Update("status", constants.PaymentStatusFailed).Error; err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	_, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test"})
	if !errors.Is(err, ErrNoPendingPayment) {
		t.Fatalf("want ErrNoPendingPayment got %v", err)
	}
}

func TestCaptureUnknownOrder(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	_, err := svc.Capture(CaptureInput{OrderNo: "ORD-20260410-9999", TokenID: "tkn_test"})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound got %v", err)
	}
}

func TestCaptureSuccessClearsUserCart(t *testing.T) {
	db := setupServiceTestDB(t)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"chr_test_010","outcome":{"type":"venta_exitosa"}}`))
	}))
	defer gateway.Close()

	svc := newSettlementServiceForTest(t, db, gateway.URL)
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260410-0008", 5, "")
	item := models.CartItem{
		UserID:    5,
		ProductID: 31,
		SKU:       "SKU-31",
		Name:      "Producto",
		Quantity:  1,
		UnitPrice: models.NewMoneyFromDecimal(decimal.NewFromInt(10)),
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("create cart item failed: %v", err)
	}

	if _, err := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test", RequestingUserID: 5}); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	var cartCount int64
	db.Model(&models.CartItem{}).Where("user_id = ?", 5).Count(&cartCount)
	if cartCount != 0 {
		t.Fatalf("cart should be cleared after settlement, got %d items", cartCount)
	}
}

func TestCaptureRacingWebhookSettlesOnce(t *testing.T) {
	db := setupServiceTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// 单连接池让内存 sqlite 在并发写下不报锁冲突，交错仍由调度决定
	sqlDB.SetMaxOpenConns(1)

	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"chr_race_001","outcome":{"type":"venta_exitosa"}}`))
	}))
	defer gateway.Close()
	svc := newSettlementServiceForTest(t, db, gateway.URL)
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260413-0001", 0, "rosa@example.com")

	body, signature := signedWebhookBody(t, fmt.Sprintf(
		`{"type":"charge.succeeded","data":{"id":"chr_race_001","metadata":{"order_number":"%s"}}}`, order.OrderNo))

	var wg sync.WaitGroup
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, capErr := svc.Capture(CaptureInput{OrderNo: order.OrderNo, TokenID: "tkn_test", Email: "rosa@example.com"})
		// 回调先落地时，扣款按已结算或无待支付退出，均不算失败
		if capErr != nil && !errors.Is(capErr, ErrOrderAlreadySettled) && !errors.Is(capErr, ErrNoPendingPayment) {
			t.Errorf("capture failed: %v", capErr)
		}
	}()
	go func() {
		defer wg.Done()
		<-start
		if recErr := svc.Reconcile(body, signature); recErr != nil {
			t.Errorf("reconcile failed: %v", recErr)
		}
	}()
	close(start)
	wg.Wait()

	var reloadedPayment models.Payment
	if err := db.First(&reloadedPayment, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloadedPayment.Status != constants.PaymentStatusSucceeded {
		t.Fatalf("payment status want succeeded got %s", reloadedPayment.Status)
	}

	var reloadedOrder models.Order
	if err := db.First(&reloadedOrder, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloadedOrder.Status != constants.OrderStatusPaid {
		t.Fatalf("order status want paid got %s", reloadedOrder.Status)
	}

	var historyCount int64
	db.Model(&models.OrderStatusHistory{}).Where("order_id = ? AND status = ?", order.ID, constants.OrderStatusPaid).Count(&historyCount)
	if historyCount != 1 {
		t.Fatalf("racing settlement must append exactly one paid history row, got %d", historyCount)
	}
}
