package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/payment/culqi"
)

func signedWebhookBody(t *testing.T, body string) ([]byte, string) {
	t.Helper()
	raw := []byte(body)
	return raw, culqi.ComputeSignature(testWebhookSecret, raw)
}

func TestReconcileRejectsBadSignature(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	body := []byte(`{"type":"charge.succeeded","data":{"id":"chr_ws_001"}}`)
	err := svc.Reconcile(body, "deadbeef")
	if !errors.Is(err, ErrWebhookSignatureInvalid) {
		t.Fatalf("want ErrWebhookSignatureInvalid got %v", err)
	}
	err = svc.Reconcile(body, "")
	if !errors.Is(err, ErrWebhookSignatureInvalid) {
		t.Fatalf("want ErrWebhookSignatureInvalid for empty signature got %v", err)
	}
}

func TestReconcileChargeSucceededSettlesByOrderNo(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260411-0001", 0, "rosa@example.com")

	// 主动扣款超时场景：流水号未落库，事件按 metadata 订单号回落匹配
	body, signature := signedWebhookBody(t, fmt.Sprintf(
		`{"type":"charge.succeeded","data":{"id":"chr_ws_100","metadata":{"order_number":"%s"}}}`, order.OrderNo))
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	var reloadedPayment models.Payment
	if err := db.First(&reloadedPayment, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloadedPayment.Status != constants.PaymentStatusSucceeded {
		t.Fatalf("payment status want succeeded got %s", reloadedPayment.Status)
	}
	if reloadedPayment.GatewayChargeID != "chr_ws_100" {
		t.Fatalf("charge id want chr_ws_100 got %s", reloadedPayment.GatewayChargeID)
	}

	var reloadedOrder models.Order
	if err := db.First(&reloadedOrder, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloadedOrder.Status != constants.OrderStatusPaid {
		t.Fatalf("order status want paid got %s", reloadedOrder.Status)
	}
}

func TestReconcileReplayIsIdempotent(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")
	order, _ := seedPendingOrderWithPayment(t, db, "ORD-20260411-0002", 0, "rosa@example.com")

	body, signature := signedWebhookBody(t, fmt.Sprintf(
		`{"type":"charge.succeeded","data":{"id":"chr_ws_200","metadata":{"order_number":"%s"}}}`, order.OrderNo))
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	// 网关重投同一事件
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("replay reconcile failed: %v", err)
	}

	var historyCount int64
	db.Model(&models.OrderStatusHistory{}).Where("order_id = ? AND status = ?", order.ID, constants.OrderStatusPaid).Count(&historyCount)
	if historyCount != 1 {
		t.Fatalf("replay must not duplicate history, want 1 got %d", historyCount)
	}
}

func TestReconcileChargeFailedDoesNotOpenReplacement(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260411-0003", 0, "rosa@example.com")

	body, signature := signedWebhookBody(t, fmt.Sprintf(
		`{"type":"charge.failed","data":{"id":"chr_ws_300","failure_message":"fondos insuficientes","metadata":{"order_number":"%s"}}}`, order.OrderNo))
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusFailed {
		t.Fatalf("payment status want failed got %s", reloaded.Status)
	}
	if reloaded.FailureReason != "fondos insuficientes" {
		t.Fatalf("failure reason want fondos insuficientes got %s", reloaded.FailureReason)
	}

	// 回调失败不补开待支付记录，重试由买家主动发起
	var paymentCount int64
	db.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&paymentCount)
	if paymentCount != 1 {
		t.Fatalf("charge.failed must not create replacement, want 1 got %d", paymentCount)
	}
}

func TestReconcileChargeRefunded(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260411-0004", 0, "rosa@example.com")

	// 先通过成功回调结算
	body, signature := signedWebhookBody(t, fmt.Sprintf(
		`{"type":"charge.succeeded","data":{"id":"chr_ws_400","metadata":{"order_number":"%s"}}}`, order.OrderNo))
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("settle reconcile failed: %v", err)
	}

	body, signature = signedWebhookBody(t, `{"type":"charge.refunded","data":{"id":"chr_ws_400"}}`)
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("refund reconcile failed: %v", err)
	}

	var reloadedPayment models.Payment
	if err := db.First(&reloadedPayment, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloadedPayment.Status != constants.PaymentStatusRefunded {
		t.Fatalf("payment status want refunded got %s", reloadedPayment.Status)
	}
	if reloadedPayment.RefundedAt == nil {
		t.Fatalf("refunded_at should be set")
	}

	var reloadedOrder models.Order
	if err := db.First(&reloadedOrder, order.ID).Error; err != nil {
		t.Fatalf("reload order failed: %v", err)
	}
	if reloadedOrder.Status != constants.OrderStatusRefunded {
		t.Fatalf("order status want refunded got %s", reloadedOrder.Status)
	}
}

func TestReconcileRefundOnUnsettledPaymentIsAbsorbed(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")
	order, payment := seedPendingOrderWithPayment(t, db, "ORD-20260411-0005", 0, "rosa@example.com")

	body, signature := signedWebhookBody(t, fmt.Sprintf(
		`{"type":"charge.refunded","data":{"id":"chr_ws_500","metadata":{"order_number":"%s"}}}`, order.OrderNo))
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("reconcile should absorb refund on unsettled payment, got %v", err)
	}

	var reloaded models.Payment
	if err := db.First(&reloaded, payment.ID).Error; err != nil {
		t.Fatalf("reload payment failed: %v", err)
	}
	if reloaded.Status != constants.PaymentStatusPending {
		t.Fatalf("payment should stay pending, got %s", reloaded.Status)
	}
}

func TestReconcileUnknownEventIsAbsorbed(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	body, signature := signedWebhookBody(t, `{"type":"subscription.created","data":{"id":"sub_001"}}`)
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("unknown event should be absorbed, got %v", err)
	}
}

func TestReconcileUnmatchedEventIsAbsorbed(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	body, signature := signedWebhookBody(t, `{"type":"charge.succeeded","data":{"id":"chr_ws_999","metadata":{"order_number":"ORD-20260411-9999"}}}`)
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("unmatched event should be absorbed, got %v", err)
	}
}

func TestReconcileUnparsableBodyIsAbsorbed(t *testing.T) {
	db := setupServiceTestDB(t)
	svc := newSettlementServiceForTest(t, db, "http://gateway.invalid")

	body, signature := signedWebhookBody(t, `not-json`)
	if err := svc.Reconcile(body, signature); err != nil {
		t.Fatalf("unparsable body with valid signature should be absorbed, got %v", err)
	}
}
