package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/payment/culqi"
	"github.com/tienda-next/internal/queue"
	"github.com/tienda-next/internal/repository"

	"gorm.io/gorm"
)

// SettlementService 支付结算服务
// 负责主动扣款与网关回调对账，两条路径共用同一套落库逻辑保证幂等。
type SettlementService struct {
	cfg         *config.Config
	orderRepo   repository.OrderRepository
	paymentRepo repository.PaymentRepository
	cartRepo    repository.CartRepository
	queueClient *queue.Client
}

// NewSettlementService 创建结算服务实例
func NewSettlementService(
	cfg *config.Config,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	cartRepo repository.CartRepository,
	queueClient *queue.Client,
) *SettlementService {
	return &SettlementService{
		cfg:         cfg,
		orderRepo:   orderRepo,
		paymentRepo: paymentRepo,
		cartRepo:    cartRepo,
		queueClient: queueClient,
	}
}

// CaptureInput 扣款参数
type CaptureInput struct {
	OrderNo          string
	TokenID          string
	Email            string
	RequestingUserID uint
	Context          context.Context
}

func (s *SettlementService) gatewayConfig() (*culqi.Config, error) {
	if s.cfg == nil {
		return nil, ErrGatewayConfigInvalid
	}
	cfg, err := culqi.ParseConfig(s.cfg.Gateway.ToCulqiConfigMap())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayConfigInvalid, err)
	}
	if err := culqi.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayConfigInvalid, err)
	}
	return cfg, nil
}

// Capture 对订单的待支付记录发起扣款
// 扣款金额取落库时的应付金额，不信任调用方传入的金额。
func (s *SettlementService) Capture(input CaptureInput) (*models.Payment, error) {
	orderNo := strings.TrimSpace(input.OrderNo)
	if orderNo == "" || strings.TrimSpace(input.TokenID) == "" {
		return nil, ErrPaymentUpdateFailed
	}

	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPendingPayment {
		return nil, ErrOrderAlreadySettled
	}
	if input.RequestingUserID != 0 && order.UserID != 0 && order.UserID != input.RequestingUserID {
		return nil, ErrOrderOwnershipMismatch
	}

	payment, err := s.paymentRepo.GetPendingByOrder(order.ID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if payment == nil {
		return nil, ErrNoPendingPayment
	}

	gatewayCfg, err := s.gatewayConfig()
	if err != nil {
		return nil, err
	}

	ctx := input.Context
	if ctx == nil {
		ctx = context.Background()
	}
	email := strings.TrimSpace(input.Email)
	if email == "" {
		email = order.GuestEmail
	}

	chargeResult, err := culqi.CreateCharge(ctx, gatewayCfg, culqi.ChargeInput{
		OrderNo:        order.OrderNo,
		AmountCentimos: payment.AmountCentimos,
		Currency:       payment.Currency,
		TokenID:        strings.TrimSpace(input.TokenID),
		Email:          email,
	})
	if err != nil {
		// 通信失败或响应异常时不改动任何状态，等待重试或回调对账
		switch {
		case errors.Is(err, culqi.ErrConfigInvalid):
			return nil, fmt.Errorf("%w: %v", ErrGatewayConfigInvalid, err)
		case errors.Is(err, culqi.ErrResponseInvalid):
			logger.Errorw("gateway_charge_response_invalid", "order_no", order.OrderNo, "error", err)
			return nil, ErrGatewayResponseInvalid
		default:
			logger.Errorw("gateway_charge_request_failed", "order_no", order.OrderNo, "error", err)
			return nil, ErrGatewayUnavailable
		}
	}

	payload := models.JSON{}
	if chargeResult.Raw != nil {
		payload = models.JSON(chargeResult.Raw)
	}

	if chargeResult.Declined {
		if declineErr := s.applyPaymentDeclined(payment.ID, chargeResult.ChargeID, chargeResult.Reason, payload); declineErr != nil {
			return nil, declineErr
		}
		logger.Infow("payment_declined",
			"order_no", order.OrderNo,
			"payment_id", payment.ID,
			"charge_id", chargeResult.ChargeID,
			"reason", chargeResult.Reason,
		)
		return nil, fmt.Errorf("%w: %s", ErrPaymentDeclined, chargeResult.Reason)
	}

	changed, err := s.applyPaymentSucceeded(payment.ID, chargeResult.ChargeID, payload, constants.StatusActorGateway)
	if err != nil {
		return nil, err
	}
	if changed {
		s.afterPaymentSucceeded(order, payment.ID)
	}

	updated, err := s.paymentRepo.GetByID(payment.ID)
	if err != nil || updated == nil {
		return payment, nil
	}
	return updated, nil
}

// applyPaymentDeclined 标记支付失败并补开新的待支付记录，订单保持待支付可重试
func (s *SettlementService) applyPaymentDeclined(paymentID uint, chargeID, reason string, payload models.JSON) error {
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		payment, lockErr := paymentRepo.GetByIDForUpdate(paymentID)
		if lockErr != nil {
			return lockErr
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if payment.Status != constants.PaymentStatusPending {
			// 已被回调或并发请求处理过
			return nil
		}

		payment.Status = constants.PaymentStatusFailed
		payment.FailureReason = reason
		payment.GatewayChargeID = chargeID
		if len(payload) > 0 {
			payment.ProviderPayload = payload
		}
		if updateErr := paymentRepo.Update(payment); updateErr != nil {
			return updateErr
		}

		replacement := &models.Payment{
			OrderID:        payment.OrderID,
			AmountCentimos: payment.AmountCentimos,
			Currency:       payment.Currency,
			Status:         constants.PaymentStatusPending,
		}
		return paymentRepo.Create(replacement)
	})
	if err != nil {
		logger.Errorw("payment_decline_persist_failed", "payment_id", paymentID, "error", err)
		return ErrPaymentUpdateFailed
	}
	return nil
}

// applyPaymentSucceeded 支付成功落库（扣款与回调共用，幂等）
// 返回 changed=false 表示该支付此前已成功，本次不做任何改动。
func (s *SettlementService) applyPaymentSucceeded(paymentID uint, chargeID string, payload models.JSON, actor string) (bool, error) {
	changed := false
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		payment, lockErr := paymentRepo.GetByIDForUpdate(paymentID)
		if lockErr != nil {
			return lockErr
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if payment.Status == constants.PaymentStatusSucceeded {
			return nil
		}
		if payment.Status != constants.PaymentStatusPending {
			logger.Warnw("payment_success_on_unexpected_status",
				"payment_id", payment.ID,
				"status", payment.Status,
				"charge_id", chargeID,
			)
			return nil
		}

		now := time.Now()
		payment.Status = constants.PaymentStatusSucceeded
		payment.GatewayChargeID = chargeID
		payment.FailureReason = ""
		payment.PaidAt = &now
		if len(payload) > 0 {
			payment.ProviderPayload = payload
		}
		if updateErr := paymentRepo.Update(payment); updateErr != nil {
			return updateErr
		}

		orderRepo := s.orderRepo.WithTx(tx)
		order, orderErr := orderRepo.GetByIDForUpdate(payment.OrderID)
		if orderErr != nil {
			return orderErr
		}
		if order == nil {
			return ErrOrderNotFound
		}
		if order.Status != constants.OrderStatusPendingPayment {
			logger.Warnw("payment_success_on_settled_order",
				"order_id", order.ID,
				"order_status", order.Status,
				"payment_id", payment.ID,
			)
			changed = true
			return nil
		}

		if updateErr := orderRepo.UpdateStatus(order.ID, constants.OrderStatusPaid, map[string]interface{}{
			"paid_at": now,
		}); updateErr != nil {
			return updateErr
		}
		if historyErr := orderRepo.AppendStatusHistory(&models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    constants.OrderStatusPaid,
			ChangedBy: actor,
			Note:      fmt.Sprintf("支付成功，流水号 %s", chargeID),
		}); historyErr != nil {
			return historyErr
		}
		changed = true
		return nil
	})
	if err != nil {
		logger.Errorw("payment_success_persist_failed", "payment_id", paymentID, "error", err)
		return false, ErrPaymentUpdateFailed
	}
	return changed, nil
}

// afterPaymentSucceeded 支付成功后的旁路动作：清空购物车、推送异步任务
func (s *SettlementService) afterPaymentSucceeded(order *models.Order, paymentID uint) {
	if order.UserID != 0 {
		if err := s.cartRepo.ClearByUser(order.UserID); err != nil {
			logger.Warnw("cart_clear_failed", "user_id", order.UserID, "order_id", order.ID, "error", err)
		}
	}
	if s.queueClient == nil || !s.queueClient.Enabled() {
		return
	}
	if err := s.queueClient.EnqueueInvoiceGenerate(queue.InvoiceGeneratePayload{
		OrderID:   order.ID,
		PaymentID: paymentID,
	}); err != nil {
		logger.Warnw("invoice_task_enqueue_failed", "order_id", order.ID, "error", err)
	}
	if err := s.queueClient.EnqueueOrderNotifyStatus(queue.OrderNotifyStatusPayload{
		OrderID: order.ID,
		Status:  constants.OrderStatusPaid,
	}); err != nil {
		logger.Warnw("order_notify_enqueue_failed", "order_id", order.ID, "error", err)
	}
}
