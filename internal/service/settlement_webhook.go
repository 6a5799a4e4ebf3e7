package service

import (
	"time"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/payment/culqi"

	"gorm.io/gorm"
)

// Reconcile 处理网关回调
// 只有签名不合法才拒绝；签名通过后无法理解或无法匹配的事件记录日志并吸收，
// 避免网关对瞬时状态反复重投。
func (s *SettlementService) Reconcile(body []byte, signature string) error {
	gatewayCfg, err := s.gatewayConfig()
	if err != nil {
		return err
	}
	if err := culqi.VerifyWebhook(gatewayCfg, body, signature); err != nil {
		logger.Warnw("webhook_signature_invalid", "error", err)
		return ErrWebhookSignatureInvalid
	}

	event, err := culqi.ParseWebhookEvent(body)
	if err != nil {
		logger.Warnw("webhook_payload_unparsable", "error", err)
		return nil
	}

	switch event.Type {
	case constants.GatewayEventChargeSucceeded:
		return s.reconcileChargeSucceeded(event)
	case constants.GatewayEventChargeFailed:
		return s.reconcileChargeFailed(event)
	case constants.GatewayEventChargeRefunded:
		return s.reconcileChargeRefunded(event)
	default:
		logger.Infow("webhook_event_ignored", "type", event.Type, "charge_id", event.ChargeID)
		return nil
	}
}

// resolvePaymentForEvent 定位回调事件对应的支付记录
// 优先按流水号匹配；主动扣款超时等场景下流水号未落库，退回按订单号找待支付记录。
func (s *SettlementService) resolvePaymentForEvent(event *culqi.WebhookEvent) (*models.Payment, error) {
	if event.ChargeID != "" {
		payment, err := s.paymentRepo.GetLatestByChargeID(event.ChargeID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}
	if event.OrderNo == "" {
		return nil, nil
	}
	order, err := s.orderRepo.GetByOrderNo(event.OrderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, nil
	}
	return s.paymentRepo.GetPendingByOrder(order.ID)
}

func (s *SettlementService) reconcileChargeSucceeded(event *culqi.WebhookEvent) error {
	payment, err := s.resolvePaymentForEvent(event)
	if err != nil {
		logger.Errorw("webhook_payment_lookup_failed", "charge_id", event.ChargeID, "error", err)
		return ErrPaymentUpdateFailed
	}
	if payment == nil {
		logger.Warnw("webhook_payment_not_matched", "type", event.Type, "charge_id", event.ChargeID, "order_no", event.OrderNo)
		return nil
	}
	if payment.Status == constants.PaymentStatusSucceeded {
		logger.Infow("webhook_replay_ignored", "payment_id", payment.ID, "charge_id", event.ChargeID)
		return nil
	}

	payload := models.JSON{}
	if event.Raw != nil {
		payload = models.JSON(event.Raw)
	}
	changed, err := s.applyPaymentSucceeded(payment.ID, event.ChargeID, payload, constants.StatusActorWebhook)
	if err != nil {
		return err
	}
	if changed {
		order, orderErr := s.orderRepo.GetByID(payment.OrderID)
		if orderErr == nil && order != nil {
			s.afterPaymentSucceeded(order, payment.ID)
		}
		logger.Infow("webhook_payment_settled", "payment_id", payment.ID, "charge_id", event.ChargeID)
	}
	return nil
}

func (s *SettlementService) reconcileChargeFailed(event *culqi.WebhookEvent) error {
	payment, err := s.resolvePaymentForEvent(event)
	if err != nil {
		logger.Errorw("webhook_payment_lookup_failed", "charge_id", event.ChargeID, "error", err)
		return ErrPaymentUpdateFailed
	}
	if payment == nil {
		logger.Warnw("webhook_payment_not_matched", "type", event.Type, "charge_id", event.ChargeID, "order_no", event.OrderNo)
		return nil
	}

	// 回调失败只记录结果，不补开新的待支付记录（重试由买家主动发起）
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		locked, lockErr := paymentRepo.GetByIDForUpdate(payment.ID)
		if lockErr != nil {
			return lockErr
		}
		if locked == nil || locked.Status != constants.PaymentStatusPending {
			return nil
		}
		locked.Status = constants.PaymentStatusFailed
		locked.FailureReason = event.FailureReason
		locked.GatewayChargeID = event.ChargeID
		if event.Raw != nil {
			locked.ProviderPayload = models.JSON(event.Raw)
		}
		return paymentRepo.Update(locked)
	})
	if err != nil {
		logger.Errorw("webhook_failure_persist_failed", "payment_id", payment.ID, "error", err)
		return ErrPaymentUpdateFailed
	}
	return nil
}

func (s *SettlementService) reconcileChargeRefunded(event *culqi.WebhookEvent) error {
	payment, err := s.resolvePaymentForEvent(event)
	if err != nil {
		logger.Errorw("webhook_payment_lookup_failed", "charge_id", event.ChargeID, "error", err)
		return ErrPaymentUpdateFailed
	}
	if payment == nil {
		logger.Warnw("webhook_payment_not_matched", "type", event.Type, "charge_id", event.ChargeID, "order_no", event.OrderNo)
		return nil
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		paymentRepo := s.paymentRepo.WithTx(tx)
		locked, lockErr := paymentRepo.GetByIDForUpdate(payment.ID)
		if lockErr != nil {
			return lockErr
		}
		if locked == nil || locked.Status != constants.PaymentStatusSucceeded {
			// 未成功的支付谈不上退款，记录后吸收
			logger.Warnw("webhook_refund_on_unsettled_payment", "payment_id", payment.ID, "charge_id", event.ChargeID)
			return nil
		}

		now := time.Now()
		locked.Status = constants.PaymentStatusRefunded
		locked.RefundedAt = &now
		if event.Raw != nil {
			locked.ProviderPayload = models.JSON(event.Raw)
		}
		if updateErr := paymentRepo.Update(locked); updateErr != nil {
			return updateErr
		}

		orderRepo := s.orderRepo.WithTx(tx)
		order, orderErr := orderRepo.GetByIDForUpdate(locked.OrderID)
		if orderErr != nil {
			return orderErr
		}
		if order == nil || order.Status == constants.OrderStatusRefunded {
			return nil
		}
		if updateErr := orderRepo.UpdateStatus(order.ID, constants.OrderStatusRefunded, nil); updateErr != nil {
			return updateErr
		}
		return orderRepo.AppendStatusHistory(&models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    constants.OrderStatusRefunded,
			ChangedBy: constants.StatusActorWebhook,
			Note:      "网关退款回调",
		})
	})
	if err != nil {
		logger.Errorw("webhook_refund_persist_failed", "payment_id", payment.ID, "error", err)
		return ErrPaymentUpdateFailed
	}
	logger.Infow("webhook_payment_refunded", "payment_id", payment.ID, "charge_id", event.ChargeID)
	return nil
}
