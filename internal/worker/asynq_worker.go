package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/provider"
	"github.com/tienda-next/internal/queue"
	"github.com/tienda-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskInvoiceGenerate, c.handleInvoiceGenerate)
	mux.HandleFunc(queue.TaskOrderNotifyStatus, c.handleOrderNotifyStatus)
	mux.HandleFunc(queue.TaskOrderTimeoutCancel, c.handleOrderTimeoutCancel)
}

func (c *Consumer) handleInvoiceGenerate(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_invoice_generate_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.InvoiceGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_invoice_generate_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 || payload.PaymentID == 0 {
		logger.Debugw("worker_invoice_generate_skip_invalid_payload", "order_id", payload.OrderID, "payment_id", payload.PaymentID)
		return nil
	}
	if c.InvoiceService == nil {
		logger.Warnw("worker_invoice_generate_skip_service_nil", "order_id", payload.OrderID)
		return nil
	}
	_, err := c.InvoiceService.GenerateForOrder(payload.OrderID, payload.PaymentID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPaymentNotFound):
			logger.Debugw("worker_invoice_generate_skip_payment_not_found", "order_id", payload.OrderID, "payment_id", payload.PaymentID)
			return nil
		case errors.Is(err, service.ErrOrderStatusInvalid):
			logger.Debugw("worker_invoice_generate_skip_unsettled", "order_id", payload.OrderID, "payment_id", payload.PaymentID)
			return nil
		default:
			logger.Warnw("worker_invoice_generate_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleOrderNotifyStatus(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderNotifyStatusPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_notify_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}

	order, err := c.OrderRepo.GetByID(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_notify_fetch_order_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if order == nil {
		logger.Debugw("worker_order_notify_skip_order_not_found", "order_id", payload.OrderID)
		return nil
	}

	var receiverEmail string
	if order.UserID != 0 {
		user, userErr := c.UserRepo.GetByID(order.UserID)
		if userErr != nil {
			logger.Warnw("worker_order_notify_fetch_user_failed", "order_id", order.ID, "user_id", order.UserID, "error", userErr)
			return userErr
		}
		if user != nil {
			receiverEmail = strings.TrimSpace(user.Email)
		}
	} else {
		receiverEmail = strings.TrimSpace(order.GuestEmail)
	}
	if receiverEmail == "" {
		logger.Debugw("worker_order_notify_skip_empty_receiver", "order_id", order.ID, "order_no", order.OrderNo)
		return nil
	}
	if c.EmailService == nil {
		logger.Warnw("worker_order_notify_skip_email_service_nil", "order_id", order.ID)
		return nil
	}

	status := strings.TrimSpace(payload.Status)
	if status == "" {
		status = order.Status
	}
	input := service.OrderStatusEmailInput{
		OrderNo:        order.OrderNo,
		Status:         status,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		DeliveryDate:   order.DeliveryDate,
		DeliveryWindow: order.DeliveryWindow,
		IsGuest:        order.IsGuest(),
	}
	if err := c.EmailService.SendOrderStatusEmail(receiverEmail, input); err != nil {
		switch {
		case errors.Is(err, service.ErrEmailServiceDisabled), errors.Is(err, service.ErrEmailServiceNotConfigured):
			logger.Debugw("worker_order_notify_skip_email_disabled", "order_id", order.ID)
			return nil
		case errors.Is(err, service.ErrInvalidEmail):
			logger.Debugw("worker_order_notify_skip_invalid_email", "order_id", order.ID)
			return nil
		default:
			logger.Warnw("worker_order_notify_send_failed",
				"order_id", order.ID,
				"order_no", order.OrderNo,
				"status", status,
				"error", err,
			)
			return err
		}
	}
	return nil
}

func (c *Consumer) handleOrderTimeoutCancel(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_order_timeout_cancel_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderTimeoutCancelPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_order_timeout_cancel_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_order_timeout_cancel_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if c.OrderService == nil {
		logger.Warnw("worker_order_timeout_cancel_skip_order_service_nil", "order_id", payload.OrderID)
		return nil
	}
	cancelled, err := c.OrderService.CancelIfUnpaid(payload.OrderID)
	if err != nil {
		logger.Warnw("worker_order_timeout_cancel_failed", "order_id", payload.OrderID, "error", err)
		return err
	}
	if cancelled {
		logger.Infow("worker_order_timeout_cancelled", "order_id", payload.OrderID)
	}
	return nil
}
