package queue

import (
	"encoding/json"

	"github.com/tienda-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskInvoiceGenerate 发票生成任务
	TaskInvoiceGenerate = constants.TaskInvoiceGenerate
	// TaskOrderNotifyStatus 订单状态通知任务
	TaskOrderNotifyStatus = constants.TaskOrderNotifyStatus
	// TaskOrderTimeoutCancel 超时取消任务
	TaskOrderTimeoutCancel = constants.TaskOrderTimeoutCancel
)

// InvoiceGeneratePayload 发票生成任务载荷
type InvoiceGeneratePayload struct {
	OrderID   uint `json:"order_id"`
	PaymentID uint `json:"payment_id"`
}

// OrderNotifyStatusPayload 订单状态通知任务载荷
type OrderNotifyStatusPayload struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
}

// OrderTimeoutCancelPayload 超时取消任务载荷
type OrderTimeoutCancelPayload struct {
	OrderID uint `json:"order_id"`
}

// NewInvoiceGenerateTask 创建发票生成任务
func NewInvoiceGenerateTask(payload InvoiceGeneratePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInvoiceGenerate, body), nil
}

// NewOrderNotifyStatusTask 创建订单状态通知任务
func NewOrderNotifyStatusTask(payload OrderNotifyStatusPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderNotifyStatus, body), nil
}

// NewOrderTimeoutCancelTask 创建超时取消任务
func NewOrderTimeoutCancelTask(payload OrderTimeoutCancelPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderTimeoutCancel, body), nil
}
