package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/queue"
	"github.com/tienda-next/internal/repository"

	"gorm.io/gorm"
)

// OrderService 订单生命周期服务
type OrderService struct {
	orderRepo   repository.OrderRepository
	slotRepo    repository.DeliverySlotRepository
	queueClient *queue.Client
}

// NewOrderService 创建订单服务实例
func NewOrderService(
	orderRepo repository.OrderRepository,
	slotRepo repository.DeliverySlotRepository,
	queueClient *queue.Client,
) *OrderService {
	return &OrderService{
		orderRepo:   orderRepo,
		slotRepo:    slotRepo,
		queueClient: queueClient,
	}
}

// TransitionOrder 执行订单状态迁移
// 迁移表之外的目标状态一律拒绝；取消订单时同步释放配送时段容量。
func (s *OrderService) TransitionOrder(orderID uint, target, actor, note string) (*models.Order, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	if !isValidOrderStatus(target) {
		return nil, fmt.Errorf("%w: 未知状态 %s", ErrOrderStatusInvalid, target)
	}

	var current string
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		order, lockErr := orderRepo.GetByIDForUpdate(orderID)
		if lockErr != nil {
			return lockErr
		}
		if order == nil {
			return ErrOrderNotFound
		}
		current = order.Status
		if !isTransitionAllowed(order.Status, target) {
			return ErrOrderStatusInvalid
		}

		now := time.Now()
		updates := map[string]interface{}{}
		switch target {
		case constants.OrderStatusPaid:
			updates["paid_at"] = now
		case constants.OrderStatusCancelled:
			updates["canceled_at"] = now
		}
		if updateErr := orderRepo.UpdateStatus(order.ID, target, updates); updateErr != nil {
			return updateErr
		}
		if historyErr := orderRepo.AppendStatusHistory(&models.OrderStatusHistory{
			OrderID:   order.ID,
			Status:    target,
			ChangedBy: actor,
			Note:      note,
		}); historyErr != nil {
			return historyErr
		}

		if target == constants.OrderStatusCancelled {
			if _, releaseErr := s.slotRepo.WithTx(tx).Release(order.DeliveryDate, order.DeliveryWindow); releaseErr != nil {
				return releaseErr
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrOrderStatusInvalid) {
			return nil, err
		}
		logger.Errorw("order_transition_failed",
			"order_id", orderID,
			"from", current,
			"to", target,
			"error", err,
		)
		return nil, ErrOrderUpdateFailed
	}

	logger.Infow("order_status_changed",
		"order_id", orderID,
		"from", current,
		"to", target,
		"actor", actor,
	)
	s.enqueueStatusNotify(orderID, target)

	return s.orderRepo.GetByID(orderID)
}

// CancelByBuyer 买家取消订单（仅限未支付订单）
func (s *OrderService) CancelByBuyer(order *models.Order) (*models.Order, error) {
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusPendingPayment {
		return nil, ErrOrderStatusInvalid
	}
	return s.TransitionOrder(order.ID, constants.OrderStatusCancelled, constants.StatusActorBuyer, "买家取消")
}

// CancelIfUnpaid 超时自动取消（worker 调用）
// 订单已不在待支付状态时静默跳过。
func (s *OrderService) CancelIfUnpaid(orderID uint) (bool, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return false, err
	}
	if order == nil || order.Status != constants.OrderStatusPendingPayment {
		return false, nil
	}
	_, err = s.TransitionOrder(orderID, constants.OrderStatusCancelled, constants.StatusActorSystem, "支付超时自动取消")
	if err != nil {
		// 与支付成功并发时迁移会被拒绝，视为跳过
		if errors.Is(err, ErrOrderStatusInvalid) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetUserOrder 查询用户自己的订单详情
func (s *OrderService) GetUserOrder(orderNo string, userID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNoAndUser(strings.TrimSpace(orderNo), userID)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetGuestOrder 查询游客订单详情（订单号 + 下单邮箱双因子）
func (s *OrderService) GetGuestOrder(orderNo, email string) (*models.Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrOrderNotFound
	}
	order, err := s.orderRepo.GetByOrderNoAndGuest(strings.TrimSpace(orderNo), email)
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// ListUserOrders 用户订单列表
func (s *OrderService) ListUserOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListByUser(filter)
}

// ListAdminOrders 管理端订单列表
func (s *OrderService) ListAdminOrders(filter repository.OrderListFilter) ([]models.Order, int64, error) {
	return s.orderRepo.ListAdmin(filter)
}

// GetAdminOrder 管理端订单详情
func (s *OrderService) GetAdminOrder(orderNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(strings.TrimSpace(orderNo))
	if err != nil {
		return nil, ErrOrderFetchFailed
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// enqueueStatusNotify 推送状态通知任务，失败只记日志
func (s *OrderService) enqueueStatusNotify(orderID uint, status string) {
	if s.queueClient == nil || !s.queueClient.Enabled() {
		return
	}
	if err := s.queueClient.EnqueueOrderNotifyStatus(queue.OrderNotifyStatusPayload{
		OrderID: orderID,
		Status:  status,
	}); err != nil {
		logger.Warnw("order_notify_enqueue_failed", "order_id", orderID, "status", status, "error", err)
	}
}
