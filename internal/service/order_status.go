package service

import (
	"strings"

	"github.com/tienda-next/internal/constants"
)

// allowedTransitions 订单状态迁移表
// 终态（delivered/cancelled/refunded）不在表内，任何迁移都会被拒绝。
var allowedTransitions = map[string]map[string]bool{
	constants.OrderStatusPendingPayment: {
		constants.OrderStatusPaid:      true,
		constants.OrderStatusCancelled: true,
		constants.OrderStatusRefunded:  true,
	},
	constants.OrderStatusPaid: {
		constants.OrderStatusConfirmed: true,
		constants.OrderStatusCancelled: true,
		constants.OrderStatusRefunded:  true,
	},
	constants.OrderStatusConfirmed: {
		constants.OrderStatusPreparing: true,
		constants.OrderStatusCancelled: true,
		constants.OrderStatusRefunded:  true,
	},
	constants.OrderStatusPreparing: {
		constants.OrderStatusOutForDelivery: true,
		constants.OrderStatusCancelled:      true,
		constants.OrderStatusRefunded:       true,
	},
	constants.OrderStatusOutForDelivery: {
		constants.OrderStatusDelivered: true,
		constants.OrderStatusCancelled: true,
		constants.OrderStatusRefunded:  true,
	},
}

// isTransitionAllowed 判断状态迁移是否合法
func isTransitionAllowed(current, target string) bool {
	current = strings.ToLower(strings.TrimSpace(current))
	target = strings.ToLower(strings.TrimSpace(target))
	if current == "" || target == "" || current == target {
		return false
	}
	targets, ok := allowedTransitions[current]
	if !ok {
		return false
	}
	return targets[target]
}

// isValidOrderStatus 判断是否为已知订单状态
func isValidOrderStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case constants.OrderStatusPendingPayment,
		constants.OrderStatusPaid,
		constants.OrderStatusConfirmed,
		constants.OrderStatusPreparing,
		constants.OrderStatusOutForDelivery,
		constants.OrderStatusDelivered,
		constants.OrderStatusCancelled,
		constants.OrderStatusRefunded:
		return true
	}
	return false
}
