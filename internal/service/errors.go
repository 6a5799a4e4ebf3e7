package service

import "errors"

// 业务错误定义，handler 层据此映射响应码
var (
	// 订单
	ErrOrderNotFound          = errors.New("订单不存在")
	ErrOrderFetchFailed       = errors.New("订单查询失败")
	ErrOrderUpdateFailed      = errors.New("订单更新失败")
	ErrOrderCreateFailed      = errors.New("订单创建失败")
	ErrOrderStatusInvalid     = errors.New("订单状态不允许该操作")
	ErrOrderAlreadySettled    = errors.New("订单已结算")
	ErrOrderOwnershipMismatch = errors.New("订单不属于当前用户")

	// 下单
	ErrEmptyCart            = errors.New("购物车为空")
	ErrCartAmountInvalid    = errors.New("购物车金额不合法")
	ErrOrderAmountInvalid   = errors.New("订单金额不合法")
	ErrGuestContactRequired = errors.New("游客下单需提供联系邮箱")
	ErrAddressInvalid       = errors.New("收货地址不合法")
	ErrAddressNotFound      = errors.New("收货地址不存在")
	ErrSlotUnavailable      = errors.New("配送时段已满")
	ErrSlotInvalid          = errors.New("配送时段不合法")

	// 支付
	ErrNoPendingPayment        = errors.New("订单无待支付记录")
	ErrPaymentNotFound         = errors.New("支付记录不存在")
	ErrPaymentUpdateFailed     = errors.New("支付记录更新失败")
	ErrPaymentDeclined         = errors.New("支付被网关拒绝")
	ErrGatewayUnavailable      = errors.New("支付网关暂不可用")
	ErrGatewayResponseInvalid  = errors.New("支付网关响应异常")
	ErrGatewayConfigInvalid    = errors.New("支付网关配置不合法")
	ErrWebhookSignatureInvalid = errors.New("回调签名校验失败")

	// 认证
	ErrInvalidCredentials = errors.New("用户名或密码错误")
	ErrUserDisabled       = errors.New("账号已停用")
	ErrUserExists         = errors.New("邮箱已注册")
)
