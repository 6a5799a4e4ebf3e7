package constants

// 订单状态常量
const (
	OrderStatusPendingPayment = "pending_payment"
	OrderStatusPaid           = "paid"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPreparing      = "preparing"
	OrderStatusOutForDelivery = "out_for_delivery"
	OrderStatusDelivered      = "delivered"
	OrderStatusCancelled      = "cancelled"
	OrderStatusRefunded       = "refunded"
)

// 支付状态常量
const (
	PaymentStatusPending   = "pending"
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// 配送时段常量
const (
	DeliveryWindowMorning   = "morning"
	DeliveryWindowAfternoon = "afternoon"
)

// 订单号前缀常量
const (
	OrderNumberPrefix = "ORD"
)

// 状态变更操作者常量
const (
	StatusActorSystem  = "system"
	StatusActorBuyer   = "buyer"
	StatusActorGateway = "gateway"
	StatusActorWebhook = "webhook"
	StatusActorAdmin   = "admin"
)

// 网关回调事件类型常量
const (
	GatewayEventChargeSucceeded = "charge.succeeded"
	GatewayEventChargeFailed    = "charge.failed"
	GatewayEventChargeRefunded  = "charge.refunded"
)

// 队列常量
const (
	QueueDefault           = "default"
	TaskInvoiceGenerate    = "invoice:generate"
	TaskOrderNotifyStatus  = "order:notify_status"
	TaskOrderTimeoutCancel = "order:timeout_cancel"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "tn"
)

// 币种常量
const (
	SiteCurrencyDefault = "PEN"
)

// 用户状态常量
const (
	UserStatusActive   = "active"
	UserStatusDisabled = "disabled"
)
