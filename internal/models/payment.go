package models

import (
	"time"
)

// Payment 支付记录
// 一个订单可以累计多条支付记录（每次失败的尝试保留原记录并新建一条 pending），
// 但任一时刻每个订单至多存在一条 pending 记录。
type Payment struct {
	ID                uint       `gorm:"primarykey" json:"id"`                        // 主键
	OrderID           uint       `gorm:"index;not null" json:"order_id"`              // 订单ID
	AmountCentimos    int64      `gorm:"not null" json:"amount_centimos"`             // 支付金额（分，最小货币单位）
	Currency          string     `gorm:"not null" json:"currency"`                    // 币种
	Status            string     `gorm:"index;not null" json:"status"`                // 支付状态
	GatewayPreOrderID string     `gorm:"index" json:"gateway_pre_order_id,omitempty"` // 网关预下单ID（预授权成功才写入）
	GatewayChargeID   string     `gorm:"index" json:"gateway_charge_id,omitempty"`    // 网关扣款流水号
	FailureReason     string     `gorm:"type:text" json:"failure_reason,omitempty"`   // 失败原因
	ProviderPayload   JSON       `gorm:"type:json" json:"provider_payload,omitempty"` // 网关原始应答数据
	PaidAt            *time.Time `gorm:"index" json:"paid_at"`                        // 成功时间
	RefundedAt        *time.Time `gorm:"index" json:"refunded_at"`                    // 退款时间
	CreatedAt         time.Time  `gorm:"index" json:"created_at"`                     // 创建时间
	UpdatedAt         time.Time  `gorm:"index" json:"updated_at"`                     // 更新时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
