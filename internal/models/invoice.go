package models

import (
	"time"
)

// Invoice 发票记录（支付成功后由异步任务生成，每单至多一张）
type Invoice struct {
	ID             uint      `gorm:"primarykey" json:"id"`                   // 主键
	InvoiceNo      string    `gorm:"uniqueIndex;not null" json:"invoice_no"` // 发票编号
	OrderID        uint      `gorm:"uniqueIndex;not null" json:"order_id"`   // 订单ID
	PaymentID      uint      `gorm:"index;not null" json:"payment_id"`       // 支付记录ID
	AmountCentimos int64     `gorm:"not null" json:"amount_centimos"`        // 开票金额（最小货币单位）
	Currency       string    `gorm:"not null" json:"currency"`               // 币种
	IssuedAt       time.Time `gorm:"index;not null" json:"issued_at"`        // 开票时间
	CreatedAt      time.Time `gorm:"index" json:"created_at"`                // 创建时间
	UpdatedAt      time.Time `gorm:"index" json:"updated_at"`                // 更新时间
}

// TableName 指定表名
func (Invoice) TableName() string {
	return "invoices"
}
