package models

import (
	"time"
)

// OrderStatusHistory 订单状态变更记录（只追加，不修改不删除）
type OrderStatusHistory struct {
	ID        uint      `gorm:"primarykey" json:"id"`                        // 主键
	OrderID   uint      `gorm:"index;not null" json:"order_id"`              // 订单ID
	Status    string    `gorm:"not null" json:"status"`                      // 变更后的状态
	ChangedBy string    `gorm:"type:varchar(64);not null" json:"changed_by"` // 操作者（system/buyer/gateway/webhook/admin）
	Note      string    `gorm:"type:text" json:"note,omitempty"`             // 备注
	CreatedAt time.Time `gorm:"index" json:"created_at"`                     // 变更时间
}

// TableName 指定表名
func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}
