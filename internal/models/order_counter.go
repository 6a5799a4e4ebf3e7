package models

import (
	"time"
)

// OrderCounter 按 UTC 日期的订单号计数器
// 递增必须是单条原子语句（INSERT ... ON CONFLICT ... RETURNING），
// 不允许先查再写。
type OrderCounter struct {
	Day       string    `gorm:"primaryKey;type:varchar(8)" json:"day"` // UTC 日期（YYYYMMDD）
	Value     int64     `gorm:"not null;default:0" json:"value"`       // 当日已分配序号
	UpdatedAt time.Time `json:"updated_at"`                            // 更新时间
}

// TableName 指定表名
func (OrderCounter) TableName() string {
	return "order_counters"
}
