package models

import (
	"time"
)

// DeliverySlot 配送容量表，按（日期，时段）唯一
// 不变量：0 ≤ booked_count ≤ max_capacity，并发预订下同样成立。
// 行在首次预订时惰性创建；缺行等价于 booked_count=0、max_capacity=默认容量、未封禁。
type DeliverySlot struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                                     // 主键
	Date        string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_slot_date_window" json:"date"`   // 配送日期（YYYY-MM-DD）
	Window      string    `gorm:"type:varchar(20);not null;uniqueIndex:idx_slot_date_window" json:"window"` // 配送时段（morning/afternoon）
	MaxCapacity int       `gorm:"not null" json:"max_capacity"`                                             // 最大容量
	BookedCount int       `gorm:"not null;default:0" json:"booked_count"`                                   // 已预订数
	IsBlocked   bool      `gorm:"not null;default:false" json:"is_blocked"`                                 // 是否封禁
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                                  // 创建时间
	UpdatedAt   time.Time `gorm:"index" json:"updated_at"`                                                  // 更新时间
}

// TableName 指定表名
func (DeliverySlot) TableName() string {
	return "delivery_slots"
}

// Remaining 剩余容量（不为负）
func (s *DeliverySlot) Remaining() int {
	remaining := s.MaxCapacity - s.BookedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
