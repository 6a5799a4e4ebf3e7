package models

import (
	"time"

	"gorm.io/gorm"
)

// Address 收货地址表
type Address struct {
	ID           uint           `gorm:"primarykey" json:"id"`                           // 主键
	UserID       uint           `gorm:"index;not null" json:"user_id"`                  // 用户ID
	ContactName  string         `gorm:"not null" json:"contact_name"`                   // 收货人
	ContactPhone string         `gorm:"type:varchar(32);not null" json:"contact_phone"` // 联系电话
	Line1        string         `gorm:"not null" json:"line1"`                          // 街道地址
	District     string         `gorm:"type:varchar(64)" json:"district"`               // 区
	City         string         `gorm:"type:varchar(64)" json:"city"`                   // 市
	Reference    string         `gorm:"type:text" json:"reference,omitempty"`           // 参考位置说明
	IsDefault    bool           `gorm:"not null;default:false" json:"is_default"`       // 是否默认地址
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt    time.Time      `gorm:"index" json:"updated_at"`                        // 更新时间
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`                                 // 软删除时间
}

// TableName 指定表名
func (Address) TableName() string {
	return "addresses"
}

// Snapshot 生成订单用地址快照
func (a *Address) Snapshot() JSON {
	return JSON{
		"contact_name":  a.ContactName,
		"contact_phone": a.ContactPhone,
		"line1":         a.Line1,
		"district":      a.District,
		"city":          a.City,
		"reference":     a.Reference,
	}
}
