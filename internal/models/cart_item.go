package models

import (
	"time"
)

// CartItem 购物车项（价格与税率由上游计价服务写入）
// 硬删除：user_id+product_id 唯一索引依赖删除后可复用
type CartItem struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                         // 主键
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`    // 用户ID
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"product_id"` // 商品ID
	SKU       string    `gorm:"type:varchar(64);not null" json:"sku"`                         // 商品SKU
	Name      string    `gorm:"not null" json:"name"`                                         // 商品名称
	Quantity  int       `gorm:"not null" json:"quantity"`                                     // 数量
	UnitPrice Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`      // 单价
	TaxRate   Money     `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`         // 税率
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                                      // 更新时间
}

// TableName 指定表名
func (CartItem) TableName() string {
	return "cart_items"
}
