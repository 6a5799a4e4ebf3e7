package models

import (
	"time"
)

// OrderLine 订单行表（创建后不可变）
type OrderLine struct {
	ID        uint      `gorm:"primarykey" json:"id"`                                    // 主键
	OrderID   uint      `gorm:"index;not null" json:"order_id"`                          // 订单ID
	ProductID uint      `gorm:"index;not null" json:"product_id"`                        // 商品ID
	SKU       string    `gorm:"type:varchar(64);not null" json:"sku"`                    // 商品SKU快照
	Name      string    `gorm:"not null" json:"name"`                                    // 商品名称快照
	Quantity  int       `gorm:"not null" json:"quantity"`                                // 数量（≥ 1）
	UnitPrice Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"` // 单价
	TaxRate   Money     `gorm:"type:decimal(6,4);not null;default:0" json:"tax_rate"`    // 适用税率
	LineTotal Money     `gorm:"type:decimal(20,4);not null;default:0" json:"line_total"` // 行小计（单价 ×(1+税率)× 数量，保留 4 位小数）
	CreatedAt time.Time `gorm:"index" json:"created_at"`                                 // 创建时间
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`                                 // 更新时间
}

// TableName 指定表名
func (OrderLine) TableName() string {
	return "order_lines"
}
