package models

import (
	"time"
)

// Order 订单表
type Order struct {
	ID              uint       `gorm:"primarykey" json:"id"`                                          // 主键
	OrderNo         string     `gorm:"uniqueIndex;not null" json:"order_no"`                          // 订单编号（ORD-YYYYMMDD-NNNN）
	UserID          uint       `gorm:"index;not null" json:"user_id,omitempty"`                       // 用户ID（游客订单为 0）
	GuestEmail      string     `gorm:"index" json:"guest_email,omitempty"`                            // 游客邮箱
	GuestPhone      string     `gorm:"type:varchar(32)" json:"guest_phone,omitempty"`                 // 游客电话
	Status          string     `gorm:"index;not null" json:"status"`                                  // 订单状态
	Currency        string     `gorm:"not null" json:"currency"`                                      // 币种
	DeliveryDate    string     `gorm:"type:varchar(10);index:idx_orders_slot" json:"delivery_date"`   // 配送日期（YYYY-MM-DD）
	DeliveryWindow  string     `gorm:"type:varchar(20);index:idx_orders_slot" json:"delivery_window"` // 配送时段
	AddressSnapshot JSON       `gorm:"type:json;not null" json:"address_snapshot"`                    // 下单时的地址快照（不回读实时地址）
	Subtotal        Money      `gorm:"type:decimal(20,2);not null;default:0" json:"subtotal"`         // 商品小计
	TaxAmount       Money      `gorm:"type:decimal(20,2);not null;default:0" json:"tax_amount"`       // 税额
	TotalAmount     Money      `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"`     // 应付总额（= 小计 + 税额）
	Notes           string     `gorm:"type:text" json:"notes,omitempty"`                              // 买家备注
	PromoCode       string     `gorm:"type:varchar(64)" json:"promo_code,omitempty"`                  // 优惠码（上游已计价）
	ClientIP        string     `gorm:"type:varchar(64)" json:"client_ip,omitempty"`                   // 下单客户端IP
	PaidAt          *time.Time `gorm:"index" json:"paid_at"`                                          // 支付时间
	CanceledAt      *time.Time `gorm:"index" json:"canceled_at"`                                      // 取消时间
	CreatedAt       time.Time  `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt       time.Time  `gorm:"index" json:"updated_at"`                                       // 更新时间

	Lines         []OrderLine          `gorm:"foreignKey:OrderID" json:"lines,omitempty"`          // 订单行
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID" json:"status_history,omitempty"` // 状态变更记录
	Payments      []Payment            `gorm:"foreignKey:OrderID" json:"payments,omitempty"`       // 支付记录
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// IsGuest 是否游客订单
func (o *Order) IsGuest() bool {
	return o.UserID == 0
}
