package repository

import (
	"errors"

	"github.com/tienda-next/internal/models"

	"gorm.io/gorm"
)

// InvoiceRepository 发票数据访问接口
type InvoiceRepository interface {
	Create(invoice *models.Invoice) error
	GetByOrderID(orderID uint) (*models.Invoice, error)
	WithTx(tx *gorm.DB) *GormInvoiceRepository
}

// GormInvoiceRepository GORM 实现
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewInvoiceRepository 创建发票仓库
func NewInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// WithTx 绑定事务
func (r *GormInvoiceRepository) WithTx(tx *gorm.DB) *GormInvoiceRepository {
	if tx == nil {
		return r
	}
	return &GormInvoiceRepository{db: tx}
}

// Create 创建发票
func (r *GormInvoiceRepository) Create(invoice *models.Invoice) error {
	if invoice == nil {
		return errors.New("invoice is nil")
	}
	return r.db.Create(invoice).Error
}

// GetByOrderID 查询订单发票
func (r *GormInvoiceRepository) GetByOrderID(orderID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	result := r.db.Where("order_id = ?", orderID).Order("id desc").Limit(1).Find(&invoice)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &invoice, nil
}
