package repository

import (
	"errors"
	"strings"

	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository 支付数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	Update(payment *models.Payment) error
	GetByID(id uint) (*models.Payment, error)
	GetPendingByOrder(orderID uint) (*models.Payment, error)
	GetPendingByOrderForUpdate(orderID uint) (*models.Payment, error)
	GetLatestByChargeID(chargeID string) (*models.Payment, error)
	GetByIDForUpdate(id uint) (*models.Payment, error)
	ListByOrderID(orderID uint) ([]models.Payment, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓库
func NewPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	if tx == nil {
		return r
	}
	return &GormPaymentRepository{db: tx}
}

// Create 创建支付记录
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// Update 更新支付记录
func (r *GormPaymentRepository) Update(payment *models.Payment) error {
	return r.db.Save(payment).Error
}

// GetByID 根据 ID 获取支付记录
func (r *GormPaymentRepository) GetByID(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// GetPendingByOrder 获取订单当前待支付记录（任一时刻至多一条）
func (r *GormPaymentRepository) GetPendingByOrder(orderID uint) (*models.Payment, error) {
	var payment models.Payment
	result := r.db.Where("order_id = ? AND status = ?", orderID, constants.PaymentStatusPending).
		Order("id desc").Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// GetPendingByOrderForUpdate 获取订单待支付记录并加行锁（需在事务内调用）
func (r *GormPaymentRepository) GetPendingByOrderForUpdate(orderID uint) (*models.Payment, error) {
	var payment models.Payment
	result := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_id = ? AND status = ?", orderID, constants.PaymentStatusPending).
		Order("id desc").Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// GetLatestByChargeID 根据网关扣款流水号获取最新支付记录
func (r *GormPaymentRepository) GetLatestByChargeID(chargeID string) (*models.Payment, error) {
	chargeID = strings.TrimSpace(chargeID)
	if chargeID == "" {
		return nil, nil
	}
	var payment models.Payment
	result := r.db.Where("gateway_charge_id = ?", chargeID).Order("id desc").Limit(1).Find(&payment)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &payment, nil
}

// GetByIDForUpdate 根据 ID 获取支付记录并加行锁（需在事务内调用）
func (r *GormPaymentRepository) GetByIDForUpdate(id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&payment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ListByOrderID 获取订单支付记录
func (r *GormPaymentRepository) ListByOrderID(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("order_id = ?", orderID).Order("id desc").Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}
