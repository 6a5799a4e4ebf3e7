package repository

import (
	"errors"

	"github.com/tienda-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartRepository 购物车数据访问接口
type CartRepository interface {
	ListByUser(userID uint) ([]models.CartItem, error)
	Create(item *models.CartItem) error
	Upsert(item *models.CartItem) error
	RemoveItem(userID, productID uint) error
	ClearByUser(userID uint) error
	WithTx(tx *gorm.DB) *GormCartRepository
}

// GormCartRepository GORM 实现
type GormCartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓库
func NewCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCartRepository) WithTx(tx *gorm.DB) *GormCartRepository {
	if tx == nil {
		return r
	}
	return &GormCartRepository{db: tx}
}

// ListByUser 获取用户购物车
func (r *GormCartRepository) ListByUser(userID uint) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.Where("user_id = ?", userID).Order("id asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// Create 创建购物车项
func (r *GormCartRepository) Create(item *models.CartItem) error {
	if item == nil {
		return errors.New("cart item is nil")
	}
	return r.db.Create(item).Error
}

// Upsert 写入购物车项，已有同商品时覆盖数量与价格快照
func (r *GormCartRepository) Upsert(item *models.CartItem) error {
	if item == nil {
		return errors.New("cart item is nil")
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"sku":        item.SKU,
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
			"tax_rate":   item.TaxRate,
		}),
	}).Create(item).Error
}

// RemoveItem 移除购物车项
func (r *GormCartRepository) RemoveItem(userID, productID uint) error {
	return r.db.Where("user_id = ? AND product_id = ?", userID, productID).Delete(&models.CartItem{}).Error
}

// ClearByUser 清空用户购物车
func (r *GormCartRepository) ClearByUser(userID uint) error {
	if userID == 0 {
		return nil
	}
	return r.db.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}
