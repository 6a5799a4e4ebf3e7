package repository

import (
	"errors"

	"github.com/tienda-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DeliverySlotRepository 配送容量数据访问接口
type DeliverySlotRepository interface {
	Get(date, window string) (*models.DeliverySlot, error)
	ListRange(fromDate, toDate string) ([]models.DeliverySlot, error)
	Reserve(date, window string, defaultCapacity int) (int64, error)
	Release(date, window string) (int64, error)
	UpsertConfig(date, window string, maxCapacity int, isBlocked bool) error
	WithTx(tx *gorm.DB) *GormDeliverySlotRepository
}

// GormDeliverySlotRepository GORM 实现
type GormDeliverySlotRepository struct {
	db *gorm.DB
}

// NewDeliverySlotRepository 创建配送容量仓库
func NewDeliverySlotRepository(db *gorm.DB) *GormDeliverySlotRepository {
	return &GormDeliverySlotRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDeliverySlotRepository) WithTx(tx *gorm.DB) *GormDeliverySlotRepository {
	if tx == nil {
		return r
	}
	return &GormDeliverySlotRepository{db: tx}
}

// Get 获取指定（日期，时段）的容量行，缺行返回 nil
func (r *GormDeliverySlotRepository) Get(date, window string) (*models.DeliverySlot, error) {
	var slot models.DeliverySlot
	result := r.db.Where("date = ? AND window = ?", date, window).Limit(1).Find(&slot)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &slot, nil
}

// ListRange 获取日期区间内已有的容量行
func (r *GormDeliverySlotRepository) ListRange(fromDate, toDate string) ([]models.DeliverySlot, error) {
	var slots []models.DeliverySlot
	if err := r.db.Where("date >= ? AND date <= ?", fromDate, toDate).
		Order("date asc, window asc").
		Find(&slots).Error; err != nil {
		return nil, err
	}
	return slots, nil
}

func (r *GormDeliverySlotRepository) tryReserve(date, window string) (int64, error) {
	// 单条条件更新：未封禁且未满才占用，避免先查后写的竞态
	result := r.db.Model(&models.DeliverySlot{}).
		Where("date = ? AND window = ? AND is_blocked = ? AND booked_count < max_capacity", date, window, false).
		Update("booked_count", gorm.Expr("booked_count + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// Reserve 原子占用一个配送名额
// 返回受影响行数：1 表示占用成功，0 表示已满或被封禁。
// 容量行在首次预订时惰性创建（booked_count=1，容量取默认值）。
func (r *GormDeliverySlotRepository) Reserve(date, window string, defaultCapacity int) (int64, error) {
	affected, err := r.tryReserve(date, window)
	if err != nil || affected > 0 {
		return affected, err
	}

	// 条件更新没有命中：要么行不存在，要么已满/被封禁
	existing, err := r.Get(date, window)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return 0, nil
	}
	if defaultCapacity < 1 {
		return 0, nil
	}

	slot := models.DeliverySlot{
		Date:        date,
		Window:      window,
		MaxCapacity: defaultCapacity,
		BookedCount: 1,
	}
	if createErr := r.db.Create(&slot).Error; createErr != nil {
		// 并发首次预订撞了唯一索引，回退为条件更新
		affected, err = r.tryReserve(date, window)
		if err != nil {
			return 0, err
		}
		if affected > 0 {
			return affected, nil
		}
		existing, err = r.Get(date, window)
		if err != nil {
			return 0, err
		}
		if existing != nil {
			return 0, nil
		}
		return 0, createErr
	}
	return 1, nil
}

// Release 释放一个配送名额（不为负，重复释放为幂等空操作）
func (r *GormDeliverySlotRepository) Release(date, window string) (int64, error) {
	result := r.db.Model(&models.DeliverySlot{}).
		Where("date = ? AND window = ? AND booked_count > 0", date, window).
		Update("booked_count", gorm.Expr("booked_count - 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// UpsertConfig 创建或更新容量配置（管理端）
func (r *GormDeliverySlotRepository) UpsertConfig(date, window string, maxCapacity int, isBlocked bool) error {
	if maxCapacity < 0 {
		return errors.New("invalid slot capacity")
	}
	slot := models.DeliverySlot{
		Date:        date,
		Window:      window,
		MaxCapacity: maxCapacity,
		IsBlocked:   isBlocked,
	}
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "date"}, {Name: "window"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"max_capacity": maxCapacity,
			"is_blocked":   isBlocked,
		}),
	}).Create(&slot).Error
}
