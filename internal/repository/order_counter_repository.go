package repository

import (
	"errors"
	"time"

	"github.com/tienda-next/internal/models"

	"gorm.io/gorm"
)

// OrderCounterRepository 订单号计数器数据访问接口
type OrderCounterRepository interface {
	Next(day string) (int64, error)
	Current(day string) (int64, error)
	WithTx(tx *gorm.DB) *GormOrderCounterRepository
}

// GormOrderCounterRepository GORM 实现
type GormOrderCounterRepository struct {
	db *gorm.DB
}

// NewOrderCounterRepository 创建订单号计数器仓库
func NewOrderCounterRepository(db *gorm.DB) *GormOrderCounterRepository {
	return &GormOrderCounterRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOrderCounterRepository) WithTx(tx *gorm.DB) *GormOrderCounterRepository {
	if tx == nil {
		return r
	}
	return &GormOrderCounterRepository{db: tx}
}

// Next 原子递增并返回当日序号
// 单条 upsert 语句完成插入或递增，sqlite 与 postgres 均支持该语法；
// 在事务内调用时，事务回滚会连同序号一起回滚（序号不烧号）。
func (r *GormOrderCounterRepository) Next(day string) (int64, error) {
	if day == "" {
		return 0, errors.New("invalid counter day")
	}
	var value int64
	err := r.db.Raw(
		"INSERT INTO order_counters (day, value, updated_at) VALUES (?, 1, ?) "+
			"ON CONFLICT (day) DO UPDATE SET value = order_counters.value + 1, updated_at = ? "+
			"RETURNING value",
		day, time.Now(), time.Now(),
	).Scan(&value).Error
	if err != nil {
		return 0, err
	}
	return value, nil
}

// Current 查询当日已分配的序号（缺行返回 0）
func (r *GormOrderCounterRepository) Current(day string) (int64, error) {
	var counter models.OrderCounter
	result := r.db.Where("day = ?", day).Limit(1).Find(&counter)
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}
	return counter.Value, nil
}
