package repository

import (
	"errors"
	"time"

	"github.com/liveshop-next/internal/models"

	"gorm.io/gorm"
)

// DriverRepository 骑手数据访问接口
type DriverRepository interface {
	Create(driver *models.Driver) error
	GetByID(id uint) (*models.Driver, error)
	ListAvailable(excludeIDs []uint) ([]models.Driver, error)
	ClaimDelivery(driverID, deliveryID uint) (bool, error)
	ReleaseDelivery(driverID uint, makeAvailable bool) error
	UpdateLocation(driverID uint, lat, lng float64, at time.Time) error
	SetAvailability(driverID uint, available bool) error
	TouchDispatchedAt(driverID uint, at time.Time) error
	WithTx(tx *gorm.DB) *GormDriverRepository
}

// GormDriverRepository GORM 实现
type GormDriverRepository struct {
	db *gorm.DB
}

// NewDriverRepository 创建骑手仓库
func NewDriverRepository(db *gorm.DB) *GormDriverRepository {
	return &GormDriverRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDriverRepository) WithTx(tx *gorm.DB) *GormDriverRepository {
	if tx == nil {
		return r
	}
	return &GormDriverRepository{db: tx}
}

// Create 创建骑手
func (r *GormDriverRepository) Create(driver *models.Driver) error {
	return r.db.Create(driver).Error
}

// GetByID 根据 ID 获取骑手
func (r *GormDriverRepository) GetByID(id uint) (*models.Driver, error) {
	var driver models.Driver
	if err := r.db.First(&driver, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &driver, nil
}

// ListAvailable 列出可派单骑手（接单中且无进行中配送）
func (r *GormDriverRepository) ListAvailable(excludeIDs []uint) ([]models.Driver, error) {
	var drivers []models.Driver
	query := r.db.Where("is_available = ? AND active_delivery_id IS NULL", true)
	if len(excludeIDs) > 0 {
		query = query.Where("id NOT IN ?", excludeIDs)
	}
	if err := query.Find(&drivers).Error; err != nil {
		return nil, err
	}
	return drivers, nil
}

// ClaimDelivery 条件更新占用骑手，返回是否抢占成功（并发接单只有一个赢家）
func (r *GormDriverRepository) ClaimDelivery(driverID, deliveryID uint) (bool, error) {
	result := r.db.Model(&models.Driver{}).
		Where("id = ? AND active_delivery_id IS NULL", driverID).
		Update("active_delivery_id", deliveryID)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ReleaseDelivery 释放骑手占用
func (r *GormDriverRepository) ReleaseDelivery(driverID uint, makeAvailable bool) error {
	updates := map[string]interface{}{
		"active_delivery_id": nil,
	}
	if makeAvailable {
		updates["is_available"] = true
	}
	return r.db.Model(&models.Driver{}).Where("id = ?", driverID).Updates(updates).Error
}

// UpdateLocation 更新最近上报位置
func (r *GormDriverRepository) UpdateLocation(driverID uint, lat, lng float64, at time.Time) error {
	return r.db.Model(&models.Driver{}).Where("id = ?", driverID).Updates(map[string]interface{}{
		"current_lat": lat,
		"current_lng": lng,
		"location_at": at,
	}).Error
}

// SetAvailability 设置接单开关
func (r *GormDriverRepository) SetAvailability(driverID uint, available bool) error {
	return r.db.Model(&models.Driver{}).Where("id = ?", driverID).
		Update("is_available", available).Error
}

// TouchDispatchedAt 记录最近派单时间
func (r *GormDriverRepository) TouchDispatchedAt(driverID uint, at time.Time) error {
	return r.db.Model(&models.Driver{}).Where("id = ?", driverID).
		Update("last_dispatched_at", at).Error
}
