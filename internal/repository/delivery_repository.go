package repository

import (
	"errors"

	"github.com/liveshop-next/internal/models"

	"gorm.io/gorm"
)

// DeliveryRepository 配送单数据访问接口
type DeliveryRepository interface {
	Create(delivery *models.Delivery) error
	GetByID(id uint) (*models.Delivery, error)
	GetByOrderID(orderID uint) (*models.Delivery, error)
	ListByStatus(status string, limit int) ([]models.Delivery, error)
	UpdateStatus(id uint, status string, updates map[string]interface{}) error
	UpdateFields(id uint, updates map[string]interface{}) error
	AppendTrackingPoint(point *models.TrackingPoint) (bool, error)
	ListTrackingPoints(deliveryID uint) ([]models.TrackingPoint, error)
	WithTx(tx *gorm.DB) *GormDeliveryRepository
}

// GormDeliveryRepository GORM 实现
type GormDeliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository 创建配送单仓库
func NewDeliveryRepository(db *gorm.DB) *GormDeliveryRepository {
	return &GormDeliveryRepository{db: db}
}

// WithTx 绑定事务
func (r *GormDeliveryRepository) WithTx(tx *gorm.DB) *GormDeliveryRepository {
	if tx == nil {
		return r
	}
	return &GormDeliveryRepository{db: tx}
}

// Create 创建配送单（orders 1:1 由唯一索引兜底）
func (r *GormDeliveryRepository) Create(delivery *models.Delivery) error {
	return r.db.Create(delivery).Error
}

// GetByID 根据 ID 获取配送单
func (r *GormDeliveryRepository) GetByID(id uint) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.First(&delivery, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// GetByOrderID 根据订单 ID 获取配送单
func (r *GormDeliveryRepository) GetByOrderID(orderID uint) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.db.Where("order_id = ?", orderID).First(&delivery).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &delivery, nil
}

// ListByStatus 按状态列出配送单
func (r *GormDeliveryRepository) ListByStatus(status string, limit int) ([]models.Delivery, error) {
	var deliveries []models.Delivery
	query := r.db.Where("status = ?", status).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

// UpdateStatus 更新配送状态
func (r *GormDeliveryRepository) UpdateStatus(id uint, status string, updates map[string]interface{}) error {
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["status"] = status
	return r.db.Model(&models.Delivery{}).Where("id = ?", id).Updates(updates).Error
}

// UpdateFields 更新配送单字段
func (r *GormDeliveryRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Delivery{}).Where("id = ?", id).Updates(updates).Error
}

// AppendTrackingPoint 追加轨迹点，时间戳重复时静默跳过（幂等）
func (r *GormDeliveryRepository) AppendTrackingPoint(point *models.TrackingPoint) (bool, error) {
	var count int64
	if err := r.db.Model(&models.TrackingPoint{}).
		Where("delivery_id = ? AND recorded_at = ?", point.DeliveryID, point.RecordedAt).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if err := r.db.Create(point).Error; err != nil {
		// 并发下唯一索引兜底：撞键视为重复上报
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListTrackingPoints 按采集时间升序返回轨迹
func (r *GormDeliveryRepository) ListTrackingPoints(deliveryID uint) ([]models.TrackingPoint, error) {
	var points []models.TrackingPoint
	if err := r.db.Where("delivery_id = ?", deliveryID).
		Order("recorded_at asc").
		Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}
