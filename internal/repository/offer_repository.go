package repository

import (
	"errors"

	"github.com/liveshop-next/internal/models"

	"gorm.io/gorm"
)

// OfferRepository 派单邀约数据访问接口
type OfferRepository interface {
	Create(offer *models.AssignmentOffer) error
	GetByDeliveryID(deliveryID uint) (*models.AssignmentOffer, error)
	GetByOfferID(offerID string) (*models.AssignmentOffer, error)
	Delete(id uint) error
	WithTx(tx *gorm.DB) *GormOfferRepository
}

// GormOfferRepository GORM 实现
type GormOfferRepository struct {
	db *gorm.DB
}

// NewOfferRepository 创建邀约仓库
func NewOfferRepository(db *gorm.DB) *GormOfferRepository {
	return &GormOfferRepository{db: db}
}

// WithTx 绑定事务
func (r *GormOfferRepository) WithTx(tx *gorm.DB) *GormOfferRepository {
	if tx == nil {
		return r
	}
	return &GormOfferRepository{db: tx}
}

// Create 创建邀约（同单唯一索引保证一个在途邀约）
func (r *GormOfferRepository) Create(offer *models.AssignmentOffer) error {
	return r.db.Create(offer).Error
}

// GetByDeliveryID 获取配送单的在途邀约
func (r *GormOfferRepository) GetByDeliveryID(deliveryID uint) (*models.AssignmentOffer, error) {
	var offer models.AssignmentOffer
	if err := r.db.Where("delivery_id = ?", deliveryID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// GetByOfferID 根据邀约编号获取邀约
func (r *GormOfferRepository) GetByOfferID(offerID string) (*models.AssignmentOffer, error) {
	var offer models.AssignmentOffer
	if err := r.db.Where("offer_id = ?", offerID).First(&offer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &offer, nil
}

// Delete 删除邀约（接受/拒绝/超时后立即清除，不留历史）
func (r *GormOfferRepository) Delete(id uint) error {
	return r.db.Unscoped().Delete(&models.AssignmentOffer{}, id).Error
}
