package repository

import (
	"errors"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/models"

	"gorm.io/gorm"
)

// PaymentRepository 支付流水数据访问接口
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetCaptureByGatewayID(gatewayPaymentID string) (*models.Payment, error)
	ListByOrder(orderID uint) ([]models.Payment, error)
	SumRefunded(orderID uint) (models.Money, error)
	WithTx(tx *gorm.DB) *GormPaymentRepository
}

// GormPaymentRepository GORM 实现
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付流水仓库
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

// Create 创建支付流水
func (r *GormPaymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetCaptureByGatewayID 按网关流水号查询已生效的 capture 记录（webhook 去重）。
// 金额不符的留痕记录不算入账，同流水号的纠正通知仍可正常入账。
func (r *GormPaymentRepository) GetCaptureByGatewayID(gatewayPaymentID string) (*models.Payment, error) {
	if gatewayPaymentID == "" {
		return nil, nil
	}
	var payment models.Payment
	if err := r.db.
		Where("kind = ? AND status = ? AND gateway_payment_id = ?",
			constants.PaymentKindCapture, constants.PaymentRecordApplied, gatewayPaymentID).
		First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

// ListByOrder 订单的全部支付流水
func (r *GormPaymentRepository) ListByOrder(orderID uint) ([]models.Payment, error) {
	var payments []models.Payment
	if err := r.db.Where("order_id = ?", orderID).
		Order("id asc").
		Find(&payments).Error; err != nil {
		return nil, err
	}
	return payments, nil
}

// SumRefunded 已生效退款总额
func (r *GormPaymentRepository) SumRefunded(orderID uint) (models.Money, error) {
	payments, err := r.ListByOrder(orderID)
	if err != nil {
		return models.Money{}, err
	}
	var total models.Money
	for _, p := range payments {
		if p.Kind == constants.PaymentKindRefund && p.Status == constants.PaymentRecordApplied {
			total = total.Add(p.Amount)
		}
	}
	return total, nil
}
