package models

import (
	"time"
)

// Payment 支付流水表（capture/refund 记录，已生效 capture 的网关流水号唯一保证幂等；
// refund 与留痕记录不占用幂等键）
type Payment struct {
	ID               uint      `gorm:"primarykey" json:"id"`           // 主键
	OrderID          uint      `gorm:"index;not null" json:"order_id"` // 订单ID
	Kind             string    `gorm:"index;not null" json:"kind"`     // 流水类型 capture/refund
	GatewayPaymentID string    `gorm:"index:idx_payments_capture_key,unique,where:kind = 'capture' AND status = 'applied'" json:"gateway_payment_id,omitempty"` // 网关支付流水号（capture 幂等键）
	Amount           Money     `gorm:"type:decimal(20,2);not null;default:0" json:"amount"` // 金额
	Currency         string    `gorm:"not null" json:"currency"`                        // 币种
	Status           string    `gorm:"index;not null" json:"status"`                    // applied / amount_mismatch
	Reason           string    `json:"reason,omitempty"`                                // 退款原因
	CreatedAt        time.Time `gorm:"index" json:"created_at"`                         // 创建时间
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}
