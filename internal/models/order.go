package models

import (
	"time"

	"gorm.io/gorm"
)

// Order 订单表
type Order struct {
	ID               uint           `gorm:"primarykey" json:"id"`                                      // 主键
	OrderNo          string         `gorm:"uniqueIndex;not null" json:"order_no"`                      // 订单编号
	TenantID         uint           `gorm:"index;not null" json:"tenant_id"`                           // 租户ID
	StoreID          uint           `gorm:"index;not null" json:"store_id"`                            // 门店ID
	CustomerID       uint           `gorm:"index;not null" json:"customer_id"`                         // 顾客ID
	Status           string         `gorm:"index;not null" json:"status"`                              // 订单状态
	PaymentStatus    string         `gorm:"index;not null" json:"payment_status"`                      // 支付状态（与订单状态独立）
	Currency         string         `gorm:"not null" json:"currency"`                                  // 币种
	TotalAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_amount"` // 实付金额（创建时锁定）
	Version          int            `gorm:"not null;default:0" json:"version"`                         // 乐观锁版本号
	DeliveryCreated  bool           `gorm:"not null;default:false" json:"delivery_created"`            // 配送单是否已创建（幂等标记）
	GatewayPaymentID string         `gorm:"index" json:"gateway_payment_id,omitempty"`                 // 最近一次生效的网关支付流水号
	DropoffAddress   string         `gorm:"not null" json:"dropoff_address"`                           // 收货地址
	DropoffLat       float64        `gorm:"not null" json:"dropoff_lat"`                               // 收货纬度
	DropoffLng       float64        `gorm:"not null" json:"dropoff_lng"`                               // 收货经度
	ConfirmedAt      *time.Time     `gorm:"index" json:"confirmed_at"`                                 // 确认时间
	DeliveredAt      *time.Time     `gorm:"index" json:"delivered_at"`                                 // 送达时间
	CancelledAt      *time.Time     `gorm:"index" json:"cancelled_at"`                                 // 取消时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                                   // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                            // 软删除时间

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"` // 订单项
	// 关联
	Delivery *Delivery `gorm:"foreignKey:OrderID" json:"delivery,omitempty"` // 配送单（1:1）
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}
