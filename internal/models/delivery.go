package models

import (
	"time"

	"gorm.io/gorm"
)

// Delivery 配送单表
type Delivery struct {
	ID             uint           `gorm:"primarykey" json:"id"`                                         // 主键
	DeliveryNo     string         `gorm:"uniqueIndex;not null" json:"delivery_no"`                      // 配送单编号
	OrderID        uint           `gorm:"uniqueIndex;not null" json:"order_id"`                         // 订单ID（唯一索引保证 1:1）
	DriverID       *uint          `gorm:"index" json:"driver_id,omitempty"`                             // 当前骑手ID（指派/接单后有值）
	Status         string         `gorm:"index;not null" json:"status"`                                 // 配送状态
	PickupAddress  string         `gorm:"not null" json:"pickup_address"`                               // 取货地址
	PickupLat      float64        `gorm:"not null" json:"pickup_lat"`                                   // 取货纬度
	PickupLng      float64        `gorm:"not null" json:"pickup_lng"`                                   // 取货经度
	DropoffAddress string         `gorm:"not null" json:"dropoff_address"`                              // 送达地址
	DropoffLat     float64        `gorm:"not null" json:"dropoff_lat"`                                  // 送达纬度
	DropoffLng     float64        `gorm:"not null" json:"dropoff_lng"`                                  // 送达经度
	AssignedAt     *time.Time     `json:"assigned_at"`                                                  // 指派时间
	AcceptDeadline *time.Time     `json:"accept_deadline"`                                              // 接单截止时间
	DeliveredAt    *time.Time     `json:"delivered_at"`                                                 // 送达时间
	DriverEarnings Money          `gorm:"type:decimal(20,2);not null;default:0" json:"driver_earnings"` // 骑手配送费
	TipAmount      Money          `gorm:"type:decimal(20,2);not null;default:0" json:"tip_amount"`      // 小费
	CancelReason   string         `json:"cancel_reason,omitempty"`                                      // 取消原因
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`                                      // 创建时间
	UpdatedAt      time.Time      `gorm:"index" json:"updated_at"`                                      // 更新时间
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`                                               // 软删除时间

	TrackingPoints []TrackingPoint `gorm:"foreignKey:DeliveryID" json:"tracking_points,omitempty"` // 轨迹点
}

// TableName 指定表名
func (Delivery) TableName() string {
	return "deliveries"
}
