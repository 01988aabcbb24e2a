package models

import (
	"time"

	"gorm.io/gorm"
)

// Driver 骑手表
type Driver struct {
	ID               uint           `gorm:"primarykey" json:"id"`                       // 主键
	Name             string         `gorm:"not null" json:"name"`                       // 姓名
	Phone            string         `gorm:"index" json:"phone,omitempty"`               // 手机号
	IsAvailable      bool           `gorm:"index;not null;default:false" json:"is_available"` // 是否接单中
	ActiveDeliveryID *uint          `gorm:"uniqueIndex" json:"active_delivery_id,omitempty"` // 进行中的配送单（唯一索引保证互斥）
	CurrentLat       *float64       `json:"current_lat,omitempty"`                      // 最近上报纬度
	CurrentLng       *float64       `json:"current_lng,omitempty"`                      // 最近上报经度
	LocationAt       *time.Time     `json:"location_at,omitempty"`                      // 最近上报时间
	LastDispatchedAt *time.Time     `gorm:"index" json:"last_dispatched_at,omitempty"`  // 最近派单时间（空闲排序用）
	Rating           float64        `gorm:"not null;default:5" json:"rating"`           // 评分
	CreatedAt        time.Time      `json:"created_at"`                                 // 创建时间
	UpdatedAt        time.Time      `json:"updated_at"`                                 // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                             // 软删除时间
}

// TableName 指定表名
func (Driver) TableName() string {
	return "drivers"
}
