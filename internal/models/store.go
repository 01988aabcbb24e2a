package models

import (
	"time"

	"gorm.io/gorm"
)

// Store 门店表（取货点）
type Store struct {
	ID        uint           `gorm:"primarykey" json:"id"`            // 主键
	TenantID  uint           `gorm:"index;not null" json:"tenant_id"` // 租户ID
	Name      string         `gorm:"not null" json:"name"`            // 门店名
	Address   string         `gorm:"not null" json:"address"`         // 地址
	Lat       float64        `gorm:"not null" json:"lat"`             // 纬度
	Lng       float64        `gorm:"not null" json:"lng"`             // 经度
	CreatedAt time.Time      `json:"created_at"`                      // 创建时间
	UpdatedAt time.Time      `json:"updated_at"`                      // 更新时间
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`                  // 软删除时间
}

// TableName 指定表名
func (Store) TableName() string {
	return "stores"
}
