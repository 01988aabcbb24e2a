package models

import (
	"time"
)

// TrackingPoint 配送轨迹点表
type TrackingPoint struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                        // 主键
	DeliveryID uint      `gorm:"uniqueIndex:idx_delivery_recorded;not null" json:"delivery_id"` // 配送单ID
	DriverID   uint      `gorm:"index;not null" json:"driver_id"`                             // 骑手ID
	Lat        float64   `gorm:"not null" json:"lat"`                                         // 纬度
	Lng        float64   `gorm:"not null" json:"lng"`                                         // 经度
	Accuracy   *float64  `json:"accuracy,omitempty"`                                          // 定位精度（米）
	Flagged    bool      `gorm:"not null;default:false" json:"flagged"`                       // 质量可疑标记（低精度/时间偏移）
	RecordedAt time.Time `gorm:"uniqueIndex:idx_delivery_recorded;not null" json:"recorded_at"` // 采集时间（与配送单联合唯一，保证幂等追加）
	CreatedAt  time.Time `json:"created_at"`                                                  // 入库时间
}

// TableName 指定表名
func (TrackingPoint) TableName() string {
	return "tracking_points"
}
