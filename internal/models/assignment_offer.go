package models

import (
	"time"
)

// AssignmentOffer 派单邀约表（接受/拒绝/超时后即删除，不留历史）
type AssignmentOffer struct {
	ID         uint      `gorm:"primarykey" json:"id"`                    // 主键
	OfferID    string    `gorm:"uniqueIndex;not null" json:"offer_id"`    // 邀约编号（超时任务据此判活）
	DeliveryID uint      `gorm:"uniqueIndex;not null" json:"delivery_id"` // 配送单ID（唯一索引保证同单只有一个在途邀约）
	DriverID   uint      `gorm:"index;not null" json:"driver_id"`         // 被邀约骑手ID
	Round      int       `gorm:"not null" json:"round"`                   // 派单轮次
	OfferedAt  time.Time `gorm:"not null" json:"offered_at"`              // 发出时间
	Deadline   time.Time `gorm:"not null" json:"deadline"`                // 接单截止时间
}

// TableName 指定表名
func (AssignmentOffer) TableName() string {
	return "assignment_offers"
}
