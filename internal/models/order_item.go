package models

import (
	"time"
)

// OrderItem 订单项表
type OrderItem struct {
	ID         uint      `gorm:"primarykey" json:"id"`                                     // 主键
	OrderID    uint      `gorm:"index;not null" json:"order_id"`                           // 订单ID
	ProductID  uint      `gorm:"index;not null" json:"product_id"`                         // 商品ID（外部目录）
	VariantID  *uint     `gorm:"index" json:"variant_id,omitempty"`                        // 规格ID
	Name       string    `gorm:"not null" json:"name"`                                     // 商品名快照
	Quantity   int       `gorm:"not null" json:"quantity"`                                 // 数量
	UnitPrice  Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_price"`  // 单价快照
	TotalPrice Money     `gorm:"type:decimal(20,2);not null;default:0" json:"total_price"` // 小计
	CreatedAt  time.Time `json:"created_at"`                                               // 创建时间
	UpdatedAt  time.Time `json:"updated_at"`                                               // 更新时间
}

// TableName 指定表名
func (OrderItem) TableName() string {
	return "order_items"
}
