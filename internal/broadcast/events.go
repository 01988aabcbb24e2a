package broadcast

import (
	"fmt"
	"time"

	"github.com/liveshop-next/internal/constants"
)

// Event 广播事件（同一实体内保证发布顺序）
type Event struct {
	Type       string      `json:"type"`
	Topic      string      `json:"topic"`
	Payload    interface{} `json:"payload"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// OrderStatusChangedPayload 订单状态变更事件体
type OrderStatusChangedPayload struct {
	OrderID uint   `json:"order_id"`
	OrderNo string `json:"order_no"`
	From    string `json:"from"`
	To      string `json:"to"`
	Version int    `json:"version"`
}

// DeliveryStatusChangedPayload 配送状态变更事件体
type DeliveryStatusChangedPayload struct {
	DeliveryID uint   `json:"delivery_id"`
	OrderID    uint   `json:"order_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	DriverID   *uint  `json:"driver_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// LocationUpdatedPayload 位置更新事件体
type LocationUpdatedPayload struct {
	DeliveryID uint      `json:"delivery_id"`
	DriverID   uint      `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Flagged    bool      `json:"flagged"`
	RecordedAt time.Time `json:"recorded_at"`
}

// OrderTopic 订单事件主题
func OrderTopic(orderID uint) string {
	return fmt.Sprintf("%s%d", constants.TopicOrderPrefix, orderID)
}

// DeliveryTopic 配送事件主题
func DeliveryTopic(deliveryID uint) string {
	return fmt.Sprintf("%s%d", constants.TopicDeliveryPrefix, deliveryID)
}

// StoreTopic 门店事件主题
func StoreTopic(storeID uint) string {
	return fmt.Sprintf("%s%d", constants.TopicStorePrefix, storeID)
}
