package queue

import (
	"encoding/json"

	"github.com/liveshop-next/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskDispatchOfferExpire 派单邀约超时任务
	TaskDispatchOfferExpire = constants.TaskDispatchOfferExpire
	// TaskDispatchDeadline 全局寻人截止任务
	TaskDispatchDeadline = constants.TaskDispatchDeadline
	// TaskOrderAutoRefund 自动退款任务
	TaskOrderAutoRefund = constants.TaskOrderAutoRefund
)

// OfferExpirePayload 邀约超时任务载荷（offer_id 用于判活）
type OfferExpirePayload struct {
	DeliveryID uint   `json:"delivery_id"`
	OfferID    string `json:"offer_id"`
}

// DispatchDeadlinePayload 全局寻人截止任务载荷
type DispatchDeadlinePayload struct {
	DeliveryID uint `json:"delivery_id"`
}

// OrderAutoRefundPayload 自动退款任务载荷
type OrderAutoRefundPayload struct {
	OrderID uint   `json:"order_id"`
	Reason  string `json:"reason"`
}

// NewOfferExpireTask 创建邀约超时任务
func NewOfferExpireTask(payload OfferExpirePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchOfferExpire, body), nil
}

// NewDispatchDeadlineTask 创建全局寻人截止任务
func NewDispatchDeadlineTask(payload DispatchDeadlinePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDispatchDeadline, body), nil
}

// NewOrderAutoRefundTask 创建自动退款任务
func NewOrderAutoRefundTask(payload OrderAutoRefundPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderAutoRefund, body), nil
}
