package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/provider"
	"github.com/liveshop-next/internal/queue"
	"github.com/liveshop-next/internal/service"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(constants.TaskDispatchOfferExpire, c.handleOfferExpire)
	mux.HandleFunc(constants.TaskDispatchDeadline, c.handleSearchDeadline)
	mux.HandleFunc(constants.TaskOrderAutoRefund, c.handleOrderAutoRefund)
}

// handleOfferExpire 邀约超时。offer_id 已失效时任务空转，不视为失败。
func (c *Consumer) handleOfferExpire(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_offer_expire_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OfferExpirePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_offer_expire_unmarshal_failed", "error", err)
		return err
	}
	if payload.DeliveryID == 0 || payload.OfferID == "" {
		logger.Debugw("worker_offer_expire_skip_invalid_payload", "delivery_id", payload.DeliveryID)
		return nil
	}
	if err := c.DispatchEngine.HandleOfferTimeout(payload.DeliveryID, payload.OfferID); err != nil {
		if errors.Is(err, service.ErrDeliveryNotFound) {
			logger.Debugw("worker_offer_expire_skip_delivery_not_found", "delivery_id", payload.DeliveryID)
			return nil
		}
		logger.Warnw("worker_offer_expire_failed", "delivery_id", payload.DeliveryID, "error", err)
		return err
	}
	return nil
}

// handleSearchDeadline 全局寻人截止
func (c *Consumer) handleSearchDeadline(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_search_deadline_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.DispatchDeadlinePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_search_deadline_unmarshal_failed", "error", err)
		return err
	}
	if payload.DeliveryID == 0 {
		logger.Debugw("worker_search_deadline_skip_invalid_payload", "delivery_id", payload.DeliveryID)
		return nil
	}
	if err := c.DispatchEngine.HandleSearchDeadline(payload.DeliveryID); err != nil {
		if errors.Is(err, service.ErrDeliveryNotFound) {
			logger.Debugw("worker_search_deadline_skip_delivery_not_found", "delivery_id", payload.DeliveryID)
			return nil
		}
		logger.Warnw("worker_search_deadline_failed", "delivery_id", payload.DeliveryID, "error", err)
		return err
	}
	return nil
}

// handleOrderAutoRefund 寻人失败后的自动退款
func (c *Consumer) handleOrderAutoRefund(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_auto_refund_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.OrderAutoRefundPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_auto_refund_unmarshal_failed", "error", err)
		return err
	}
	if payload.OrderID == 0 {
		logger.Debugw("worker_auto_refund_skip_invalid_payload", "order_id", payload.OrderID)
		return nil
	}
	if err := c.PaymentService.AutoRefund(payload.OrderID, payload.Reason); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			logger.Debugw("worker_auto_refund_skip_order_not_found", "order_id", payload.OrderID)
			return nil
		case errors.Is(err, service.ErrPaymentNotCaptured):
			logger.Debugw("worker_auto_refund_skip_not_captured", "order_id", payload.OrderID)
			return nil
		default:
			logger.Warnw("worker_auto_refund_failed", "order_id", payload.OrderID, "error", err)
			return err
		}
	}
	return nil
}
