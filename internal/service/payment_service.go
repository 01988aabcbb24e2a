package service

import (
	"strings"
	"time"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/repository"

	"gorm.io/gorm"
)

// PaymentService 支付对账服务
type PaymentService struct {
	orderRepo    repository.OrderRepository
	paymentRepo  repository.PaymentRepository
	orderService *OrderService
}

// NewPaymentService 创建支付对账服务
func NewPaymentService(orderRepo repository.OrderRepository, paymentRepo repository.PaymentRepository, orderService *OrderService) *PaymentService {
	return &PaymentService{
		orderRepo:    orderRepo,
		paymentRepo:  paymentRepo,
		orderService: orderService,
	}
}

// ConfirmCapture 网关扣款回执对账。同一网关流水号重复通知不产生任何副作用。
func (s *PaymentService) ConfirmCapture(orderNo, gatewayPaymentID string, amount models.Money, currency string) (*models.Order, error) {
	gatewayPaymentID = strings.TrimSpace(gatewayPaymentID)
	if gatewayPaymentID == "" {
		return nil, ErrPaymentAmountMismatch
	}

	// 幂等：该流水号已入账则直接返回当前订单
	existing, err := s.paymentRepo.GetCaptureByGatewayID(gatewayPaymentID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Infow("payment_capture_duplicate",
			"gateway_payment_id", gatewayPaymentID,
			"order_id", existing.OrderID,
		)
		order, err := s.orderRepo.GetByID(existing.OrderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, ErrOrderNotFound
		}
		return order, nil
	}

	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if order.TotalAmount.Cmp(amount) != 0 || order.Currency != currency {
		// 金额不符：留痕等待人工处理，订单保持原状
		record := &models.Payment{
			OrderID:          order.ID,
			Kind:             constants.PaymentKindCapture,
			GatewayPaymentID: gatewayPaymentID,
			Amount:           amount,
			Currency:         currency,
			Status:           constants.PaymentRecordAmountMismatch,
		}
		if err := s.paymentRepo.Create(record); err != nil {
			return nil, err
		}
		logger.Warnw("payment_amount_mismatch",
			"order_id", order.ID,
			"order_no", order.OrderNo,
			"expected", order.TotalAmount.String(),
			"received", amount.String(),
			"currency", currency,
			"gateway_payment_id", gatewayPaymentID,
		)
		return nil, ErrPaymentAmountMismatch
	}

	err = models.DB.Transaction(func(tx *gorm.DB) error {
		record := &models.Payment{
			OrderID:          order.ID,
			Kind:             constants.PaymentKindCapture,
			GatewayPaymentID: gatewayPaymentID,
			Amount:           amount,
			Currency:         currency,
			Status:           constants.PaymentRecordApplied,
		}
		if err := s.paymentRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		return s.orderRepo.WithTx(tx).UpdateFields(order.ID, map[string]interface{}{
			"payment_status":     constants.PaymentStatusCaptured,
			"gateway_payment_id": gatewayPaymentID,
			"updated_at":         time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	order.PaymentStatus = constants.PaymentStatusCaptured
	order.GatewayPaymentID = gatewayPaymentID
	logger.Infow("payment_captured",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"amount", amount.String(),
		"gateway_payment_id", gatewayPaymentID,
	)

	// 入账后自动确认：pending → confirmed 触发配送创建与派单
	if order.Status == constants.OrderStatusPending {
		confirmed, err := s.orderService.applyTransition(order, constants.OrderStatusConfirmed, order.Version)
		if err != nil {
			logger.Errorw("order_confirm_after_capture_failed",
				"order_id", order.ID,
				"error", err,
			)
			return order, nil
		}
		return confirmed, nil
	}
	return order, nil
}

// Refund 退款：只改支付状态，订单状态机不重开
func (s *PaymentService) Refund(orderID uint, amount models.Money, reason string) (*models.Payment, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.PaymentStatus != constants.PaymentStatusCaptured &&
		order.PaymentStatus != constants.PaymentStatusPartiallyRefunded {
		return nil, ErrPaymentNotCaptured
	}

	refunded, err := s.paymentRepo.SumRefunded(orderID)
	if err != nil {
		return nil, err
	}
	remaining := order.TotalAmount.Sub(refunded)
	if amount.Decimal.IsZero() || amount.Decimal.IsNegative() {
		amount = remaining
	}
	if amount.Cmp(remaining) > 0 {
		return nil, ErrRefundExceedsCapture
	}

	newStatus := constants.PaymentStatusPartiallyRefunded
	if refunded.Add(amount).Cmp(order.TotalAmount) == 0 {
		newStatus = constants.PaymentStatusRefunded
	}

	record := &models.Payment{
		OrderID:  orderID,
		Kind:     constants.PaymentKindRefund,
		Amount:   amount,
		Currency: order.Currency,
		Status:   constants.PaymentRecordApplied,
		Reason:   reason,
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.WithTx(tx).Create(record); err != nil {
			return err
		}
		return s.orderRepo.WithTx(tx).UpdateFields(orderID, map[string]interface{}{
			"payment_status": newStatus,
			"updated_at":     time.Now(),
		})
	})
	if err != nil {
		return nil, err
	}
	logger.Infow("payment_refunded",
		"order_id", orderID,
		"amount", amount.String(),
		"reason", reason,
		"payment_status", newStatus,
	)

	if newStatus == constants.PaymentStatusRefunded {
		if err := s.orderService.MarkRefunded(orderID); err != nil {
			logger.Warnw("order_mark_refunded_failed", "order_id", orderID, "error", err)
		}
	}
	return record, nil
}

// AutoRefund 寻人失败等系统原因触发的全额退款
func (s *PaymentService) AutoRefund(orderID uint, reason string) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.PaymentStatus == constants.PaymentStatusRefunded {
		return nil
	}
	if order.PaymentStatus == constants.PaymentStatusPending {
		// 未入账无须退款
		return nil
	}
	_, err = s.Refund(orderID, models.Money{}, reason)
	return err
}
