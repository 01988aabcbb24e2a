package service

import (
	"errors"
	"testing"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/models"
)

func TestConfirmCaptureHappyPath(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	confirmed, err := env.paymentService.ConfirmCapture(order.OrderNo, "wx_tx_001", order.TotalAmount, "CNY")
	if err != nil {
		t.Fatalf("confirm capture failed: %v", err)
	}
	if confirmed.PaymentStatus != constants.PaymentStatusCaptured {
		t.Fatalf("expected captured, got %s", confirmed.PaymentStatus)
	}
	if confirmed.Status != constants.OrderStatusConfirmed {
		t.Fatalf("expected auto-confirm, got %s", confirmed.Status)
	}
	if confirmed.GatewayPaymentID != "wx_tx_001" {
		t.Fatalf("expected gateway id recorded, got %s", confirmed.GatewayPaymentID)
	}

	delivery, err := env.deliveryRepo.GetByOrderID(order.ID)
	if err != nil || delivery == nil {
		t.Fatalf("expected delivery created after confirm, got %v err %v", delivery, err)
	}
}

func TestConfirmCaptureDuplicateGatewayID(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	if _, err := env.paymentService.ConfirmCapture(order.OrderNo, "wx_tx_dup", order.TotalAmount, "CNY"); err != nil {
		t.Fatalf("first capture failed: %v", err)
	}
	again, err := env.paymentService.ConfirmCapture(order.OrderNo, "wx_tx_dup", order.TotalAmount, "CNY")
	if err != nil {
		t.Fatalf("duplicate capture must be a no-op, got %v", err)
	}
	if again.PaymentStatus != constants.PaymentStatusCaptured {
		t.Fatalf("expected captured, got %s", again.PaymentStatus)
	}

	var count int64
	if err := env.db.Model(&models.Payment{}).
		Where("order_id = ? AND kind = ?", order.ID, constants.PaymentKindCapture).
		Count(&count).Error; err != nil {
		t.Fatalf("count captures failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 capture record, got %d", count)
	}
}

func TestConfirmCaptureAmountMismatch(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	wrong, _ := models.NewMoneyFromString("40.00")
	_, err := env.paymentService.ConfirmCapture(order.OrderNo, "wx_tx_bad", wrong, "CNY")
	if !errors.Is(err, ErrPaymentAmountMismatch) {
		t.Fatalf("expected ErrPaymentAmountMismatch, got %v", err)
	}

	stored, err := env.orderService.GetByID(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Status != constants.OrderStatusPending || stored.PaymentStatus != constants.PaymentStatusPending {
		t.Fatalf("mismatch must leave order untouched, got %s/%s", stored.Status, stored.PaymentStatus)
	}

	// 留痕记录供人工对账
	var record models.Payment
	if err := env.db.Where("gateway_payment_id = ?", "wx_tx_bad").First(&record).Error; err != nil {
		t.Fatalf("expected mismatch record, got %v", err)
	}
	if record.Status != constants.PaymentRecordAmountMismatch {
		t.Fatalf("expected amount_mismatch record, got %s", record.Status)
	}
}

func TestConfirmCaptureRetryAfterMismatch(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	wrong, _ := models.NewMoneyFromString("40.00")
	if _, err := env.paymentService.ConfirmCapture(order.OrderNo, "wx_tx_retry", wrong, "CNY"); !errors.Is(err, ErrPaymentAmountMismatch) {
		t.Fatalf("expected ErrPaymentAmountMismatch, got %v", err)
	}

	// 留痕记录不占用幂等键：同流水号携带正确金额的重试必须正常入账
	confirmed, err := env.paymentService.ConfirmCapture(order.OrderNo, "wx_tx_retry", order.TotalAmount, "CNY")
	if err != nil {
		t.Fatalf("corrected capture failed: %v", err)
	}
	if confirmed.PaymentStatus != constants.PaymentStatusCaptured {
		t.Fatalf("expected captured, got %s", confirmed.PaymentStatus)
	}
	if confirmed.Status != constants.OrderStatusConfirmed {
		t.Fatalf("expected auto-confirm, got %s", confirmed.Status)
	}

	var records []models.Payment
	if err := env.db.Where("gateway_payment_id = ?", "wx_tx_retry").Order("id asc").Find(&records).Error; err != nil {
		t.Fatalf("list records failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected mismatch + applied records, got %d", len(records))
	}
	if records[0].Status != constants.PaymentRecordAmountMismatch || records[1].Status != constants.PaymentRecordApplied {
		t.Fatalf("unexpected record statuses %s/%s", records[0].Status, records[1].Status)
	}

	// 入账后的重复通知回到幂等短路
	again, err := env.paymentService.ConfirmCapture(order.OrderNo, "wx_tx_retry", order.TotalAmount, "CNY")
	if err != nil {
		t.Fatalf("duplicate after applied must be a no-op, got %v", err)
	}
	if again.PaymentStatus != constants.PaymentStatusCaptured {
		t.Fatalf("expected captured, got %s", again.PaymentStatus)
	}
}

func TestRefundRecordsDoNotCollide(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	first, _ := env.seedConfirmedDelivery(t, store, "30.00")
	second, _ := env.seedConfirmedDelivery(t, store, "45.00")

	// 多笔退款流水共存：退款不占网关流水号幂等键
	if _, err := env.paymentService.Refund(first.ID, models.Money{}, "customer_complaint"); err != nil {
		t.Fatalf("first refund failed: %v", err)
	}
	if _, err := env.paymentService.Refund(second.ID, models.Money{}, "customer_complaint"); err != nil {
		t.Fatalf("second refund failed: %v", err)
	}

	var count int64
	if err := env.db.Model(&models.Payment{}).Where("kind = ?", constants.PaymentKindRefund).Count(&count).Error; err != nil {
		t.Fatalf("count refunds failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 refund records, got %d", count)
	}
}

func TestRefundPartialThenFull(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order, _ := env.seedConfirmedDelivery(t, store, "100.00")

	part, _ := models.NewMoneyFromString("30.00")
	if _, err := env.paymentService.Refund(order.ID, part, "customer_complaint"); err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}
	stored, _ := env.orderService.GetByID(order.ID)
	if stored.PaymentStatus != constants.PaymentStatusPartiallyRefunded {
		t.Fatalf("expected partially_refunded, got %s", stored.PaymentStatus)
	}

	// 零金额退款视为退掉剩余全部
	if _, err := env.paymentService.Refund(order.ID, models.Money{}, "customer_complaint"); err != nil {
		t.Fatalf("full refund failed: %v", err)
	}
	stored, _ = env.orderService.GetByID(order.ID)
	if stored.PaymentStatus != constants.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", stored.PaymentStatus)
	}
	// 进行中订单的退款不重开订单状态机
	if stored.Status != constants.OrderStatusConfirmed {
		t.Fatalf("refund must not touch order status, got %s", stored.Status)
	}
}

func TestRefundExceedsCapture(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order, _ := env.seedConfirmedDelivery(t, store, "50.00")

	over, _ := models.NewMoneyFromString("60.00")
	if _, err := env.paymentService.Refund(order.ID, over, "oops"); !errors.Is(err, ErrRefundExceedsCapture) {
		t.Fatalf("expected ErrRefundExceedsCapture, got %v", err)
	}
}

func TestRefundBeforeCapture(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	amount, _ := models.NewMoneyFromString("10.00")
	if _, err := env.paymentService.Refund(order.ID, amount, "early"); !errors.Is(err, ErrPaymentNotCaptured) {
		t.Fatalf("expected ErrPaymentNotCaptured, got %v", err)
	}
}

func TestAutoRefundSkipsUncaptured(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	if err := env.paymentService.AutoRefund(order.ID, constants.CancelReasonNoDriverAvailable); err != nil {
		t.Fatalf("auto refund on uncaptured order must be a no-op, got %v", err)
	}
	stored, _ := env.orderService.GetByID(order.ID)
	if stored.PaymentStatus != constants.PaymentStatusPending {
		t.Fatalf("expected payment to stay pending, got %s", stored.PaymentStatus)
	}
}

func TestAutoRefundAfterCancelMarksOrderRefunded(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order, delivery := env.seedConfirmedDelivery(t, store, "70.00")

	if _, err := env.deliveryService.Cancel(delivery.ID, constants.CancelReasonNoDriverAvailable); err != nil {
		t.Fatalf("cancel delivery failed: %v", err)
	}
	if err := env.paymentService.AutoRefund(order.ID, constants.CancelReasonNoDriverAvailable); err != nil {
		t.Fatalf("auto refund failed: %v", err)
	}

	stored, _ := env.orderService.GetByID(order.ID)
	if stored.PaymentStatus != constants.PaymentStatusRefunded {
		t.Fatalf("expected refunded, got %s", stored.PaymentStatus)
	}
	// 已取消订单全额退款后收尾为 refunded
	if stored.Status != constants.OrderStatusRefunded {
		t.Fatalf("expected order refunded, got %s", stored.Status)
	}
}
