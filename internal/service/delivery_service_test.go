package service

import (
	"errors"
	"testing"
	"time"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/models"
)

// seedSearchingDelivery 准备一张处于寻人中的配送单
func (e *fulfillmentEnv) seedSearchingDelivery(t *testing.T, store *models.Store) (*models.Order, *models.Delivery) {
	t.Helper()
	order, delivery := e.seedConfirmedDelivery(t, store, "66.00")
	searching, err := e.deliveryService.Transition(delivery.ID, constants.DeliveryStatusSearchingDriver, nil)
	if err != nil {
		t.Fatalf("enter searching failed: %v", err)
	}
	return order, searching
}

func TestAssignAcceptLifecycle(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	_, delivery := env.seedSearchingDelivery(t, store)

	offer, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if offer.DriverID != driver.ID || offer.Round != 1 {
		t.Fatalf("unexpected offer %+v", offer)
	}
	assigned, err := env.deliveryService.GetByID(delivery.ID)
	if err != nil {
		t.Fatalf("get delivery failed: %v", err)
	}
	if assigned.Status != constants.DeliveryStatusDriverAssigned {
		t.Fatalf("expected driver_assigned, got %s", assigned.Status)
	}
	if assigned.DriverID == nil || *assigned.DriverID != driver.ID {
		t.Fatalf("expected driver %d on delivery, got %v", driver.ID, assigned.DriverID)
	}

	accepted, err := env.deliveryService.Accept(delivery.ID, driver.ID)
	if err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	if accepted.Status != constants.DeliveryStatusDriverAccepted {
		t.Fatalf("expected driver_accepted, got %s", accepted.Status)
	}

	// 接单后邀约回收、骑手被占用
	left, err := env.offerRepo.GetByDeliveryID(delivery.ID)
	if err != nil {
		t.Fatalf("get offer failed: %v", err)
	}
	if left != nil {
		t.Fatalf("expected offer removed, got %+v", left)
	}
	stored, _ := env.driverRepo.GetByID(driver.ID)
	if stored.ActiveDeliveryID == nil || *stored.ActiveDeliveryID != delivery.ID {
		t.Fatalf("expected driver to hold delivery %d, got %v", delivery.ID, stored.ActiveDeliveryID)
	}
}

func TestAcceptWrongDriver(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	other := env.seedDriver(t, "钱骑手", 30.20, 120.22)
	_, delivery := env.seedSearchingDelivery(t, store)

	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, other.ID); !errors.Is(err, ErrDriverMismatch) {
		t.Fatalf("expected ErrDriverMismatch, got %v", err)
	}
}

func TestAcceptExpiredOffer(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	_, delivery := env.seedSearchingDelivery(t, store)

	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, -time.Second); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); !errors.Is(err, ErrOfferExpired) {
		t.Fatalf("expected ErrOfferExpired, got %v", err)
	}
}

func TestAcceptBusyDriver(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	_, delivery := env.seedSearchingDelivery(t, store)

	// 骑手已有进行中的配送单
	if claimed, err := env.driverRepo.ClaimDelivery(driver.ID, 9999); err != nil || !claimed {
		t.Fatalf("pre-claim failed: claimed=%v err=%v", claimed, err)
	}
	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); !errors.Is(err, ErrDriverBusy) {
		t.Fatalf("expected ErrDriverBusy, got %v", err)
	}
}

func TestRejectReturnsToSearch(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	_, delivery := env.seedSearchingDelivery(t, store)

	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	rejected, err := env.deliveryService.Reject(delivery.ID, driver.ID)
	if err != nil {
		t.Fatalf("reject failed: %v", err)
	}
	if rejected != driver.ID {
		t.Fatalf("expected rejected driver %d, got %d", driver.ID, rejected)
	}

	stored, _ := env.deliveryService.GetByID(delivery.ID)
	if stored.Status != constants.DeliveryStatusSearchingDriver {
		t.Fatalf("expected searching_driver, got %s", stored.Status)
	}
	if stored.DriverID != nil {
		t.Fatalf("expected driver cleared, got %v", stored.DriverID)
	}
	left, _ := env.offerRepo.GetByDeliveryID(delivery.ID)
	if left != nil {
		t.Fatalf("expected offer removed, got %+v", left)
	}
}

func TestExpireOfferStaleIsNoop(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	_, delivery := env.seedSearchingDelivery(t, store)

	offer, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute)
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	// 接单后到达的超时任务必须空转
	_, expired, err := env.deliveryService.ExpireOffer(delivery.ID, offer.OfferID)
	if err != nil {
		t.Fatalf("expire failed: %v", err)
	}
	if expired {
		t.Fatalf("stale offer expiry must be a no-op")
	}
	stored, _ := env.deliveryService.GetByID(delivery.ID)
	if stored.Status != constants.DeliveryStatusDriverAccepted {
		t.Fatalf("expected driver_accepted, got %s", stored.Status)
	}
}

func TestMilestonesMirrorOrderAndComplete(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	order, delivery := env.seedSearchingDelivery(t, store)

	// 门店侧先把订单推进到待取货，配送里程碑才能镜像
	cur := order
	for _, target := range []string{constants.OrderStatusPreparing, constants.OrderStatusReadyForPickup} {
		next, err := env.orderService.Transition(cur.ID, target, cur.Version)
		if err != nil {
			t.Fatalf("order transition to %s failed: %v", target, err)
		}
		cur = next
	}

	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	for _, target := range []string{
		constants.DeliveryStatusAtPickup,
		constants.DeliveryStatusPickedUp,
		constants.DeliveryStatusInTransit,
		constants.DeliveryStatusAtDropoff,
	} {
		if _, err := env.deliveryService.DriverTransition(delivery.ID, driver.ID, target); err != nil {
			t.Fatalf("driver transition to %s failed: %v", target, err)
		}
	}
	midOrder, _ := env.orderService.GetByID(order.ID)
	if midOrder.Status != constants.OrderStatusInTransit {
		t.Fatalf("expected order mirrored to in_transit, got %s", midOrder.Status)
	}

	tip, _ := models.NewMoneyFromString("3.00")
	done, err := env.deliveryService.Complete(delivery.ID, driver.ID, nil, tip)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if done.Status != constants.DeliveryStatusDelivered {
		t.Fatalf("expected delivered, got %s", done.Status)
	}

	stored, _ := env.deliveryService.GetByID(delivery.ID)
	if got := stored.DriverEarnings.String(); got != "5.00" {
		t.Fatalf("expected flat earnings 5.00, got %s", got)
	}
	if got := stored.TipAmount.String(); got != "3.00" {
		t.Fatalf("expected tip 3.00, got %s", got)
	}
	if stored.DeliveredAt == nil {
		t.Fatalf("expected delivered_at set")
	}

	finalOrder, _ := env.orderService.GetByID(order.ID)
	if finalOrder.Status != constants.OrderStatusDelivered {
		t.Fatalf("expected order delivered, got %s", finalOrder.Status)
	}
	freed, _ := env.driverRepo.GetByID(driver.ID)
	if freed.ActiveDeliveryID != nil || !freed.IsAvailable {
		t.Fatalf("expected driver freed, got active=%v available=%v", freed.ActiveDeliveryID, freed.IsAvailable)
	}
}

func TestCompleteHonorsSuppliedEarnings(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	order, delivery := env.seedSearchingDelivery(t, store)

	cur := order
	for _, target := range []string{constants.OrderStatusPreparing, constants.OrderStatusReadyForPickup} {
		next, err := env.orderService.Transition(cur.ID, target, cur.Version)
		if err != nil {
			t.Fatalf("order transition failed: %v", err)
		}
		cur = next
	}
	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	for _, target := range []string{
		constants.DeliveryStatusAtPickup,
		constants.DeliveryStatusPickedUp,
		constants.DeliveryStatusInTransit,
		constants.DeliveryStatusAtDropoff,
	} {
		if _, err := env.deliveryService.DriverTransition(delivery.ID, driver.ID, target); err != nil {
			t.Fatalf("driver transition failed: %v", err)
		}
	}

	// 外部结算金额优先于平台策略（策略会算出 5.00）
	settled, _ := models.NewMoneyFromString("12.50")
	if _, err := env.deliveryService.Complete(delivery.ID, driver.ID, &settled, models.Money{}); err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	stored, _ := env.deliveryService.GetByID(delivery.ID)
	if got := stored.DriverEarnings.String(); got != "12.50" {
		t.Fatalf("expected supplied earnings 12.50, got %s", got)
	}
}

func TestDriverTransitionGuards(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	other := env.seedDriver(t, "钱骑手", 30.20, 120.22)
	_, delivery := env.seedSearchingDelivery(t, store)

	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}

	if _, err := env.deliveryService.DriverTransition(delivery.ID, other.ID, constants.DeliveryStatusAtPickup); !errors.Is(err, ErrDriverMismatch) {
		t.Fatalf("expected ErrDriverMismatch, got %v", err)
	}
	// 送达与失败不走里程碑入口
	if _, err := env.deliveryService.DriverTransition(delivery.ID, driver.ID, constants.DeliveryStatusDelivered); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	// 跳级推进被状态表拦下
	if _, err := env.deliveryService.DriverTransition(delivery.ID, driver.ID, constants.DeliveryStatusInTransit); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestFailDeliveryReleasesDriver(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	order, delivery := env.seedSearchingDelivery(t, store)

	cur := order
	for _, target := range []string{constants.OrderStatusPreparing, constants.OrderStatusReadyForPickup} {
		next, err := env.orderService.Transition(cur.ID, target, cur.Version)
		if err != nil {
			t.Fatalf("order transition failed: %v", err)
		}
		cur = next
	}
	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); err != nil {
		t.Fatalf("accept failed: %v", err)
	}
	for _, target := range []string{
		constants.DeliveryStatusAtPickup,
		constants.DeliveryStatusPickedUp,
		constants.DeliveryStatusInTransit,
	} {
		if _, err := env.deliveryService.DriverTransition(delivery.ID, driver.ID, target); err != nil {
			t.Fatalf("driver transition to %s failed: %v", target, err)
		}
	}

	failed, err := env.deliveryService.Fail(delivery.ID, driver.ID, "customer_unreachable")
	if err != nil {
		t.Fatalf("fail failed: %v", err)
	}
	if failed.Status != constants.DeliveryStatusFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}
	stored, _ := env.orderService.GetByID(order.ID)
	if stored.Status != constants.OrderStatusFailed {
		t.Fatalf("expected order failed, got %s", stored.Status)
	}
	freed, _ := env.driverRepo.GetByID(driver.ID)
	if freed.ActiveDeliveryID != nil {
		t.Fatalf("expected driver released, got %v", freed.ActiveDeliveryID)
	}
}

func TestCancelCascadesToOrder(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order, delivery := env.seedConfirmedDelivery(t, store, "66.00")

	cancelled, err := env.deliveryService.Cancel(delivery.ID, constants.CancelReasonStoreCancelled)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != constants.DeliveryStatusCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.Status)
	}
	stored, _ := env.orderService.GetByID(order.ID)
	if stored.Status != constants.OrderStatusCancelled {
		t.Fatalf("expected order cancelled, got %s", stored.Status)
	}
}

func TestToggleAvailability(t *testing.T) {
	env := setupFulfillmentEnv(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)

	if err := env.deliveryService.ToggleAvailability(driver.ID, false); err != nil {
		t.Fatalf("toggle off failed: %v", err)
	}
	stored, _ := env.driverRepo.GetByID(driver.ID)
	if stored.IsAvailable {
		t.Fatalf("expected driver off duty")
	}

	if err := env.deliveryService.ToggleAvailability(driver.ID, true); err != nil {
		t.Fatalf("toggle on failed: %v", err)
	}
	stored, _ = env.driverRepo.GetByID(driver.ID)
	if !stored.IsAvailable {
		t.Fatalf("expected driver on duty")
	}

	if err := env.deliveryService.ToggleAvailability(9999, true); !errors.Is(err, ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}
}
