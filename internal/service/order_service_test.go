package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/models"
)

func TestCreateOrderComputesTotal(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)

	price, _ := models.NewMoneyFromString("19.90")
	order, err := env.orderService.Create(CreateOrderInput{
		TenantID:       store.TenantID,
		StoreID:        store.ID,
		CustomerID:     1001,
		Currency:       "cny",
		DropoffAddress: "文三西路 58 号",
		DropoffLat:     30.2852,
		DropoffLng:     120.1092,
		Items: []CreateOrderItem{
			{ProductID: 1, Name: "直播间秒杀商品", Quantity: 3, UnitPrice: price},
			{ProductID: 2, Name: "加购赠品", Quantity: 1, UnitPrice: models.Money{}},
		},
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if order.Status != constants.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.PaymentStatus != constants.PaymentStatusPending {
		t.Fatalf("expected payment pending, got %s", order.PaymentStatus)
	}
	if got := order.TotalAmount.String(); got != "59.70" {
		t.Fatalf("expected total 59.70, got %s", got)
	}
	if order.Currency != "CNY" {
		t.Fatalf("expected currency CNY, got %s", order.Currency)
	}
	if !strings.HasPrefix(order.OrderNo, "LS") {
		t.Fatalf("unexpected order no %s", order.OrderNo)
	}
	if order.Version != 0 {
		t.Fatalf("expected version 0, got %d", order.Version)
	}
	if len(order.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(order.Items))
	}
}

func TestCreateOrderRejectsEmptyItems(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)

	_, err := env.orderService.Create(CreateOrderInput{
		TenantID:   store.TenantID,
		StoreID:    store.ID,
		CustomerID: 1001,
	})
	if !errors.Is(err, ErrInvalidOrderItem) {
		t.Fatalf("expected ErrInvalidOrderItem, got %v", err)
	}
}

func TestCreateOrderUnknownStore(t *testing.T) {
	env := setupFulfillmentEnv(t)

	price, _ := models.NewMoneyFromString("9.90")
	_, err := env.orderService.Create(CreateOrderInput{
		TenantID:   1,
		StoreID:    999,
		CustomerID: 1001,
		Items:      []CreateOrderItem{{ProductID: 1, Quantity: 1, UnitPrice: price}},
	})
	if !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
}

func TestConfirmRequiresCapturedPayment(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	_, err := env.orderService.Transition(order.ID, constants.OrderStatusConfirmed, order.Version)
	if !errors.Is(err, ErrPaymentRequired) {
		t.Fatalf("expected ErrPaymentRequired, got %v", err)
	}

	stored, err := env.orderService.GetByID(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Status != constants.OrderStatusPending {
		t.Fatalf("expected order to stay pending, got %s", stored.Status)
	}
}

func TestTransitionRejectsIllegalEdge(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	_, err := env.orderService.Transition(order.ID, constants.OrderStatusDelivered, order.Version)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}

	_, err = env.orderService.Transition(order.ID, "teleported", order.Version)
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition on unknown status, got %v", err)
	}
}

func TestTransitionStaleVersionConflict(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	if _, err := env.orderService.Transition(order.ID, constants.OrderStatusCancelled, order.Version+5); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	stored, err := env.orderService.GetByID(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if stored.Status != constants.OrderStatusPending || stored.Version != 0 {
		t.Fatalf("conflict must not change order, got %s v%d", stored.Status, stored.Version)
	}
}

func TestTransitionBumpsVersion(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	cancelled, err := env.orderService.Transition(order.ID, constants.OrderStatusCancelled, order.Version)
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Version != order.Version+1 {
		t.Fatalf("expected version %d, got %d", order.Version+1, cancelled.Version)
	}

	// 同一期望版本重放必然失败
	if _, err := env.orderService.Transition(order.ID, constants.OrderStatusCancelled, order.Version); !errors.Is(err, ErrIllegalTransition) && !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected replay to fail, got %v", err)
	}
}

func TestConfirmCreatesDeliveryOnce(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order, delivery := env.seedConfirmedDelivery(t, store, "88.00")

	if delivery.Status != constants.DeliveryStatusPending {
		t.Fatalf("expected pending delivery, got %s", delivery.Status)
	}
	if delivery.PickupAddress != store.Address {
		t.Fatalf("pickup should come from store, got %s", delivery.PickupAddress)
	}
	if !strings.HasPrefix(delivery.DeliveryNo, "DL") {
		t.Fatalf("unexpected delivery no %s", delivery.DeliveryNo)
	}

	// 再次调用幂等：不新建第二张配送单
	stored, err := env.orderService.GetByID(order.ID)
	if err != nil {
		t.Fatalf("get order failed: %v", err)
	}
	if !stored.DeliveryCreated {
		t.Fatalf("expected delivery_created flag set")
	}
	if err := env.orderService.ensureDelivery(stored); err != nil {
		t.Fatalf("repeat ensure failed: %v", err)
	}
	var count int64
	if err := env.db.Model(&models.Delivery{}).Where("order_id = ?", order.ID).Count(&count).Error; err != nil {
		t.Fatalf("count deliveries failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", count)
	}
}

func TestDisputeOnlyFromDelivered(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	order := env.seedOrder(t, store, "50.00")

	if _, err := env.orderService.Dispute(order.ID); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition for pending order, got %v", err)
	}

	// 直接把订单走到 delivered 再发起争议
	confirmed, _ := env.seedConfirmedDelivery(t, store, "60.00")
	cur := confirmed
	for _, target := range []string{
		constants.OrderStatusPreparing,
		constants.OrderStatusReadyForPickup,
		constants.OrderStatusPickedUp,
		constants.OrderStatusInTransit,
		constants.OrderStatusDelivered,
	} {
		next, err := env.orderService.Transition(cur.ID, target, cur.Version)
		if err != nil {
			t.Fatalf("transition to %s failed: %v", target, err)
		}
		cur = next
	}

	disputed, err := env.orderService.Dispute(cur.ID)
	if err != nil {
		t.Fatalf("dispute failed: %v", err)
	}
	if disputed.Status != constants.OrderStatusDisputed {
		t.Fatalf("expected disputed, got %s", disputed.Status)
	}

	resolved, err := env.orderService.Resolve(cur.ID)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Status != constants.OrderStatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
}

func TestCancelOrderCascadesToDelivery(t *testing.T) {
	env := setupFulfillmentEnv(t)
	store := env.seedStore(t)
	driver := env.seedDriver(t, "赵骑手", 30.21, 120.21)
	order, delivery := env.seedSearchingDelivery(t, store)

	if _, err := env.deliveryService.Assign(delivery.ID, driver.ID, 1, time.Minute); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	// 订单侧取消必须联动：邀约中的配送不能继续被骑手接走
	cancelled, err := env.orderService.Transition(order.ID, constants.OrderStatusCancelled, order.Version)
	if err != nil {
		t.Fatalf("cancel order failed: %v", err)
	}
	if cancelled.Status != constants.OrderStatusCancelled {
		t.Fatalf("expected cancelled order, got %s", cancelled.Status)
	}

	storedDelivery, _ := env.deliveryService.GetByID(delivery.ID)
	if storedDelivery.Status != constants.DeliveryStatusCancelled {
		t.Fatalf("expected delivery cancelled, got %s", storedDelivery.Status)
	}
	if storedDelivery.DriverID != nil {
		t.Fatalf("expected driver cleared, got %v", storedDelivery.DriverID)
	}
	offer, _ := env.offerRepo.GetByDeliveryID(delivery.ID)
	if offer != nil {
		t.Fatalf("expected pending offer recalled, got %+v", offer)
	}
	if _, err := env.deliveryService.Accept(delivery.ID, driver.ID); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("accept after cancel must fail, got %v", err)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	env := setupFulfillmentEnv(t)
	if _, err := env.orderService.GetByID(12345); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := env.orderService.GetByOrderNo("LS-NOPE"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
