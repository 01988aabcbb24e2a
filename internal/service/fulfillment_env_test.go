package service

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// fulfillmentEnv 服务层测试环境
type fulfillmentEnv struct {
	db              *gorm.DB
	orderRepo       repository.OrderRepository
	deliveryRepo    repository.DeliveryRepository
	driverRepo      repository.DriverRepository
	offerRepo       repository.OfferRepository
	paymentRepo     repository.PaymentRepository
	storeRepo       repository.StoreRepository
	orderService    *OrderService
	deliveryService *DeliveryService
	paymentService  *PaymentService
}

func setupFulfillmentEnv(t *testing.T) *fulfillmentEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Store{},
		&models.Order{},
		&models.OrderItem{},
		&models.Delivery{},
		&models.TrackingPoint{},
		&models.Driver{},
		&models.AssignmentOffer{},
		&models.Payment{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	env := &fulfillmentEnv{
		db:           db,
		orderRepo:    repository.NewOrderRepository(db),
		deliveryRepo: repository.NewDeliveryRepository(db),
		driverRepo:   repository.NewDriverRepository(db),
		offerRepo:    repository.NewOfferRepository(db),
		paymentRepo:  repository.NewPaymentRepository(db),
		storeRepo:    repository.NewStoreRepository(db),
	}
	env.orderService = NewOrderService(env.orderRepo, env.deliveryRepo, env.storeRepo, nil)
	flatFee, _ := models.NewMoneyFromString("5.00")
	env.deliveryService = NewDeliveryService(env.deliveryRepo, env.driverRepo, env.offerRepo, env.orderService, nil, FlatPolicy{Base: flatFee})
	env.orderService.SetDeliveryService(env.deliveryService)
	env.paymentService = NewPaymentService(env.orderRepo, env.paymentRepo, env.orderService)
	return env
}

func (e *fulfillmentEnv) seedStore(t *testing.T) *models.Store {
	t.Helper()
	store := &models.Store{
		TenantID: 1,
		Name:     "测试门店",
		Address:  "江南大道 1001 号",
		Lat:      30.2084,
		Lng:      120.2103,
	}
	if err := e.storeRepo.Create(store); err != nil {
		t.Fatalf("seed store failed: %v", err)
	}
	return store
}

func (e *fulfillmentEnv) seedDriver(t *testing.T, name string, lat, lng float64) *models.Driver {
	t.Helper()
	now := time.Now()
	driver := &models.Driver{
		Name:        name,
		IsAvailable: true,
		CurrentLat:  &lat,
		CurrentLng:  &lng,
		LocationAt:  &now,
		Rating:      4.8,
	}
	if err := e.driverRepo.Create(driver); err != nil {
		t.Fatalf("seed driver failed: %v", err)
	}
	return driver
}

func (e *fulfillmentEnv) seedOrder(t *testing.T, store *models.Store, amount string) *models.Order {
	t.Helper()
	price, err := models.NewMoneyFromString(amount)
	if err != nil {
		t.Fatalf("parse amount failed: %v", err)
	}
	order, err := e.orderService.Create(CreateOrderInput{
		TenantID:       store.TenantID,
		StoreID:        store.ID,
		CustomerID:     1001,
		Currency:       "CNY",
		DropoffAddress: "文三西路 58 号",
		DropoffLat:     30.2852,
		DropoffLng:     120.1092,
		Items: []CreateOrderItem{
			{ProductID: 1, Name: "直播间秒杀商品", Quantity: 1, UnitPrice: price},
		},
	})
	if err != nil {
		t.Fatalf("seed order failed: %v", err)
	}
	return order
}

// seedConfirmedDelivery 扣款入账并确认订单，返回自动创建的配送单
func (e *fulfillmentEnv) seedConfirmedDelivery(t *testing.T, store *models.Store, amount string) (*models.Order, *models.Delivery) {
	t.Helper()
	order := e.seedOrder(t, store, amount)
	confirmed, err := e.paymentService.ConfirmCapture(order.OrderNo, "wx_"+order.OrderNo, order.TotalAmount, order.Currency)
	if err != nil {
		t.Fatalf("confirm capture failed: %v", err)
	}
	if confirmed.Status != constants.OrderStatusConfirmed {
		t.Fatalf("expected confirmed order, got %s", confirmed.Status)
	}
	delivery, err := e.deliveryRepo.GetByOrderID(order.ID)
	if err != nil || delivery == nil {
		t.Fatalf("expected delivery for order %d, got %v err %v", order.ID, delivery, err)
	}
	return confirmed, delivery
}
