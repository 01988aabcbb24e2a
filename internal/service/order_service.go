package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/liveshop-next/internal/broadcast"
	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/lattice"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Dispatcher 派单入口（订单确认后触发寻人）
type Dispatcher interface {
	StartSearch(deliveryID uint) error
}

// OrderService 订单服务
type OrderService struct {
	orderRepo       repository.OrderRepository
	deliveryRepo    repository.DeliveryRepository
	storeRepo       repository.StoreRepository
	hub             *broadcast.Hub
	dispatcher      Dispatcher
	deliveryService *DeliveryService
}

// NewOrderService 创建订单服务
func NewOrderService(orderRepo repository.OrderRepository, deliveryRepo repository.DeliveryRepository, storeRepo repository.StoreRepository, hub *broadcast.Hub) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		deliveryRepo: deliveryRepo,
		storeRepo:    storeRepo,
		hub:          hub,
	}
}

// SetDispatcher 注入派单引擎（构造时引擎尚未就绪）
func (s *OrderService) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// SetDeliveryService 注入配送服务（订单取消时级联取消配送，构造时尚未就绪）
func (s *OrderService) SetDeliveryService(d *DeliveryService) {
	s.deliveryService = d
}

// CreateOrderInput 创建订单输入
type CreateOrderInput struct {
	TenantID       uint
	StoreID        uint
	CustomerID     uint
	Currency       string
	DropoffAddress string
	DropoffLat     float64
	DropoffLng     float64
	Items          []CreateOrderItem
}

// CreateOrderItem 创建订单项输入
type CreateOrderItem struct {
	ProductID uint
	VariantID *uint
	Name      string
	Quantity  int
	UnitPrice models.Money
}

// Create 创建订单：金额在创建时锁定，之后不再变动
func (s *OrderService) Create(input CreateOrderInput) (*models.Order, error) {
	if input.StoreID == 0 || input.CustomerID == 0 || len(input.Items) == 0 {
		return nil, ErrInvalidOrderItem
	}
	store, err := s.storeRepo.GetByID(input.StoreID)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, ErrStoreNotFound
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = constants.SiteCurrencyDefault
	}

	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(input.Items))
	for _, item := range input.Items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, ErrInvalidOrderItem
		}
		lineTotal := item.UnitPrice.Decimal.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductID:  item.ProductID,
			VariantID:  item.VariantID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: models.NewMoneyFromDecimal(lineTotal),
		})
	}

	order := &models.Order{
		OrderNo:        generateOrderNo("LS"),
		TenantID:       input.TenantID,
		StoreID:        input.StoreID,
		CustomerID:     input.CustomerID,
		Status:         constants.OrderStatusPending,
		PaymentStatus:  constants.PaymentStatusPending,
		Currency:       currency,
		TotalAmount:    models.NewMoneyFromDecimal(total),
		Version:        0,
		DropoffAddress: input.DropoffAddress,
		DropoffLat:     input.DropoffLat,
		DropoffLng:     input.DropoffLng,
	}
	if err := s.orderRepo.Create(order, items); err != nil {
		return nil, err
	}
	order.Items = items

	logger.Infow("order_created",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"store_id", order.StoreID,
		"total", order.TotalAmount.String(),
	)
	s.emitOrderStatus(order, "", constants.OrderStatusPending)
	return order, nil
}

// GetByID 查询订单
func (s *OrderService) GetByID(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// GetByOrderNo 按订单号查询订单
func (s *OrderService) GetByOrderNo(orderNo string) (*models.Order, error) {
	order, err := s.orderRepo.GetByOrderNo(orderNo)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return order, nil
}

// Transition 执行一次带版本校验的订单状态转移
func (s *OrderService) Transition(orderID uint, target string, expectedVersion int) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	return s.applyTransition(order, target, expectedVersion)
}

// TransitionCurrent 在当前版本上执行转移（内部镜像/取消路径使用，单次尝试）。
// 已处于目标状态时幂等返回，镜像与级联互相触发时在此收敛。
func (s *OrderService) TransitionCurrent(orderID uint, target string) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status == target {
		return order, nil
	}
	return s.applyTransition(order, target, order.Version)
}

func (s *OrderService) applyTransition(order *models.Order, target string, expectedVersion int) (*models.Order, error) {
	from := order.Status
	if !lattice.IsValid(constants.EntityKindOrder, target) {
		return nil, ErrIllegalTransition
	}
	if !lattice.IsLegal(constants.EntityKindOrder, from, target) {
		logger.Warnw("order_transition_rejected",
			"order_id", order.ID,
			"from", from,
			"to", target,
		)
		return nil, ErrIllegalTransition
	}
	// 确认门槛：未完成支付的订单不能进入 confirmed
	if target == constants.OrderStatusConfirmed && order.PaymentStatus != constants.PaymentStatusCaptured {
		return nil, ErrPaymentRequired
	}

	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}
	switch target {
	case constants.OrderStatusConfirmed:
		updates["confirmed_at"] = now
	case constants.OrderStatusDelivered:
		updates["delivered_at"] = now
	case constants.OrderStatusCancelled:
		updates["cancelled_at"] = now
	}

	affected, err := s.orderRepo.UpdateStatusVersioned(order.ID, expectedVersion, target, updates)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		logger.Warnw("order_version_conflict",
			"order_id", order.ID,
			"expected_version", expectedVersion,
		)
		return nil, ErrVersionConflict
	}

	order.Status = target
	order.Version = expectedVersion + 1
	logger.Infow("order_status_changed",
		"order_id", order.ID,
		"order_no", order.OrderNo,
		"from", from,
		"to", target,
		"version", order.Version,
	)
	s.emitOrderStatus(order, from, target)

	if target == constants.OrderStatusConfirmed {
		if err := s.ensureDelivery(order); err != nil {
			logger.Errorw("delivery_create_failed", "order_id", order.ID, "error", err)
		}
	}
	if target == constants.OrderStatusCancelled {
		s.cascadeCancelDelivery(order)
	}
	return order, nil
}

// cascadeCancelDelivery 订单取消后联动取消未到终态的配送单，
// 避免已取消订单继续寻人或被骑手接走
func (s *OrderService) cascadeCancelDelivery(order *models.Order) {
	if s.deliveryService == nil {
		return
	}
	if err := s.deliveryService.CancelByOrder(order.ID, constants.CancelReasonStoreCancelled); err != nil {
		logger.Warnw("delivery_cancel_cascade_failed", "order_id", order.ID, "error", err)
	}
}

// Dispute 管理操作：已送达订单进入争议（争议入口不走常规转移表）
func (s *OrderService) Dispute(orderID uint) (*models.Order, error) {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusDelivered {
		return nil, ErrIllegalTransition
	}
	affected, err := s.orderRepo.UpdateStatusVersioned(order.ID, order.Version, constants.OrderStatusDisputed, map[string]interface{}{"updated_at": time.Now()})
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrVersionConflict
	}
	from := order.Status
	order.Status = constants.OrderStatusDisputed
	order.Version++
	s.emitOrderStatus(order, from, order.Status)
	return order, nil
}

// Resolve 管理操作：争议关闭
func (s *OrderService) Resolve(orderID uint) (*models.Order, error) {
	return s.TransitionCurrent(orderID, constants.OrderStatusResolved)
}

// MarkRefunded 退款完成后将订单收尾到 refunded（仅限已取消订单；
// 进行中订单的退款只改支付状态，不重开订单状态机）
func (s *OrderService) MarkRefunded(orderID uint) error {
	order, err := s.orderRepo.GetByID(orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status != constants.OrderStatusCancelled {
		return nil
	}
	affected, err := s.orderRepo.UpdateStatusVersioned(order.ID, order.Version, constants.OrderStatusRefunded, map[string]interface{}{"updated_at": time.Now()})
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrVersionConflict
	}
	from := order.Status
	order.Status = constants.OrderStatusRefunded
	order.Version++
	s.emitOrderStatus(order, from, order.Status)
	return nil
}

// ensureDelivery 确认后创建配送单，至多一次：同一事务内翻转幂等标记，
// deliveries.order_id 唯一索引兜底并发
func (s *OrderService) ensureDelivery(order *models.Order) error {
	if order.DeliveryCreated {
		return nil
	}
	existing, err := s.deliveryRepo.GetByOrderID(order.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	store, err := s.storeRepo.GetByID(order.StoreID)
	if err != nil {
		return err
	}
	if store == nil {
		return ErrStoreNotFound
	}

	delivery := &models.Delivery{
		DeliveryNo:     generateOrderNo("DL"),
		OrderID:        order.ID,
		Status:         constants.DeliveryStatusPending,
		PickupAddress:  store.Address,
		PickupLat:      store.Lat,
		PickupLng:      store.Lng,
		DropoffAddress: order.DropoffAddress,
		DropoffLat:     order.DropoffLat,
		DropoffLng:     order.DropoffLng,
	}
	err = models.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.deliveryRepo.WithTx(tx).Create(delivery); err != nil {
			return err
		}
		return s.orderRepo.WithTx(tx).UpdateFields(order.ID, map[string]interface{}{
			"delivery_created": true,
		})
	})
	if err != nil {
		return err
	}
	order.DeliveryCreated = true

	logger.Infow("delivery_created",
		"delivery_id", delivery.ID,
		"delivery_no", delivery.DeliveryNo,
		"order_id", order.ID,
	)
	if s.dispatcher != nil {
		go func(deliveryID uint) {
			if err := s.dispatcher.StartSearch(deliveryID); err != nil {
				if errors.Is(err, ErrNoDriverAvailable) {
					// 寻人失败是业务结果，配送已取消、订单进入退款流程
					logger.Infow("dispatch_no_driver", "delivery_id", deliveryID)
					return
				}
				logger.Errorw("dispatch_start_failed", "delivery_id", deliveryID, "error", err)
			}
		}(delivery.ID)
	}
	return nil
}

func (s *OrderService) emitOrderStatus(order *models.Order, from, to string) {
	if s.hub == nil {
		return
	}
	payload := broadcast.OrderStatusChangedPayload{
		OrderID: order.ID,
		OrderNo: order.OrderNo,
		From:    from,
		To:      to,
		Version: order.Version,
	}
	s.hub.Publish(constants.EventOrderStatusChanged, broadcast.OrderTopic(order.ID), payload)
	s.hub.Publish(constants.EventOrderStatusChanged, broadcast.StoreTopic(order.StoreID), payload)
}

// generateOrderNo 生成带前缀的业务编号
func generateOrderNo(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s%s%s", prefix, time.Now().Format("20060102"), strings.ToUpper(raw[:16]))
}
