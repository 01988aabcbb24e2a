package service

import (
	"context"
	"time"

	"github.com/liveshop-next/internal/broadcast"
	"github.com/liveshop-next/internal/cache"
	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/geo"
	"github.com/liveshop-next/internal/lattice"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/repository"

	"github.com/google/uuid"
)

// 配送状态到订单状态的镜像关系
var deliveryOrderMirror = map[string]string{
	constants.DeliveryStatusPickedUp:  constants.OrderStatusPickedUp,
	constants.DeliveryStatusInTransit: constants.OrderStatusInTransit,
	constants.DeliveryStatusDelivered: constants.OrderStatusDelivered,
	constants.DeliveryStatusFailed:    constants.OrderStatusFailed,
	constants.DeliveryStatusCancelled: constants.OrderStatusCancelled,
}

// DeliveryService 配送服务
type DeliveryService struct {
	deliveryRepo repository.DeliveryRepository
	driverRepo   repository.DriverRepository
	offerRepo    repository.OfferRepository
	orderService *OrderService
	hub          *broadcast.Hub
	earnings     EarningsPolicy
}

// NewDeliveryService 创建配送服务
func NewDeliveryService(deliveryRepo repository.DeliveryRepository, driverRepo repository.DriverRepository, offerRepo repository.OfferRepository, orderService *OrderService, hub *broadcast.Hub, earnings EarningsPolicy) *DeliveryService {
	return &DeliveryService{
		deliveryRepo: deliveryRepo,
		driverRepo:   driverRepo,
		offerRepo:    offerRepo,
		orderService: orderService,
		hub:          hub,
		earnings:     earnings,
	}
}

// GetByID 查询配送单
func (s *DeliveryService) GetByID(deliveryID uint) (*models.Delivery, error) {
	delivery, err := s.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}

// TrackingPoints 按时间升序返回配送轨迹
func (s *DeliveryService) TrackingPoints(deliveryID uint) ([]models.TrackingPoint, error) {
	if _, err := s.GetByID(deliveryID); err != nil {
		return nil, err
	}
	return s.deliveryRepo.ListTrackingPoints(deliveryID)
}

// Transition 执行配送状态转移并广播
func (s *DeliveryService) Transition(deliveryID uint, target string, updates map[string]interface{}) (*models.Delivery, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	return s.applyTransition(delivery, target, updates, "")
}

func (s *DeliveryService) applyTransition(delivery *models.Delivery, target string, updates map[string]interface{}, reason string) (*models.Delivery, error) {
	from := delivery.Status
	if !lattice.IsLegal(constants.EntityKindDelivery, from, target) {
		logger.Warnw("delivery_transition_rejected",
			"delivery_id", delivery.ID,
			"from", from,
			"to", target,
		)
		return nil, ErrIllegalTransition
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	updates["updated_at"] = time.Now()
	if err := s.deliveryRepo.UpdateStatus(delivery.ID, target, updates); err != nil {
		return nil, err
	}
	delivery.Status = target

	logger.Infow("delivery_status_changed",
		"delivery_id", delivery.ID,
		"order_id", delivery.OrderID,
		"from", from,
		"to", target,
		"reason", reason,
	)
	s.emitDeliveryStatus(delivery, from, target, reason)
	s.mirrorOrder(delivery, target)
	return delivery, nil
}

// mirrorOrder 把配送里程碑同步到订单状态机（订单侧乐观锁，单次尝试）
func (s *DeliveryService) mirrorOrder(delivery *models.Delivery, target string) {
	orderTarget, ok := deliveryOrderMirror[target]
	if !ok {
		return
	}
	if _, err := s.orderService.TransitionCurrent(delivery.OrderID, orderTarget); err != nil {
		logger.Warnw("order_mirror_failed",
			"delivery_id", delivery.ID,
			"order_id", delivery.OrderID,
			"target", orderTarget,
			"error", err,
		)
	}
}

// Assign 给骑手发出邀约：仅在寻人中状态下有效
func (s *DeliveryService) Assign(deliveryID, driverID uint, round int, acceptWindow time.Duration) (*models.AssignmentOffer, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Status != constants.DeliveryStatusSearchingDriver {
		return nil, ErrIllegalTransition
	}
	driver, err := s.driverRepo.GetByID(driverID)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, ErrDriverNotFound
	}

	now := time.Now()
	deadline := now.Add(acceptWindow)
	offer := &models.AssignmentOffer{
		OfferID:    uuid.NewString(),
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Round:      round,
		OfferedAt:  now,
		Deadline:   deadline,
	}
	if err := s.offerRepo.Create(offer); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"driver_id":       driverID,
		"assigned_at":     now,
		"accept_deadline": deadline,
	}
	if _, err := s.applyTransition(delivery, constants.DeliveryStatusDriverAssigned, updates, ""); err != nil {
		// 转移失败时回收刚建的邀约，避免悬挂
		_ = s.offerRepo.Delete(offer.ID)
		return nil, err
	}
	if err := s.driverRepo.TouchDispatchedAt(driverID, now); err != nil {
		logger.Warnw("driver_touch_dispatched_failed", "driver_id", driverID, "error", err)
	}
	delivery.DriverID = &driverID
	return offer, nil
}

// Accept 骑手接单：并发下条件更新保证只有一个赢家
func (s *DeliveryService) Accept(deliveryID, driverID uint) (*models.Delivery, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery.Status != constants.DeliveryStatusDriverAssigned {
		return nil, ErrIllegalTransition
	}
	offer, err := s.offerRepo.GetByDeliveryID(deliveryID)
	if err != nil {
		return nil, err
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	if offer.DriverID != driverID {
		logger.Warnw("delivery_accept_driver_mismatch",
			"delivery_id", deliveryID,
			"offer_driver_id", offer.DriverID,
			"driver_id", driverID,
		)
		return nil, ErrDriverMismatch
	}
	if time.Now().After(offer.Deadline) {
		return nil, ErrOfferExpired
	}

	claimed, err := s.driverRepo.ClaimDelivery(driverID, deliveryID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, ErrDriverBusy
	}
	if err := s.offerRepo.Delete(offer.ID); err != nil {
		return nil, err
	}
	// 接单骑手退出待派单地理索引
	if err := cache.GeoRemoveDriver(context.Background(), driverID); err != nil {
		logger.Warnw("driver_geo_remove_failed", "driver_id", driverID, "error", err)
	}
	return s.applyTransition(delivery, constants.DeliveryStatusDriverAccepted, nil, "")
}

// Reject 骑手拒单：清邀约、清骑手、回到寻人中。返回被拒骑手 ID 供引擎排除。
func (s *DeliveryService) Reject(deliveryID, driverID uint) (uint, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return 0, err
	}
	if delivery.Status != constants.DeliveryStatusDriverAssigned {
		return 0, ErrIllegalTransition
	}
	offer, err := s.offerRepo.GetByDeliveryID(deliveryID)
	if err != nil {
		return 0, err
	}
	if offer == nil {
		return 0, ErrOfferNotFound
	}
	if offer.DriverID != driverID {
		return 0, ErrDriverMismatch
	}
	return s.resolveOfferBack(delivery, offer)
}

// ExpireOffer 邀约超时。offer_id 不再匹配说明邀约已被接受或拒绝，
// 此时超时任务直接作废（可取消定时器语义）。
func (s *DeliveryService) ExpireOffer(deliveryID uint, offerID string) (uint, bool, error) {
	offer, err := s.offerRepo.GetByOfferID(offerID)
	if err != nil {
		return 0, false, err
	}
	if offer == nil || offer.DeliveryID != deliveryID {
		return 0, false, nil
	}
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return 0, false, err
	}
	if delivery.Status != constants.DeliveryStatusDriverAssigned {
		return 0, false, nil
	}
	driverID, err := s.resolveOfferBack(delivery, offer)
	if err != nil {
		return 0, false, err
	}
	logger.Infow("dispatch_offer_expired",
		"delivery_id", deliveryID,
		"offer_id", offerID,
		"driver_id", driverID,
	)
	return driverID, true, nil
}

// resolveOfferBack 邀约失败路径的公共收尾：删邀约、清骑手字段、回寻人中
func (s *DeliveryService) resolveOfferBack(delivery *models.Delivery, offer *models.AssignmentOffer) (uint, error) {
	if err := s.offerRepo.Delete(offer.ID); err != nil {
		return 0, err
	}
	updates := map[string]interface{}{
		"driver_id":       nil,
		"assigned_at":     nil,
		"accept_deadline": nil,
	}
	if _, err := s.applyTransition(delivery, constants.DeliveryStatusSearchingDriver, updates, ""); err != nil {
		return 0, err
	}
	delivery.DriverID = nil
	return offer.DriverID, nil
}

// DriverTransition 骑手推进配送里程碑（到店/取货/在途/到达）
func (s *DeliveryService) DriverTransition(deliveryID, driverID uint, target string) (*models.Delivery, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(delivery, driverID); err != nil {
		return nil, err
	}
	switch target {
	case constants.DeliveryStatusAtPickup,
		constants.DeliveryStatusPickedUp,
		constants.DeliveryStatusInTransit,
		constants.DeliveryStatusAtDropoff:
	default:
		return nil, ErrIllegalTransition
	}
	return s.applyTransition(delivery, target, nil, "")
}

// Complete 送达收尾：结算配送费、记录小费、释放骑手。
// finalEarnings 传入时按其结算，未传时按策略计算。
func (s *DeliveryService) Complete(deliveryID, driverID uint, finalEarnings *models.Money, tip models.Money) (*models.Delivery, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(delivery, driverID); err != nil {
		return nil, err
	}

	distanceKM := geo.HaversineKM(delivery.PickupLat, delivery.PickupLng, delivery.DropoffLat, delivery.DropoffLng)
	earnings := s.earnings.Earnings(distanceKM)
	if finalEarnings != nil {
		earnings = *finalEarnings
	}
	now := time.Now()
	updates := map[string]interface{}{
		"driver_earnings": earnings,
		"tip_amount":      tip,
		"delivered_at":    now,
	}
	result, err := s.applyTransition(delivery, constants.DeliveryStatusDelivered, updates, "")
	if err != nil {
		return nil, err
	}
	s.freeDriver(driverID, now)
	logger.Infow("delivery_completed",
		"delivery_id", deliveryID,
		"driver_id", driverID,
		"earnings", earnings.String(),
		"tip", tip.String(),
		"distance_km", distanceKM,
	)
	return result, nil
}

// Fail 配送失败（仅在途/到达阶段允许），释放骑手
func (s *DeliveryService) Fail(deliveryID, driverID uint, reason string) (*models.Delivery, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	if err := s.requireOwner(delivery, driverID); err != nil {
		return nil, err
	}
	result, err := s.applyTransition(delivery, constants.DeliveryStatusFailed, map[string]interface{}{
		"cancel_reason": reason,
	}, reason)
	if err != nil {
		return nil, err
	}
	s.freeDriver(driverID, time.Now())
	return result, nil
}

// Cancel 取消配送（寻人失败/门店取消），级联取消订单。在途邀约一并回收。
func (s *DeliveryService) Cancel(deliveryID uint, reason string) (*models.Delivery, error) {
	delivery, err := s.GetByID(deliveryID)
	if err != nil {
		return nil, err
	}
	offer, err := s.offerRepo.GetByDeliveryID(deliveryID)
	if err != nil {
		return nil, err
	}
	if offer != nil {
		if err := s.offerRepo.Delete(offer.ID); err != nil {
			return nil, err
		}
	}
	updates := map[string]interface{}{
		"cancel_reason": reason,
	}
	hadDriver := delivery.DriverID != nil
	var driverID uint
	if hadDriver {
		driverID = *delivery.DriverID
		updates["driver_id"] = nil
	}
	result, err := s.applyTransition(delivery, constants.DeliveryStatusCancelled, updates, reason)
	if err != nil {
		return nil, err
	}
	if hadDriver {
		s.freeDriver(driverID, time.Now())
	}
	return result, nil
}

// CancelByOrder 订单侧取消的级联入口：配送未到终态时一并取消
func (s *DeliveryService) CancelByOrder(orderID uint, reason string) error {
	delivery, err := s.deliveryRepo.GetByOrderID(orderID)
	if err != nil {
		return err
	}
	if delivery == nil || lattice.IsTerminal(constants.EntityKindDelivery, delivery.Status) {
		return nil
	}
	_, err = s.Cancel(delivery.ID, reason)
	return err
}

// ToggleAvailability 骑手接单开关，同步地理索引
func (s *DeliveryService) ToggleAvailability(driverID uint, available bool) error {
	driver, err := s.driverRepo.GetByID(driverID)
	if err != nil {
		return err
	}
	if driver == nil {
		return ErrDriverNotFound
	}
	if err := s.driverRepo.SetAvailability(driverID, available); err != nil {
		return err
	}
	ctx := context.Background()
	if available && driver.CurrentLat != nil && driver.CurrentLng != nil {
		if err := cache.GeoAddDriver(ctx, driverID, *driver.CurrentLat, *driver.CurrentLng); err != nil {
			logger.Warnw("driver_geo_add_failed", "driver_id", driverID, "error", err)
		}
	}
	if !available {
		if err := cache.GeoRemoveDriver(ctx, driverID); err != nil {
			logger.Warnw("driver_geo_remove_failed", "driver_id", driverID, "error", err)
		}
	}
	logger.Infow("driver_availability_changed", "driver_id", driverID, "available", available)
	return nil
}

// requireOwner 校验操作骑手与配送单归属一致
func (s *DeliveryService) requireOwner(delivery *models.Delivery, driverID uint) error {
	if delivery.DriverID == nil || *delivery.DriverID != driverID {
		logger.Warnw("delivery_driver_mismatch",
			"delivery_id", delivery.ID,
			"driver_id", driverID,
		)
		return ErrDriverMismatch
	}
	return nil
}

func (s *DeliveryService) freeDriver(driverID uint, at time.Time) {
	if err := s.driverRepo.ReleaseDelivery(driverID, true); err != nil {
		logger.Errorw("driver_release_failed", "driver_id", driverID, "error", err)
	}
	if err := s.driverRepo.TouchDispatchedAt(driverID, at); err != nil {
		logger.Warnw("driver_touch_dispatched_failed", "driver_id", driverID, "error", err)
	}
}

func (s *DeliveryService) emitDeliveryStatus(delivery *models.Delivery, from, to, reason string) {
	if s.hub == nil {
		return
	}
	payload := broadcast.DeliveryStatusChangedPayload{
		DeliveryID: delivery.ID,
		OrderID:    delivery.OrderID,
		From:       from,
		To:         to,
		DriverID:   delivery.DriverID,
		Reason:     reason,
	}
	s.hub.Publish(constants.EventDeliveryStatusChanged, broadcast.DeliveryTopic(delivery.ID), payload)
	s.hub.Publish(constants.EventDeliveryStatusChanged, broadcast.OrderTopic(delivery.OrderID), payload)
}
