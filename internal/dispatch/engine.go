package dispatch

import (
	"errors"
	"sync"
	"time"

	"github.com/liveshop-next/internal/config"
	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/queue"
	"github.com/liveshop-next/internal/repository"
	"github.com/liveshop-next/internal/service"
)

// searchState 单个配送单的寻人进度（进程内，随邀约同生共死）
type searchState struct {
	tried    map[uint]struct{}
	round    int
	deadline time.Time
}

// Engine 派单引擎。同一配送单的邀约/接受/拒绝/超时全部在
// per-delivery 锁内串行执行。
type Engine struct {
	cfg          config.DispatchConfig
	deliveryRepo repository.DeliveryRepository
	driverRepo   repository.DriverRepository
	deliverySvc  *service.DeliveryService
	paymentSvc   *service.PaymentService
	queueClient  *queue.Client

	mu     sync.Mutex
	locks  map[uint]*sync.Mutex
	states map[uint]*searchState
}

// NewEngine 创建派单引擎
func NewEngine(cfg config.DispatchConfig, deliveryRepo repository.DeliveryRepository, driverRepo repository.DriverRepository, deliverySvc *service.DeliveryService, paymentSvc *service.PaymentService, queueClient *queue.Client) *Engine {
	return &Engine{
		cfg:          cfg,
		deliveryRepo: deliveryRepo,
		driverRepo:   driverRepo,
		deliverySvc:  deliverySvc,
		paymentSvc:   paymentSvc,
		queueClient:  queueClient,
		locks:        make(map[uint]*sync.Mutex),
		states:       make(map[uint]*searchState),
	}
}

func (e *Engine) lockFor(deliveryID uint) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[deliveryID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[deliveryID] = lock
	}
	return lock
}

func (e *Engine) stateFor(deliveryID uint) *searchState {
	e.mu.Lock()
	defer e.mu.Unlock()
	state, ok := e.states[deliveryID]
	if !ok {
		state = &searchState{
			tried:    make(map[uint]struct{}),
			deadline: time.Now().Add(e.searchWindow()),
		}
		e.states[deliveryID] = state
	}
	return state
}

func (e *Engine) dropState(deliveryID uint) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.states, deliveryID)
	delete(e.locks, deliveryID)
}

func (e *Engine) offerWindow() time.Duration {
	seconds := e.cfg.OfferTimeoutSeconds
	if seconds <= 0 {
		seconds = 30
	}
	return time.Duration(seconds) * time.Second
}

func (e *Engine) maxRounds() int {
	if e.cfg.MaxRounds <= 0 {
		return 3
	}
	return e.cfg.MaxRounds
}

// searchWindow 全局寻人窗口：各轮接单窗口之和加少量调度余量
func (e *Engine) searchWindow() time.Duration {
	extend := time.Duration(e.cfg.SearchDeadlineExtend) * time.Second
	return time.Duration(e.maxRounds())*e.offerWindow() + extend
}

// StartSearch 订单确认后进入寻人：pending → searching_driver 并发出首轮邀约
func (e *Engine) StartSearch(deliveryID uint) error {
	lock := e.lockFor(deliveryID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := e.deliverySvc.Transition(deliveryID, constants.DeliveryStatusSearchingDriver, nil); err != nil {
		return err
	}
	state := e.stateFor(deliveryID)
	state.deadline = time.Now().Add(e.searchWindow())

	if e.queueClient.Enabled() {
		if err := e.queueClient.EnqueueDispatchDeadline(queue.DispatchDeadlinePayload{DeliveryID: deliveryID}, e.searchWindow()); err != nil {
			logger.Warnw("dispatch_deadline_enqueue_failed", "delivery_id", deliveryID, "error", err)
		}
	} else {
		// 队列未启用时退化为进程内定时器
		time.AfterFunc(e.searchWindow(), func() {
			if err := e.HandleSearchDeadline(deliveryID); err != nil {
				logger.Warnw("dispatch_deadline_timer_failed", "delivery_id", deliveryID, "error", err)
			}
		})
	}
	logger.Infow("dispatch_search_started", "delivery_id", deliveryID)
	return e.offerNext(deliveryID, state)
}

// Accept 骑手接单入口（引擎锁内转发给配送服务）
func (e *Engine) Accept(deliveryID, driverID uint) (*models.Delivery, error) {
	lock := e.lockFor(deliveryID)
	lock.Lock()
	defer lock.Unlock()

	delivery, err := e.deliverySvc.Accept(deliveryID, driverID)
	if err != nil {
		return nil, err
	}
	e.dropState(deliveryID)
	return delivery, nil
}

// Reject 骑手拒单入口：排除该骑手后立即发起下一轮
func (e *Engine) Reject(deliveryID, driverID uint) error {
	lock := e.lockFor(deliveryID)
	lock.Lock()
	defer lock.Unlock()

	rejected, err := e.deliverySvc.Reject(deliveryID, driverID)
	if err != nil {
		return err
	}
	state := e.stateFor(deliveryID)
	state.tried[rejected] = struct{}{}
	if err := e.offerNext(deliveryID, state); err != nil {
		// 拒单本身已生效，寻人耗尽由收尾流程处理
		if errors.Is(err, service.ErrNoDriverAvailable) {
			return nil
		}
		return err
	}
	return nil
}

// HandleOfferTimeout 邀约超时任务回调。邀约已被抢先处理时为空转。
func (e *Engine) HandleOfferTimeout(deliveryID uint, offerID string) error {
	lock := e.lockFor(deliveryID)
	lock.Lock()
	defer lock.Unlock()

	expiredDriver, expired, err := e.deliverySvc.ExpireOffer(deliveryID, offerID)
	if err != nil {
		return err
	}
	if !expired {
		return nil
	}
	state := e.stateFor(deliveryID)
	state.tried[expiredDriver] = struct{}{}
	if err := e.offerNext(deliveryID, state); err != nil && !errors.Is(err, service.ErrNoDriverAvailable) {
		return err
	}
	return nil
}

// HandleSearchDeadline 全局寻人截止任务回调
func (e *Engine) HandleSearchDeadline(deliveryID uint) error {
	lock := e.lockFor(deliveryID)
	lock.Lock()
	defer lock.Unlock()

	delivery, err := e.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return err
	}
	if delivery == nil || delivery.Status != constants.DeliveryStatusSearchingDriver {
		// 已有在途邀约或已出寻人态，截止任务不干预
		return nil
	}
	return e.exhaust(deliveryID)
}

// offerNext 发起下一轮邀约。轮次耗尽、超出窗口或无候选人即收尾取消，
// 并以 ErrNoDriverAvailable 告知调用方寻人失败。
func (e *Engine) offerNext(deliveryID uint, state *searchState) error {
	if state.round >= e.maxRounds() || time.Now().After(state.deadline) {
		if err := e.exhaust(deliveryID); err != nil {
			return err
		}
		return service.ErrNoDriverAvailable
	}

	delivery, err := e.deliveryRepo.GetByID(deliveryID)
	if err != nil {
		return err
	}
	if delivery == nil {
		e.dropState(deliveryID)
		return service.ErrDeliveryNotFound
	}
	if delivery.Status != constants.DeliveryStatusSearchingDriver {
		return nil
	}

	exclude := make([]uint, 0, len(state.tried))
	for id := range state.tried {
		exclude = append(exclude, id)
	}
	drivers, err := e.driverRepo.ListAvailable(exclude)
	if err != nil {
		return err
	}
	if len(drivers) == 0 {
		logger.Infow("dispatch_no_candidates", "delivery_id", deliveryID, "round", state.round)
		if err := e.exhaust(deliveryID); err != nil {
			return err
		}
		return service.ErrNoDriverAvailable
	}

	ranked := rankCandidates(drivers, delivery.PickupLat, delivery.PickupLng)
	best := ranked[0]
	state.round++
	state.tried[best.driver.ID] = struct{}{}

	offer, err := e.deliverySvc.Assign(deliveryID, best.driver.ID, state.round, e.offerWindow())
	if err != nil {
		return err
	}
	logger.Infow("dispatch_offer_sent",
		"delivery_id", deliveryID,
		"driver_id", best.driver.ID,
		"round", state.round,
		"offer_id", offer.OfferID,
		"distance_km", best.distanceKM,
	)
	if e.queueClient.Enabled() {
		if err := e.queueClient.EnqueueOfferExpire(queue.OfferExpirePayload{
			DeliveryID: deliveryID,
			OfferID:    offer.OfferID,
		}, e.offerWindow()); err != nil {
			logger.Warnw("dispatch_offer_timer_enqueue_failed",
				"delivery_id", deliveryID,
				"offer_id", offer.OfferID,
				"error", err,
			)
		}
	} else {
		offerID := offer.OfferID
		time.AfterFunc(e.offerWindow(), func() {
			if err := e.HandleOfferTimeout(deliveryID, offerID); err != nil {
				logger.Warnw("dispatch_offer_timer_failed",
					"delivery_id", deliveryID,
					"offer_id", offerID,
					"error", err,
				)
			}
		})
	}
	return nil
}

// exhaust 寻人失败收尾：取消配送（级联取消订单）并触发自动退款
func (e *Engine) exhaust(deliveryID uint) error {
	delivery, err := e.deliverySvc.Cancel(deliveryID, constants.CancelReasonNoDriverAvailable)
	if err != nil {
		return err
	}
	e.dropState(deliveryID)
	logger.Warnw("dispatch_exhausted",
		"delivery_id", deliveryID,
		"order_id", delivery.OrderID,
	)

	payload := queue.OrderAutoRefundPayload{
		OrderID: delivery.OrderID,
		Reason:  constants.CancelReasonNoDriverAvailable,
	}
	if e.queueClient.Enabled() {
		if err := e.queueClient.EnqueueOrderAutoRefund(payload); err != nil {
			logger.Errorw("auto_refund_enqueue_failed", "order_id", delivery.OrderID, "error", err)
		}
		return nil
	}
	// 队列未启用时就地退款
	if err := e.paymentSvc.AutoRefund(delivery.OrderID, payload.Reason); err != nil {
		logger.Errorw("auto_refund_failed", "order_id", delivery.OrderID, "error", err)
	}
	return nil
}
