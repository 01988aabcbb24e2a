package location

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/liveshop-next/internal/broadcast"
	"github.com/liveshop-next/internal/cache"
	"github.com/liveshop-next/internal/config"
	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/geo"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/repository"
	"github.com/liveshop-next/internal/service"
)

// 轨迹落库的配送状态（骑手在岗阶段）
var trackableStatuses = map[string]bool{
	constants.DeliveryStatusDriverAccepted: true,
	constants.DeliveryStatusAtPickup:       true,
	constants.DeliveryStatusPickedUp:       true,
	constants.DeliveryStatusInTransit:      true,
	constants.DeliveryStatusAtDropoff:      true,
}

// Report 单次位置上报
type Report struct {
	DriverID   uint
	Lat        float64
	Lng        float64
	Accuracy   *float64
	RecordedAt time.Time
	Flagged    bool
}

// Point 最近位置
type Point struct {
	Lat        float64
	Lng        float64
	RecordedAt time.Time
}

// Tracker 位置追踪器：上报入缓冲通道异步落盘，上报方永不被配送写入阻塞
type Tracker struct {
	cfg          config.LocationConfig
	driverRepo   repository.DriverRepository
	deliveryRepo repository.DeliveryRepository
	hub          *broadcast.Hub

	reports chan Report

	mu        sync.RWMutex
	lastKnown map[uint]Point

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// NewTracker 创建位置追踪器
func NewTracker(cfg config.LocationConfig, driverRepo repository.DriverRepository, deliveryRepo repository.DeliveryRepository, hub *broadcast.Hub) *Tracker {
	buffer := cfg.IngestBuffer
	if buffer <= 0 {
		buffer = 1024
	}
	return &Tracker{
		cfg:          cfg,
		driverRepo:   driverRepo,
		deliveryRepo: deliveryRepo,
		hub:          hub,
		reports:      make(chan Report, buffer),
		lastKnown:    make(map[uint]Point),
		stopCh:       make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Start 启动异步消费协程
func (t *Tracker) Start() {
	go func() {
		defer close(t.done)
		for {
			select {
			case report := <-t.reports:
				t.Apply(report)
			case <-t.stopCh:
				// 收尾：清空剩余缓冲
				for {
					select {
					case report := <-t.reports:
						t.Apply(report)
					default:
						return
					}
				}
			}
		}
	}()
}

// Stop 停止消费并等待缓冲排空
func (t *Tracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
	<-t.done
}

// Ingest 接收上报：校验坐标、标记可疑点后投入缓冲。缓冲满时丢弃并告警
// （位置流允许有损，不反压上报方）。
func (t *Tracker) Ingest(report Report) error {
	if !geo.ValidCoordinates(report.Lat, report.Lng) {
		return service.ErrInvalidCoordinates
	}
	if report.RecordedAt.IsZero() {
		report.RecordedAt = time.Now()
	}
	report.Flagged = t.shouldFlag(report)

	select {
	case t.reports <- report:
		return nil
	default:
		logger.Warnw("location_ingest_overflow", "driver_id", report.DriverID)
		return nil
	}
}

// shouldFlag 低精度或时钟偏移过大的点只标记不拒绝
func (t *Tracker) shouldFlag(report Report) bool {
	if report.Accuracy != nil && t.cfg.AccuracyThresholdM > 0 && *report.Accuracy > t.cfg.AccuracyThresholdM {
		return true
	}
	if t.cfg.MaxClockSkewSeconds > 0 {
		skew := math.Abs(time.Since(report.RecordedAt).Seconds())
		if skew > float64(t.cfg.MaxClockSkewSeconds) {
			return true
		}
	}
	return false
}

// Apply 同步应用一次上报（消费协程与测试共用）
func (t *Tracker) Apply(report Report) {
	t.mu.Lock()
	t.lastKnown[report.DriverID] = Point{Lat: report.Lat, Lng: report.Lng, RecordedAt: report.RecordedAt}
	t.mu.Unlock()

	if err := t.driverRepo.UpdateLocation(report.DriverID, report.Lat, report.Lng, report.RecordedAt); err != nil {
		logger.Errorw("driver_location_update_failed", "driver_id", report.DriverID, "error", err)
		return
	}

	driver, err := t.driverRepo.GetByID(report.DriverID)
	if err != nil || driver == nil {
		logger.Warnw("driver_location_lookup_failed", "driver_id", report.DriverID, "error", err)
		return
	}

	ctx := context.Background()
	if driver.IsAvailable && driver.ActiveDeliveryID == nil {
		if err := cache.GeoAddDriver(ctx, driver.ID, report.Lat, report.Lng); err != nil {
			logger.Warnw("driver_geo_add_failed", "driver_id", driver.ID, "error", err)
		}
	}

	if driver.ActiveDeliveryID == nil {
		return
	}
	delivery, err := t.deliveryRepo.GetByID(*driver.ActiveDeliveryID)
	if err != nil || delivery == nil {
		logger.Warnw("delivery_for_location_missing", "driver_id", driver.ID, "error", err)
		return
	}
	if !trackableStatuses[delivery.Status] {
		return
	}

	point := &models.TrackingPoint{
		DeliveryID: delivery.ID,
		DriverID:   driver.ID,
		Lat:        report.Lat,
		Lng:        report.Lng,
		Accuracy:   report.Accuracy,
		Flagged:    report.Flagged,
		RecordedAt: report.RecordedAt,
	}
	inserted, err := t.deliveryRepo.AppendTrackingPoint(point)
	if err != nil {
		logger.Errorw("tracking_point_append_failed", "delivery_id", delivery.ID, "error", err)
		return
	}
	if !inserted {
		// 重复时间戳的上报静默吸收
		return
	}
	if t.hub != nil {
		t.hub.Publish(constants.EventLocationUpdated, broadcast.DeliveryTopic(delivery.ID), broadcast.LocationUpdatedPayload{
			DeliveryID: delivery.ID,
			DriverID:   driver.ID,
			Lat:        report.Lat,
			Lng:        report.Lng,
			Flagged:    report.Flagged,
			RecordedAt: report.RecordedAt,
		})
	}
}

// LastKnown 骑手最近位置：内存优先，未命中回落数据库
func (t *Tracker) LastKnown(driverID uint) (Point, bool, error) {
	t.mu.RLock()
	point, ok := t.lastKnown[driverID]
	t.mu.RUnlock()
	if ok {
		return point, true, nil
	}
	driver, err := t.driverRepo.GetByID(driverID)
	if err != nil {
		return Point{}, false, err
	}
	if driver == nil || driver.CurrentLat == nil || driver.CurrentLng == nil {
		return Point{}, false, nil
	}
	point = Point{Lat: *driver.CurrentLat, Lng: *driver.CurrentLng}
	if driver.LocationAt != nil {
		point.RecordedAt = *driver.LocationAt
	}
	return point, true, nil
}

// NearbyAvailable 半径内可接单骑手：优先 Redis 地理索引，降级为数据库扫描
func (t *Tracker) NearbyAvailable(ctx context.Context, lat, lng, radiusKM float64) ([]uint, error) {
	if cache.Enabled() {
		ids, err := cache.GeoNearbyDrivers(ctx, lat, lng, radiusKM)
		if err == nil {
			return ids, nil
		}
		logger.Warnw("geo_nearby_failed_fallback_db", "error", err)
	}
	drivers, err := t.driverRepo.ListAvailable(nil)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(drivers))
	for _, d := range drivers {
		if d.CurrentLat == nil || d.CurrentLng == nil {
			continue
		}
		if geo.HaversineKM(*d.CurrentLat, *d.CurrentLng, lat, lng) <= radiusKM {
			ids = append(ids, d.ID)
		}
	}
	return ids, nil
}
