package app

import (
	"context"
	"errors"

	"github.com/liveshop-next/internal/location"
)

// TrackerService 位置追踪消费服务
type TrackerService struct {
	name    string
	tracker *location.Tracker
}

// NewTrackerService 创建位置追踪服务
func NewTrackerService(tracker *location.Tracker) *TrackerService {
	return &TrackerService{
		name:    "tracker",
		tracker: tracker,
	}
}

// Name 服务名称
func (s *TrackerService) Name() string {
	if s == nil || s.name == "" {
		return "tracker"
	}
	return s.name
}

// Start 启动消费并阻塞到退出信号
func (s *TrackerService) Start(ctx context.Context) error {
	if s == nil || s.tracker == nil {
		return errors.New("tracker not initialized")
	}
	s.tracker.Start()
	<-ctx.Done()
	return ctx.Err()
}

// Stop 停止消费并等待缓冲排空
func (s *TrackerService) Stop(ctx context.Context) error {
	if s == nil || s.tracker == nil {
		return nil
	}
	_ = ctx
	s.tracker.Stop()
	return nil
}
