package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/liveshop-next/internal/cache"
	"github.com/liveshop-next/internal/logger"
)

const defaultSubscriberBuffer = 64

// Hub 进程内事件中枢：按主题扇出，满缓冲丢弃最旧事件（尽力投递）
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Subscriber]struct{}
	bufferSize  int
	mirrorRedis bool
}

// Subscriber 单个订阅者
type Subscriber struct {
	topic string
	ch    chan Event
	once  sync.Once
}

// Events 订阅者的事件通道
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// NewHub 创建事件中枢
func NewHub(bufferSize int, mirrorRedis bool) *Hub {
	if bufferSize <= 0 {
		bufferSize = defaultSubscriberBuffer
	}
	return &Hub{
		subscribers: make(map[string]map[*Subscriber]struct{}),
		bufferSize:  bufferSize,
		mirrorRedis: mirrorRedis,
	}
}

// Subscribe 订阅主题
func (h *Hub) Subscribe(topic string) *Subscriber {
	sub := &Subscriber{
		topic: topic,
		ch:    make(chan Event, h.bufferSize),
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[topic] == nil {
		h.subscribers[topic] = make(map[*Subscriber]struct{})
	}
	h.subscribers[topic][sub] = struct{}{}
	return sub
}

// Unsubscribe 取消订阅并关闭通道
func (h *Hub) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	if subs, ok := h.subscribers[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.subscribers, sub.topic)
		}
	}
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.ch) })
}

// Publish 发布事件。上游对单实体的变更是串行的，因此同一主题内
// 的投递顺序与发布顺序一致。
func (h *Hub) Publish(eventType, topic string, payload interface{}) {
	event := Event{
		Type:       eventType,
		Topic:      topic,
		Payload:    payload,
		OccurredAt: time.Now(),
	}

	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subscribers[topic]))
	for sub := range h.subscribers[topic] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		select {
		case sub.ch <- event:
		default:
			// 缓冲已满：丢最旧的一条给新事件腾位
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
			}
			logger.Warnw("broadcast_subscriber_overflow", "topic", topic, "event", eventType)
		}
	}

	if h.mirrorRedis && cache.Enabled() {
		if err := cache.Publish(context.Background(), "events:"+topic, event); err != nil {
			logger.Warnw("broadcast_redis_mirror_failed", "topic", topic, "error", err)
		}
	}
}
