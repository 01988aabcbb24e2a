package public

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/liveshop-next/internal/broadcast"
	"github.com/liveshop-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 25 * time.Second

// OrderEvents 订单事件 SSE 流
func (h *Handler) OrderEvents(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	h.streamTopic(c, broadcast.OrderTopic(orderID))
}

// DeliveryEvents 配送事件 SSE 流（状态变化与位置更新）
func (h *Handler) DeliveryEvents(c *gin.Context) {
	deliveryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	h.streamTopic(c, broadcast.DeliveryTopic(deliveryID))
}

// StoreEvents 门店维度订单事件 SSE 流
func (h *Handler) StoreEvents(c *gin.Context) {
	storeID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	h.streamTopic(c, broadcast.StoreTopic(storeID))
}

// streamTopic 订阅主题并以 SSE 推送。客户端断开或订阅关闭时结束。
func (h *Handler) streamTopic(c *gin.Context, topic string) {
	if h.Hub == nil {
		response.Error(c, response.CodeInternal, "event hub unavailable")
		return
	}
	sub := h.Hub.Subscribe(topic)
	defer h.Hub.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-sub.Events():
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", event.Type, payload)
			c.Writer.Flush()
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			c.Writer.Flush()
		}
	}
}
