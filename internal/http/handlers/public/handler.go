package public

import "github.com/liveshop-next/internal/provider"

// Handler 订单/配送/支付/实时流接口处理器
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
