package driver

import "github.com/liveshop-next/internal/provider"

// Handler 骑手侧接口处理器
type Handler struct {
	*provider.Container
}

// New 创建骑手处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
