package router

import (
	"time"

	"github.com/liveshop-next/internal/config"
	driverhandlers "github.com/liveshop-next/internal/http/handlers/driver"
	publichandlers "github.com/liveshop-next/internal/http/handlers/public"
	"github.com/liveshop-next/internal/http/response"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	driverHandler := driverhandlers.New(c)

	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/health", func(ctx *gin.Context) {
		response.Success(ctx, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	apiV1 := r.Group("/api/v1")
	{
		// 网关回调（网关侧验签，不走令牌鉴权）
		webhooks := apiV1.Group("/payments")
		{
			webhooks.POST("/capture", publicHandler.CapturePayment)
			webhooks.POST("/wechat/notify", publicHandler.WechatPayNotify)
		}

		secured := apiV1.Group("")
		secured.Use(JWTAuthMiddleware(c.AuthService))
		secured.Use(RBACMiddleware(c.AuthzService))
		{
			secured.POST("/orders", publicHandler.CreateOrder)
			secured.GET("/orders/:id", publicHandler.GetOrder)
			secured.PUT("/orders/:id/status", publicHandler.TransitionOrder)
			secured.POST("/orders/:id/dispute", publicHandler.DisputeOrder)
			secured.POST("/orders/:id/resolve", publicHandler.ResolveOrder)

			secured.GET("/deliveries/:id", publicHandler.GetDelivery)
			secured.GET("/deliveries/:id/tracking", publicHandler.GetDeliveryTracking)

			secured.POST("/payments/refund", publicHandler.RefundPayment)

			secured.GET("/realtime/orders/:id", publicHandler.OrderEvents)
			secured.GET("/realtime/deliveries/:id", publicHandler.DeliveryEvents)
			secured.GET("/realtime/stores/:id", publicHandler.StoreEvents)

			// 骑手侧
			secured.GET("/deliveries/available", driverHandler.AvailableDeliveries)
			secured.POST("/deliveries/:id/accept", driverHandler.AcceptDelivery)
			secured.POST("/deliveries/:id/reject", driverHandler.RejectDelivery)
			secured.PUT("/deliveries/:id/status", driverHandler.UpdateDeliveryStatus)
			secured.PUT("/deliveries/location", locationRateLimit(cfg), driverHandler.ReportLocation)
			secured.POST("/deliveries/toggle-availability", driverHandler.ToggleAvailability)
		}
	}

	return r
}

// locationRateLimit 位置上报限频：每个上报间隔窗口内最多一条
func locationRateLimit(cfg *config.Config) gin.HandlerFunc {
	windowSeconds := cfg.Location.MinIntervalMillis / 1000
	if windowSeconds <= 0 {
		windowSeconds = 1
	}
	return RateLimitMiddleware(RateLimitRule{
		Prefix:        "location",
		WindowSeconds: windowSeconds,
		MaxRequests:   1,
		Message:       "location reports too frequent",
	})
}
