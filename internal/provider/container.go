package provider

import (
	"os"
	"strings"

	"github.com/liveshop-next/internal/authz"
	"github.com/liveshop-next/internal/broadcast"
	"github.com/liveshop-next/internal/cache"
	"github.com/liveshop-next/internal/config"
	"github.com/liveshop-next/internal/dispatch"
	"github.com/liveshop-next/internal/gateway/wechatpay"
	"github.com/liveshop-next/internal/location"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/queue"
	"github.com/liveshop-next/internal/repository"
	"github.com/liveshop-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client
	Hub         *broadcast.Hub

	// Repositories
	OrderRepo    repository.OrderRepository
	DeliveryRepo repository.DeliveryRepository
	DriverRepo   repository.DriverRepository
	OfferRepo    repository.OfferRepository
	PaymentRepo  repository.PaymentRepository
	StoreRepo    repository.StoreRepository

	// Services
	AuthzService    *authz.Service
	AuthService     *service.AuthService
	OrderService    *service.OrderService
	DeliveryService *service.DeliveryService
	PaymentService  *service.PaymentService

	DispatchEngine *dispatch.Engine
	Tracker        *location.Tracker

	WechatPayAdapter *wechatpay.Adapter
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	queueClient, err := queue.NewClient(&cfg.Queue)
	if err != nil {
		logger.Errorw("provider_init_queue_client_failed", "error", err)
		queueClient, _ = queue.NewClient(nil)
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
		Hub:         broadcast.NewHub(0, cache.Enabled()),
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.OrderRepo = repository.NewOrderRepository(db)
	c.DeliveryRepo = repository.NewDeliveryRepository(db)
	c.DriverRepo = repository.NewDriverRepository(db)
	c.OfferRepo = repository.NewOfferRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.StoreRepo = repository.NewStoreRepository(db)
}

func (c *Container) initServices() {
	authzService, err := authz.NewService(models.DB)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
	} else {
		if err := authz.Bootstrap(authzService); err != nil {
			logger.Errorw("provider_authz_bootstrap_failed", "error", err)
		}
		c.AuthzService = authzService
	}

	c.AuthService = service.NewAuthService(c.Config.JWT)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.DeliveryRepo, c.StoreRepo, c.Hub)
	c.DeliveryService = service.NewDeliveryService(
		c.DeliveryRepo,
		c.DriverRepo,
		c.OfferRepo,
		c.OrderService,
		c.Hub,
		service.NewEarningsPolicy(c.Config.Earnings),
	)
	c.PaymentService = service.NewPaymentService(c.OrderRepo, c.PaymentRepo, c.OrderService)

	c.DispatchEngine = dispatch.NewEngine(
		c.Config.Dispatch,
		c.DeliveryRepo,
		c.DriverRepo,
		c.DeliveryService,
		c.PaymentService,
		c.QueueClient,
	)
	c.OrderService.SetDispatcher(c.DispatchEngine)
	c.OrderService.SetDeliveryService(c.DeliveryService)

	c.Tracker = location.NewTracker(c.Config.Location, c.DriverRepo, c.DeliveryRepo, c.Hub)

	c.initWechatPay()
}

// initWechatPay 网关未启用或配置不全时留空，回调接口直接应答失败
func (c *Container) initWechatPay() {
	wc := c.Config.Gateway.WechatPay
	if !wc.Enabled {
		return
	}
	privateKey := ""
	if strings.TrimSpace(wc.PrivateKeyPath) != "" {
		raw, err := os.ReadFile(wc.PrivateKeyPath)
		if err != nil {
			logger.Errorw("provider_wechatpay_key_read_failed", "path", wc.PrivateKeyPath, "error", err)
			return
		}
		privateKey = string(raw)
	}
	adapter, err := wechatpay.NewAdapter(&wechatpay.Config{
		AppID:              wc.AppID,
		MerchantID:         wc.MchID,
		MerchantSerialNo:   wc.MchCertSerialNo,
		MerchantPrivateKey: privateKey,
		APIV3Key:           wc.MchAPIv3Key,
	})
	if err != nil {
		logger.Errorw("provider_wechatpay_init_failed", "error", err)
		return
	}
	c.WechatPayAdapter = adapter
}
