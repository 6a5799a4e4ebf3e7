package provider

import (
	"github.com/tienda-next/internal/cache"
	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"
	"github.com/tienda-next/internal/queue"
	"github.com/tienda-next/internal/repository"
	"github.com/tienda-next/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	AdminRepo   repository.AdminRepository
	UserRepo    repository.UserRepository
	AddressRepo repository.AddressRepository
	CartRepo    repository.CartRepository
	OrderRepo   repository.OrderRepository
	PaymentRepo repository.PaymentRepository
	SlotRepo    repository.DeliverySlotRepository
	CounterRepo repository.OrderCounterRepository
	InvoiceRepo repository.InvoiceRepository

	// Services
	AuthService       *service.AuthService
	UserAuthService   *service.UserAuthService
	AddressService    *service.AddressService
	CartService       *service.CartService
	SlotService       *service.SlotService
	CheckoutService   *service.CheckoutService
	SettlementService *service.SettlementService
	OrderService      *service.OrderService
	InvoiceService    *service.InvoiceService
	EmailService      *service.EmailService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories()

	// 2. 初始化 Services
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.AdminRepo = repository.NewAdminRepository(db)
	c.UserRepo = repository.NewUserRepository(db)
	c.AddressRepo = repository.NewAddressRepository(db)
	c.CartRepo = repository.NewCartRepository(db)
	c.OrderRepo = repository.NewOrderRepository(db)
	c.PaymentRepo = repository.NewPaymentRepository(db)
	c.SlotRepo = repository.NewDeliverySlotRepository(db)
	c.CounterRepo = repository.NewOrderCounterRepository(db)
	c.InvoiceRepo = repository.NewInvoiceRepository(db)
}

func (c *Container) initServices() {
	c.AuthService = service.NewAuthService(c.Config, c.AdminRepo)
	c.UserAuthService = service.NewUserAuthService(c.Config, c.UserRepo)
	c.AddressService = service.NewAddressService(c.AddressRepo)
	c.CartService = service.NewCartService(c.CartRepo)
	c.SlotService = service.NewSlotService(c.Config, c.SlotRepo)
	c.CheckoutService = service.NewCheckoutService(
		c.Config,
		c.OrderRepo,
		c.PaymentRepo,
		c.SlotRepo,
		c.CounterRepo,
		c.CartRepo,
		c.AddressRepo,
		c.QueueClient,
	)
	c.SettlementService = service.NewSettlementService(
		c.Config,
		c.OrderRepo,
		c.PaymentRepo,
		c.CartRepo,
		c.QueueClient,
	)
	c.OrderService = service.NewOrderService(c.OrderRepo, c.SlotRepo, c.QueueClient)
	c.InvoiceService = service.NewInvoiceService(c.InvoiceRepo, c.PaymentRepo)
	c.EmailService = service.NewEmailService(&c.Config.Email)
}

// Close 释放容器资源
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	cache.CloseRedis()
}
