package router

import (
	"fmt"
	"strings"

	"github.com/tienda-next/internal/cache"
	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/constants"
	adminhandlers "github.com/tienda-next/internal/http/handlers/admin"
	publichandlers "github.com/tienda-next/internal/http/handlers/public"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按买家端/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = constants.RedisPrefixDefault
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		MessageKey:    "error.login_too_many",
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxAttempts,
		MessageKey:    "error.rate_limited",
	}
	captureRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:capture", redisPrefix),
		WindowSeconds: cfg.Security.CaptureRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CaptureRateLimit.MaxAttempts,
		MessageKey:    "error.rate_limited",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		public := apiV1.Group("/public")
		{
			public.GET("/slots", publicHandler.GetSlotAvailability)
		}

		// 游客接口（订单号 + 邮箱双因子）
		guest := apiV1.Group("/guest")
		{
			guest.POST("/checkout/validate", publicHandler.ValidateGuestCheckout)
			guest.POST("/checkout", RateLimitMiddleware(redisClient, checkoutRule, KeyByIPAndJSONField("email")), publicHandler.CreateGuestOrder)
			guest.GET("/orders/:order_no", publicHandler.GetGuestOrder)
			guest.POST("/orders/:order_no/capture", RateLimitMiddleware(redisClient, captureRule, KeyByIP), publicHandler.CaptureGuestPayment)
		}

		// 用户认证接口
		auth := apiV1.Group("/auth")
		{
			auth.POST("/register", publicHandler.UserRegister)
			auth.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.UserLogin)
		}

		// 用户接口（需鉴权）
		user := apiV1.Group("")
		user.Use(UserJWTAuthMiddleware(cfg.UserJWT.SecretKey, c.UserRepo))
		{
			user.GET("/me", publicHandler.GetCurrentUser)
			user.GET("/cart", publicHandler.GetCart)
			user.POST("/cart/items", publicHandler.UpsertCartItem)
			user.DELETE("/cart/items/:product_id", publicHandler.DeleteCartItem)
			user.DELETE("/cart", publicHandler.ClearCart)
			user.GET("/addresses", publicHandler.ListAddresses)
			user.POST("/addresses", publicHandler.CreateAddress)
			user.GET("/addresses/:id", publicHandler.GetAddress)
			user.POST("/checkout/validate", publicHandler.ValidateCheckout)
			user.POST("/checkout", RateLimitMiddleware(redisClient, checkoutRule, KeyByIP), publicHandler.CreateOrder)
			user.GET("/orders", publicHandler.ListOrders)
			user.GET("/orders/:order_no", publicHandler.GetOrder)
			user.POST("/orders/:order_no/cancel", publicHandler.CancelOrder)
			user.POST("/orders/:order_no/capture", RateLimitMiddleware(redisClient, captureRule, KeyByIP), publicHandler.CapturePayment)
			user.GET("/orders/:order_no/invoice", publicHandler.GetOrderInvoice)
		}

		// 网关异步回调
		apiV1.POST("/payments/webhook/culqi", publicHandler.CulqiWebhook)

		// 管理员接口
		admin := apiV1.Group("/admin")
		{
			// 登录接口（无需鉴权）
			admin.POST("/login", RateLimitMiddleware(redisClient, loginRule, KeyByIP), adminHandler.AdminLogin)

			// 需要鉴权的接口
			authorized := admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AdminRepo))
			{
				// 订单管理
				authorized.GET("/orders", adminHandler.AdminListOrders)
				authorized.GET("/orders/:order_no", adminHandler.AdminGetOrder)
				authorized.PATCH("/orders/:order_no", adminHandler.AdminUpdateOrderStatus)

				// 配送时段管理
				authorized.GET("/slots", adminHandler.AdminListSlots)
				authorized.PUT("/slots", adminHandler.ConfigureSlot)
			}
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
