package main

import (
	"fmt"
	"time"

	"github.com/tienda-next/internal/config"
	"github.com/tienda-next/internal/constants"
	"github.com/tienda-next/internal/logger"
	"github.com/tienda-next/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 默认管理员
	if err := models.InitDefaultAdmin("", ""); err != nil {
		stdLog.Printf("Failed to init default admin: %v", err)
	}

	// 演示用户
	demoUsers := []struct {
		Email       string
		Password    string
		DisplayName string
		Phone       string
	}{
		{Email: "maria@example.com", Password: "maria123", DisplayName: "María Fernández", Phone: "+51 987 654 321"},
		{Email: "jorge@example.com", Password: "jorge123", DisplayName: "Jorge Quispe", Phone: "+51 912 345 678"},
	}

	userIDs := map[string]uint{}
	for _, du := range demoUsers {
		var existing models.User
		if err := models.DB.Where("email = ?", du.Email).First(&existing).Error; err == nil {
			stdLog.Printf("User already exists: %s", du.Email)
			userIDs[du.Email] = existing.ID
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(du.Password), bcrypt.DefaultCost)
		if err != nil {
			stdLog.Printf("Failed to hash password for %s: %v", du.Email, err)
			continue
		}
		user := models.User{
			Email:        du.Email,
			Phone:        du.Phone,
			PasswordHash: string(hash),
			DisplayName:  du.DisplayName,
			Status:       constants.UserStatusActive,
		}
		if err := models.DB.Create(&user).Error; err != nil {
			stdLog.Printf("Failed to create user %s: %v", du.Email, err)
			continue
		}
		stdLog.Printf("Created user: %s", du.Email)
		userIDs[du.Email] = user.ID
	}

	// 演示地址
	if userID, ok := userIDs["maria@example.com"]; ok {
		seedAddress(userID, models.Address{
			UserID:       userID,
			ContactName:  "María Fernández",
			ContactPhone: "+51 987 654 321",
			Line1:        "Av. Larco 1232, Dpto. 501",
			District:     "Miraflores",
			City:         "Lima",
			Reference:    "Edificio frente al parque, portero hasta las 22:00",
			IsDefault:    true,
		})
	}
	if userID, ok := userIDs["jorge@example.com"]; ok {
		seedAddress(userID, models.Address{
			UserID:       userID,
			ContactName:  "Jorge Quispe",
			ContactPhone: "+51 912 345 678",
			Line1:        "Jr. de la Unión 845",
			District:     "Cercado de Lima",
			City:         "Lima",
			IsDefault:    true,
		})
	}

	// 演示购物车（价格快照由上游计价服务写入，这里直接给定）
	if userID, ok := userIDs["maria@example.com"]; ok {
		seedCartItem(models.CartItem{
			UserID:    userID,
			ProductID: 1001,
			SKU:       "CAFE-ORG-250",
			Name:      "Café orgánico molido 250g",
			Quantity:  2,
			UnitPrice: models.NewMoneyFromDecimal(decimal.RequireFromString("28.50")),
			TaxRate:   models.NewMoneyFromDecimal(decimal.RequireFromString("0.18")),
		})
		seedCartItem(models.CartItem{
			UserID:    userID,
			ProductID: 1002,
			SKU:       "MIEL-500",
			Name:      "Miel de abeja 500g",
			Quantity:  1,
			UnitPrice: models.NewMoneyFromDecimal(decimal.RequireFromString("22.00")),
			TaxRate:   models.NewMoneyFromDecimal(decimal.RequireFromString("0.18")),
		})
	}

	// 未来 7 天的配送时段
	windows := []string{constants.DeliveryWindowMorning, constants.DeliveryWindowAfternoon}
	today := time.Now()
	for day := 1; day <= 7; day++ {
		date := today.AddDate(0, 0, day).Format("2006-01-02")
		for _, window := range windows {
			var existing models.DeliverySlot
			if err := models.DB.Where("date = ? AND window = ?", date, window).First(&existing).Error; err == nil {
				continue
			}
			slot := models.DeliverySlot{
				Date:        date,
				Window:      window,
				MaxCapacity: cfg.Delivery.DefaultSlotCapacity,
			}
			if err := models.DB.Create(&slot).Error; err != nil {
				stdLog.Printf("Failed to create slot %s/%s: %v", date, window, err)
				continue
			}
			stdLog.Printf("Created delivery slot: %s %s (capacity %d)", date, window, slot.MaxCapacity)
		}
	}

	fmt.Println("Seed completed")
}

func seedAddress(userID uint, addr models.Address) {
	stdLog := logger.StdLogger()
	var count int64
	models.DB.Model(&models.Address{}).Where("user_id = ? AND line1 = ?", userID, addr.Line1).Count(&count)
	if count > 0 {
		stdLog.Printf("Address already exists for user %d: %s", userID, addr.Line1)
		return
	}
	if err := models.DB.Create(&addr).Error; err != nil {
		stdLog.Printf("Failed to create address for user %d: %v", userID, err)
		return
	}
	stdLog.Printf("Created address for user %d: %s", userID, addr.Line1)
}

func seedCartItem(item models.CartItem) {
	stdLog := logger.StdLogger()
	var count int64
	models.DB.Model(&models.CartItem{}).Where("user_id = ? AND product_id = ?", item.UserID, item.ProductID).Count(&count)
	if count > 0 {
		return
	}
	if err := models.DB.Create(&item).Error; err != nil {
		stdLog.Printf("Failed to create cart item %s: %v", item.SKU, err)
		return
	}
	stdLog.Printf("Created cart item: %s x%d", item.SKU, item.Quantity)
}
