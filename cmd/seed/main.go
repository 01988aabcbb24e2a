package main

import (
	"fmt"
	"time"

	"github.com/liveshop-next/internal/config"
	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/service"
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

	// 演示门店
	stores := []models.Store{
		{TenantID: 1, Name: "临江直播基地仓", Address: "滨江区江南大道 1001 号", Lat: 30.2084, Lng: 120.2103},
		{TenantID: 1, Name: "城西前置仓", Address: "西湖区文三西路 58 号", Lat: 30.2852, Lng: 120.1092},
	}
	for i := range stores {
		if err := models.DB.Create(&stores[i]).Error; err != nil {
			stdLog.Fatalf("Failed to seed store: %v", err)
		}
	}

	// 演示骑手（在门店附近分布）
	now := time.Now()
	lat1, lng1 := 30.2101, 120.2088
	lat2, lng2 := 30.2030, 120.2155
	lat3, lng3 := 30.2890, 120.1120
	drivers := []models.Driver{
		{Name: "赵骑手", Phone: "13800000001", IsAvailable: true, CurrentLat: &lat1, CurrentLng: &lng1, LocationAt: &now, Rating: 4.9},
		{Name: "钱骑手", Phone: "13800000002", IsAvailable: true, CurrentLat: &lat2, CurrentLng: &lng2, LocationAt: &now, Rating: 4.7},
		{Name: "孙骑手", Phone: "13800000003", IsAvailable: false, CurrentLat: &lat3, CurrentLng: &lng3, LocationAt: &now, Rating: 4.8},
	}
	for i := range drivers {
		if err := models.DB.Create(&drivers[i]).Error; err != nil {
			stdLog.Fatalf("Failed to seed driver: %v", err)
		}
	}

	// 各角色演示令牌
	authService := service.NewAuthService(cfg.JWT)
	tokens := []struct {
		role    string
		actorID uint
	}{
		{constants.RoleStoreStaff, 1},
		{constants.RoleCustomer, 1001},
		{constants.RoleDriver, drivers[0].ID},
		{constants.RoleOps, 1},
	}
	fmt.Println("演示数据已写入：")
	fmt.Printf("  门店: %d 个, 骑手: %d 个\n", len(stores), len(drivers))
	for _, t := range tokens {
		token, err := authService.GenerateToken(t.actorID, t.role)
		if err != nil {
			stdLog.Printf("警告: 生成 %s 令牌失败: %v", t.role, err)
			continue
		}
		fmt.Printf("  %s 令牌 (actor_id=%d):\n    %s\n", t.role, t.actorID, token)
	}
}
