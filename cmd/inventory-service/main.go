// cmd/inventory-service/main.go
package main

import (
	"context"

	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/bootstrap"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/database"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/redis"
	"nexus-commerce/internal/service/inventory/application"
	"nexus-commerce/internal/service/inventory/domain"
	"nexus-commerce/internal/service/inventory/infrastructure"
	"nexus-commerce/internal/service/inventory/interfaces"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
)

const serviceName = constants.InventoryService

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.Init(serviceName)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.LogPretty)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        8082,
		RegisterHandlers: func(appCtx *bootstrap.AppCtx) error {
			store, err := newStockStore(appCtx)
			if err != nil {
				return err
			}
			service := application.NewInventoryService(store, otel.Tracer(serviceName))
			verifier := auth.NewVerifier(appCtx.Config.Auth.JWTSecret, appCtx.Config.Auth.Issuer)
			interfaces.NewInventoryHandler(service, verifier).RegisterRoutes(appCtx.Mux)
			return nil
		},
	})
	if err != nil {
		logger.L().Fatal().Err(err).Msg("❌ service stopped with error")
	}
}

// newStockStore 按配置选择库存台账：MySQL 行锁或 Redis Lua 原子脚本。
func newStockStore(appCtx *bootstrap.AppCtx) (domain.StockStore, error) {
	cfg := appCtx.Config
	switch cfg.Inventory.Backend {
	case "redis":
		rdb, err := redis.NewClient(context.Background(), cfg.Infra.Redis)
		if err != nil {
			return nil, err
		}
		appCtx.OnShutdown(func(context.Context) error { return rdb.Close() })
		store, err := infrastructure.NewRedisStockStore(context.Background(), rdb)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "mysql", "":
		db, err := database.Open(cfg.Infra.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(db, cfg.Infra.Database, &infrastructure.ProductModel{}); err != nil {
			return nil, err
		}
		appCtx.OnShutdown(func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
		return infrastructure.NewGormStockStore(db), nil
	default:
		return nil, errors.Errorf("unknown inventory backend %q", cfg.Inventory.Backend)
	}
}
