// cmd/order-service/main.go
package main

import (
	"context"

	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/bootstrap"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/database"
	"nexus-commerce/internal/pkg/httpclient"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/mq"
	"nexus-commerce/internal/service/order/application"
	"nexus-commerce/internal/service/order/infrastructure"
	"nexus-commerce/internal/service/order/infrastructure/adapter"
	"nexus-commerce/internal/service/order/interfaces"

	"go.opentelemetry.io/otel"
)

const serviceName = constants.OrderService

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.Init(serviceName)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.LogPretty)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8081,
		RegisterHandlers: registerHandlers,
	})
	if err != nil {
		logger.L().Fatal().Err(err).Msg("❌ service stopped with error")
	}
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	tracer := otel.Tracer(serviceName)

	// 1. 持久化
	db, err := database.Open(cfg.Infra.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, cfg.Infra.Database, &infrastructure.OrderModel{}, &infrastructure.OrderItemModel{}); err != nil {
		return err
	}
	appCtx.OnShutdown(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	orderRepo := infrastructure.NewGormOrderRepository(db)

	// 2. 库存网关：优先走 Nacos 发现，失败时回退到静态地址
	resolvers := httpclient.FallbackResolver{}
	if appCtx.Nacos != nil {
		resolvers = append(resolvers, appCtx.Nacos)
	}
	resolvers = append(resolvers, httpclient.StaticResolver(cfg.Services))
	inventory := adapter.NewInventoryHTTPAdapter(httpclient.NewClient(tracer, resolvers), adapter.InventoryGatewayConfig{
		Timeout:         cfg.Gateway.Timeout,
		MaxRetries:      cfg.Gateway.MaxRetries,
		RetryBackoff:    cfg.Gateway.RetryBackoff,
		BreakerFailures: cfg.Gateway.BreakerFailures,
		BreakerOpenFor:  cfg.Gateway.BreakerOpenFor,
	})

	// 3. 事件发布
	writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, constants.OrderEventsTopic)
	publisher := adapter.NewOrderEventKafkaAdapter(writer, cfg.Gateway.PublishTimeout)
	appCtx.OnShutdown(func(context.Context) error { return publisher.Close() })

	// 4. 应用服务与 HTTP 入口
	service := application.NewOrderApplicationService(orderRepo, tracer, inventory, publisher)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	interfaces.NewOrderHandler(service, verifier).RegisterRoutes(appCtx.Mux)

	logger.L().Info().Strs("brokers", cfg.Infra.Kafka.Brokers).Str("topic", constants.OrderEventsTopic).
		Msg("✅ Order service wired.")
	return nil
}
