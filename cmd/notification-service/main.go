// cmd/notification-service/main.go
package main

import (
	"context"

	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/bootstrap"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/database"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/mq"
	"nexus-commerce/internal/service/notification/application"
	"nexus-commerce/internal/service/notification/infrastructure"
	"nexus-commerce/internal/service/notification/interfaces"

	"go.opentelemetry.io/otel"
)

const serviceName = constants.NotificationService

func main() {
	cfg, err := bootstrap.Init(serviceName)
	if err != nil {
		logger.L().Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel, cfg.App.LogPretty)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Port:             8083,
		RegisterHandlers: registerHandlers,
	})
	if err != nil {
		logger.L().Fatal().Err(err).Msg("❌ service stopped with error")
	}
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	tracer := otel.Tracer(serviceName)

	db, err := database.Open(cfg.Infra.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, cfg.Infra.Database, &infrastructure.AuditLogModel{}, &infrastructure.NotificationModel{}); err != nil {
		return err
	}
	appCtx.OnShutdown(func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	audit := application.NewAuditService(infrastructure.NewGormAuditRepository(db), tracer)
	notifications := application.NewNotificationService(infrastructure.NewGormNotificationRepository(db),
		infrastructure.NewLogMailer(cfg.Mail.From), tracer)
	processor := application.NewEventProcessor(audit, notifications, tracer)

	brokers := cfg.Infra.Kafka.Brokers
	groupID := cfg.Consumer.GroupID
	if groupID == "" {
		groupID = constants.NotificationConsumerGroup
	}

	// 主消费者：order-events -> 审计 + 通知，失败转投死信
	dltWriter := mq.NewKafkaWriter(brokers, constants.OrderEventsDLTTopic)
	eventReader := mq.NewKafkaReader(brokers, constants.OrderEventsTopic, groupID)
	consumer := interfaces.NewOrderEventConsumer(eventReader, processor, mq.NewFailureHandler(dltWriter), tracer,
		interfaces.ConsumerConfig{
			MaxAttempts: cfg.Consumer.MaxAttempts,
			Backoff:     cfg.Consumer.Backoff,
			MaxBackoff:  cfg.Consumer.MaxBackoff,
		})
	appCtx.Go(consumer.Run)
	appCtx.OnShutdown(func(context.Context) error { return dltWriter.Close() })
	appCtx.OnShutdown(func(context.Context) error { return eventReader.Close() })

	// 死信消费者：只记录日志
	dltReader := mq.NewKafkaReader(brokers, constants.OrderEventsDLTTopic, constants.DLTConsumerGroup)
	appCtx.Go(interfaces.NewDltConsumer(dltReader).Run)
	appCtx.OnShutdown(func(context.Context) error { return dltReader.Close() })

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	interfaces.NewQueryHandler(audit, notifications, verifier).RegisterRoutes(appCtx.Mux)
	return nil
}
