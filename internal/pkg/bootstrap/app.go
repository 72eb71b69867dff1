// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/nacos"
	"nexus-commerce/internal/pkg/tracing"
	"nexus-commerce/internal/pkg/utils"
	"nexus-commerce/internal/pkg/web"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// AppCtx 在注册阶段交给各服务，用于挂路由、后台任务和关停钩子。
type AppCtx struct {
	Mux    *http.ServeMux
	Nacos  *nacos.Client // 未启用注册中心时为 nil
	Config *Config

	workers   []func(ctx context.Context) error
	shutdowns []func(ctx context.Context) error
}

// Go 注册一个随服务一起运行的后台任务（例如 Kafka 消费者）。
// 任务应在 ctx 取消后返回。
func (a *AppCtx) Go(fn func(ctx context.Context) error) {
	a.workers = append(a.workers, fn)
}

// OnShutdown 注册关停时执行的清理函数，按注册的逆序执行。
func (a *AppCtx) OnShutdown(fn func(ctx context.Context) error) {
	a.shutdowns = append(a.shutdowns, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName      string
	Port             int
	RegisterHandlers func(appCtx *AppCtx) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) error {
	cfg := GetCurrentConfig()
	if cfg.App.Port != 0 {
		info.Port = cfg.App.Port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return errors.Wrap(err, "initialize tracer provider")
	}

	appCtx := &AppCtx{Mux: http.NewServeMux(), Config: cfg}

	var ip string
	if cfg.Infra.Nacos.Enabled {
		namingClient, err := nacos.NewClient(cfg.Infra.Nacos)
		if err != nil {
			return errors.Wrap(err, "initialize nacos client")
		}
		appCtx.Nacos = namingClient
		if ip, err = utils.GetOutboundIP(); err != nil {
			return errors.Wrap(err, "get outbound IP address")
		}
	}

	appCtx.Mux.HandleFunc("GET /healthz", web.Healthz)
	appCtx.Mux.Handle("GET /metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			return errors.Wrapf(err, "register handlers for %s", info.ServiceName)
		}
	}

	server := &http.Server{
		Addr:              ":" + strconv.Itoa(info.Port),
		Handler:           web.Traced(appCtx.Mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.L().Info().Msgf("🚀 %s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrapf(err, "listen on %s", server.Addr)
		}
		return nil
	})
	for _, w := range appCtx.workers {
		g.Go(func() error { return w(gctx) })
	}

	if appCtx.Nacos != nil {
		if err := appCtx.Nacos.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			stop()
			_ = server.Close()
			_ = g.Wait()
			return errors.Wrap(err, "register service with nacos")
		}
	}

	// 等待退出信号或任一任务失败
	g.Go(func() error {
		<-gctx.Done()
		logger.L().Info().Msgf("Shutting down service %s...", info.ServiceName)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if appCtx.Nacos != nil {
			if err := appCtx.Nacos.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
				logger.L().Error().Err(err).Msg("Error deregistering from Nacos")
			}
			appCtx.Nacos.Close()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.L().Error().Err(err).Msg("Error shutting down http server")
		}
		for i := len(appCtx.shutdowns) - 1; i >= 0; i-- {
			if err := appCtx.shutdowns[i](shutdownCtx); err != nil {
				logger.L().Error().Err(err).Msg("Error running shutdown hook")
			}
		}
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.L().Error().Err(err).Msg("Error shutting down tracer provider")
		}
		return nil
	})

	err = g.Wait()
	if err != nil {
		logger.L().Error().Err(err).Msgf("Service %s stopped with error", info.ServiceName)
		return err
	}
	logger.L().Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
	return nil
}
