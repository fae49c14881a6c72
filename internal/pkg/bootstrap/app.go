// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"nexus-mall/internal/pkg/nacos"
	"nexus-mall/internal/pkg/tracing"
)

// AppCtx 是交给各服务注册路由和装配依赖时使用的上下文。
type AppCtx struct {
	Mux    *http.ServeMux
	Config *Config
	Tracer trace.Tracer
	Nacos  *nacos.Client // 未配置 Nacos 时为 nil

	cleanups []func(context.Context) error
}

// OnShutdown 注册一个在关停时执行的清理函数，按注册的逆序执行。
func (a *AppCtx) OnShutdown(fn func(context.Context) error) {
	a.cleanups = append(a.cleanups, fn)
}

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Config      *Config
	// RegisterHandlers 允许每个服务装配自己的依赖并注册 HTTP 路由
	RegisterHandlers func(appCtx *AppCtx) error
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑，阻塞直到收到退出信号。
func StartService(info AppInfo) error {
	cfg := info.Config

	// 1. Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Infra.Jaeger.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer provider: %w", err)
	}

	appCtx := &AppCtx{
		Mux:    http.NewServeMux(),
		Config: cfg,
		Tracer: otel.Tracer(info.ServiceName),
	}
	appCtx.OnShutdown(tp.Shutdown)

	// 2. Nacos（可选）
	var ip string
	if cfg.Infra.Nacos.Enabled() {
		appCtx.Nacos, err = nacos.NewNacosClient(cfg.Infra.Nacos.ServerAddrs, cfg.Infra.Nacos.Namespace, cfg.Infra.Nacos.Group)
		if err != nil {
			return fmt.Errorf("failed to initialize nacos client: %w", err)
		}
		if ip, err = getOutboundIP(); err != nil {
			return fmt.Errorf("failed to get outbound IP address: %w", err)
		}
	}

	// 3. 服务自身的依赖与路由
	appCtx.Mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	appCtx.Mux.Handle("/metrics", promhttp.Handler())
	if info.RegisterHandlers != nil {
		if err := info.RegisterHandlers(appCtx); err != nil {
			runCleanups(appCtx, cfg)
			return err
		}
	}

	server := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.App.Port),
		Handler: WithTraceContext(appCtx.Mux),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("service", info.ServiceName).Int("port", cfg.App.Port).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("could not listen on %s: %w", server.Addr, err)
		}
		return nil
	})

	// 4. 服务注册放在监听之后
	if appCtx.Nacos != nil {
		if err := appCtx.Nacos.RegisterServiceInstance(info.ServiceName, ip, cfg.App.Port); err != nil {
			log.Error().Err(err).Msg("failed to register service with nacos, shutting down")
			stop()
		} else {
			appCtx.OnShutdown(func(context.Context) error {
				return appCtx.Nacos.DeregisterServiceInstance(info.ServiceName, ip, cfg.App.Port)
			})
		}
	}

	// 5. 优雅关停
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("service", info.ServiceName).Msg("Shutting down service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down http server")
		}
		runCleanups(appCtx, cfg)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Str("service", info.ServiceName).Msg("Service gracefully shut down.")
	return nil
}

func runCleanups(appCtx *AppCtx, cfg *Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	for i := len(appCtx.cleanups) - 1; i >= 0; i-- {
		if err := appCtx.cleanups[i](ctx); err != nil {
			log.Error().Err(err).Msg("Cleanup failed during shutdown")
		}
	}
}

// WithTraceContext 从请求头中提取上游的 trace 上下文，并注入带 trace_id 的 logger。
func WithTraceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		l := log.With().Str("http.path", r.URL.Path).Logger()
		ctx = l.WithContext(ctx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// getOutboundIP 获取本机对外通信使用的 IP，用于服务注册。
func getOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
