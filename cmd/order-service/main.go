// cmd/order-service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"nexus-mall/internal/pkg/bootstrap"
	"nexus-mall/internal/pkg/database"
	"nexus-mall/internal/pkg/httpclient"
	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/pkg/metrics"
	"nexus-mall/internal/pkg/mq"
	"nexus-mall/internal/pkg/nacos"
	"nexus-mall/internal/service/order/application"
	"nexus-mall/internal/service/order/domain"
	"nexus-mall/internal/service/order/infrastructure"
	"nexus-mall/internal/service/order/infrastructure/adapter"
	"nexus-mall/internal/service/order/interfaces"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	cfg, err := bootstrap.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(serviceName, cfg.App.LogLevel)

	err = bootstrap.StartService(bootstrap.AppInfo{
		ServiceName:      serviceName,
		Config:           cfg,
		RegisterHandlers: registerHandlers,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("order service exited")
	}
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	cfg := appCtx.Config
	m := metrics.NewOrderMetrics(prometheus.DefaultRegisterer)

	// 1. 订单仓储
	var repo domain.OrderRepository
	if cfg.Infra.MySQL.Enabled() {
		db, err := database.OpenMySQL(cfg.Infra.MySQL)
		if err != nil {
			return err
		}
		gormRepo := infrastructure.NewGormOrderRepository(db)
		if cfg.Infra.MySQL.AutoMigrate {
			if err := gormRepo.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate orders: %w", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			appCtx.OnShutdown(func(context.Context) error { return sqlDB.Close() })
		}
		repo = gormRepo
	} else {
		log.Warn().Msg("mysql not configured, using in-memory order repository")
		repo = infrastructure.NewMemoryOrderRepository()
	}

	// 2. 库存服务地址：优先走 Nacos 服务发现，否则使用固定地址
	var resolver httpclient.Resolver
	switch {
	case appCtx.Nacos != nil:
		resolver = nacos.NewServiceResolver(appCtx.Nacos, cfg.Inventory.ServiceName)
	case cfg.Inventory.BaseURL != "":
		resolver = httpclient.StaticResolver(cfg.Inventory.BaseURL)
	default:
		return errors.New("inventory.base_url is required when nacos is not configured")
	}
	gateway := adapter.NewInventoryHTTPAdapter(httpclient.NewClient(appCtx.Tracer), resolver, cfg.Inventory.RequestTimeout, m)

	opts := application.Options{
		ProcessingTimeout: cfg.Order.ProcessingTimeout,
		EventsTopic:       cfg.Infra.Kafka.OrderEventsTopic,
		Metrics:           m,
	}

	// 3. 事件发布（可选）。writer 不设置 topic，由每条消息指定
	if cfg.Infra.Kafka.Enabled() {
		writer := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, "")
		appCtx.OnShutdown(func(context.Context) error { return writer.Close() })
		opts.Publisher = adapter.NewOrderEventKafkaAdapter(writer, cfg.Infra.Kafka.OrderEventsTopic, cfg.Infra.Kafka.InconsistencyTopic)
	}

	// 4. 准入规则（可选）
	if cfg.Order.AdmissionRule != "" {
		admission, err := application.NewCELAdmission(cfg.Order.AdmissionRule)
		if err != nil {
			return err
		}
		opts.Admission = admission
	}

	svc := application.NewOrderApplicationService(repo, gateway, appCtx.Tracer, opts)
	interfaces.NewOrderHandler(svc).RegisterRoutes(appCtx.Mux)

	log.Info().
		Bool("mysql", cfg.Infra.MySQL.Enabled()).
		Bool("kafka", cfg.Infra.Kafka.Enabled()).
		Bool("nacos", appCtx.Nacos != nil).
		Str("admission_rule", cfg.Order.AdmissionRule).
		Msg("order service wired")
	return nil
}
