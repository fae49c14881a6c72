// cmd/inventory-service/main.go
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"nexus-mall/internal/pkg/bootstrap"
	"nexus-mall/internal/pkg/database"
	"nexus-mall/internal/pkg/lock"
	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/pkg/metrics"
	"nexus-mall/internal/pkg/redis"
	"nexus-mall/internal/service/inventory/application"
	"nexus-mall/internal/service/inventory/domain"
	"nexus-mall/internal/service/inventory/infrastructure"
	"nexus-mall/internal/service/inventory/interfaces"
)

const serviceName = "inventory-service"

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
		log.Fatal().Err(err).Msg("inventory service exited")
	}
}

func registerHandlers(appCtx *bootstrap.AppCtx) error {
	ctx := context.Background()
	cfg := appCtx.Config

	// 1. 仓储：配置了 MySQL 用 GORM，否则用内存
	var repo domain.ProductRepository
	if cfg.Infra.MySQL.Enabled() {
		db, err := database.OpenMySQL(cfg.Infra.MySQL)
		if err != nil {
			return err
		}
		gormRepo := infrastructure.NewGormProductRepository(db)
		if cfg.Infra.MySQL.AutoMigrate {
			if err := gormRepo.AutoMigrate(); err != nil {
				return fmt.Errorf("migrate products: %w", err)
			}
		}
		if sqlDB, err := db.DB(); err == nil {
			appCtx.OnShutdown(func(context.Context) error { return sqlDB.Close() })
		}
		repo = gormRepo
	} else {
		log.Warn().Msg("mysql not configured, using in-memory product repository")
		repo = infrastructure.NewMemoryProductRepository()
	}

	if cfg.App.SeedSampleData {
		if _, err := application.SeedSampleProducts(ctx, repo); err != nil {
			return err
		}
	}

	// 2. 可选的 Redis 读缓存
	var cache application.ProductCache
	if cfg.Infra.Redis.Enabled() {
		client, err := redis.NewClient(ctx, cfg.Infra.Redis)
		if err != nil {
			return err
		}
		appCtx.OnShutdown(func(context.Context) error { return client.Close() })
		cache = infrastructure.NewRedisProductCache(client, cfg.Infra.Redis.CacheTTL)
	}

	// 3. 单商品互斥：单副本用进程内锁，多副本用 ZooKeeper
	var locker lock.Locker
	switch cfg.Lock.Backend {
	case bootstrap.LockBackendZookeeper:
		zl, err := lock.NewZookeeperLocker(cfg.Infra.Zookeeper.Servers, cfg.Infra.Zookeeper.SessionTimeout, cfg.Lock.WaitTimeout)
		if err != nil {
			return err
		}
		appCtx.OnShutdown(func(context.Context) error { zl.Close(); return nil })
		locker = zl
	default:
		locker = lock.NewKeyedMutex(cfg.Lock.WaitTimeout)
	}

	m := metrics.NewInventoryMetrics(prometheus.DefaultRegisterer)
	ledger := application.NewStockLedger(repo, locker, cache, appCtx.Tracer, m)
	interfaces.NewInventoryHandler(ledger).RegisterRoutes(appCtx.Mux)

	log.Info().
		Bool("mysql", cfg.Infra.MySQL.Enabled()).
		Bool("redis_cache", cache != nil).
		Str("lock_backend", cfg.Lock.Backend).
		Msg("inventory service wired")
	return nil
}
