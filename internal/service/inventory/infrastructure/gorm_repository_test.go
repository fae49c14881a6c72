package infrastructure

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"nexus-mall/internal/service/inventory/domain"
)

func newSQLiteRepo(t *testing.T) *GormProductRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "inventory.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// SQLite 只允许一个写者
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewGormProductRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

// repoFactories 让同一组用例同时覆盖 GORM 与内存实现。
func repoFactories() map[string]func(t *testing.T) domain.ProductRepository {
	return map[string]func(t *testing.T) domain.ProductRepository{
		"gorm":   func(t *testing.T) domain.ProductRepository { return newSQLiteRepo(t) },
		"memory": func(t *testing.T) domain.ProductRepository { return NewMemoryProductRepository() },
	}
}

func seed(t *testing.T, repo domain.ProductRepository, stock int) *domain.Product {
	t.Helper()
	p := &domain.Product{Name: "Laptop", Price: decimal.RequireFromString("1299.99"), StockQuantity: stock}
	require.NoError(t, repo.SaveAll(context.Background(), []*domain.Product{p}))
	require.NotZero(t, p.ID)
	return p
}

func TestProductRepository_CRUD(t *testing.T) {
	for name, newRepo := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()

			n, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)

			p := seed(t, repo, 15)
			found, err := repo.FindByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Laptop", found.Name)
			assert.True(t, found.Price.Equal(decimal.RequireFromString("1299.99")))
			assert.Equal(t, 15, found.StockQuantity)

			_, err = repo.FindByID(ctx, 9999)
			assert.ErrorIs(t, err, domain.ErrProductNotFound)

			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestProductRepository_UpdateWithLock(t *testing.T) {
	for name, newRepo := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			p := seed(t, repo, 5)

			committed, err := repo.UpdateWithLock(ctx, p.ID, func(p *domain.Product) error { return p.ReduceStock(3) })
			require.NoError(t, err)
			assert.Equal(t, 2, committed.StockQuantity)

			// mutate 失败时回滚
			_, err = repo.UpdateWithLock(ctx, p.ID, func(p *domain.Product) error { return p.ReduceStock(3) })
			assert.ErrorIs(t, err, domain.ErrInsufficientStock)

			found, err := repo.FindByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, 2, found.StockQuantity)

			_, err = repo.UpdateWithLock(ctx, 424242, func(p *domain.Product) error { return nil })
			assert.ErrorIs(t, err, domain.ErrProductNotFound)
		})
	}
}

func TestProductRepository_ConcurrentUpdatesNeverOversell(t *testing.T) {
	for name, newRepo := range repoFactories() {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			p := seed(t, repo, 10)

			var wg sync.WaitGroup
			var mu sync.Mutex
			succeeded := 0
			for i := 0; i < 25; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := repo.UpdateWithLock(context.Background(), p.ID, func(p *domain.Product) error { return p.ReduceStock(1) })
					if err == nil {
						mu.Lock()
						succeeded++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()

			found, err := repo.FindByID(context.Background(), p.ID)
			require.NoError(t, err)
			assert.Equal(t, 10, succeeded)
			assert.Equal(t, 0, found.StockQuantity)
		})
	}
}
