// internal/service/inventory/application/ledger.go
package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"nexus-mall/internal/pkg/lock"
	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/pkg/metrics"
	"nexus-mall/internal/service/inventory/domain"
)

const (
	// loadTimeout 约束一次共享的仓储加载，它与发起它的请求解耦
	loadTimeout = 5 * time.Second
	// cacheTimeout 约束提交之后的缓存刷新与失效
	cacheTimeout = 2 * time.Second
)

// ProductCache 是商品快照的读缓存，只服务于只读查询。
type ProductCache interface {
	Get(ctx context.Context, id int64) (*domain.Product, bool, error)
	Set(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id int64) error
}

// Availability 是某一时刻的库存快照，仅供参考，不构成任何承诺。
type Availability struct {
	ProductID  int64
	StockCount int
	Exists     bool
}

// Reservation 是一次成功扣减的结果。
type Reservation struct {
	ProductID      int64
	Quantity       int
	RemainingStock int
}

// StockLedger 是库存数量的唯一权威来源。
// 同一商品的扣减在 locker 上串行，不同商品互不影响；查询不加锁。
type StockLedger struct {
	repo    domain.ProductRepository
	locker  lock.Locker
	cache   ProductCache // 可为 nil
	tracer  trace.Tracer
	metrics *metrics.InventoryMetrics

	loads singleflight.Group
}

func NewStockLedger(repo domain.ProductRepository, locker lock.Locker, cache ProductCache, tracer trace.Tracer, m *metrics.InventoryMetrics) *StockLedger {
	return &StockLedger{repo: repo, locker: locker, cache: cache, tracer: tracer, metrics: m}
}

// Reserve 原子地执行 读取-校验-扣减。
// 扣减在事务内提交之后才释放商品锁，下一个持锁者一定能看到本次结果。
func (l *StockLedger) Reserve(ctx context.Context, productID int64, quantity int) (*Reservation, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.Reserve", trace.WithAttributes(
		attribute.Int64("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer span.End()

	if quantity <= 0 {
		l.metrics.ObserveReservation("invalid_quantity")
		return nil, domain.ErrInvalidQuantity
	}

	waitStart := time.Now()
	unlock, err := l.locker.Lock(ctx, lockKey(productID))
	l.metrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "acquire product lock failed")
		l.metrics.ObserveReservation("lock_failed")
		return nil, fmt.Errorf("acquire lock for product %d: %w", productID, err)
	}
	defer unlock()
	span.AddEvent("product lock acquired")

	committed, err := l.repo.UpdateWithLock(ctx, productID, func(p *domain.Product) error {
		return p.ReduceStock(quantity)
	})
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			l.metrics.ObserveReservation("not_found")
		case errors.Is(err, domain.ErrInsufficientStock):
			l.metrics.ObserveReservation("insufficient_stock")
			l.invalidate(ctx, productID)
		default:
			span.SetStatus(codes.Error, "reserve stock failed")
			l.metrics.ObserveReservation("error")
			logger.Ctx(ctx).Error().Err(err).Int64("product_id", productID).Msg("stock reservation failed")
		}
		return nil, err
	}

	// 锁仍然持有，缓存与数据库的提交顺序一致
	l.refresh(ctx, committed)
	l.metrics.ObserveReservation("ok")
	span.SetAttributes(attribute.Int("stock.remaining", committed.StockQuantity))
	logger.Ctx(ctx).Info().
		Int64("product_id", productID).
		Int("quantity", quantity).
		Int("remaining", committed.StockQuantity).
		Msg("stock reserved")

	return &Reservation{ProductID: productID, Quantity: quantity, RemainingStock: committed.StockQuantity}, nil
}

// CheckAvailability 返回一个不加锁的库存快照，可能来自缓存，结果可能已经过时。
func (l *StockLedger) CheckAvailability(ctx context.Context, productID int64) (Availability, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.CheckAvailability", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	p, err := l.load(ctx, productID)
	if errors.Is(err, domain.ErrProductNotFound) {
		return Availability{ProductID: productID}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "check availability failed")
		return Availability{}, err
	}
	return Availability{ProductID: productID, StockCount: p.StockQuantity, Exists: true}, nil
}

// GetProduct 返回商品快照，不存在时返回 domain.ErrProductNotFound。
func (l *StockLedger) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.GetProduct", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	p, err := l.load(ctx, productID)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get product failed")
	}
	return p, err
}

// ListProducts 直接读仓储，按 ID 排序。
func (l *StockLedger) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.ListProducts")
	defer span.End()

	products, err := l.repo.FindAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list products failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}

// load 先查缓存，未命中时合并并发回源。
func (l *StockLedger) load(ctx context.Context, productID int64) (*domain.Product, error) {
	if l.cache != nil {
		p, ok, err := l.cache.Get(ctx, productID)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Int64("product_id", productID).Msg("product cache read failed, falling back to repository")
		} else if ok {
			return p, nil
		}
	}

	// 共享加载不跟随任何一个调用方的取消，每个调用方只放弃自己的等待
	ch := l.loads.DoChan(lockKey(productID), func() (any, error) {
		loadCtx, cancel := detached(ctx, loadTimeout)
		defer cancel()

		p, err := l.repo.FindByID(loadCtx, productID)
		if err != nil {
			return nil, err
		}
		if l.cache != nil {
			if err := l.cache.Set(loadCtx, p); err != nil {
				logger.Ctx(ctx).Warn().Err(err).Int64("product_id", productID).Msg("product cache write failed")
			}
		}
		return p, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// 共享结果需要复制，调用方可能修改
		cp := *res.Val.(*domain.Product)
		return &cp, nil
	}
}

// refresh 在提交之后执行，请求取消也不能跳过，否则缓存会停留在旧库存。
func (l *StockLedger) refresh(ctx context.Context, p *domain.Product) {
	if l.cache == nil {
		return
	}
	cacheCtx, cancel := detached(ctx, cacheTimeout)
	defer cancel()
	if err := l.cache.Set(cacheCtx, p); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("product_id", p.ID).Msg("product cache refresh failed, invalidating")
		l.invalidate(ctx, p.ID)
	}
}

func (l *StockLedger) invalidate(ctx context.Context, productID int64) {
	if l.cache == nil {
		return
	}
	cacheCtx, cancel := detached(ctx, cacheTimeout)
	defer cancel()
	if err := l.cache.Delete(cacheCtx, productID); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Int64("product_id", productID).Msg("product cache invalidation failed")
	}
}

// detached 保留 ctx 中的 trace 等值，但不继承它的取消和截止时间。
func detached(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func lockKey(productID int64) string {
	return "product-" + strconv.FormatInt(productID, 10)
}
