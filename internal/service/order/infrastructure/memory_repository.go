package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"nexus-mall/internal/service/order/domain"
)

// MemoryOrderRepository 是未配置 MySQL 时使用的进程内仓储。
type MemoryOrderRepository struct {
	mu       sync.RWMutex
	orders   map[int64]*domain.Order
	byNumber map[string]int64
	nextID   int64
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{
		orders:   make(map[int64]*domain.Order),
		byNumber: make(map[string]int64),
	}
}

func (r *MemoryOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.byNumber[order.OrderNumber]; dup {
		return domain.ErrDuplicateOrderNumber
	}
	r.nextID++
	order.ID = r.nextID
	order.CreatedAt = time.Now().UTC()
	r.orders[order.ID] = cloneOrder(order)
	r.byNumber[order.OrderNumber] = order.ID
	return nil
}

func (r *MemoryOrderRepository) FindByID(_ context.Context, id int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepository) FindAll(_ context.Context) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Lines = append([]domain.OrderLine(nil), o.Lines...)
	return &cp
}
