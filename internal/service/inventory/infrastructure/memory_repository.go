package infrastructure

import (
	"context"
	"sort"
	"sync"
	"time"

	"nexus-mall/internal/service/inventory/domain"
)

// MemoryProductRepository 是未配置 MySQL 时使用的进程内仓储。
// 所有读写都返回副本，UpdateWithLock 在写锁内完成 读-改-写。
type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	nextID   int64
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{products: make(map[int64]domain.Product)}
}

func (r *MemoryProductRepository) FindAll(_ context.Context) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		cp := p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryProductRepository) FindByID(_ context.Context, id int64) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return &p, nil
}

func (r *MemoryProductRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.products)), nil
}

func (r *MemoryProductRepository) SaveAll(_ context.Context, products []*domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, p := range products {
		r.nextID++
		p.ID = r.nextID
		p.CreatedAt, p.UpdatedAt = now, now
		r.products[p.ID] = *p
	}
	return nil
}

func (r *MemoryProductRepository) UpdateWithLock(ctx context.Context, id int64, mutate func(*domain.Product) error) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	current, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	working := current
	if err := mutate(&working); err != nil {
		return nil, err
	}
	r.products[id] = working
	committed := working
	return &committed, nil
}
