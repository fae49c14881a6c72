package domain

import "context"

// ProductRepository 定义了商品聚合的持久化接口，由基础设施层实现。
type ProductRepository interface {
	FindAll(ctx context.Context) ([]*Product, error)
	// FindByID 不存在时返回 ErrProductNotFound。
	FindByID(ctx context.Context, id int64) (*Product, error)
	Count(ctx context.Context) (int64, error)
	// SaveAll 批量插入新商品，并回填 ID。
	SaveAll(ctx context.Context, products []*Product) error
	// UpdateWithLock 在一个事务里对该商品行加排他锁，调用 mutate 修改后提交。
	// mutate 返回错误时事务回滚、原样返回该错误。返回值是已提交的快照。
	UpdateWithLock(ctx context.Context, id int64, mutate func(*Product) error) (*Product, error)
}
