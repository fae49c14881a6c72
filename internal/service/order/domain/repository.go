// internal/service/order/domain/repository.go
package domain

import (
	"context"
	"errors"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，但由基础设施层实现。
type OrderRepository interface {
	// Save 插入一个新订单，回填 ID 与 CreatedAt。订单号冲突时返回 ErrDuplicateOrderNumber。
	Save(ctx context.Context, order *Order) error

	// FindByID 不存在时返回 ErrOrderNotFound。
	FindByID(ctx context.Context, id int64) (*Order, error)

	FindAll(ctx context.Context) ([]*Order, error)
}
