// internal/service/inventory/domain/product.go
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// InsufficientStockError 携带扣减失败时的库存快照，errors.Is(err, ErrInsufficientStock) 为真。
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// Product 是库存聚合根，StockQuantity 永远不小于 0。
type Product struct {
	ID            int64
	Name          string
	Description   string
	Price         decimal.Decimal
	StockQuantity int
	ImageURL      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InStock 表示至少还有一件库存。
func (p *Product) InStock() bool { return p.StockQuantity > 0 }

// ReduceStock 扣减库存，只能在持有该商品的锁时调用。
func (p *Product) ReduceStock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if p.StockQuantity < quantity {
		return &InsufficientStockError{Available: p.StockQuantity, Requested: quantity}
	}
	p.StockQuantity -= quantity
	p.UpdatedAt = time.Now()
	return nil
}
