package port

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// InventoryGateway 是库存服务的出站端口。
// 所有方法返回的错误都是 *GatewayError。
type InventoryGateway interface {
	// FetchProduct 读取商品快照（不加锁，仅供参考）。
	FetchProduct(ctx context.Context, productID int64) (*ProductSnapshot, error)

	// ReserveStock 在库存服务上扣减库存，成功即为权威结果。
	ReserveStock(ctx context.Context, productID int64, quantity int) (*ReservationConfirmation, error)
}

// ProductSnapshot 是下单时读取到的商品信息。
type ProductSnapshot struct {
	ID         int64
	Name       string
	UnitPrice  decimal.Decimal
	StockCount int
	InStock    bool
}

// ReservationConfirmation 是库存服务确认扣减后的回执。
type ReservationConfirmation struct {
	ProductID      int64
	Quantity       int
	RemainingStock int
}

// FailureKind 是库存调用失败的封闭分类。
type FailureKind string

const (
	FailureNotFound          FailureKind = "NotFound"
	FailureInsufficientStock FailureKind = "InsufficientStock"
	FailureUnavailable       FailureKind = "Unavailable"
	FailureCancelled         FailureKind = "Cancelled"
)

// GatewayError 描述一次库存调用为什么失败。
type GatewayError struct {
	Kind       FailureKind
	Op         string
	StatusCode int    // 没有拿到响应时为 0
	Message    string // 下游给出的说明
	Err        error
	// OutcomeUnknown 表示请求可能已在下游生效却没有拿到确认，库存可能已被扣减
	OutcomeUnknown bool
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("inventory %s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error { return e.Err }
