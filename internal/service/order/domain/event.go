// internal/service/order/domain/event.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderPlaced 是订单成功落库后发布的事件
type OrderPlaced struct {
	OrderID     int64           `json:"orderId"`
	OrderNumber string          `json:"orderNumber"`
	ProductID   int64           `json:"productId"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	PlacedAt    time.Time       `json:"placedAt"`
}

// NewOrderPlaced 从已落库的订单构造事件，只取第一行（一次预占对应一个商品行）。
func NewOrderPlaced(o *Order) OrderPlaced {
	e := OrderPlaced{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		TotalAmount: o.TotalAmount,
		PlacedAt:    o.CreatedAt,
	}
	if len(o.Lines) > 0 {
		e.ProductID = o.Lines[0].ProductID
		e.Quantity = o.Lines[0].Quantity
	}
	return e
}

// ReservationOrphaned 表示库存已扣减但订单没有落库，供运维对账。
type ReservationOrphaned struct {
	ProductID      int64     `json:"productId"`
	Quantity       int       `json:"quantity"`
	RemainingStock int       `json:"remainingStock"`
	OrderNumber    string    `json:"orderNumber,omitempty"`
	Reason         string    `json:"reason"`
	TraceID        string    `json:"traceId,omitempty"`
	DetectedAt     time.Time `json:"detectedAt"`
}
