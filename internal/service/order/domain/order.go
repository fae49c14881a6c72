// internal/service/order/domain/order.go
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderLine 是下单时刻的商品快照，不引用实时的库存数据。
type OrderLine struct {
	ProductID   int64
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	LineTotal   decimal.Decimal
}

// NewOrderLine 计算 LineTotal = UnitPrice × Quantity。
func NewOrderLine(productID int64, productName string, quantity int, unitPrice decimal.Decimal) (OrderLine, error) {
	if productID <= 0 {
		return OrderLine{}, errors.New("order line requires a product id")
	}
	if quantity <= 0 {
		return OrderLine{}, errors.New("order line quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return OrderLine{}, errors.New("order line unit price must not be negative")
	}
	return OrderLine{
		ProductID:   productID,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		LineTotal:   unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// Order 是订单聚合的根实体，持久化之后不再修改。
type Order struct {
	ID          int64
	OrderNumber string
	Lines       []OrderLine
	TotalAmount decimal.Decimal
	Status      Status
	CreatedAt   time.Time
}

// NewOrder 只能在库存预占成功之后调用，因此状态直接为 CONFIRMED。
func NewOrder(orderNumber string, lines []OrderLine) (*Order, error) {
	if orderNumber == "" {
		return nil, errors.New("cannot create order without order number")
	}
	if len(lines) == 0 {
		return nil, errors.New("cannot create order without lines")
	}

	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return &Order{
		OrderNumber: orderNumber,
		Lines:       lines,
		TotalAmount: total,
		Status:      StatusConfirmed,
	}, nil
}

// GenerateOrderNumber 生成 "ORD-" + 8 位大写十六进制字符。
func GenerateOrderNumber() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}
