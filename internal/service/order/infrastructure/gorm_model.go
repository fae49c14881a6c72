package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"

	"nexus-mall/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	OrderNumber string          `gorm:"size:32;not null;uniqueIndex"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Status      string          `gorm:"size:20;not null"`
	CreatedAt   time.Time
	// 关联关系
	Items []OrderItemModel `gorm:"foreignKey:OrderID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	ID          int64           `gorm:"primaryKey;autoIncrement"`
	OrderID     int64           `gorm:"not null;index"`
	ProductID   int64           `gorm:"not null"`
	ProductName string          `gorm:"size:255;not null"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal `gorm:"type:decimal(14,2);not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}

func toOrderModel(o *domain.Order) *OrderModel {
	items := make([]OrderItemModel, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, OrderItemModel{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			TotalPrice:  l.LineTotal,
		})
	}
	return &OrderModel{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		TotalAmount: o.TotalAmount,
		Status:      string(o.Status),
		CreatedAt:   o.CreatedAt,
		Items:       items,
	}
}

func toDomainOrder(m *OrderModel) *domain.Order {
	lines := make([]domain.OrderLine, 0, len(m.Items))
	for _, it := range m.Items {
		lines = append(lines, domain.OrderLine{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			LineTotal:   it.TotalPrice,
		})
	}
	return &domain.Order{
		ID:          m.ID,
		OrderNumber: m.OrderNumber,
		Lines:       lines,
		TotalAmount: m.TotalAmount,
		Status:      domain.Status(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}
