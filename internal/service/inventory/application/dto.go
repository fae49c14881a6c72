package application

import (
	"github.com/shopspring/decimal"

	"nexus-mall/internal/service/inventory/domain"
)

// ProductResponse 是商品的对外表示。
type ProductResponse struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stockQuantity"`
	ImageURL      string          `json:"imageUrl"`
	InStock       bool            `json:"inStock"`
}

func NewProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		ImageURL:      p.ImageURL,
		InStock:       p.InStock(),
	}
}

// StockRequest 是扣减库存的请求体。
type StockRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

// StockResponse 是扣减库存的响应体，失败时 Success 为 false。
type StockResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	RemainingStock *int   `json:"remainingStock,omitempty"`
}

// AvailabilityResponse 是不加锁的库存快照。
type AvailabilityResponse struct {
	ProductID  int64 `json:"productId"`
	StockCount int   `json:"stockCount"`
	Exists     bool  `json:"exists"`
}
