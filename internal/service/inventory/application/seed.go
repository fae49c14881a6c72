package application

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"nexus-mall/internal/pkg/logger"
	"nexus-mall/internal/service/inventory/domain"
)

// SampleProducts 是空库启动时写入的演示商品。
func SampleProducts() []*domain.Product {
	return []*domain.Product{
		{
			Name:          "Laptop",
			Description:   "High-performance laptop with 16GB RAM and 512GB SSD",
			Price:         decimal.RequireFromString("1299.99"),
			StockQuantity: 15,
			ImageURL:      "https://images.unsplash.com/photo-1496181133206-80ce9b88a853?w=400",
		},
		{
			Name:          "Wireless Mouse",
			Description:   "Ergonomic wireless mouse with long battery life",
			Price:         decimal.RequireFromString("29.99"),
			StockQuantity: 50,
			ImageURL:      "https://images.unsplash.com/photo-1527864550417-7fd91fc51a46?w=400",
		},
		{
			Name:          "Mechanical Keyboard",
			Description:   "RGB mechanical keyboard with blue switches",
			Price:         decimal.RequireFromString("89.99"),
			StockQuantity: 30,
			ImageURL:      "https://images.unsplash.com/photo-1511467687858-23d96c32e4ae?w=400",
		},
		{
			Name:          "USB-C Hub",
			Description:   "7-in-1 USB-C hub with HDMI and card reader",
			Price:         decimal.RequireFromString("49.99"),
			StockQuantity: 40,
			ImageURL:      "https://images.unsplash.com/photo-1625842268584-8f3296236761?w=400",
		},
		{
			Name:          "Monitor 27\"",
			Description:   "4K UHD monitor with HDR support",
			Price:         decimal.RequireFromString("399.99"),
			StockQuantity: 20,
			ImageURL:      "https://images.unsplash.com/photo-1527443224154-c4a3942d3acf?w=400",
		},
		{
			Name:          "Webcam HD",
			Description:   "1080p HD webcam with built-in microphone",
			Price:         decimal.RequireFromString("79.99"),
			StockQuantity: 25,
			ImageURL:      "https://images.unsplash.com/photo-1587826080692-f439cd0b70da?w=400",
		},
	}
}

// SeedSampleProducts 仅在商品表为空时写入演示数据，返回写入条数。
func SeedSampleProducts(ctx context.Context, repo domain.ProductRepository) (int, error) {
	count, err := repo.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	if count > 0 {
		logger.Ctx(ctx).Info().Int64("existing", count).Msg("product table not empty, skip seeding")
		return 0, nil
	}

	products := SampleProducts()
	if err := repo.SaveAll(ctx, products); err != nil {
		return 0, fmt.Errorf("seed products: %w", err)
	}
	logger.Ctx(ctx).Info().Int("seeded", len(products)).Msg("sample products seeded")
	return len(products), nil
}
