package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"nexus-mall/internal/service/inventory/domain"
)

const productKeyPrefix = "inventory:product:"

// cachedProduct 是写入 Redis 的 JSON 结构，价格以字符串保存。
type cachedProduct struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	ImageURL      string          `json:"image_url"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RedisProductCache 是商品快照的读穿缓存。
type RedisProductCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisProductCache(client redis.UniversalClient, ttl time.Duration) *RedisProductCache {
	return &RedisProductCache{client: client, ttl: ttl}
}

func productKey(id int64) string {
	return fmt.Sprintf("%s%d", productKeyPrefix, id)
}

func (c *RedisProductCache) Get(ctx context.Context, id int64) (*domain.Product, bool, error) {
	raw, err := c.client.Get(ctx, productKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cp cachedProduct
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, false, fmt.Errorf("decode cached product %d: %w", id, err)
	}
	return &domain.Product{
		ID:            cp.ID,
		Name:          cp.Name,
		Description:   cp.Description,
		Price:         cp.Price,
		StockQuantity: cp.StockQuantity,
		ImageURL:      cp.ImageURL,
		CreatedAt:     cp.CreatedAt,
		UpdatedAt:     cp.UpdatedAt,
	}, true, nil
}

func (c *RedisProductCache) Set(ctx context.Context, p *domain.Product) error {
	raw, err := json.Marshal(cachedProduct{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		ImageURL:      p.ImageURL,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	})
	if err != nil {
		return err
	}
	return c.client.Set(ctx, productKey(p.ID), raw, c.ttl).Err()
}

func (c *RedisProductCache) Delete(ctx context.Context, id int64) error {
	return c.client.Del(ctx, productKey(id)).Err()
}
