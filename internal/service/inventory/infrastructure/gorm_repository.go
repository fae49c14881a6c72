package infrastructure

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nexus-mall/internal/service/inventory/domain"
)

// GormProductRepository 是 ProductRepository 的 GORM 实现
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository 创建一个新的 GORM 仓储实例
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// AutoMigrate 创建或更新 products 表结构。
func (r *GormProductRepository) AutoMigrate() error {
	return r.db.AutoMigrate(&ProductModel{})
}

func (r *GormProductRepository) FindAll(ctx context.Context) ([]*domain.Product, error) {
	var models []ProductModel
	if err := r.db.WithContext(ctx).Order("id").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	products := make([]*domain.Product, 0, len(models))
	for i := range models {
		products = append(products, toDomainProduct(&models[i]))
	}
	return products, nil
}

func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	var model ProductModel
	err := r.db.WithContext(ctx).First(&model, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProductNotFound
		}
		return nil, errors.Wrapf(err, "find product %d", id)
	}
	return toDomainProduct(&model), nil
}

func (r *GormProductRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&ProductModel{}).Count(&n).Error; err != nil {
		return 0, errors.Wrap(err, "count products")
	}
	return n, nil
}

func (r *GormProductRepository) SaveAll(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	models := make([]*ProductModel, 0, len(products))
	for _, p := range products {
		models = append(models, toProductModel(p))
	}
	if err := r.db.WithContext(ctx).Create(&models).Error; err != nil {
		return errors.Wrap(err, "insert products")
	}
	for i, m := range models {
		products[i].ID = m.ID
		products[i].CreatedAt = m.CreatedAt
		products[i].UpdatedAt = m.UpdatedAt
	}
	return nil
}

// UpdateWithLock 使用 SELECT ... FOR UPDATE 锁住商品行，修改库存后在同一事务内提交。
func (r *GormProductRepository) UpdateWithLock(ctx context.Context, id int64, mutate func(*domain.Product) error) (*domain.Product, error) {
	var committed *domain.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model ProductModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&model, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrProductNotFound
			}
			return errors.Wrapf(err, "lock product %d", id)
		}

		product := toDomainProduct(&model)
		if err := mutate(product); err != nil {
			return err
		}

		product.UpdatedAt = time.Now()
		// 只更新库存相关字段
		if err := tx.Model(&model).Updates(map[string]interface{}{
			"stock_quantity": product.StockQuantity,
			"updated_at":     product.UpdatedAt,
		}).Error; err != nil {
			return errors.Wrapf(err, "update stock of product %d", id)
		}
		committed = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	return committed, nil
}
