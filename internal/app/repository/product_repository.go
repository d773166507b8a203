package repository

import (
	"context"
	"errors"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
)

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	Category       string
	Kind           model.ProductKind
	IncludeSoldOut bool
}

type ProductRepository interface {
	List(ctx context.Context, filter ProductFilter) ([]model.Product, error)
	Create(ctx context.Context, product *model.Product) error
	BulkCreate(ctx context.Context, products []model.Product, batchSize int) error
	FindByID(ctx context.Context, id uint) (*model.Product, error)
	FindByIDs(ctx context.Context, ids []uint) (map[uint]*model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	// DeductIfSufficient subtracts qty only when at least qty units remain.
	// It reports whether a row was updated.
	DeductIfSufficient(ctx context.Context, id uint, qty int) (bool, error)
	Increment(ctx context.Context, id uint, qty int) (bool, error)
	GetQuantity(ctx context.Context, id uint) (int, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":     product.Name,
		"kind":     product.Kind,
		"quantity": product.Quantity,
	})

	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name": product.Name,
		})
		return err
	}
	return nil
}

func (r *productRepository) BulkCreate(ctx context.Context, products []model.Product, batchSize int) error {
	if len(products) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(products, batchSize).Error; err != nil {
		logger.Error("Failed to bulk create products in database", err, map[string]interface{}{
			"count": len(products),
		})
		return err
	}

	logger.Info("Products bulk created in database", map[string]interface{}{
		"count": len(products),
	})
	return nil
}

// List returns active products, in stock unless IncludeSoldOut is set.
func (r *productRepository) List(ctx context.Context, filter ProductFilter) ([]model.Product, error) {
	query := r.db.WithContext(ctx).Model(&model.Product{}).Where("is_active = ?", true)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if !filter.IncludeSoldOut {
		query = query.Where("quantity > 0")
	}

	var products []model.Product
	if err := query.Order("id ASC").Find(&products).Error; err != nil {
		logger.Error("Failed to list products from database", err, map[string]interface{}{
			"category": filter.Category,
			"kind":     filter.Kind,
		})
		return nil, err
	}
	return products, nil
}

func (r *productRepository) FindByID(ctx context.Context, id uint) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find product by ID in database", err, map[string]interface{}{
				"product_id": id,
			})
		}
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) FindByIDs(ctx context.Context, ids []uint) (map[uint]*model.Product, error) {
	result := make(map[uint]*model.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var products []model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
		logger.Error("Failed to find products by IDs in database", err, map[string]interface{}{
			"product_ids": ids,
		})
		return nil, err
	}
	for i := range products {
		result[products[i].ID] = &products[i]
	}
	return result, nil
}

func (r *productRepository) Update(ctx context.Context, product *model.Product) error {
	if err := r.db.WithContext(ctx).Save(product).Error; err != nil {
		logger.Error("Failed to update product in database", err, map[string]interface{}{
			"product_id": product.ID,
		})
		return err
	}
	return nil
}

func (r *productRepository) DeductIfSufficient(ctx context.Context, id uint, qty int) (bool, error) {
	logger.Debug("Deducting product quantity in database", map[string]interface{}{
		"product_id": id,
		"quantity":   qty,
	})

	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND quantity >= ?", id, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	if result.Error != nil {
		logger.Error("Failed to deduct product quantity in database", result.Error, map[string]interface{}{
			"product_id": id,
			"quantity":   qty,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *productRepository) Increment(ctx context.Context, id uint, qty int) (bool, error) {
	logger.Debug("Incrementing product quantity in database", map[string]interface{}{
		"product_id": id,
		"quantity":   qty,
	})

	// Unscoped so stock still returns to a product soft-deleted after the sale.
	result := r.db.WithContext(ctx).Unscoped().Model(&model.Product{}).
		Where("id = ?", id).
		Update("quantity", gorm.Expr("quantity + ?", qty))
	if result.Error != nil {
		logger.Error("Failed to increment product quantity in database", result.Error, map[string]interface{}{
			"product_id": id,
			"quantity":   qty,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *productRepository) GetQuantity(ctx context.Context, id uint) (int, error) {
	var product model.Product
	err := r.db.WithContext(ctx).Select("id", "quantity").First(&product, id).Error
	if err != nil {
		return 0, err
	}
	return product.Quantity, nil
}
