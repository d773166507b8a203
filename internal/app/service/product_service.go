package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
)

const importBatchSize = 100

type ProductService interface {
	// ListProducts returns what can currently be bought; sold out products
	// are left out.
	ListProducts(ctx context.Context, category string, kind model.ProductKind) ([]model.Product, error)
	GetProduct(ctx context.Context, id uint) (*model.Product, error)
	ImportProducts(ctx context.Context, products []model.Product) (int, error)
	Restock(ctx context.Context, id uint, quantity int) (*model.Product, error)
}

type productService struct {
	productRepo repository.ProductRepository
	ledger      StockLedger
}

func NewProductService(productRepo repository.ProductRepository, ledger StockLedger) ProductService {
	return &productService{
		productRepo: productRepo,
		ledger:      ledger,
	}
}

func (s *productService) ListProducts(ctx context.Context, category string, kind model.ProductKind) ([]model.Product, error) {
	products, err := s.productRepo.List(ctx, repository.ProductFilter{Category: category, Kind: kind})
	if err != nil {
		return nil, persistenceError("list products", err)
	}
	return products, nil
}

func (s *productService) GetProduct(ctx context.Context, id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistenceError("load product", err)
	}
	return product, nil
}

func validKind(kind model.ProductKind) bool {
	switch kind {
	case model.ProductKindBouquet, model.ProductKindWrapper, model.ProductKindAddon:
		return true
	}
	return false
}

// ImportProducts validates a catalog batch as a whole before writing any of
// it.
func (s *productService) ImportProducts(ctx context.Context, products []model.Product) (int, error) {
	verr := &ValidationError{}
	for i := range products {
		p := &products[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Kind == "" {
			p.Kind = model.ProductKindBouquet
		}
		row := fmt.Sprintf("products[%d]", i)
		switch {
		case p.Name == "":
			verr.add(row, "name is required")
		case p.Price < 0:
			verr.add(row, "price must not be negative")
		case p.Quantity < 0:
			verr.add(row, "quantity must not be negative")
		case !validKind(p.Kind):
			verr.add(row, fmt.Sprintf("unknown kind %q", p.Kind))
		}
	}
	if err := verr.orNil(); err != nil {
		return 0, err
	}

	if err := s.productRepo.BulkCreate(ctx, products, importBatchSize); err != nil {
		return 0, persistenceError("import products", err)
	}

	logger.Info("Catalog imported", map[string]interface{}{
		"count": len(products),
	})
	return len(products), nil
}

func (s *productService) Restock(ctx context.Context, id uint, quantity int) (*model.Product, error) {
	logger.Info("Restocking product", map[string]interface{}{
		"product_id": id,
		"quantity":   quantity,
	})

	if err := s.ledger.Return(ctx, id, quantity); err != nil {
		return nil, err
	}
	return s.GetProduct(ctx, id)
}
