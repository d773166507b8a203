package db

import (
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
)

// Models lists every table the service owns, parents first.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Product{},
		&model.Cart{},
		&model.CartItem{},
		&model.CartItemAddon{},
		&model.Order{},
		&model.OrderItem{},
		&model.OrderItemAddon{},
		&model.OrderStatusHistory{},
		&model.StockCompensation{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	if err := seedInitialData(DB); err != nil {
		logger.Error("Failed to seed initial data during migration", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// Seed adds initial data to the database (optional)
func Seed() error {
	return seedInitialData(DB)
}

// seedInitialData 기본 포장지 상품 생성 (포장 선택지가 하나도 없을 때만)
func seedInitialData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.Product{}).Where("kind = ?", model.ProductKindWrapper).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Wrappers already seeded, skipping...", map[string]interface{}{
			"existing_count": count,
		})
		return nil
	}

	wrappers := []model.Product{
		{Name: "크라프트 포장", Kind: model.ProductKindWrapper, Category: "wrapper", Price: 0, Quantity: 1000, IsActive: true},
		{Name: "프리미엄 린넨 포장", Kind: model.ProductKindWrapper, Category: "wrapper", Price: 5000, Quantity: 300, IsActive: true},
	}
	if err := db.Create(&wrappers).Error; err != nil {
		return err
	}

	logger.Info("Initial data seeded successfully", map[string]interface{}{
		"wrappers": len(wrappers),
	})
	return nil
}
