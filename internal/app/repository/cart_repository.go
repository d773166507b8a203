package repository

import (
	"context"
	"errors"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CartOwner identifies a cart by exactly one of a user ID or a guest session.
type CartOwner struct {
	UserID    *uint
	SessionID string
}

func (o CartOwner) IsGuest() bool {
	return o.UserID == nil
}

func (o CartOwner) Fields() map[string]interface{} {
	if o.UserID != nil {
		return map[string]interface{}{"user_id": *o.UserID}
	}
	return map[string]interface{}{"session_id": o.SessionID}
}

type CartRepository interface {
	// WithTx returns a repository bound to tx.
	WithTx(tx *gorm.DB) CartRepository
	Transaction(ctx context.Context, fn func(repo CartRepository) error) error

	FindByOwner(ctx context.Context, owner CartOwner) (*model.Cart, error)
	// FindOrCreateForUpdate locks the owner's cart row, creating it if needed.
	FindOrCreateForUpdate(ctx context.Context, owner CartOwner) (*model.Cart, error)
	FindItemByLineKey(ctx context.Context, cartID uint, lineKey string) (*model.CartItem, error)
	CreateItem(ctx context.Context, item *model.CartItem) error
	UpdateItem(ctx context.Context, item *model.CartItem) error
	// UpdateItemQuantity and DeleteItem report false when the item is not in
	// the cart.
	UpdateItemQuantity(ctx context.Context, cartID, itemID uint, quantity int) (bool, error)
	DeleteItem(ctx context.Context, cartID, itemID uint) (bool, error)
	DeleteItems(ctx context.Context, cartID uint) error
	LoadItems(ctx context.Context, cart *model.Cart) error
	SaveTotals(ctx context.Context, cart *model.Cart) error
	Delete(ctx context.Context, cartID uint) error
	DeleteExpiredGuestCarts(ctx context.Context, now time.Time) (int64, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepository{db: db}
}

func (r *cartRepository) WithTx(tx *gorm.DB) CartRepository {
	return &cartRepository{db: tx}
}

func (r *cartRepository) Transaction(ctx context.Context, fn func(repo CartRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

func ownerScope(owner CartOwner) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if owner.UserID != nil {
			return db.Where("user_id = ?", *owner.UserID)
		}
		return db.Where("session_id = ?", owner.SessionID)
	}
}

func preloadItems(db *gorm.DB) *gorm.DB {
	return db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("cart_items.id ASC")
	}).Preload("Items.Addons", func(db *gorm.DB) *gorm.DB {
		return db.Order("cart_item_addons.product_id ASC")
	})
}

func (r *cartRepository) FindByOwner(ctx context.Context, owner CartOwner) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Scopes(ownerScope(owner), preloadItems).
		First(&cart).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find cart by owner in database", err, owner.Fields())
		}
		return nil, err
	}
	return &cart, nil
}

func (r *cartRepository) FindOrCreateForUpdate(ctx context.Context, owner CartOwner) (*model.Cart, error) {
	var cart model.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Scopes(ownerScope(owner)).
		First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		logger.Error("Failed to lock cart in database", err, owner.Fields())
		return nil, err
	}

	cart = model.Cart{UserID: owner.UserID}
	if owner.UserID == nil {
		sessionID := owner.SessionID
		cart.SessionID = &sessionID
	}
	if err := r.db.WithContext(ctx).Create(&cart).Error; err != nil {
		logger.Error("Failed to create cart in database", err, owner.Fields())
		return nil, err
	}

	logger.Debug("Cart created in database", map[string]interface{}{
		"cart_id": cart.ID,
	})
	return &cart, nil
}

func (r *cartRepository) FindItemByLineKey(ctx context.Context, cartID uint, lineKey string) (*model.CartItem, error) {
	var item model.CartItem
	err := r.db.WithContext(ctx).
		Where("cart_id = ? AND line_key = ?", cartID, lineKey).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *cartRepository) CreateItem(ctx context.Context, item *model.CartItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		logger.Error("Failed to create cart item in database", err, map[string]interface{}{
			"cart_id":    item.CartID,
			"product_id": item.ProductID,
		})
		return err
	}
	return nil
}

// UpdateItem rewrites the line's scalar fields and replaces its addon rows.
func (r *cartRepository) UpdateItem(ctx context.Context, item *model.CartItem) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Addons").Save(item).Error; err != nil {
			return err
		}
		if err := tx.Where("cart_item_id = ?", item.ID).Delete(&model.CartItemAddon{}).Error; err != nil {
			return err
		}
		for i := range item.Addons {
			item.Addons[i].ID = 0
			item.Addons[i].CartItemID = item.ID
		}
		if len(item.Addons) > 0 {
			return tx.Create(&item.Addons).Error
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to update cart item in database", err, map[string]interface{}{
			"cart_item_id": item.ID,
		})
	}
	return err
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID uint, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("id = ? AND cart_id = ?", itemID, cartID).
		Updates(map[string]interface{}{"quantity": quantity, "updated_at": time.Now()})
	if result.Error != nil {
		logger.Error("Failed to update cart item quantity in database", result.Error, map[string]interface{}{
			"cart_id":      cartID,
			"cart_item_id": itemID,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID uint) (bool, error) {
	deleted := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&model.CartItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		deleted = true
		return tx.Where("cart_item_id = ?", itemID).Delete(&model.CartItemAddon{}).Error
	})
	if err != nil {
		logger.Error("Failed to delete cart item from database", err, map[string]interface{}{
			"cart_id":      cartID,
			"cart_item_id": itemID,
		})
		return false, err
	}
	return deleted, nil
}

func (r *cartRepository) DeleteItems(ctx context.Context, cartID uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sub := tx.Model(&model.CartItem{}).Select("id").Where("cart_id = ?", cartID)
		if err := tx.Where("cart_item_id IN (?)", sub).Delete(&model.CartItemAddon{}).Error; err != nil {
			return err
		}
		return tx.Where("cart_id = ?", cartID).Delete(&model.CartItem{}).Error
	})
	if err != nil {
		logger.Error("Failed to delete cart items from database", err, map[string]interface{}{
			"cart_id": cartID,
		})
	}
	return err
}

func (r *cartRepository) LoadItems(ctx context.Context, cart *model.Cart) error {
	var items []model.CartItem
	err := r.db.WithContext(ctx).
		Preload("Addons", func(db *gorm.DB) *gorm.DB {
			return db.Order("cart_item_addons.product_id ASC")
		}).
		Where("cart_id = ?", cart.ID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		logger.Error("Failed to load cart items from database", err, map[string]interface{}{
			"cart_id": cart.ID,
		})
		return err
	}
	cart.Items = items
	return nil
}

func (r *cartRepository) SaveTotals(ctx context.Context, cart *model.Cart) error {
	err := r.db.WithContext(ctx).Model(&model.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]interface{}{
			"total":       cart.Total,
			"total_items": cart.TotalItems,
			"expires_at":  cart.ExpiresAt,
			"updated_at":  time.Now(),
		}).Error
	if err != nil {
		logger.Error("Failed to save cart totals in database", err, map[string]interface{}{
			"cart_id": cart.ID,
		})
	}
	return err
}

func (r *cartRepository) Delete(ctx context.Context, cartID uint) error {
	if err := r.DeleteItems(ctx, cartID); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&model.Cart{}, cartID).Error
}

func (r *cartRepository) DeleteExpiredGuestCarts(ctx context.Context, now time.Time) (int64, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Cart{}).
		Where("user_id IS NULL AND expires_at IS NOT NULL AND expires_at < ?", now).
		Pluck("id", &ids).Error
	if err != nil {
		logger.Error("Failed to find expired guest carts in database", err)
		return 0, err
	}

	var deleted int64
	for _, id := range ids {
		if err := r.Delete(ctx, id); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
