package repository

import (
	"context"
	"errors"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
)

// OrderFilter narrows admin order listings.
type OrderFilter struct {
	Status model.OrderStatus
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type OrderRepository interface {
	Create(ctx context.Context, order *model.Order) error
	FindByID(ctx context.Context, id uint) (*model.Order, error)
	FindByUserID(ctx context.Context, userID uint) ([]model.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error)
	// CompareAndSetStatus moves the order from one status to another and
	// appends a history row. It reports false when the stored status was not
	// from.
	CompareAndSetStatus(ctx context.Context, id uint, from, to model.OrderStatus, at time.Time) (bool, error)
	// UpdateItemQuantity, DeleteItem and Delete only write while the order
	// is still in status and the item still matches what the caller read.
	// They report false when either changed underneath.
	UpdateItemQuantity(ctx context.Context, orderID, itemID uint, status model.OrderStatus, from, to int, totalAmount float64) (bool, error)
	DeleteItem(ctx context.Context, orderID, itemID uint, status model.OrderStatus, totalAmount float64) (bool, error)
	Delete(ctx context.Context, id uint, status model.OrderStatus) (bool, error)
	MarkEmailSent(ctx context.Context, id uint, at time.Time) error
}

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) preloadOrder(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.id ASC")
		}).
		Preload("Items.Addons").
		Preload("StatusHistory", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_status_histories.id ASC")
		}).
		Preload("User")
}

func (r *orderRepository) Create(ctx context.Context, order *model.Order) error {
	logger.Debug("Creating order in database", map[string]interface{}{
		"order_number": order.OrderNumber,
		"user_id":      order.UserID,
		"total_amount": order.TotalAmount,
		"item_count":   len(order.Items),
	})

	if err := r.db.WithContext(ctx).Omit("User").Create(order).Error; err != nil {
		logger.Error("Failed to create order in database", err, map[string]interface{}{
			"order_number": order.OrderNumber,
			"total_amount": order.TotalAmount,
		})
		return err
	}

	logger.Debug("Order created in database", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	return nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {
	var order model.Order
	if err := r.preloadOrder(ctx).First(&order, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find order by ID in database", err, map[string]interface{}{
				"order_id": id,
			})
		}
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) FindByUserID(ctx context.Context, userID uint) ([]model.Order, error) {
	var orders []model.Order
	if err := r.preloadOrder(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		logger.Error("Failed to find orders by user ID in database", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}
	return orders, nil
}

func orderFilterScope(filter OrderFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.From != nil {
			db = db.Where("created_at >= ?", *filter.From)
		}
		if filter.To != nil {
			db = db.Where("created_at < ?", *filter.To)
		}
		return db
	}
}

func (r *orderRepository) List(ctx context.Context, filter OrderFilter) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Scopes(orderFilterScope(filter)).
		Count(&total).Error; err != nil {
		logger.Error("Failed to count orders in database", err, map[string]interface{}{
			"status": filter.Status,
		})
		return nil, 0, err
	}

	page := r.preloadOrder(ctx).Scopes(orderFilterScope(filter)).
		Order("created_at DESC").Order("id DESC")
	if filter.Limit > 0 {
		page = page.Limit(filter.Limit).Offset(filter.Offset)
	}

	var orders []model.Order
	if err := page.Find(&orders).Error; err != nil {
		logger.Error("Failed to list orders in database", err, map[string]interface{}{
			"status": filter.Status,
		})
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepository) CompareAndSetStatus(ctx context.Context, id uint, from, to model.OrderStatus, at time.Time) (bool, error) {
	applied := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&model.Order{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]interface{}{"status": to, "updated_at": at})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Create(&model.OrderStatusHistory{OrderID: id, Status: to, ChangedAt: at}).Error
	})
	if err != nil {
		logger.Error("Failed to update order status in database", err, map[string]interface{}{
			"order_id": id,
			"from":     from,
			"to":       to,
		})
		return false, err
	}
	return applied, nil
}

// errOrderChanged rolls back an edit whose preconditions no longer hold.
var errOrderChanged = errors.New("order changed concurrently")

// lockOrder touches the order row while it is still in status, so a
// concurrent status change waits for the edit or makes it fail.
func lockOrder(tx *gorm.DB, id uint, status model.OrderStatus, updates map[string]interface{}) error {
	result := tx.Model(&model.Order{}).
		Where("id = ? AND status = ?", id, status).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errOrderChanged
	}
	return nil
}

// conditional runs fn in a transaction and turns errOrderChanged into false.
func (r *orderRepository) conditional(ctx context.Context, fn func(tx *gorm.DB) error) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(fn)
	if errors.Is(err, errOrderChanged) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *orderRepository) UpdateItemQuantity(ctx context.Context, orderID, itemID uint, status model.OrderStatus, from, to int, totalAmount float64) (bool, error) {
	applied, err := r.conditional(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, status, map[string]interface{}{"total_amount": totalAmount}); err != nil {
			return err
		}
		result := tx.Model(&model.OrderItem{}).
			Where("id = ? AND order_id = ? AND quantity = ?", itemID, orderID, from).
			Update("quantity", to)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errOrderChanged
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to update order item quantity in database", err, map[string]interface{}{
			"order_id":      orderID,
			"order_item_id": itemID,
		})
	}
	return applied, err
}

func (r *orderRepository) DeleteItem(ctx context.Context, orderID, itemID uint, status model.OrderStatus, totalAmount float64) (bool, error) {
	applied, err := r.conditional(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, orderID, status, map[string]interface{}{"total_amount": totalAmount}); err != nil {
			return err
		}
		if err := tx.Where("order_item_id = ?", itemID).Delete(&model.OrderItemAddon{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ? AND order_id = ?", itemID, orderID).Delete(&model.OrderItem{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errOrderChanged
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to delete order item from database", err, map[string]interface{}{
			"order_id":      orderID,
			"order_item_id": itemID,
		})
	}
	return applied, err
}

// Delete removes the order and every child row.
func (r *orderRepository) Delete(ctx context.Context, id uint, status model.OrderStatus) (bool, error) {
	applied, err := r.conditional(ctx, func(tx *gorm.DB) error {
		if err := lockOrder(tx, id, status, map[string]interface{}{"status": status}); err != nil {
			return err
		}
		items := tx.Model(&model.OrderItem{}).Select("id").Where("order_id = ?", id)
		if err := tx.Where("order_item_id IN (?)", items).Delete(&model.OrderItemAddon{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", id).Delete(&model.OrderStatusHistory{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Order{}, id).Error
	})
	if err != nil {
		logger.Error("Failed to delete order from database", err, map[string]interface{}{
			"order_id": id,
		})
	}
	return applied, err
}

func (r *orderRepository) MarkEmailSent(ctx context.Context, id uint, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.Order{}).Where("id = ?", id).
		Updates(map[string]interface{}{"email_sent": true, "email_sent_at": at}).Error
	if err != nil {
		logger.Error("Failed to mark order email as sent", err, map[string]interface{}{
			"order_id": id,
		})
	}
	return err
}
