package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/internal/websocket"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
)

var allowedTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusInProgress, model.OrderStatusCompleted, model.OrderStatusCancelled},
	model.OrderStatusInProgress: {model.OrderStatusCompleted, model.OrderStatusCancelled},
	model.OrderStatusCompleted:  {model.OrderStatusCancelled},
	model.OrderStatusCancelled:  {model.OrderStatusPending, model.OrderStatusInProgress, model.OrderStatusCompleted},
}

func knownStatus(status model.OrderStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to model.OrderStatus) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderLifecycle is the only writer of an order after creation. Stock is
// held while an order is not cancelled; every change here keeps the product
// counters in line with that.
type OrderLifecycle interface {
	Transition(ctx context.Context, orderID uint, to model.OrderStatus) (*model.Order, error)
	// UpdateItemQuantity and RemoveItem address items by their 0-based
	// position in creation order.
	UpdateItemQuantity(ctx context.Context, orderID uint, itemIndex, quantity int) (*model.Order, error)
	// RemoveItem reports deleted=true when the last item was removed and the
	// order itself is gone.
	RemoveItem(ctx context.Context, orderID uint, itemIndex int) (order *model.Order, deleted bool, err error)
	DeleteOrder(ctx context.Context, orderID uint) error
}

type orderLifecycle struct {
	orderRepo   repository.OrderRepository
	ledger      StockLedger
	compensator CompensationService
	feed        FeedPublisher
	now         func() time.Time
}

func NewOrderLifecycle(
	orderRepo repository.OrderRepository,
	ledger StockLedger,
	compensator CompensationService,
	feed FeedPublisher,
) OrderLifecycle {
	return &orderLifecycle{
		orderRepo:   orderRepo,
		ledger:      ledger,
		compensator: compensator,
		feed:        feed,
		now:         time.Now,
	}
}

func holdsStock(status model.OrderStatus) bool {
	return status != model.OrderStatusCancelled
}

func (s *orderLifecycle) load(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Order not found", map[string]interface{}{
				"order_id": orderID,
			})
			return nil, ErrOrderNotFound
		}
		return nil, persistenceError("load order", err)
	}
	sort.SliceStable(order.Items, func(i, j int) bool { return order.Items[i].ID < order.Items[j].ID })
	return order, nil
}

// returnStock gives stock back through the ledger. Returns that fail are
// handed to the compensation outbox rather than surfaced.
func (s *orderLifecycle) returnStock(ctx context.Context, reason, reference string, returns []StockReturn) {
	var failed []StockReturn
	for _, r := range returns {
		if err := s.ledger.Return(ctx, r.ProductID, r.Quantity); err != nil {
			logger.Error("Failed to return stock", err, map[string]interface{}{
				"reference":  reference,
				"product_id": r.ProductID,
				"quantity":   r.Quantity,
			})
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		s.compensator.Compensate(context.WithoutCancel(ctx), reason, reference, failed)
	}
}

func (s *orderLifecycle) publish(eventType string, data map[string]interface{}) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(websocket.Event{Type: eventType, Data: data, At: s.now()})
}

func (s *orderLifecycle) Transition(ctx context.Context, orderID uint, to model.OrderStatus) (*model.Order, error) {
	logger.Info("Updating order status", map[string]interface{}{
		"order_id": orderID,
		"status":   to,
	})

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	from := order.Status
	if !CanTransition(from, to) {
		logger.Warn("Invalid order status transition", map[string]interface{}{
			"order_id": orderID,
			"from":     from,
			"to":       to,
		})
		return nil, &TransitionError{From: from, To: to}
	}

	claims := claimsForItems(order.Items)
	reinstating := !holdsStock(from) && holdsStock(to)
	cancelling := holdsStock(from) && !holdsStock(to)

	if reinstating {
		result := deductAll(ctx, s.ledger, claims)
		if !result.ok() {
			s.returnStock(ctx, "order_reinstate_rejected", order.OrderNumber, result.Deducted)
			logger.Warn("Order reinstatement rejected", map[string]interface{}{
				"order_id":   orderID,
				"shortfalls": result.Shortfalls,
			})
			return nil, result.err()
		}
	}

	applied, err := s.orderRepo.CompareAndSetStatus(ctx, orderID, from, to, s.now())
	if err != nil || !applied {
		if reinstating {
			s.returnStock(ctx, "order_reinstate_aborted", order.OrderNumber, returnsForClaims(claims))
		}
		if err != nil {
			return nil, persistenceError("update order status", err)
		}
		logger.Warn("Order status changed concurrently", map[string]interface{}{
			"order_id": orderID,
			"from":     from,
		})
		return nil, ErrStatusConflict
	}

	if cancelling {
		s.returnStock(ctx, "order_cancelled", order.OrderNumber, returnsForClaims(claims))
	}

	logger.Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"from":     from,
		"to":       to,
	})
	s.publish(websocket.EventStatusChanged, map[string]interface{}{
		"order_id":     orderID,
		"order_number": order.OrderNumber,
		"from":         from,
		"to":           to,
	})

	return s.load(ctx, orderID)
}

func itemAt(order *model.Order, index int) (*model.OrderItem, error) {
	if index < 0 || index >= len(order.Items) {
		return nil, ErrOrderItemNotFound
	}
	return &order.Items[index], nil
}

func (s *orderLifecycle) UpdateItemQuantity(ctx context.Context, orderID uint, itemIndex, quantity int) (*model.Order, error) {
	if quantity < 1 {
		return nil, newValidationError("quantity", "must be at least 1; remove the item instead")
	}

	logger.Info("Updating order item quantity", map[string]interface{}{
		"order_id":   orderID,
		"item_index": itemIndex,
		"quantity":   quantity,
	})

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	item, err := itemAt(order, itemIndex)
	if err != nil {
		return nil, err
	}

	delta := quantity - item.Quantity
	if delta == 0 {
		return order, nil
	}

	stockHeld := holdsStock(order.Status)
	if stockHeld && delta > 0 {
		if err := s.ledger.Deduct(ctx, item.ProductID, delta); err != nil {
			var stockErr *InsufficientStockError
			if errors.As(err, &stockErr) {
				stockErr.Name = item.ProductName
				logger.Warn("Cannot raise order item quantity: insufficient stock", map[string]interface{}{
					"order_id":   orderID,
					"product_id": item.ProductID,
					"requested":  delta,
					"available":  stockErr.Available,
				})
			}
			return nil, err
		}
	}

	previous := item.Quantity
	item.Quantity = quantity
	order.RecalculateTotal()
	applied, err := s.orderRepo.UpdateItemQuantity(ctx, orderID, item.ID, order.Status, previous, quantity, order.TotalAmount)
	if err != nil || !applied {
		if stockHeld && delta > 0 {
			s.returnStock(ctx, "order_item_update_aborted", order.OrderNumber,
				[]StockReturn{{ProductID: item.ProductID, Quantity: delta}})
		}
		if err != nil {
			return nil, persistenceError("update order item", err)
		}
		logger.Warn("Order changed while editing item", map[string]interface{}{
			"order_id":   orderID,
			"order_item": item.ID,
			"status":     order.Status,
		})
		return nil, ErrStatusConflict
	}

	if stockHeld && delta < 0 {
		s.returnStock(ctx, "order_item_reduced", order.OrderNumber,
			[]StockReturn{{ProductID: item.ProductID, Quantity: -delta}})
	}

	logger.Info("Order item quantity updated", map[string]interface{}{
		"order_id":     orderID,
		"order_item":   item.ID,
		"delta":        delta,
		"total_amount": order.TotalAmount,
	})
	s.publish(websocket.EventOrderEdited, map[string]interface{}{
		"order_id":     orderID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
	})

	return s.load(ctx, orderID)
}

func (s *orderLifecycle) RemoveItem(ctx context.Context, orderID uint, itemIndex int) (*model.Order, bool, error) {
	logger.Info("Removing order item", map[string]interface{}{
		"order_id":   orderID,
		"item_index": itemIndex,
	})

	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	item, err := itemAt(order, itemIndex)
	if err != nil {
		return nil, false, err
	}
	removed := *item

	if len(order.Items) == 1 {
		if err := s.deleteAndReturn(ctx, order); err != nil {
			return nil, false, err
		}
		logger.Info("Last order item removed, order deleted", map[string]interface{}{
			"order_id": orderID,
		})
		return nil, true, nil
	}

	order.Items = append(order.Items[:itemIndex:itemIndex], order.Items[itemIndex+1:]...)
	order.RecalculateTotal()
	applied, err := s.orderRepo.DeleteItem(ctx, orderID, removed.ID, order.Status, order.TotalAmount)
	if err != nil {
		return nil, false, persistenceError("remove order item", err)
	}
	if !applied {
		logger.Warn("Order changed while removing item", map[string]interface{}{
			"order_id":   orderID,
			"order_item": removed.ID,
			"status":     order.Status,
		})
		return nil, false, ErrStatusConflict
	}

	if holdsStock(order.Status) {
		s.returnStock(ctx, "order_item_removed", order.OrderNumber,
			[]StockReturn{{ProductID: removed.ProductID, Quantity: removed.Quantity}})
	}

	s.publish(websocket.EventOrderEdited, map[string]interface{}{
		"order_id":     orderID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
	})

	reloaded, err := s.load(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return reloaded, false, nil
}

func (s *orderLifecycle) DeleteOrder(ctx context.Context, orderID uint) error {
	logger.Info("Deleting order", map[string]interface{}{
		"order_id": orderID,
	})

	order, err := s.load(ctx, orderID)
	if err != nil {
		return err
	}
	return s.deleteAndReturn(ctx, order)
}

// deleteAndReturn removes the order and gives back the stock it still holds.
// A cancelled order already returned its stock.
func (s *orderLifecycle) deleteAndReturn(ctx context.Context, order *model.Order) error {
	applied, err := s.orderRepo.Delete(ctx, order.ID, order.Status)
	if err != nil {
		return persistenceError("delete order", err)
	}
	if !applied {
		logger.Warn("Order status changed while deleting", map[string]interface{}{
			"order_id": order.ID,
			"status":   order.Status,
		})
		return ErrStatusConflict
	}
	if holdsStock(order.Status) {
		s.returnStock(ctx, "order_deleted", order.OrderNumber, returnsForClaims(claimsForItems(order.Items)))
	}

	s.publish(websocket.EventOrderDeleted, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	logger.Info("Order deleted", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
	})
	return nil
}
