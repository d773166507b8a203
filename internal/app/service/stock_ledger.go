package service

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const deductConcurrency = 8

// StockLedger owns every change to a product's quantity counter.
type StockLedger interface {
	// Deduct removes qty units or fails with *InsufficientStockError without
	// changing anything. The check and the write are one conditional update,
	// so concurrent callers can never drive the counter below zero.
	Deduct(ctx context.Context, productID uint, qty int) error
	// Return adds qty units back unconditionally.
	Return(ctx context.Context, productID uint, qty int) error
	Available(ctx context.Context, productID uint) (int, error)
}

type stockLedger struct {
	productRepo repository.ProductRepository
}

func NewStockLedger(productRepo repository.ProductRepository) StockLedger {
	return &stockLedger{productRepo: productRepo}
}

func (l *stockLedger) Deduct(ctx context.Context, productID uint, qty int) error {
	if qty <= 0 {
		return newValidationError("quantity", "must be greater than 0")
	}

	ok, err := l.productRepo.DeductIfSufficient(ctx, productID, qty)
	if err != nil {
		return persistenceError("deduct stock", err)
	}
	if ok {
		logger.Debug("Stock deducted", map[string]interface{}{
			"product_id": productID,
			"quantity":   qty,
		})
		return nil
	}

	available, err := l.Available(ctx, productID)
	if err != nil {
		return err
	}
	logger.Warn("Stock deduction rejected", map[string]interface{}{
		"product_id": productID,
		"requested":  qty,
		"available":  available,
	})
	return &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
}

func (l *stockLedger) Return(ctx context.Context, productID uint, qty int) error {
	if qty <= 0 {
		return newValidationError("quantity", "must be greater than 0")
	}

	ok, err := l.productRepo.Increment(ctx, productID, qty)
	if err != nil {
		return persistenceError("return stock", err)
	}
	if !ok {
		return ErrProductNotFound
	}

	logger.Debug("Stock returned", map[string]interface{}{
		"product_id": productID,
		"quantity":   qty,
	})
	return nil
}

func (l *stockLedger) Available(ctx context.Context, productID uint) (int, error) {
	qty, err := l.productRepo.GetQuantity(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, persistenceError("read stock", err)
	}
	return qty, nil
}

// stockClaim is the total quantity of one product an operation needs.
type stockClaim struct {
	ProductID uint
	Name      string
	Quantity  int
}

// claimsForItems sums order item quantities per product.
func claimsForItems(items []model.OrderItem) []stockClaim {
	byID := make(map[uint]*stockClaim)
	var order []uint
	for _, item := range items {
		c, ok := byID[item.ProductID]
		if !ok {
			c = &stockClaim{ProductID: item.ProductID, Name: item.ProductName}
			byID[item.ProductID] = c
			order = append(order, item.ProductID)
		}
		c.Quantity += item.Quantity
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	claims := make([]stockClaim, 0, len(order))
	for _, id := range order {
		claims = append(claims, *byID[id])
	}
	return claims
}

func returnsForClaims(claims []stockClaim) []StockReturn {
	out := make([]StockReturn, 0, len(claims))
	for _, c := range claims {
		out = append(out, StockReturn{ProductID: c.ProductID, Quantity: c.Quantity})
	}
	return out
}

// deductResult is the outcome of deductAll. Deducted holds every claim that
// was applied and must be returned if the operation does not go through.
type deductResult struct {
	Deducted   []StockReturn
	Shortfalls []Shortfall
	Failure    error
}

func (r deductResult) ok() bool {
	return len(r.Shortfalls) == 0 && r.Failure == nil
}

// err converts a failed result into the caller-facing error.
func (r deductResult) err() error {
	if r.Failure != nil {
		return persistenceError("deduct stock", r.Failure)
	}
	if len(r.Shortfalls) > 0 {
		return newShortfallError(r.Shortfalls)
	}
	return nil
}

// deductAll deducts every claim concurrently. Each claim runs to completion
// regardless of the others so the result lists exactly what was taken.
func deductAll(ctx context.Context, ledger StockLedger, claims []stockClaim) deductResult {
	var (
		mu     sync.Mutex
		result deductResult
		g      errgroup.Group
	)
	g.SetLimit(deductConcurrency)

	for _, claim := range claims {
		g.Go(func() error {
			err := ledger.Deduct(ctx, claim.ProductID, claim.Quantity)

			mu.Lock()
			defer mu.Unlock()

			var stockErr *InsufficientStockError
			switch {
			case err == nil:
				result.Deducted = append(result.Deducted, StockReturn{ProductID: claim.ProductID, Quantity: claim.Quantity})
			case errors.As(err, &stockErr):
				result.Shortfalls = append(result.Shortfalls, Shortfall{
					ProductID: claim.ProductID,
					Name:      claim.Name,
					Requested: claim.Quantity,
					Available: stockErr.Available,
				})
			case errors.Is(err, ErrProductNotFound):
				result.Shortfalls = append(result.Shortfalls, Shortfall{
					ProductID: claim.ProductID,
					Name:      claim.Name,
					Requested: claim.Quantity,
				})
			default:
				if result.Failure == nil {
					result.Failure = err
				}
				logger.Error("Stock deduction failed", err, map[string]interface{}{
					"product_id": claim.ProductID,
					"quantity":   claim.Quantity,
				})
			}
			return nil
		})
	}
	_ = g.Wait()
	return result
}
