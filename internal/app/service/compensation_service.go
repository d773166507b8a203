package service

import (
	"context"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
)

// StockReturn is one quantity that has to go back to a product.
type StockReturn struct {
	ProductID uint
	Quantity  int
}

// CompensationService returns stock after a later step of an order operation
// failed. Every return is written to the outbox first, so one that cannot be
// applied right away is retried by the maintenance job.
type CompensationService interface {
	// Compensate never fails the caller; it reports how many returns are
	// still pending afterwards.
	Compensate(ctx context.Context, reason, reference string, returns []StockReturn) int
	RetryPending(ctx context.Context, limit int) (applied int, err error)
}

type compensationService struct {
	repo        repository.CompensationRepository
	ledger      StockLedger
	maxAttempts int
	now         func() time.Time
}

func NewCompensationService(repo repository.CompensationRepository, ledger StockLedger, maxAttempts int) CompensationService {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &compensationService{
		repo:        repo,
		ledger:      ledger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}
}

func (s *compensationService) Compensate(ctx context.Context, reason, reference string, returns []StockReturn) int {
	if len(returns) == 0 {
		return 0
	}

	logger.Warn("Compensating stock", map[string]interface{}{
		"reason":    reason,
		"reference": reference,
		"count":     len(returns),
	})

	rows := make([]model.StockCompensation, 0, len(returns))
	for _, r := range returns {
		rows = append(rows, model.StockCompensation{
			Reason:    reason,
			Reference: reference,
			ProductID: r.ProductID,
			Quantity:  r.Quantity,
			Status:    model.CompensationPending,
		})
	}

	if err := s.repo.CreateBatch(ctx, rows); err != nil {
		// Without an outbox row there is nothing to retry later, so apply
		// directly and log what could not be returned.
		logger.Error("Failed to record compensations, returning stock directly", err, map[string]interface{}{
			"reference": reference,
		})
		pending := 0
		for _, r := range returns {
			if err := s.ledger.Return(ctx, r.ProductID, r.Quantity); err != nil {
				pending++
				logger.Error("Stock compensation lost", err, map[string]interface{}{
					"reference":  reference,
					"product_id": r.ProductID,
					"quantity":   r.Quantity,
				})
			}
		}
		return pending
	}

	pending := 0
	for i := range rows {
		if s.apply(ctx, &rows[i]) == compensationFailed {
			pending++
		}
	}
	return pending
}

type compensationOutcome int

const (
	compensationApplied compensationOutcome = iota
	compensationFailed
	// compensationTaken means another applier claimed the row first.
	compensationTaken
)

// apply claims one outbox row, returns its stock and records the outcome.
func (s *compensationService) apply(ctx context.Context, row *model.StockCompensation) compensationOutcome {
	fields := map[string]interface{}{
		"compensation_id": row.ID,
		"reference":       row.Reference,
		"product_id":      row.ProductID,
		"quantity":        row.Quantity,
	}

	claimed, err := s.repo.Claim(ctx, row.ID)
	if err != nil {
		// Still pending, the next retry picks it up.
		logger.Error("Failed to claim stock compensation", err, fields)
		return compensationFailed
	}
	if !claimed {
		logger.Debug("Stock compensation already claimed", fields)
		return compensationTaken
	}

	if err := s.ledger.Return(ctx, row.ProductID, row.Quantity); err != nil {
		logger.Error("Failed to apply stock compensation", err, fields)
		if markErr := s.repo.MarkAttemptFailed(ctx, row.ID, err, s.maxAttempts); markErr != nil {
			logger.Error("Failed to record compensation attempt", markErr, fields)
		}
		return compensationFailed
	}

	if err := s.repo.MarkApplied(ctx, row.ID, s.now()); err != nil {
		// The row stays applying and is never retried; the stock is back.
		logger.Error("Failed to mark compensation applied", err, fields)
	}
	logger.Info("Stock compensation applied", fields)
	return compensationApplied
}

func (s *compensationService) RetryPending(ctx context.Context, limit int) (int, error) {
	rows, err := s.repo.FindPending(ctx, limit)
	if err != nil {
		return 0, persistenceError("load pending compensations", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	logger.Info("Retrying pending stock compensations", map[string]interface{}{
		"count": len(rows),
	})

	applied := 0
	for i := range rows {
		if err := ctx.Err(); err != nil {
			return applied, err
		}
		if s.apply(ctx, &rows[i]) == compensationApplied {
			applied++
		}
	}
	return applied, nil
}
