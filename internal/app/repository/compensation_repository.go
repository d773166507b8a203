package repository

import (
	"context"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
)

type CompensationRepository interface {
	CreateBatch(ctx context.Context, rows []model.StockCompensation) error
	Claim(ctx context.Context, id uint) (bool, error)
	MarkApplied(ctx context.Context, id uint, at time.Time) error
	MarkAttemptFailed(ctx context.Context, id uint, cause error, maxAttempts int) error
	FindPending(ctx context.Context, limit int) ([]model.StockCompensation, error)
}

type compensationRepository struct {
	db *gorm.DB
}

func NewCompensationRepository(db *gorm.DB) CompensationRepository {
	return &compensationRepository{db: db}
}

func (r *compensationRepository) CreateBatch(ctx context.Context, rows []model.StockCompensation) error {
	if len(rows) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		logger.Error("Failed to record stock compensations", err, map[string]interface{}{
			"count":     len(rows),
			"reference": rows[0].Reference,
		})
		return err
	}
	return nil
}

// Claim moves a pending row to applying. Only the caller that gets true may
// return the stock.
func (r *compensationRepository) Claim(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&model.StockCompensation{}).
		Where("id = ? AND status = ?", id, model.CompensationPending).
		Update("status", model.CompensationApplying)
	if result.Error != nil {
		logger.Error("Failed to claim stock compensation", result.Error, map[string]interface{}{
			"compensation_id": id,
		})
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *compensationRepository) MarkApplied(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&model.StockCompensation{}).
		Where("id = ? AND status = ?", id, model.CompensationApplying).
		Updates(map[string]interface{}{
			"status":     model.CompensationApplied,
			"applied_at": at,
			"attempts":   gorm.Expr("attempts + 1"),
		}).Error
}

// MarkAttemptFailed releases a claimed row after a failed return. It goes
// back to pending, or to failed once maxAttempts is reached.
func (r *compensationRepository) MarkAttemptFailed(ctx context.Context, id uint, cause error, maxAttempts int) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.db.WithContext(ctx).Model(&model.StockCompensation{}).
		Where("id = ? AND status = ?", id, model.CompensationApplying).
		Updates(map[string]interface{}{
			"attempts":   gorm.Expr("attempts + 1"),
			"last_error": msg,
			"status": gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE ? END",
				maxAttempts, model.CompensationFailed, model.CompensationPending),
		}).Error
}

func (r *compensationRepository) FindPending(ctx context.Context, limit int) ([]model.StockCompensation, error) {
	var rows []model.StockCompensation
	err := r.db.WithContext(ctx).
		Where("status = ?", model.CompensationPending).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		logger.Error("Failed to find pending stock compensations", err)
		return nil, err
	}
	return rows, nil
}
