package scheduler

import (
	"context"
	"time"

	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"github.com/robfig/cron/v3"
)

const (
	retryBatchSize = 100
	runTimeout     = 2 * time.Minute
)

// CartPurger removes guest carts past their TTL.
type CartPurger interface {
	PurgeExpiredGuestCarts(ctx context.Context) (int64, error)
}

// CompensationRetrier applies stock returns that failed earlier.
type CompensationRetrier interface {
	RetryPending(ctx context.Context, limit int) (int, error)
}

// MaintenanceScheduler 장바구니 정리 및 재고 보정 재시도 스케줄러
type MaintenanceScheduler struct {
	cron        *cron.Cron
	spec        string
	carts       CartPurger
	compensator CompensationRetrier
}

// NewMaintenanceScheduler 유지보수 스케줄러 생성
func NewMaintenanceScheduler(spec string, carts CartPurger, compensator CompensationRetrier) *MaintenanceScheduler {
	return &MaintenanceScheduler{
		// 이전 실행이 끝나지 않았으면 이번 실행은 건너뜀
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		spec:        spec,
		carts:       carts,
		compensator: compensator,
	}
}

// Start 스케줄러 시작
func (s *MaintenanceScheduler) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		logger.Error("Failed to add cron job for maintenance", err, map[string]interface{}{
			"schedule": s.spec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Maintenance scheduler started successfully", map[string]interface{}{
		"schedule": s.spec,
	})
	return nil
}

// RunOnce 만료된 비회원 장바구니 삭제 후 대기 중인 재고 보정을 재시도
func (s *MaintenanceScheduler) RunOnce(ctx context.Context) {
	logger.Debug("Starting scheduled maintenance", nil)

	purged, err := s.carts.PurgeExpiredGuestCarts(ctx)
	if err != nil {
		logger.Error("Failed to purge expired guest carts", err)
	}

	applied, err := s.compensator.RetryPending(ctx, retryBatchSize)
	if err != nil {
		logger.Error("Failed to retry stock compensations", err)
	}

	if purged > 0 || applied > 0 {
		logger.Info("Scheduled maintenance finished", map[string]interface{}{
			"purged_carts":          purged,
			"applied_compensations": applied,
		})
	}
}

// Stop 스케줄러 중지
func (s *MaintenanceScheduler) Stop() {
	logger.Info("Stopping maintenance scheduler...", nil)
	<-s.cron.Stop().Done()
	logger.Info("Maintenance scheduler stopped", nil)
}
