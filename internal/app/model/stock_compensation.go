package model

import "time"

type CompensationStatus string // 재고 보상 처리 상태

const (
	CompensationPending  CompensationStatus = "pending"  // 복구 대기
	CompensationApplying CompensationStatus = "applying" // 복구 진행 중 (선점됨)
	CompensationApplied  CompensationStatus = "applied"  // 복구 완료
	CompensationFailed   CompensationStatus = "failed"   // 재시도 한도 초과
)

// StockCompensation records a stock return that must happen because a later
// step of an order operation failed. Rows stay pending until the return is
// applied, so a crash between deduction and rollback is recoverable. An
// applier claims a row (pending to applying) before touching stock, so each
// row is returned at most once.
type StockCompensation struct {
	ID        uint               `gorm:"primarykey" json:"id"`
	Reason    string             `gorm:"type:varchar(100);not null" json:"reason"`              // 보상 사유
	Reference string             `gorm:"type:varchar(64);index" json:"reference"`               // 관련 주문 번호
	ProductID uint               `gorm:"not null;index" json:"product_id"`                      // 상품 ID
	Quantity  int                `gorm:"not null" json:"quantity"`                              // 복구 수량
	Status    CompensationStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"` // 처리 상태
	Attempts  int                `gorm:"not null;default:0" json:"attempts"`                    // 시도 횟수
	LastError string             `gorm:"type:text" json:"last_error,omitempty"`                 // 마지막 오류
	AppliedAt *time.Time         `json:"applied_at,omitempty"`                                  // 복구 시각
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func (StockCompensation) TableName() string {
	return "stock_compensations"
}
