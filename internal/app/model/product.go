package model

import (
	"time"

	"gorm.io/gorm"
)

type ProductKind string // 상품 유형

const (
	ProductKindBouquet ProductKind = "bouquet" // 꽃다발/화분 등 본 상품
	ProductKindWrapper ProductKind = "wrapper" // 포장지
	ProductKindAddon   ProductKind = "addon"   // 카드, 초콜릿 등 추가 상품
)

type Product struct {
	ID          uint           `gorm:"primarykey" json:"id"`                                  // 상품 ID
	Name        string         `gorm:"not null" json:"name"`                                  // 상품명
	Brand       string         `json:"brand"`                                                 // 브랜드(플로리스트)
	Description string         `gorm:"type:text" json:"description"`                          // 설명
	Category    string         `gorm:"type:varchar(50);index" json:"category"`                // 카테고리
	Kind        ProductKind    `gorm:"type:varchar(20);default:'bouquet';index" json:"kind"`  // 상품 유형
	Price       float64        `gorm:"not null" json:"price"`                                 // 판매가
	Quantity    int            `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"` // 재고 수량
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`                // 판매 여부
	FlowerTypes string         `json:"flower_types"`                                          // 선택 가능한 꽃 종류 (쉼표 구분)
	Colors      string         `json:"colors"`                                                // 선택 가능한 색상 (쉼표 구분)
	ImageURL    string         `json:"image_url"`                                             // 대표 이미지
	CreatedAt   time.Time      `json:"created_at"`                                            // 생성 시각
	UpdatedAt   time.Time      `json:"updated_at"`                                            // 수정 시각
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                        // 삭제 시각(소프트 삭제)
}

func (Product) TableName() string {
	return "products"
}

// Purchasable reports whether the product can be put into a cart or order.
func (p *Product) Purchasable() bool {
	return p.IsActive && p.DeletedAt.Time.IsZero()
}
