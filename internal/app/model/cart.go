package model

import (
	"time"
)

type CartItemType string // 장바구니 항목 유형

const (
	CartItemTypeProduct CartItemType = "product" // 본 상품 (포장/추가 상품 포함 가능)
	CartItemTypeAddon   CartItemType = "addon"   // 단독 구매 추가 상품
)

// Cart is owned by exactly one of UserID or SessionID.
type Cart struct {
	ID         uint       `gorm:"primarykey" json:"id"`                            // 장바구니 ID
	UserID     *uint      `gorm:"uniqueIndex" json:"user_id,omitempty"`            // 회원 ID
	SessionID  *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`           // 비회원 세션 ID
	Total      float64    `gorm:"not null;default:0" json:"total"`                 // 합계 금액
	TotalItems int        `gorm:"not null;default:0" json:"total_items"`           // 총 수량
	ExpiresAt  *time.Time `gorm:"index" json:"expires_at,omitempty"`               // 비회원 장바구니 만료 시각
	CreatedAt  time.Time  `json:"created_at"`                                      // 생성 시각
	UpdatedAt  time.Time  `json:"updated_at"`                                      // 수정 시각
	Items      []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"` // 항목 목록
}

func (Cart) TableName() string {
	return "carts"
}

// Recalculate derives Total and TotalItems from the current items.
func (c *Cart) Recalculate() {
	var total float64
	var count int
	for _, item := range c.Items {
		total += item.ItemTotal * float64(item.Quantity)
		count += item.Quantity
	}
	c.Total = total
	c.TotalItems = count
}

// CartItem is a mutable line; its price snapshot is refreshed whenever the
// same combination is added again.
type CartItem struct {
	ID           uint            `gorm:"primarykey" json:"id"`                                         // 항목 ID
	CartID       uint            `gorm:"not null;index:idx_cart_items_line,unique" json:"cart_id"`     // 장바구니 ID
	LineKey      string          `gorm:"type:varchar(255);not null;index:idx_cart_items_line,unique" json:"-"` // 항목 식별 키
	ItemType     CartItemType    `gorm:"type:varchar(20);not null" json:"item_type"`                   // 항목 유형
	ProductID    uint            `gorm:"not null;index" json:"product_id"`                             // 상품 ID
	FlowerType   string          `json:"flower_type,omitempty"`                                        // 선택한 꽃 종류
	Color        string          `json:"color,omitempty"`                                              // 선택한 색상
	WrapperID    *uint           `json:"wrapper_id,omitempty"`                                         // 포장지 ID
	Quantity     int             `gorm:"not null;default:1" json:"quantity"`                           // 수량
	UnitPrice    float64         `gorm:"not null" json:"unit_price"`                                   // 상품 단가
	ItemTotal    float64         `gorm:"not null" json:"item_total"`                                   // 1개 기준 합계 (상품+포장+추가상품)
	ProductName  string          `json:"product_name"`                                                 // 상품명 스냅샷
	Brand        string          `json:"brand,omitempty"`                                              // 브랜드 스냅샷
	ImageURL     string          `json:"image_url,omitempty"`                                          // 이미지 스냅샷
	WrapperName  string          `json:"wrapper_name,omitempty"`                                       // 포장지명 스냅샷
	WrapperPrice float64         `json:"wrapper_price,omitempty"`                                      // 포장지 가격 스냅샷
	CreatedAt    time.Time       `json:"created_at"`                                                   // 생성 시각
	UpdatedAt    time.Time       `json:"updated_at"`                                                   // 수정 시각
	Addons       []CartItemAddon `gorm:"foreignKey:CartItemID;constraint:OnDelete:CASCADE" json:"addons,omitempty"` // 추가 상품
}

func (CartItem) TableName() string {
	return "cart_items"
}

type CartItemAddon struct {
	ID         uint    `gorm:"primarykey" json:"id"`
	CartItemID uint    `gorm:"not null;index" json:"cart_item_id"`
	ProductID  uint    `gorm:"not null" json:"product_id"`
	Name       string  `json:"name"`
	Price      float64 `json:"price"`
	Quantity   int     `gorm:"not null;default:1" json:"quantity"`
}

func (CartItemAddon) TableName() string {
	return "cart_item_addons"
}
