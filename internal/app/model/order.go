package model

import (
	"time"
)

type OrderStatus string // 주문 상태 코드

const (
	OrderStatusPending    OrderStatus = "pending"     // 주문 접수
	OrderStatusInProgress OrderStatus = "in_progress" // 제작/배송 중
	OrderStatusCompleted  OrderStatus = "completed"   // 완료
	OrderStatusCancelled  OrderStatus = "cancelled"   // 취소
)

// GuestInfo is the contact block of an order placed without an account.
type GuestInfo struct {
	Name  string `json:"name,omitempty"`  // 주문자명
	Email string `json:"email,omitempty"` // 이메일
	Phone string `json:"phone,omitempty"` // 연락처
}

type Order struct {
	ID              uint                 `gorm:"primarykey" json:"id"`                                            // 주문 ID
	OrderNumber     string               `gorm:"type:varchar(32);uniqueIndex;not null" json:"order_number"`       // 주문 번호
	UserID          *uint                `gorm:"index" json:"user_id,omitempty"`                                  // 회원 ID
	Guest           GuestInfo            `gorm:"embedded;embeddedPrefix:guest_" json:"guest,omitempty"`           // 비회원 정보
	RecipientName   string               `gorm:"not null" json:"recipient_name"`                                  // 수령인
	RecipientPhone  string               `gorm:"not null" json:"recipient_phone"`                                 // 수령인 연락처
	DeliveryAddress string               `gorm:"type:text;not null" json:"delivery_address"`                      // 배송지
	DeliveryNote    string               `gorm:"type:text" json:"delivery_note,omitempty"`                        // 배송 메모 / 카드 문구
	PaymentMethod   string               `gorm:"type:varchar(30)" json:"payment_method"`                          // 결제 수단 (표시용)
	TotalAmount     float64              `gorm:"not null" json:"total_amount"`                                    // 총 금액
	Status          OrderStatus          `gorm:"type:varchar(20);default:'pending';index" json:"status"`          // 주문 상태
	EmailSent       bool                 `gorm:"not null;default:false" json:"email_sent"`                        // 주문 메일 발송 여부
	EmailSentAt     *time.Time           `json:"email_sent_at,omitempty"`                                         // 주문 메일 발송 시각
	CreatedAt       time.Time            `json:"created_at"`                                                      // 생성 시각
	UpdatedAt       time.Time            `json:"updated_at"`                                                      // 수정 시각
	User            *User                `gorm:"foreignKey:UserID" json:"user,omitempty"`                         // 주문자 정보
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`      // 주문 항목
	StatusHistory   []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history"` // 상태 이력
}

func (Order) TableName() string {
	return "orders"
}

// RecalculateTotal derives TotalAmount from the current items.
func (o *Order) RecalculateTotal() {
	var total float64
	for _, item := range o.Items {
		total += item.ItemTotal * float64(item.Quantity)
	}
	o.TotalAmount = total
}

// OrderItem is a frozen copy of catalog data at purchase time. It never
// reads the live product again.
type OrderItem struct {
	ID           uint             `gorm:"primarykey" json:"id"`                 // 주문 항목 ID
	OrderID      uint             `gorm:"not null;index" json:"order_id"`       // 주문 ID
	ItemType     CartItemType     `gorm:"type:varchar(20);not null" json:"item_type"`
	ProductID    uint             `gorm:"not null;index" json:"product_id"`     // 상품 ID
	ProductName  string           `gorm:"not null" json:"product_name"`         // 상품명
	Brand        string           `json:"brand,omitempty"`                      // 브랜드
	Category     string           `json:"category,omitempty"`                   // 카테고리
	ImageURL     string           `json:"image_url,omitempty"`                  // 이미지
	FlowerType   string           `json:"flower_type,omitempty"`                // 꽃 종류
	Color        string           `json:"color,omitempty"`                      // 색상
	Price        float64          `gorm:"not null" json:"price"`                // 상품 단가
	WrapperID    *uint            `json:"wrapper_id,omitempty"`                 // 포장지 ID
	WrapperName  string           `json:"wrapper_name,omitempty"`               // 포장지명
	WrapperPrice float64          `json:"wrapper_price,omitempty"`              // 포장지 가격
	Quantity     int              `gorm:"not null" json:"quantity"`             // 수량
	ItemTotal    float64          `gorm:"not null" json:"item_total"`           // 1개 기준 합계
	CreatedAt    time.Time        `json:"created_at"`                           // 생성 시각
	Addons       []OrderItemAddon `gorm:"foreignKey:OrderItemID;constraint:OnDelete:CASCADE" json:"addons,omitempty"` // 추가 상품
}

func (OrderItem) TableName() string {
	return "order_items"
}

type OrderItemAddon struct {
	ID          uint    `gorm:"primarykey" json:"id"`
	OrderItemID uint    `gorm:"not null;index" json:"order_item_id"`
	ProductID   uint    `gorm:"not null" json:"product_id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Quantity    int     `gorm:"not null" json:"quantity"`
}

func (OrderItemAddon) TableName() string {
	return "order_item_addons"
}

// OrderStatusHistory is append-only.
type OrderStatusHistory struct {
	ID        uint        `gorm:"primarykey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"type:varchar(20);not null" json:"status"`
	ChangedAt time.Time   `gorm:"not null" json:"changed_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}
