package service

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"github.com/petalhouse/petalhouse-backend/pkg/mail"
)

// PrincipalType tells the mail template who placed the order.
type PrincipalType string

const (
	PrincipalRegistered PrincipalType = "registered"
	PrincipalGuest      PrincipalType = "guest"
)

// Notifier delivers order side notifications. Failures are reported to the
// caller but never affect the order itself.
type Notifier interface {
	SendOrderEmail(ctx context.Context, order *model.Order, principalType PrincipalType) error
	SendLowStockWarning(ctx context.Context, product *model.Product, ownerEmail string) error
}

// AlertGate suppresses repeated alerts for the same key.
type AlertGate interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type mailNotifier struct {
	sender     mail.Sender
	ownerEmail string
	gate       AlertGate
	alertTTL   time.Duration
}

// NewMailNotifier sends order mails to the customer with a copy to the shop
// owner. gate may be nil, in which case every low-stock warning is sent.
func NewMailNotifier(sender mail.Sender, ownerEmail string, gate AlertGate, alertTTL time.Duration) Notifier {
	return &mailNotifier{
		sender:     sender,
		ownerEmail: ownerEmail,
		gate:       gate,
		alertTTL:   alertTTL,
	}
}

func (n *mailNotifier) SendOrderEmail(ctx context.Context, order *model.Order, principalType PrincipalType) error {
	var to []string
	if email := customerEmail(order); email != "" {
		to = append(to, email)
	}
	if n.ownerEmail != "" {
		to = append(to, n.ownerEmail)
	}

	msg := mail.Message{
		To:      to,
		Subject: fmt.Sprintf("[Petal House] 주문 접수 안내 (%s)", order.OrderNumber),
		HTML:    renderOrderMail(order, principalType),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("order mail %s: %w", order.OrderNumber, err)
	}
	return nil
}

func (n *mailNotifier) SendLowStockWarning(ctx context.Context, product *model.Product, ownerEmail string) error {
	if n.gate != nil {
		ok, err := n.gate.Acquire(ctx, strconv.FormatUint(uint64(product.ID), 10), n.alertTTL)
		if err != nil {
			logger.Warn("Low stock alert gate unavailable, sending anyway", map[string]interface{}{
				"product_id": product.ID,
				"error":      err.Error(),
			})
		} else if !ok {
			logger.Debug("Low stock warning suppressed", map[string]interface{}{
				"product_id": product.ID,
			})
			return nil
		}
	}

	msg := mail.Message{
		To:      []string{ownerEmail},
		Subject: fmt.Sprintf("[Petal House] 재고 부족: %s", product.Name),
		HTML: fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h2>재고 부족 알림</h2>
<p><strong>%s</strong> 상품의 남은 수량은 <strong>%d</strong>개입니다.</p>
</body></html>`, html.EscapeString(product.Name), product.Quantity),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("low stock mail for product %d: %w", product.ID, err)
	}
	return nil
}

func customerEmail(order *model.Order) string {
	if order.User != nil && order.User.Email != "" {
		return order.User.Email
	}
	return order.Guest.Email
}

func renderOrderMail(order *model.Order, principalType PrincipalType) string {
	var rows strings.Builder
	for _, item := range order.Items {
		name := item.ProductName
		if item.WrapperName != "" {
			name += " / " + item.WrapperName
		}
		for _, a := range item.Addons {
			name += fmt.Sprintf(" + %s x%d", a.Name, a.Quantity)
		}
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%d</td><td>%.0f</td></tr>",
			html.EscapeString(name), item.Quantity, item.ItemTotal*float64(item.Quantity))
	}

	greeting := "회원님의 주문이 접수되었습니다."
	if principalType == PrincipalGuest {
		greeting = "비회원 주문이 접수되었습니다. 주문 번호로 주문을 조회할 수 있습니다."
	}

	return fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif;">
<h2>주문 번호 %s</h2>
<p>%s</p>
<table border="1" cellpadding="6" style="border-collapse: collapse;">
<tr><th>상품</th><th>수량</th><th>금액</th></tr>
%s
</table>
<p>합계: <strong>%.0f</strong>원</p>
<p>받는 분: %s (%s)<br>배송지: %s</p>
</body></html>`,
		html.EscapeString(order.OrderNumber),
		greeting,
		rows.String(),
		order.TotalAmount,
		html.EscapeString(order.RecipientName),
		html.EscapeString(order.RecipientPhone),
		html.EscapeString(order.DeliveryAddress),
	)
}
