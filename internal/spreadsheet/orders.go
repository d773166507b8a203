package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/xuri/excelize/v2"
)

const (
	ordersSheet = "Orders"
	itemsSheet  = "Items"
	timeLayout  = "2006-01-02 15:04:05"
)

var orderHeader = []interface{}{
	"order_number", "status", "customer", "email", "phone",
	"recipient", "recipient_phone", "address", "note", "payment_method",
	"total_amount", "created_at",
}

var itemHeader = []interface{}{
	"order_number", "product", "flower_type", "color", "wrapper", "addons",
	"unit_total", "quantity", "line_total",
}

// WriteOrders renders orders as a workbook with one sheet for orders and one
// for their items.
func WriteOrders(w io.Writer, orders []model.Order) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ordersSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return fmt.Errorf("create items sheet: %w", err)
	}

	if err := f.SetSheetRow(ordersSheet, "A1", &orderHeader); err != nil {
		return err
	}
	if err := f.SetSheetRow(itemsSheet, "A1", &itemHeader); err != nil {
		return err
	}

	itemRow := 2
	for i, order := range orders {
		name, email, phone := customer(order)
		row := []interface{}{
			order.OrderNumber,
			string(order.Status),
			name,
			email,
			phone,
			order.RecipientName,
			order.RecipientPhone,
			order.DeliveryAddress,
			order.DeliveryNote,
			order.PaymentMethod,
			order.TotalAmount,
			order.CreatedAt.Format(timeLayout),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(ordersSheet, cell, &row); err != nil {
			return fmt.Errorf("write order %s: %w", order.OrderNumber, err)
		}

		for _, item := range order.Items {
			row := []interface{}{
				order.OrderNumber,
				item.ProductName,
				item.FlowerType,
				item.Color,
				item.WrapperName,
				addonSummary(item.Addons),
				item.ItemTotal,
				item.Quantity,
				item.ItemTotal * float64(item.Quantity),
			}
			cell, err := excelize.CoordinatesToCellName(1, itemRow)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(itemsSheet, cell, &row); err != nil {
				return fmt.Errorf("write items of %s: %w", order.OrderNumber, err)
			}
			itemRow++
		}
	}

	return f.Write(w)
}

func customer(order model.Order) (name, email, phone string) {
	if order.User != nil {
		return order.User.Name, order.User.Email, order.User.Phone
	}
	return order.Guest.Name, order.Guest.Email, order.Guest.Phone
}

func addonSummary(addons []model.OrderItemAddon) string {
	parts := make([]string, 0, len(addons))
	for _, a := range addons {
		parts = append(parts, fmt.Sprintf("%s x%d", a.Name, a.Quantity))
	}
	return strings.Join(parts, ", ")
}
