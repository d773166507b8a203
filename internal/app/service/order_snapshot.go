package service

import (
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
)

// BuildOrderItems freezes the catalog facts of each resolved line into order
// items and returns them with the order total. Later catalog edits never
// reach these values.
func BuildOrderItems(lines []ResolvedLine) ([]model.OrderItem, float64) {
	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, snapshotLine(line))
	}
	return items, SumOrderItems(items)
}

func snapshotLine(line ResolvedLine) model.OrderItem {
	p := line.Product
	item := model.OrderItem{
		ItemType:    line.ItemType,
		ProductID:   p.ID,
		ProductName: p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		FlowerType:  line.Variant.FlowerType,
		Color:       line.Variant.Color,
		Price:       p.Price,
		Quantity:    line.Quantity,
		ItemTotal:   line.ItemTotal(),
	}
	if line.Wrapper != nil {
		id := line.Wrapper.ID
		item.WrapperID = &id
		item.WrapperName = line.Wrapper.Name
		item.WrapperPrice = line.Wrapper.Price
	}
	for _, a := range line.Addons {
		item.Addons = append(item.Addons, model.OrderItemAddon{
			ProductID: a.Product.ID,
			Name:      a.Product.Name,
			Price:     a.Product.Price,
			Quantity:  a.Quantity,
		})
	}
	return item
}

// SumOrderItems is Σ itemTotal × quantity.
func SumOrderItems(items []model.OrderItem) float64 {
	var total float64
	for _, item := range items {
		total += item.ItemTotal * float64(item.Quantity)
	}
	return total
}
