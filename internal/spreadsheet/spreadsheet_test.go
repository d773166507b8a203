package spreadsheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func catalogWorkbook(t *testing.T, rows ...[]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	header := make([]interface{}, len(CatalogHeader))
	for i, h := range CatalogHeader {
		header[i] = h
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestReadProducts(t *testing.T) {
	buf := catalogWorkbook(t,
		[]interface{}{"Red Rose Bouquet", "Petal", "bouquet", "bouquet", "45000", "12", "rose", "red,white", "https://img/rose.jpg", "장미 꽃다발"},
		[]interface{}{"Kraft Wrap", "", "wrap", "WRAPPER", "3000", "100"},
		[]interface{}{"", "", "", "", "1000", "1"},
		[]interface{}{"Broken Price", "", "", "", "abc", "1"},
		[]interface{}{"Plain", "", "", "", "1000", "4"},
	)

	products, report, err := ReadProducts(buf)
	require.NoError(t, err)

	assert.Equal(t, ImportReport{Rows: 5, Valid: 3, Skipped: 2}, report)
	require.Len(t, products, 3)

	rose := products[0]
	assert.Equal(t, "Red Rose Bouquet", rose.Name)
	assert.Equal(t, model.ProductKindBouquet, rose.Kind)
	assert.Equal(t, 45000.0, rose.Price)
	assert.Equal(t, 12, rose.Quantity)
	assert.Equal(t, "red,white", rose.Colors)
	assert.True(t, rose.IsActive)

	assert.Equal(t, model.ProductKindWrapper, products[1].Kind)
	assert.Equal(t, model.ProductKindBouquet, products[2].Kind, "kind defaults to bouquet")
}

func TestReadProducts_NotAWorkbook(t *testing.T) {
	_, _, err := ReadProducts(bytes.NewBufferString("name,price\nrose,1000\n"))
	assert.Error(t, err)
}

func TestWriteOrders(t *testing.T) {
	created := time.Date(2026, 5, 8, 10, 30, 0, 0, time.UTC)
	orders := []model.Order{
		{
			OrderNumber:     "PH20260508-0000000001",
			Status:          model.OrderStatusPending,
			Guest:           model.GuestInfo{Name: "Guest", Email: "guest@example.com", Phone: "010-0000-0000"},
			RecipientName:   "Mom",
			RecipientPhone:  "010-1111-1111",
			DeliveryAddress: "Seoul",
			TotalAmount:     51000,
			CreatedAt:       created,
			Items: []model.OrderItem{
				{
					ProductName: "Red Rose Bouquet",
					WrapperName: "Kraft Wrap",
					ItemTotal:   25500,
					Quantity:    2,
					Addons:      []model.OrderItemAddon{{Name: "Card", Quantity: 1}},
				},
			},
		},
		{
			OrderNumber: "PH20260508-0000000002",
			Status:      model.OrderStatusCancelled,
			User:        &model.User{Name: "Member", Email: "member@example.com"},
			CreatedAt:   created,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOrders(&buf, orders))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	orderRows, err := f.GetRows(ordersSheet)
	require.NoError(t, err)
	require.Len(t, orderRows, 3)
	assert.Equal(t, "order_number", orderRows[0][0])
	assert.Equal(t, "PH20260508-0000000001", orderRows[1][0])
	assert.Equal(t, "guest@example.com", orderRows[1][3])
	assert.Equal(t, "2026-05-08 10:30:00", orderRows[1][11])
	assert.Equal(t, "cancelled", orderRows[2][1])
	assert.Equal(t, "member@example.com", orderRows[2][3])

	itemRows, err := f.GetRows(itemsSheet)
	require.NoError(t, err)
	require.Len(t, itemRows, 2)
	assert.Equal(t, "Card x1", itemRows[1][5])
	assert.Equal(t, "2", itemRows[1][7])
	assert.Equal(t, "51000", itemRows[1][8])
}
