package service

import (
	"context"
	"testing"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductService_ImportProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewProductService(f.productRepo, f.ledger)

	t.Run("Valid", func(t *testing.T) {
		n, err := svc.ImportProducts(ctx, []model.Product{
			{Name: " Rose Box ", Price: 30000, Quantity: 5, Category: "box", IsActive: true},
			{Name: "Kraft", Price: 2000, Quantity: 100, Kind: model.ProductKindWrapper, IsActive: true},
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		list, err := svc.ListProducts(ctx, "box", "")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Rose Box", list[0].Name)
		assert.Equal(t, model.ProductKindBouquet, list[0].Kind)
	})

	t.Run("RejectsWholeBatch", func(t *testing.T) {
		_, err := svc.ImportProducts(ctx, []model.Product{
			{Name: "Fine", Price: 1000},
			{Name: "", Price: 1000},
			{Name: "Odd", Price: 1000, Kind: "vase"},
		})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "products[1]")
		assert.Contains(t, verr.Fields, "products[2]")

		var count int64
		require.NoError(t, f.db.Model(&model.Product{}).Where("name = ?", "Fine").Count(&count).Error)
		assert.Zero(t, count)
	})
}

func TestProductService_ListHidesSoldOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewProductService(f.productRepo, f.ledger)

	f.product(t, "Available", 1000, 3)
	f.product(t, "SoldOut", 1000, 0)
	f.productOfKind(t, "Card", 100, 10, model.ProductKindAddon)

	list, err := svc.ListProducts(ctx, "", model.ProductKindBouquet)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Available", list[0].Name)
}

func TestProductService_Restock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewProductService(f.productRepo, f.ledger)
	p := f.product(t, "Rose", 1000, 1)

	updated, err := svc.Restock(ctx, p.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Quantity)

	_, err = svc.Restock(ctx, p.ID, 0)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Restock(ctx, 9999, 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.GetProduct(ctx, 9999)
	assert.ErrorIs(t, err, ErrProductNotFound)
}
