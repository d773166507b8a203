package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCartTest(t *testing.T) (*gorm.DB, CartRepository, *model.User, *model.Product) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	repo := NewCartRepository(testDB)

	user := &model.User{
		Email:        "test@example.com",
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         model.RoleUser,
	}
	require.NoError(t, testDB.Create(user).Error)

	product := &model.Product{
		Name:     "Rose Bouquet",
		Price:    45000,
		Quantity: 10,
		IsActive: true,
	}
	require.NoError(t, testDB.Create(product).Error)

	return testDB, repo, user, product
}

func addItem(t *testing.T, repo CartRepository, cartID uint, product *model.Product, key string, qty int) *model.CartItem {
	item := &model.CartItem{
		CartID:      cartID,
		LineKey:     key,
		ItemType:    model.CartItemTypeProduct,
		ProductID:   product.ID,
		Quantity:    qty,
		UnitPrice:   product.Price,
		ItemTotal:   product.Price + 1000,
		ProductName: product.Name,
		Addons: []model.CartItemAddon{
			{ProductID: 99, Name: "Card", Price: 1000, Quantity: 1},
		},
	}
	require.NoError(t, repo.CreateItem(context.Background(), item))
	return item
}

func TestCartRepository_FindOrCreateForUpdate(t *testing.T) {
	_, repo, user, _ := setupCartTest(t)
	ctx := context.Background()
	owner := CartOwner{UserID: &user.ID}

	first, err := repo.FindOrCreateForUpdate(ctx, owner)
	require.NoError(t, err)
	assert.NotZero(t, first.ID)

	second, err := repo.FindOrCreateForUpdate(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	guest, err := repo.FindOrCreateForUpdate(ctx, CartOwner{SessionID: "session-1"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, guest.ID)
	require.NotNil(t, guest.SessionID)
	assert.Equal(t, "session-1", *guest.SessionID)
	assert.Nil(t, guest.UserID)
}

func TestCartRepository_FindByOwner(t *testing.T) {
	_, repo, user, product := setupCartTest(t)
	ctx := context.Background()
	owner := CartOwner{UserID: &user.ID}

	_, err := repo.FindByOwner(ctx, owner)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	cart, err := repo.FindOrCreateForUpdate(ctx, owner)
	require.NoError(t, err)
	addItem(t, repo, cart.ID, product, "a", 1)
	addItem(t, repo, cart.ID, product, "b", 2)

	found, err := repo.FindByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "a", found.Items[0].LineKey)
	assert.Len(t, found.Items[0].Addons, 1)
}

func TestCartRepository_LineKeyIsUniquePerCart(t *testing.T) {
	_, repo, user, product := setupCartTest(t)
	ctx := context.Background()

	cart, err := repo.FindOrCreateForUpdate(ctx, CartOwner{UserID: &user.ID})
	require.NoError(t, err)
	addItem(t, repo, cart.ID, product, "same", 1)

	dup := &model.CartItem{CartID: cart.ID, LineKey: "same", ItemType: model.CartItemTypeProduct, ProductID: product.ID, Quantity: 1}
	assert.Error(t, repo.CreateItem(ctx, dup))

	found, err := repo.FindItemByLineKey(ctx, cart.ID, "same")
	require.NoError(t, err)
	assert.Equal(t, 1, found.Quantity)
}

func TestCartRepository_UpdateItemReplacesAddons(t *testing.T) {
	_, repo, user, product := setupCartTest(t)
	ctx := context.Background()

	cart, err := repo.FindOrCreateForUpdate(ctx, CartOwner{UserID: &user.ID})
	require.NoError(t, err)
	item := addItem(t, repo, cart.ID, product, "k", 1)

	item.Quantity = 4
	item.Addons = []model.CartItemAddon{
		{ProductID: 100, Name: "Chocolate", Price: 5000, Quantity: 2},
		{ProductID: 101, Name: "Balloon", Price: 3000, Quantity: 1},
	}
	require.NoError(t, repo.UpdateItem(ctx, item))

	require.NoError(t, repo.LoadItems(ctx, cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 4, cart.Items[0].Quantity)
	assert.Len(t, cart.Items[0].Addons, 2)
}

func TestCartRepository_ItemScopedToCart(t *testing.T) {
	_, repo, user, product := setupCartTest(t)
	ctx := context.Background()

	mine, err := repo.FindOrCreateForUpdate(ctx, CartOwner{UserID: &user.ID})
	require.NoError(t, err)
	other, err := repo.FindOrCreateForUpdate(ctx, CartOwner{SessionID: "other"})
	require.NoError(t, err)
	item := addItem(t, repo, other.ID, product, "k", 1)

	ok, err := repo.UpdateItemQuantity(ctx, mine.ID, item.ID, 5)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteItem(ctx, mine.ID, item.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.LoadItems(ctx, other))
	require.Len(t, other.Items, 1)
	assert.Equal(t, 1, other.Items[0].Quantity)
	assert.Len(t, other.Items[0].Addons, 1)

	ok, err = repo.DeleteItem(ctx, other.ID, item.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCartRepository_SaveTotals(t *testing.T) {
	_, repo, user, product := setupCartTest(t)
	ctx := context.Background()
	owner := CartOwner{UserID: &user.ID}

	cart, err := repo.FindOrCreateForUpdate(ctx, owner)
	require.NoError(t, err)
	addItem(t, repo, cart.ID, product, "k", 2)

	require.NoError(t, repo.LoadItems(ctx, cart))
	cart.Recalculate()
	require.NoError(t, repo.SaveTotals(ctx, cart))

	stored, err := repo.FindByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, 2*(product.Price+1000), stored.Total)
	assert.Equal(t, 2, stored.TotalItems)
}

func TestCartRepository_Transaction_RollsBack(t *testing.T) {
	_, repo, user, product := setupCartTest(t)
	ctx := context.Background()
	owner := CartOwner{UserID: &user.ID}

	boom := errors.New("boom")
	err := repo.Transaction(ctx, func(tx CartRepository) error {
		cart, err := tx.FindOrCreateForUpdate(ctx, owner)
		require.NoError(t, err)
		addItem(t, tx, cart.ID, product, "k", 1)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = repo.FindByOwner(ctx, owner)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestCartRepository_DeleteExpiredGuestCarts(t *testing.T) {
	testDB, repo, user, product := setupCartTest(t)
	ctx := context.Background()
	now := time.Now()

	expired, err := repo.FindOrCreateForUpdate(ctx, CartOwner{SessionID: "old"})
	require.NoError(t, err)
	addItem(t, repo, expired.ID, product, "k", 1)
	past := now.Add(-time.Hour)
	expired.ExpiresAt = &past
	require.NoError(t, repo.SaveTotals(ctx, expired))

	fresh, err := repo.FindOrCreateForUpdate(ctx, CartOwner{SessionID: "new"})
	require.NoError(t, err)
	future := now.Add(time.Hour)
	fresh.ExpiresAt = &future
	require.NoError(t, repo.SaveTotals(ctx, fresh))

	_, err = repo.FindOrCreateForUpdate(ctx, CartOwner{UserID: &user.ID})
	require.NoError(t, err)

	deleted, err := repo.DeleteExpiredGuestCarts(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var carts int64
	testDB.Model(&model.Cart{}).Count(&carts)
	assert.Equal(t, int64(2), carts)

	var items int64
	testDB.Model(&model.CartItem{}).Count(&items)
	assert.Equal(t, int64(0), items)
	var addons int64
	testDB.Model(&model.CartItemAddon{}).Count(&addons)
	assert.Equal(t, int64(0), addons)
}
