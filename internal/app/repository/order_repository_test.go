package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupOrderTest(t *testing.T) (*gorm.DB, OrderRepository, *model.User) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	user := &model.User{
		Email:        "buyer@example.com",
		PasswordHash: "hash",
		Name:         "Buyer",
		Role:         model.RoleUser,
	}
	require.NoError(t, testDB.Create(user).Error)

	return testDB, NewOrderRepository(testDB), user
}

func newTestOrder(number string, userID *uint) *model.Order {
	now := time.Now()
	order := &model.Order{
		OrderNumber:     number,
		UserID:          userID,
		RecipientName:   "Kim",
		RecipientPhone:  "010-0000-0000",
		DeliveryAddress: "Seoul",
		PaymentMethod:   "bank_transfer",
		Status:          model.OrderStatusPending,
		Items: []model.OrderItem{
			{
				ItemType:    model.CartItemTypeProduct,
				ProductID:   1,
				ProductName: "Rose Bouquet",
				Price:       30000,
				Quantity:    2,
				ItemTotal:   35000,
				Addons: []model.OrderItemAddon{
					{ProductID: 3, Name: "Card", Price: 5000, Quantity: 1},
				},
			},
			{
				ItemType:    model.CartItemTypeProduct,
				ProductID:   2,
				ProductName: "Tulip Basket",
				Price:       20000,
				Quantity:    1,
				ItemTotal:   20000,
			},
		},
		StatusHistory: []model.OrderStatusHistory{
			{Status: model.OrderStatusPending, ChangedAt: now},
		},
	}
	order.RecalculateTotal()
	return order
}

func TestOrderRepository_CreateAndFindByID(t *testing.T) {
	_, repo, user := setupOrderTest(t)
	ctx := context.Background()

	order := newTestOrder("PH20260101-AAAA", &user.ID)
	require.NoError(t, repo.Create(ctx, order))
	assert.NotZero(t, order.ID)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 90000.0, found.TotalAmount)
	require.Len(t, found.Items, 2)
	assert.Equal(t, "Rose Bouquet", found.Items[0].ProductName)
	assert.Len(t, found.Items[0].Addons, 1)
	require.Len(t, found.StatusHistory, 1)
	assert.Equal(t, model.OrderStatusPending, found.StatusHistory[0].Status)
	require.NotNil(t, found.User)
	assert.Equal(t, user.Email, found.User.Email)

	_, err = repo.FindByID(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrderRepository_GuestOrder(t *testing.T) {
	_, repo, _ := setupOrderTest(t)
	ctx := context.Background()

	order := newTestOrder("PH20260101-GUEST", nil)
	order.Guest = model.GuestInfo{Name: "Lee", Phone: "010-1111-2222", Email: "lee@example.com"}
	require.NoError(t, repo.Create(ctx, order))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Nil(t, found.UserID)
	assert.Nil(t, found.User)
	assert.Equal(t, "Lee", found.Guest.Name)
	assert.Equal(t, "lee@example.com", found.Guest.Email)
}

func TestOrderRepository_FindByUserID(t *testing.T) {
	_, repo, user := setupOrderTest(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestOrder("PH-1", &user.ID)))
	require.NoError(t, repo.Create(ctx, newTestOrder("PH-2", &user.ID)))
	require.NoError(t, repo.Create(ctx, newTestOrder("PH-3", nil)))

	orders, err := repo.FindByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestOrderRepository_List(t *testing.T) {
	testDB, repo, user := setupOrderTest(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Create(ctx, newTestOrder(fmt.Sprintf("PH-%d", i), &user.ID)))
	}
	require.NoError(t, testDB.Model(&model.Order{}).Where("order_number IN ?", []string{"PH-0", "PH-1"}).
		Update("status", model.OrderStatusCompleted).Error)

	t.Run("All", func(t *testing.T) {
		orders, total, err := repo.List(ctx, OrderFilter{})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, orders, 5)
	})

	t.Run("ByStatus", func(t *testing.T) {
		orders, total, err := repo.List(ctx, OrderFilter{Status: model.OrderStatusCompleted})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		for _, o := range orders {
			assert.Equal(t, model.OrderStatusCompleted, o.Status)
		}
	})

	t.Run("Paged", func(t *testing.T) {
		orders, total, err := repo.List(ctx, OrderFilter{Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		assert.Len(t, orders, 2)
	})

	t.Run("DateRange", func(t *testing.T) {
		from := time.Now().Add(time.Hour)
		orders, total, err := repo.List(ctx, OrderFilter{From: &from})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, orders)
	})
}

func TestOrderRepository_CompareAndSetStatus(t *testing.T) {
	_, repo, user := setupOrderTest(t)
	ctx := context.Background()

	order := newTestOrder("PH-CAS", &user.ID)
	require.NoError(t, repo.Create(ctx, order))

	applied, err := repo.CompareAndSetStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusInProgress, time.Now())
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = repo.CompareAndSetStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCancelled, time.Now())
	require.NoError(t, err)
	assert.False(t, applied, "stale from status must not apply")

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusInProgress, found.Status)
	require.Len(t, found.StatusHistory, 2)
	assert.Equal(t, model.OrderStatusInProgress, found.StatusHistory[1].Status)
}

func TestOrderRepository_UpdateItemQuantity(t *testing.T) {
	_, repo, user := setupOrderTest(t)
	ctx := context.Background()

	order := newTestOrder("PH-UPD", &user.ID)
	require.NoError(t, repo.Create(ctx, order))
	itemID := order.Items[1].ID
	pending := model.OrderStatusPending

	applied, err := repo.UpdateItemQuantity(ctx, order.ID, itemID, pending, 1, 3, 130000)
	require.NoError(t, err)
	assert.True(t, applied)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, found.Items[1].Quantity)
	assert.Equal(t, 130000.0, found.TotalAmount)

	t.Run("StaleQuantity", func(t *testing.T) {
		applied, err := repo.UpdateItemQuantity(ctx, order.ID, itemID, pending, 1, 5, 999)
		require.NoError(t, err)
		assert.False(t, applied)

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, found.Items[1].Quantity)
		assert.Equal(t, 130000.0, found.TotalAmount, "total rolled back with the item")
	})

	t.Run("StaleStatus", func(t *testing.T) {
		moved, err := repo.CompareAndSetStatus(ctx, order.ID, pending, model.OrderStatusCancelled, time.Now())
		require.NoError(t, err)
		require.True(t, moved)

		applied, err := repo.UpdateItemQuantity(ctx, order.ID, itemID, pending, 3, 4, 150000)
		require.NoError(t, err)
		assert.False(t, applied)

		found, err := repo.FindByID(ctx, order.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, found.Items[1].Quantity)
	})
}

func TestOrderRepository_DeleteItem(t *testing.T) {
	testDB, repo, user := setupOrderTest(t)
	ctx := context.Background()

	order := newTestOrder("PH-DEL", &user.ID)
	require.NoError(t, repo.Create(ctx, order))

	applied, err := repo.DeleteItem(ctx, order.ID, order.Items[0].ID, model.OrderStatusPending, 20000)
	require.NoError(t, err)
	assert.True(t, applied)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Tulip Basket", found.Items[0].ProductName)
	assert.Equal(t, 20000.0, found.TotalAmount)

	var addons int64
	testDB.Model(&model.OrderItemAddon{}).Count(&addons)
	assert.Zero(t, addons)

	// 이미 삭제된 항목
	applied, err = repo.DeleteItem(ctx, order.ID, order.Items[0].ID, model.OrderStatusPending, 0)
	require.NoError(t, err)
	assert.False(t, applied)

	applied, err = repo.DeleteItem(ctx, order.ID, order.Items[1].ID, model.OrderStatusCompleted, 0)
	require.NoError(t, err)
	assert.False(t, applied)

	found, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, found.Items, 1)
	assert.Equal(t, 20000.0, found.TotalAmount)
}

func TestOrderRepository_Delete(t *testing.T) {
	testDB, repo, user := setupOrderTest(t)
	ctx := context.Background()

	order := newTestOrder("PH-GONE", &user.ID)
	require.NoError(t, repo.Create(ctx, order))
	keep := newTestOrder("PH-KEEP", &user.ID)
	require.NoError(t, repo.Create(ctx, keep))

	applied, err := repo.Delete(ctx, order.ID, model.OrderStatusCompleted)
	require.NoError(t, err)
	assert.False(t, applied, "status no longer matches")

	applied, err = repo.Delete(ctx, order.ID, model.OrderStatusPending)
	require.NoError(t, err)
	assert.True(t, applied)

	_, err = repo.FindByID(ctx, order.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var items, history, addons int64
	testDB.Model(&model.OrderItem{}).Count(&items)
	testDB.Model(&model.OrderStatusHistory{}).Count(&history)
	testDB.Model(&model.OrderItemAddon{}).Count(&addons)
	assert.Equal(t, int64(2), items)
	assert.Equal(t, int64(1), history)
	assert.Equal(t, int64(1), addons)
}

func TestOrderRepository_MarkEmailSent(t *testing.T) {
	_, repo, user := setupOrderTest(t)
	ctx := context.Background()

	order := newTestOrder("PH-MAIL", &user.ID)
	require.NoError(t, repo.Create(ctx, order))
	assert.False(t, order.EmailSent)

	require.NoError(t, repo.MarkEmailSent(ctx, order.ID, time.Now()))

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, found.EmailSent)
	assert.NotNil(t, found.EmailSentAt)
}
