package controller

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOrderControllerTest(t *testing.T) (*testEnv, *model.User) {
	env := setupControllerTest(t)
	user := env.user(t, "buyer@example.com")

	ctrl := NewOrderController(env.orders)
	cartCtrl := NewCartController(env.carts)

	guest := env.router.Group("/guest", middleware.Session())
	guest.POST("/orders", ctrl.CreateOrder)
	guest.POST("/cart/items", cartCtrl.AddItem)
	guest.GET("/orders", ctrl.GetOrders)

	member := env.router.Group("/user", middleware.Session(), asUser(user.ID, model.RoleUser))
	member.POST("/orders", ctrl.CreateOrder)
	member.GET("/orders", ctrl.GetOrders)
	member.GET("/orders/:id", ctrl.GetOrderByID)
	return env, user
}

func orderBody(items ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"guest":            map[string]interface{}{"name": "Guest", "phone": "010-1111-2222"},
		"recipient_name":   "Park",
		"recipient_phone":  "010-3333-4444",
		"delivery_address": "Seoul, Mapo-gu 1",
		"payment_method":   "bank_transfer",
		"items":            items,
	}
}

func item(productID uint, quantity int) map[string]interface{} {
	return map[string]interface{}{"product_id": productID, "quantity": quantity}
}

func TestOrderController_CreateOrder_Guest(t *testing.T) {
	env, _ := setupOrderControllerTest(t)
	rose := env.product(t, "Rose", 12000, 5)

	w := env.do(t, http.MethodPost, "/guest/orders", orderBody(item(rose.ID, 2)), session("sess-order"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	order := decode(t, w)["order"].(map[string]interface{})
	assert.Equal(t, float64(24000), order["total_amount"])
	assert.Equal(t, string(model.OrderStatusPending), order["status"])
	assert.Nil(t, order["user_id"])
	assert.Equal(t, 3, env.stock(t, rose.ID))
}

func TestOrderController_CreateOrder_Shortfall(t *testing.T) {
	env, _ := setupOrderControllerTest(t)
	rose := env.product(t, "Rose", 12000, 1)
	tulip := env.product(t, "Tulip", 8000, 0)
	lily := env.product(t, "Lily", 9000, 10)

	w := env.do(t, http.MethodPost, "/guest/orders",
		orderBody(item(rose.ID, 2), item(tulip.ID, 1), item(lily.ID, 1)), session("sess-short"))
	require.Equal(t, http.StatusBadRequest, w.Code)

	response := decode(t, w)
	assert.Equal(t, apperrors.StockInsufficientOrder, response["error"])
	shortfalls := response["shortfalls"].([]interface{})
	require.Len(t, shortfalls, 2)
	assert.Equal(t, "Rose", shortfalls[0].(map[string]interface{})["name"])
	assert.Equal(t, "Tulip", shortfalls[1].(map[string]interface{})["name"])

	assert.Equal(t, 1, env.stock(t, rose.ID))
	assert.Equal(t, 10, env.stock(t, lily.ID), "nothing is deducted when the order fails")
}

func TestOrderController_CreateOrder_Validation(t *testing.T) {
	env, _ := setupOrderControllerTest(t)
	rose := env.product(t, "Rose", 12000, 5)

	t.Run("MissingRecipient", func(t *testing.T) {
		body := orderBody(item(rose.ID, 1))
		delete(body, "recipient_name")
		w := env.do(t, http.MethodPost, "/guest/orders", body, session("sess-v"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ValidationInvalidInput, decode(t, w)["error"])
	})

	t.Run("GuestWithoutContact", func(t *testing.T) {
		body := orderBody(item(rose.ID, 1))
		delete(body, "guest")
		w := env.do(t, http.MethodPost, "/guest/orders", body, session("sess-v"))
		require.Equal(t, http.StatusBadRequest, w.Code)

		fields := decode(t, w)["fields"].(map[string]interface{})
		assert.Contains(t, fields, "guest.name")
		assert.Contains(t, fields, "guest.phone")
	})

	t.Run("NoItems", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/guest/orders", orderBody(), session("sess-v"))
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, decode(t, w)["fields"], "items")
	})

	t.Run("InactiveProduct", func(t *testing.T) {
		hidden := env.product(t, "Hidden", 1000, 5)
		require.NoError(t, env.db.Model(hidden).Update("is_active", false).Error)

		w := env.do(t, http.MethodPost, "/guest/orders", orderBody(item(hidden.ID, 1)), session("sess-v"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ProductUnavailable, decode(t, w)["error"])
	})
}

func TestOrderController_CreateOrder_FromCart(t *testing.T) {
	env, _ := setupOrderControllerTest(t)
	rose := env.product(t, "Rose", 12000, 5)

	w := env.do(t, http.MethodPost, "/guest/cart/items", item(rose.ID, 3), session("sess-cart"))
	require.Equal(t, http.StatusOK, w.Code)

	body := orderBody()
	delete(body, "items")
	body["from_cart"] = true
	w = env.do(t, http.MethodPost, "/guest/orders", body, session("sess-cart"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, 2, env.stock(t, rose.ID))

	t.Run("EmptyCartAfterwards", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/guest/orders", body, session("sess-cart"))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestOrderController_UserOrders(t *testing.T) {
	env, user := setupOrderControllerTest(t)
	rose := env.product(t, "Rose", 12000, 5)

	body := orderBody(item(rose.ID, 1))
	delete(body, "guest")
	w := env.do(t, http.MethodPost, "/user/orders", body, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	order := decode(t, w)["order"].(map[string]interface{})
	assert.Equal(t, float64(user.ID), order["user_id"])
	orderID := uint(order["id"].(float64))

	t.Run("List", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/user/orders", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, float64(1), decode(t, w)["count"])
	})

	t.Run("Get", func(t *testing.T) {
		w := env.do(t, http.MethodGet, fmt.Sprintf("/user/orders/%d", orderID), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, order["order_number"], decode(t, w)["order"].(map[string]interface{})["order_number"])
	})

	t.Run("OtherUsersOrderIsHidden", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/guest/orders", orderBody(item(rose.ID, 1)), session("sess-other"))
		require.Equal(t, http.StatusCreated, w.Code)
		guestOrderID := uint(decode(t, w)["order"].(map[string]interface{})["id"].(float64))

		w = env.do(t, http.MethodGet, fmt.Sprintf("/user/orders/%d", guestOrderID), nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.OrderNotFound, decode(t, w)["error"])
	})

	t.Run("GuestCannotList", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/guest/orders", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
