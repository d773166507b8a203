package controller

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerCartRoutes(env *testEnv, group *gin.RouterGroup) {
	ctrl := NewCartController(env.carts)
	group.GET("", ctrl.GetCart)
	group.POST("/items", ctrl.AddItem)
	group.PUT("/items/:id", ctrl.UpdateItem)
	group.DELETE("/items/:id", ctrl.RemoveItem)
	group.DELETE("", ctrl.ClearCart)
	group.POST("/merge", ctrl.MergeGuestCart)
}

func setupCartControllerTest(t *testing.T) (*testEnv, *model.User) {
	env := setupControllerTest(t)
	user := env.user(t, "cart@example.com")

	registerCartRoutes(env, env.router.Group("/guest/cart", middleware.Session()))
	registerCartRoutes(env, env.router.Group("/user/cart", middleware.Session(), asUser(user.ID, model.RoleUser)))
	return env, user
}

func cartOf(t *testing.T, response map[string]interface{}) map[string]interface{} {
	t.Helper()
	cart, ok := response["cart"].(map[string]interface{})
	require.True(t, ok, "response has no cart")
	return cart
}

func firstItemID(t *testing.T, cart map[string]interface{}) uint {
	t.Helper()
	items := cart["items"].([]interface{})
	require.NotEmpty(t, items)
	return uint(items[0].(map[string]interface{})["id"].(float64))
}

func TestCartController_GuestAddAndGet(t *testing.T) {
	env, _ := setupCartControllerTest(t)
	rose := env.product(t, "Rose", 12000, 10)

	w := env.do(t, http.MethodPost, "/guest/cart/items", map[string]interface{}{
		"product_id": rose.ID,
		"quantity":   2,
	}, session("sess-guest"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "sess-guest", w.Header().Get(middleware.SessionHeader))

	w = env.do(t, http.MethodPost, "/guest/cart/items", map[string]interface{}{
		"product_id": rose.ID,
		"quantity":   1,
	}, session("sess-guest"))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/guest/cart", nil, session("sess-guest"))
	require.Equal(t, http.StatusOK, w.Code)

	cart := cartOf(t, decode(t, w))
	assert.Equal(t, float64(36000), cart["total"])
	assert.Equal(t, float64(3), cart["total_items"])
	assert.Len(t, cart["items"], 1, "identical lines merge")
}

func TestCartController_IssuesSession(t *testing.T) {
	env, _ := setupCartControllerTest(t)

	w := env.do(t, http.MethodGet, "/guest/cart", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.SessionHeader))
	assert.Empty(t, cartOf(t, decode(t, w))["items"])
}

func TestCartController_AddItem_Errors(t *testing.T) {
	env, _ := setupCartControllerTest(t)
	rose := env.product(t, "Rose", 12000, 2)

	tests := []struct {
		name     string
		body     map[string]interface{}
		wantCode int
		wantErr  string
	}{
		{
			name:     "MissingQuantity",
			body:     map[string]interface{}{"product_id": rose.ID},
			wantCode: http.StatusBadRequest,
			wantErr:  apperrors.ValidationInvalidInput,
		},
		{
			name:     "UnknownProduct",
			body:     map[string]interface{}{"product_id": 9999, "quantity": 1},
			wantCode: http.StatusNotFound,
			wantErr:  apperrors.ProductNotFound,
		},
		{
			name:     "InsufficientStock",
			body:     map[string]interface{}{"product_id": rose.ID, "quantity": 3},
			wantCode: http.StatusBadRequest,
			wantErr:  apperrors.StockInsufficient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/guest/cart/items", tt.body, session("sess-errors"))
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantErr, decode(t, w)["error"])
		})
	}

	t.Run("ShortfallPayload", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/guest/cart/items",
			map[string]interface{}{"product_id": rose.ID, "quantity": 5}, session("sess-errors"))
		require.Equal(t, http.StatusBadRequest, w.Code)

		shortfalls := decode(t, w)["shortfalls"].([]interface{})
		require.Len(t, shortfalls, 1)
		entry := shortfalls[0].(map[string]interface{})
		assert.Equal(t, "Rose", entry["name"])
		assert.Equal(t, float64(5), entry["requested"])
		assert.Equal(t, float64(2), entry["available"])
	})
}

func TestCartController_UpdateAndRemove(t *testing.T) {
	env, _ := setupCartControllerTest(t)
	rose := env.product(t, "Rose", 12000, 10)

	w := env.do(t, http.MethodPost, "/user/cart/items",
		map[string]interface{}{"product_id": rose.ID, "quantity": 1}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	itemID := firstItemID(t, cartOf(t, decode(t, w)))

	t.Run("UpdateQuantity", func(t *testing.T) {
		w := env.do(t, http.MethodPut, fmt.Sprintf("/user/cart/items/%d", itemID),
			map[string]interface{}{"quantity": 4, "item_type": "product"}, nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(48000), cartOf(t, decode(t, w))["total"])
	})

	t.Run("UpdateZeroRejected", func(t *testing.T) {
		w := env.do(t, http.MethodPut, fmt.Sprintf("/user/cart/items/%d", itemID),
			map[string]interface{}{"quantity": 0}, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("WrongItemType", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, fmt.Sprintf("/user/cart/items/%d?item_type=addon", itemID), nil, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, apperrors.CartItemNotFound, decode(t, w)["error"])
	})

	t.Run("InvalidItemType", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, fmt.Sprintf("/user/cart/items/%d?item_type=gift", itemID), nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("InvalidID", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, "/user/cart/items/abc", nil, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, apperrors.ValidationInvalidID, decode(t, w)["error"])
	})

	t.Run("Remove", func(t *testing.T) {
		w := env.do(t, http.MethodDelete, fmt.Sprintf("/user/cart/items/%d", itemID), nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		cart := cartOf(t, decode(t, w))
		assert.Empty(t, cart["items"])
		assert.Equal(t, float64(0), cart["total"])
	})
}

func TestCartController_Clear(t *testing.T) {
	env, _ := setupCartControllerTest(t)
	rose := env.product(t, "Rose", 12000, 10)
	tulip := env.product(t, "Tulip", 8000, 10)

	for _, id := range []uint{rose.ID, tulip.ID} {
		w := env.do(t, http.MethodPost, "/user/cart/items",
			map[string]interface{}{"product_id": id, "quantity": 1}, nil)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := env.do(t, http.MethodDelete, "/user/cart", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, cartOf(t, decode(t, w))["items"])
}

func TestCartController_MergeGuestCart(t *testing.T) {
	env, _ := setupCartControllerTest(t)
	rose := env.product(t, "Rose", 12000, 10)

	w := env.do(t, http.MethodPost, "/guest/cart/items",
		map[string]interface{}{"product_id": rose.ID, "quantity": 2}, session("sess-merge"))
	require.Equal(t, http.StatusOK, w.Code)

	t.Run("RequiresUser", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/guest/cart/merge", nil, session("sess-merge"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Success", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/user/cart/merge", nil, session("sess-merge"))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		cart := cartOf(t, decode(t, w))
		assert.Equal(t, float64(2), cart["total_items"])

		w = env.do(t, http.MethodGet, "/guest/cart", nil, session("sess-merge"))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, cartOf(t, decode(t, w))["items"], "guest cart is gone after merge")
	})
}
