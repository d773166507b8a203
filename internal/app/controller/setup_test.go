package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	"github.com/petalhouse/petalhouse-backend/internal/db"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
	"github.com/petalhouse/petalhouse-backend/pkg/mail"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "controller-test-secret"

type nopSender struct{}

func (nopSender) Send(ctx context.Context, msg mail.Message) error { return nil }

type testEnv struct {
	db          *gorm.DB
	router      *gin.Engine
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	products    service.ProductService
	carts       service.CartService
	orders      service.OrderService
	lifecycle   service.OrderLifecycle
	auth        service.AuthService
}

func setupControllerTest(t *testing.T) *testEnv {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	env := &testEnv{
		db:          testDB,
		productRepo: repository.NewProductRepository(testDB),
		orderRepo:   repository.NewOrderRepository(testDB),
		userRepo:    repository.NewUserRepository(testDB),
	}
	cartRepo := repository.NewCartRepository(testDB)
	ledger := service.NewStockLedger(env.productRepo)
	compensator := service.NewCompensationService(repository.NewCompensationRepository(testDB), ledger, 3)
	notifier := service.NewMailNotifier(nopSender{}, "owner@petalhouse.test", nil, time.Hour)

	env.products = service.NewProductService(env.productRepo, ledger)
	env.carts = service.NewCartService(cartRepo, env.productRepo, 24*time.Hour)
	env.orders = service.NewOrderService(
		env.orderRepo, env.userRepo, env.productRepo, ledger, env.carts, compensator, notifier, nil,
		service.OrderServiceConfig{OwnerEmail: "owner@petalhouse.test", LowStockThreshold: 3},
	)
	env.lifecycle = service.NewOrderLifecycle(env.orderRepo, ledger, compensator, nil)
	env.auth = service.NewAuthService(env.userRepo, env.carts, testJWTSecret, 15*time.Minute, time.Hour)

	gin.SetMode(gin.TestMode)
	env.router = gin.New()
	env.router.Use(middleware.LoggingMiddleware())
	return env
}

// asUser stands in for the auth middleware.
func asUser(userID uint, role model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID)
		c.Set(middleware.UserRoleKey, role)
		c.Next()
	}
}

func (env *testEnv) product(t *testing.T, name string, price float64, quantity int) *model.Product {
	p := &model.Product{
		Name:     name,
		Price:    price,
		Quantity: quantity,
		Kind:     model.ProductKindBouquet,
		IsActive: true,
	}
	require.NoError(t, env.productRepo.Create(context.Background(), p))
	return p
}

func (env *testEnv) stock(t *testing.T, productID uint) int {
	qty, err := env.productRepo.GetQuantity(context.Background(), productID)
	require.NoError(t, err)
	return qty
}

func (env *testEnv) user(t *testing.T, email string) *model.User {
	u := &model.User{Email: email, PasswordHash: "hash", Name: "Customer", Role: model.RoleUser}
	require.NoError(t, env.userRepo.Create(context.Background(), u))
	return u
}

func (env *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func session(id string) map[string]string {
	return map[string]string{middleware.SessionHeader: id}
}
