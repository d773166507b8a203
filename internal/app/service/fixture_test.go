package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/internal/db"
	"github.com/petalhouse/petalhouse-backend/internal/websocket"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingNotifier captures notifications instead of sending mail.
type recordingNotifier struct {
	mu        sync.Mutex
	orders    []string
	lowStock  []uint
	orderErr  error
	principal []PrincipalType
}

func (n *recordingNotifier) SendOrderEmail(ctx context.Context, order *model.Order, principalType PrincipalType) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.orderErr != nil {
		return n.orderErr
	}
	n.orders = append(n.orders, order.OrderNumber)
	n.principal = append(n.principal, principalType)
	return nil
}

func (n *recordingNotifier) SendLowStockWarning(ctx context.Context, product *model.Product, ownerEmail string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lowStock = append(n.lowStock, product.ID)
	return nil
}

func (n *recordingNotifier) orderMails() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.orders...)
}

func (n *recordingNotifier) lowStockWarnings() []uint {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]uint(nil), n.lowStock...)
}

type recordingFeed struct {
	mu     sync.Mutex
	events []websocket.Event
}

func (f *recordingFeed) Publish(event websocket.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func (f *recordingFeed) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	db          *gorm.DB
	productRepo repository.ProductRepository
	orderRepo   repository.OrderRepository
	cartRepo    repository.CartRepository
	userRepo    repository.UserRepository
	compRepo    repository.CompensationRepository
	ledger      StockLedger
	carts       CartService
	compensator CompensationService
	notifier    *recordingNotifier
	feed        *recordingFeed
	orders      *orderService
	lifecycle   *orderLifecycle
}

func newFixture(t *testing.T) *fixture {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	f := &fixture{
		db:          testDB,
		productRepo: repository.NewProductRepository(testDB),
		orderRepo:   repository.NewOrderRepository(testDB),
		cartRepo:    repository.NewCartRepository(testDB),
		userRepo:    repository.NewUserRepository(testDB),
		compRepo:    repository.NewCompensationRepository(testDB),
		notifier:    &recordingNotifier{},
		feed:        &recordingFeed{},
	}
	f.ledger = NewStockLedger(f.productRepo)
	f.carts = NewCartService(f.cartRepo, f.productRepo, 24*time.Hour)
	f.compensator = NewCompensationService(f.compRepo, f.ledger, 3)
	f.rebuild()
	return f
}

// rebuild wires the order services from the fixture's current parts, so a
// test can swap in a failing repository or ledger first.
func (f *fixture) rebuild() {
	f.orders = NewOrderService(
		f.orderRepo, f.userRepo, f.productRepo, f.ledger, f.carts, f.compensator,
		f.notifier, f.feed,
		OrderServiceConfig{OwnerEmail: "owner@petalhouse.test", LowStockThreshold: 3},
	).(*orderService)
	f.orders.async = func(fn func()) { fn() }
	f.lifecycle = NewOrderLifecycle(f.orderRepo, f.ledger, f.compensator, f.feed).(*orderLifecycle)
}

func (f *fixture) product(t *testing.T, name string, price float64, quantity int) *model.Product {
	return f.productOfKind(t, name, price, quantity, model.ProductKindBouquet)
}

func (f *fixture) productOfKind(t *testing.T, name string, price float64, quantity int, kind model.ProductKind) *model.Product {
	p := &model.Product{
		Name:     name,
		Price:    price,
		Quantity: quantity,
		Kind:     kind,
		IsActive: true,
	}
	require.NoError(t, f.productRepo.Create(context.Background(), p))
	return p
}

func (f *fixture) stock(t *testing.T, productID uint) int {
	qty, err := f.productRepo.GetQuantity(context.Background(), productID)
	require.NoError(t, err)
	return qty
}

func (f *fixture) user(t *testing.T, email string) *model.User {
	u := &model.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Customer",
		Role:         model.RoleUser,
	}
	require.NoError(t, f.userRepo.Create(context.Background(), u))
	return u
}

func registered(userID uint) Principal {
	return Principal{UserID: &userID, Role: model.RoleUser}
}

func guest(sessionID string) Principal {
	return Principal{SessionID: sessionID}
}

func orderInput(items ...LineInput) CreateOrderInput {
	return CreateOrderInput{
		Guest:           model.GuestInfo{Name: "Guest", Phone: "010-1234-5678"},
		RecipientName:   "Park",
		RecipientPhone:  "010-9876-5432",
		DeliveryAddress: "Seoul, Mapo-gu 1",
		PaymentMethod:   "bank_transfer",
		Items:           items,
	}
}

func line(productID uint, qty int) LineInput {
	return LineInput{ProductID: productID, Quantity: qty}
}
