package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/internal/websocket"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"github.com/petalhouse/petalhouse-backend/pkg/util"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	defaultOrderPageSize = 50
	maxOrderPageSize     = 500
)

// Principal is the caller identity supplied by the auth middleware.
type Principal struct {
	UserID    *uint
	SessionID string
	Role      model.UserRole
}

func (p Principal) Registered() bool {
	return p.UserID != nil
}

func (p Principal) CartOwner() repository.CartOwner {
	if p.UserID != nil {
		return repository.CartOwner{UserID: p.UserID}
	}
	return repository.CartOwner{SessionID: p.SessionID}
}

type CreateOrderInput struct {
	Guest           model.GuestInfo
	RecipientName   string
	RecipientPhone  string
	DeliveryAddress string
	DeliveryNote    string
	PaymentMethod   string
	Items           []LineInput
	// FromCart takes the lines from the caller's cart and empties it once
	// the order exists.
	FromCart bool
}

// FeedPublisher receives admin live-feed events.
type FeedPublisher interface {
	Publish(event websocket.Event)
}

type OrderServiceConfig struct {
	OwnerEmail        string
	LowStockThreshold int
}

type OrderService interface {
	CreateOrder(ctx context.Context, principal Principal, input CreateOrderInput) (*model.Order, error)
	GetOrder(ctx context.Context, orderID uint) (*model.Order, error)
	GetUserOrder(ctx context.Context, userID, orderID uint) (*model.Order, error)
	ListUserOrders(ctx context.Context, userID uint) ([]model.Order, error)
	ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error)
}

type orderService struct {
	orderRepo   repository.OrderRepository
	userRepo    repository.UserRepository
	ledger      StockLedger
	carts       CartService
	compensator CompensationService
	notifier    Notifier
	feed        FeedPublisher
	lines       lineResolver
	cfg         OrderServiceConfig
	now         func() time.Time
	// async runs post-commit notifications.
	async func(func())
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	ledger StockLedger,
	carts CartService,
	compensator CompensationService,
	notifier Notifier,
	feed FeedPublisher,
	cfg OrderServiceConfig,
) OrderService {
	return &orderService{
		orderRepo:   orderRepo,
		userRepo:    userRepo,
		ledger:      ledger,
		carts:       carts,
		compensator: compensator,
		notifier:    notifier,
		feed:        feed,
		lines:       lineResolver{productRepo: productRepo},
		cfg:         cfg,
		now:         time.Now,
		async:       func(f func()) { go f() },
	}
}

func validateCreateOrder(principal Principal, input CreateOrderInput) error {
	verr := &ValidationError{}
	if strings.TrimSpace(input.RecipientName) == "" {
		verr.add("recipient_name", "is required")
	}
	if strings.TrimSpace(input.RecipientPhone) == "" {
		verr.add("recipient_phone", "is required")
	}
	if strings.TrimSpace(input.DeliveryAddress) == "" {
		verr.add("delivery_address", "is required")
	}
	if !principal.Registered() {
		if strings.TrimSpace(input.Guest.Name) == "" {
			verr.add("guest.name", "is required for guest orders")
		}
		if strings.TrimSpace(input.Guest.Phone) == "" {
			verr.add("guest.phone", "is required for guest orders")
		}
	}
	if input.FromCart && len(input.Items) > 0 {
		verr.add("items", "must be empty when ordering from the cart")
	}
	if !input.FromCart && len(input.Items) == 0 {
		verr.add("items", "must not be empty")
	}
	return verr.orNil()
}

func newOrderNumber(now time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("PH%s-%s", now.Format("20060102"), id[:10])
}

func (s *orderService) CreateOrder(ctx context.Context, principal Principal, input CreateOrderInput) (*model.Order, error) {
	logger.Info("Creating order", map[string]interface{}{
		"user_id":   principal.UserID,
		"guest":     !principal.Registered(),
		"items":     len(input.Items),
		"from_cart": input.FromCart,
	})

	if err := validateCreateOrder(principal, input); err != nil {
		logger.Warn("Order rejected: invalid input", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	requested := input.Items
	if input.FromCart {
		lines, err := s.carts.CheckoutLines(ctx, principal.CartOwner())
		if err != nil {
			if errors.Is(err, ErrEmptyCart) {
				return nil, newValidationError("items", "cart is empty")
			}
			return nil, err
		}
		requested = lines
	}

	userID, err := s.resolveIdentity(ctx, principal, input.Guest)
	if err != nil {
		return nil, err
	}

	lines, err := s.checkAvailability(ctx, requested)
	if err != nil {
		return nil, err
	}

	items, total := BuildOrderItems(lines)
	now := s.now()
	order := &model.Order{
		OrderNumber:     newOrderNumber(now),
		UserID:          userID,
		RecipientName:   strings.TrimSpace(input.RecipientName),
		RecipientPhone:  strings.TrimSpace(input.RecipientPhone),
		DeliveryAddress: strings.TrimSpace(input.DeliveryAddress),
		DeliveryNote:    input.DeliveryNote,
		PaymentMethod:   input.PaymentMethod,
		TotalAmount:     total,
		Status:          model.OrderStatusPending,
		Items:           items,
		StatusHistory:   []model.OrderStatusHistory{{Status: model.OrderStatusPending, ChangedAt: now}},
	}
	if !principal.Registered() {
		order.Guest = input.Guest
	}

	claims := claimsForItems(items)
	deducted := deductAll(ctx, s.ledger, claims)
	if !deducted.ok() {
		s.compensator.Compensate(context.WithoutCancel(ctx), "order_deduction_failed", order.OrderNumber, deducted.Deducted)
		logger.Warn("Order rejected: stock deduction failed", map[string]interface{}{
			"order_number": order.OrderNumber,
			"shortfalls":   deducted.Shortfalls,
		})
		return nil, deducted.err()
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		pending := s.compensator.Compensate(context.WithoutCancel(ctx), "order_persist_failed", order.OrderNumber, deducted.Deducted)
		logger.Error("Failed to persist order, stock compensated", err, map[string]interface{}{
			"order_number":          order.OrderNumber,
			"pending_compensations": pending,
		})
		return nil, persistenceError("create order", err)
	}

	logger.Info("Order created successfully", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
		"item_count":   len(order.Items),
	})

	if input.FromCart {
		if _, err := s.carts.Clear(ctx, principal.CartOwner()); err != nil {
			logger.Error("Failed to clear cart after order", err, map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}

	if stored, err := s.orderRepo.FindByID(ctx, order.ID); err == nil {
		order = stored
	} else {
		logger.Error("Failed to reload created order", err, map[string]interface{}{
			"order_id": order.ID,
		})
	}

	principalType := PrincipalRegistered
	if !principal.Registered() {
		principalType = PrincipalGuest
	}
	notifyCtx := context.WithoutCancel(ctx)
	snapshot := *order
	s.async(func() {
		s.dispatchNotifications(notifyCtx, &snapshot, principalType, claims)
	})

	return order, nil
}

// resolveIdentity returns the user the order belongs to, if any. A guest who
// leaves an email gets a guest account so later orders group together; an
// email that already belongs to a real account is not attached.
func (s *orderService) resolveIdentity(ctx context.Context, principal Principal, guest model.GuestInfo) (*uint, error) {
	if principal.Registered() {
		user, err := s.userRepo.FindByID(ctx, *principal.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, newValidationError("user", "account does not exist")
			}
			return nil, persistenceError("load user", err)
		}
		return &user.ID, nil
	}

	email := strings.ToLower(strings.TrimSpace(guest.Email))
	if email == "" {
		return nil, nil
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		if user.IsGuest() {
			return &user.ID, nil
		}
		logger.Info("Guest email belongs to a registered account, not attaching", map[string]interface{}{
			"user_id": user.ID,
		})
		return nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, persistenceError("load guest user", err)
	}

	hash, err := util.GuestPasswordHash()
	if err != nil {
		return nil, err
	}
	created := &model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(guest.Name),
		Phone:        strings.TrimSpace(guest.Phone),
		Role:         model.RoleGuest,
	}
	if err := s.userRepo.Create(ctx, created); err != nil {
		// Another order may have created the same guest in the meantime.
		if existing, findErr := s.userRepo.FindByEmail(ctx, email); findErr == nil && existing.IsGuest() {
			return &existing.ID, nil
		}
		logger.Warn("Could not create guest account, continuing without it", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, nil
	}

	logger.Info("Guest account created", map[string]interface{}{
		"user_id": created.ID,
	})
	return &created.ID, nil
}

// checkAvailability resolves every line concurrently and fails with the full
// list of shortfalls when any product cannot cover the requested quantity.
func (s *orderService) checkAvailability(ctx context.Context, inputs []LineInput) ([]ResolvedLine, error) {
	lines := make([]ResolvedLine, len(inputs))
	g, gctx := errgroup.WithContext(ctx)
	for i, in := range inputs {
		g.Go(func() error {
			line, err := s.lines.resolve(gctx, in)
			if err != nil {
				return err
			}
			lines[i] = line
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Warn("Order rejected: line could not be resolved", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	demand := make(map[uint]int)
	products := make(map[uint]*model.Product)
	for _, line := range lines {
		demand[line.Product.ID] += line.Quantity
		products[line.Product.ID] = line.Product
	}

	var shortfalls []Shortfall
	for id, qty := range demand {
		if p := products[id]; p.Quantity < qty {
			shortfalls = append(shortfalls, Shortfall{
				ProductID: id,
				Name:      p.Name,
				Requested: qty,
				Available: p.Quantity,
			})
		}
	}
	if len(shortfalls) > 0 {
		err := newShortfallError(shortfalls)
		logger.Warn("Order rejected: insufficient product quantity", map[string]interface{}{
			"shortfalls": err.Shortfalls,
		})
		return nil, err
	}
	return lines, nil
}

func (s *orderService) dispatchNotifications(ctx context.Context, order *model.Order, principalType PrincipalType, claims []stockClaim) {
	s.publish(websocket.EventOrderCreated, map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
		"status":       order.Status,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.notifier.SendOrderEmail(ctx, order, principalType); err != nil {
			logger.Error("Failed to send order email", err, map[string]interface{}{
				"order_id": order.ID,
			})
			return
		}
		if err := s.orderRepo.MarkEmailSent(ctx, order.ID, s.now()); err != nil {
			logger.Error("Failed to record order email", err, map[string]interface{}{
				"order_id": order.ID,
			})
		}
	}()

	for _, claim := range claims {
		s.warnIfLow(ctx, claim.ProductID, claim.Name)
	}
	wg.Wait()
}

// warnIfLow sends a low-stock warning when the product is down to between 1
// and the configured threshold.
func (s *orderService) warnIfLow(ctx context.Context, productID uint, name string) {
	available, err := s.ledger.Available(ctx, productID)
	if err != nil {
		logger.Error("Failed to read stock for low stock check", err, map[string]interface{}{
			"product_id": productID,
		})
		return
	}
	if available < 1 || available > s.cfg.LowStockThreshold {
		return
	}

	product := &model.Product{ID: productID, Name: name, Quantity: available}
	if err := s.notifier.SendLowStockWarning(ctx, product, s.cfg.OwnerEmail); err != nil {
		logger.Error("Failed to send low stock warning", err, map[string]interface{}{
			"product_id": productID,
		})
	}
	s.publish(websocket.EventLowStock, map[string]interface{}{
		"product_id": productID,
		"name":       name,
		"quantity":   available,
	})
}

func (s *orderService) publish(eventType string, data interface{}) {
	if s.feed == nil {
		return
	}
	s.feed.Publish(websocket.Event{Type: eventType, Data: data, At: s.now()})
}

func (s *orderService) GetOrder(ctx context.Context, orderID uint) (*model.Order, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Order not found", map[string]interface{}{
				"order_id": orderID,
			})
			return nil, ErrOrderNotFound
		}
		return nil, persistenceError("load order", err)
	}
	return order, nil
}

func (s *orderService) GetUserOrder(ctx context.Context, userID, orderID uint) (*model.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID == nil || *order.UserID != userID {
		logger.Warn("Order does not belong to user", map[string]interface{}{
			"order_id": orderID,
			"user_id":  userID,
		})
		return nil, ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID uint) ([]model.Order, error) {
	orders, err := s.orderRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, persistenceError("list user orders", err)
	}
	logger.Debug("User orders fetched", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})
	return orders, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]model.Order, int64, error) {
	if filter.Status != "" && !knownStatus(filter.Status) {
		return nil, 0, newValidationError("status", fmt.Sprintf("unknown status %q", filter.Status))
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultOrderPageSize
	}
	if filter.Limit > maxOrderPageSize {
		filter.Limit = maxOrderPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	orders, total, err := s.orderRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, persistenceError("list orders", err)
	}
	return orders, total, nil
}
