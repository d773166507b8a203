package service

import (
	"context"
	"errors"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/pkg/logger"
	"gorm.io/gorm"
)

var ErrEmptyCart = errors.New("cart is empty")

type CartService interface {
	AddItem(ctx context.Context, owner repository.CartOwner, input LineInput) (*model.Cart, error)
	UpdateItemQuantity(ctx context.Context, owner repository.CartOwner, itemID uint, quantity int, itemType model.CartItemType) (*model.Cart, error)
	RemoveItem(ctx context.Context, owner repository.CartOwner, itemID uint, itemType model.CartItemType) (*model.Cart, error)
	Clear(ctx context.Context, owner repository.CartOwner) (*model.Cart, error)
	Summary(ctx context.Context, owner repository.CartOwner) (*model.Cart, error)
	// CheckoutLines turns the cart into order input.
	CheckoutLines(ctx context.Context, owner repository.CartOwner) ([]LineInput, error)
	// Merge folds a guest session's cart into the user's cart and removes it.
	Merge(ctx context.Context, sessionID string, userID uint) (*model.Cart, error)
	// PurgeExpiredGuestCarts deletes guest carts idle past their TTL.
	PurgeExpiredGuestCarts(ctx context.Context) (int64, error)
}

type cartService struct {
	cartRepo     repository.CartRepository
	productRepo  repository.ProductRepository
	lines        lineResolver
	guestCartTTL time.Duration
	now          func() time.Time
}

func NewCartService(
	cartRepo repository.CartRepository,
	productRepo repository.ProductRepository,
	guestCartTTL time.Duration,
) CartService {
	return &cartService{
		cartRepo:     cartRepo,
		productRepo:  productRepo,
		lines:        lineResolver{productRepo: productRepo},
		guestCartTTL: guestCartTTL,
		now:          time.Now,
	}
}

func validateOwner(owner repository.CartOwner) error {
	hasUser := owner.UserID != nil
	hasSession := owner.SessionID != ""
	if hasUser == hasSession {
		return newValidationError("owner", "exactly one of user or session must be set")
	}
	return nil
}

func validItemType(itemType model.CartItemType) bool {
	return itemType == model.CartItemTypeProduct || itemType == model.CartItemTypeAddon
}

func (s *cartService) expired(cart *model.Cart) bool {
	return cart.UserID == nil && cart.ExpiresAt != nil && cart.ExpiresAt.Before(s.now())
}

// touch prepares a locked cart for a write: an expired guest cart starts
// over empty and every guest write pushes the expiry forward.
func (s *cartService) touch(ctx context.Context, repo repository.CartRepository, cart *model.Cart) error {
	if cart.UserID != nil {
		return nil
	}
	if s.expired(cart) {
		logger.Info("Guest cart expired, starting over", map[string]interface{}{
			"cart_id": cart.ID,
		})
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
	}
	expiresAt := s.now().Add(s.guestCartTTL)
	cart.ExpiresAt = &expiresAt
	return nil
}

// refresh reloads the items and stores totals derived from them.
func refresh(ctx context.Context, repo repository.CartRepository, cart *model.Cart) error {
	if err := repo.LoadItems(ctx, cart); err != nil {
		return err
	}
	cart.Recalculate()
	return repo.SaveTotals(ctx, cart)
}

func emptyCart() *model.Cart {
	return &model.Cart{Items: []model.CartItem{}}
}

// applyLine copies the current catalog facts of line onto item.
func applyLine(item *model.CartItem, line ResolvedLine) {
	p := line.Product
	item.ItemType = line.ItemType
	item.ProductID = p.ID
	item.FlowerType = line.Variant.FlowerType
	item.Color = line.Variant.Color
	item.UnitPrice = p.Price
	item.ItemTotal = line.ItemTotal()
	item.ProductName = p.Name
	item.Brand = p.Brand
	item.ImageURL = p.ImageURL
	item.WrapperID = nil
	item.WrapperName = ""
	item.WrapperPrice = 0
	if line.Wrapper != nil {
		id := line.Wrapper.ID
		item.WrapperID = &id
		item.WrapperName = line.Wrapper.Name
		item.WrapperPrice = line.Wrapper.Price
	}
	item.Addons = nil
	for _, a := range line.Addons {
		item.Addons = append(item.Addons, model.CartItemAddon{
			ProductID: a.Product.ID,
			Name:      a.Product.Name,
			Price:     a.Product.Price,
			Quantity:  a.Quantity,
		})
	}
}

// upsertLine adds quantity to the line with the same identity, or creates it.
// The existing line's snapshot is refreshed to current catalog values.
func upsertLine(ctx context.Context, repo repository.CartRepository, cartID uint, line ResolvedLine, quantity int) (*model.CartItem, error) {
	key := line.LineKey()
	existing, err := repo.FindItemByLineKey(ctx, cartID, key)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if existing != nil {
		existing.Quantity += quantity
		applyLine(existing, line)
		if err := repo.UpdateItem(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	item := &model.CartItem{CartID: cartID, LineKey: key, Quantity: quantity}
	applyLine(item, line)
	if err := repo.CreateItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *cartService) AddItem(ctx context.Context, owner repository.CartOwner, input LineInput) (*model.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	logger.Info("Adding item to cart", withFields(owner.Fields(), map[string]interface{}{
		"product_id": input.ProductID,
		"quantity":   input.Quantity,
		"wrapper_id": input.WrapperID,
		"addons":     len(input.Addons),
	}))

	line, err := s.lines.resolve(ctx, input)
	if err != nil {
		logger.Warn("Cannot add to cart: line rejected", withFields(owner.Fields(), map[string]interface{}{
			"product_id": input.ProductID,
			"error":      err.Error(),
		}))
		return nil, err
	}

	if line.Product.Quantity < input.Quantity {
		logger.Warn("Cannot add to cart: insufficient product stock", withFields(owner.Fields(), map[string]interface{}{
			"product_id": line.Product.ID,
			"requested":  input.Quantity,
			"available":  line.Product.Quantity,
		}))
		return nil, &InsufficientStockError{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Requested: input.Quantity,
			Available: line.Product.Quantity,
		}
	}

	var cart *model.Cart
	err = s.cartRepo.Transaction(ctx, func(repo repository.CartRepository) error {
		locked, err := repo.FindOrCreateForUpdate(ctx, owner)
		if err != nil {
			return err
		}
		if err := s.touch(ctx, repo, locked); err != nil {
			return err
		}

		item, err := upsertLine(ctx, repo, locked.ID, line, input.Quantity)
		if err != nil {
			return err
		}
		if item.Quantity > line.Product.Quantity {
			return &InsufficientStockError{
				ProductID: line.Product.ID,
				Name:      line.Product.Name,
				Requested: item.Quantity,
				Available: line.Product.Quantity,
			}
		}

		if err := refresh(ctx, repo, locked); err != nil {
			return err
		}
		cart = locked
		return nil
	})
	if err != nil {
		var stockErr *InsufficientStockError
		if errors.As(err, &stockErr) {
			logger.Warn("Cannot add to cart: merged quantity exceeds stock", withFields(owner.Fields(), map[string]interface{}{
				"product_id": stockErr.ProductID,
				"requested":  stockErr.Requested,
				"available":  stockErr.Available,
			}))
			return nil, err
		}
		logger.Error("Failed to add item to cart", err, owner.Fields())
		return nil, persistenceError("add cart item", err)
	}

	logger.Info("Item added to cart", withFields(owner.Fields(), map[string]interface{}{
		"cart_id":     cart.ID,
		"total":       cart.Total,
		"total_items": cart.TotalItems,
	}))
	return cart, nil
}

// findItem returns the owner's live cart and the item with the given id and
// type.
func (s *cartService) findItem(ctx context.Context, owner repository.CartOwner, itemID uint, itemType model.CartItemType) (*model.Cart, *model.CartItem, error) {
	cart, err := s.cartRepo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrCartItemNotFound
		}
		return nil, nil, persistenceError("load cart", err)
	}
	if s.expired(cart) {
		return nil, nil, ErrCartItemNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID && cart.Items[i].ItemType == itemType {
			return cart, &cart.Items[i], nil
		}
	}
	return nil, nil, ErrCartItemNotFound
}

func (s *cartService) UpdateItemQuantity(ctx context.Context, owner repository.CartOwner, itemID uint, quantity int, itemType model.CartItemType) (*model.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	verr := &ValidationError{}
	if quantity < 1 {
		verr.add("quantity", "must be at least 1; remove the item instead")
	}
	if !validItemType(itemType) {
		verr.add("item_type", "must be product or addon")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	logger.Info("Updating cart item quantity", withFields(owner.Fields(), map[string]interface{}{
		"cart_item_id": itemID,
		"quantity":     quantity,
	}))

	cart, item, err := s.findItem(ctx, owner, itemID, itemType)
	if err != nil {
		logger.Warn("Cart item not found", withFields(owner.Fields(), map[string]interface{}{
			"cart_item_id": itemID,
			"item_type":    itemType,
		}))
		return nil, err
	}

	product, err := s.productRepo.FindByID(ctx, item.ProductID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, persistenceError("load product", err)
	}
	if !product.Purchasable() {
		return nil, ErrProductUnavailable
	}
	if product.Quantity < quantity {
		logger.Warn("Cannot update cart item: insufficient product stock", withFields(owner.Fields(), map[string]interface{}{
			"product_id": product.ID,
			"requested":  quantity,
			"available":  product.Quantity,
		}))
		return nil, &InsufficientStockError{
			ProductID: product.ID,
			Name:      product.Name,
			Requested: quantity,
			Available: product.Quantity,
		}
	}

	err = s.cartRepo.Transaction(ctx, func(repo repository.CartRepository) error {
		locked, err := repo.FindOrCreateForUpdate(ctx, owner)
		if err != nil {
			return err
		}
		if locked.ID != cart.ID {
			return ErrCartItemNotFound
		}
		ok, err := repo.UpdateItemQuantity(ctx, locked.ID, itemID, quantity)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartItemNotFound
		}
		if err := s.touch(ctx, repo, locked); err != nil {
			return err
		}
		if err := refresh(ctx, repo, locked); err != nil {
			return err
		}
		cart = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return nil, err
		}
		logger.Error("Failed to update cart item", err, owner.Fields())
		return nil, persistenceError("update cart item", err)
	}

	logger.Info("Cart item quantity updated", withFields(owner.Fields(), map[string]interface{}{
		"cart_item_id": itemID,
		"total":        cart.Total,
	}))
	return cart, nil
}

func (s *cartService) RemoveItem(ctx context.Context, owner repository.CartOwner, itemID uint, itemType model.CartItemType) (*model.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if !validItemType(itemType) {
		return nil, newValidationError("item_type", "must be product or addon")
	}

	logger.Info("Removing item from cart", withFields(owner.Fields(), map[string]interface{}{
		"cart_item_id": itemID,
	}))

	cart, _, err := s.findItem(ctx, owner, itemID, itemType)
	if err != nil {
		logger.Warn("Cart item not found", withFields(owner.Fields(), map[string]interface{}{
			"cart_item_id": itemID,
			"item_type":    itemType,
		}))
		return nil, err
	}

	err = s.cartRepo.Transaction(ctx, func(repo repository.CartRepository) error {
		locked, err := repo.FindOrCreateForUpdate(ctx, owner)
		if err != nil {
			return err
		}
		if locked.ID != cart.ID {
			return ErrCartItemNotFound
		}
		ok, err := repo.DeleteItem(ctx, locked.ID, itemID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrCartItemNotFound
		}
		if err := s.touch(ctx, repo, locked); err != nil {
			return err
		}
		if err := refresh(ctx, repo, locked); err != nil {
			return err
		}
		cart = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrCartItemNotFound) {
			return nil, err
		}
		logger.Error("Failed to remove cart item", err, owner.Fields())
		return nil, persistenceError("remove cart item", err)
	}

	logger.Info("Cart item removed", withFields(owner.Fields(), map[string]interface{}{
		"cart_item_id": itemID,
		"total":        cart.Total,
	}))
	return cart, nil
}

func (s *cartService) Clear(ctx context.Context, owner repository.CartOwner) (*model.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	logger.Info("Clearing cart", owner.Fields())

	cart, err := s.cartRepo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(), nil
		}
		return nil, persistenceError("load cart", err)
	}

	err = s.cartRepo.Transaction(ctx, func(repo repository.CartRepository) error {
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
		cart.Items = []model.CartItem{}
		cart.Recalculate()
		return repo.SaveTotals(ctx, cart)
	})
	if err != nil {
		logger.Error("Failed to clear cart", err, owner.Fields())
		return nil, persistenceError("clear cart", err)
	}

	logger.Info("Cart cleared", owner.Fields())
	return cart, nil
}

func (s *cartService) Summary(ctx context.Context, owner repository.CartOwner) (*model.Cart, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}

	logger.Debug("Fetching cart", owner.Fields())

	cart, err := s.cartRepo.FindByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(), nil
		}
		logger.Error("Failed to fetch cart", err, owner.Fields())
		return nil, persistenceError("load cart", err)
	}
	if s.expired(cart) {
		return emptyCart(), nil
	}
	if cart.Items == nil {
		cart.Items = []model.CartItem{}
	}
	cart.Recalculate()
	return cart, nil
}

func (s *cartService) CheckoutLines(ctx context.Context, owner repository.CartOwner) ([]LineInput, error) {
	cart, err := s.Summary(ctx, owner)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]LineInput, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, lineInputFromCartItem(item))
	}
	return lines, nil
}

func lineInputFromCartItem(item model.CartItem) LineInput {
	in := LineInput{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		Variant:   Variant{FlowerType: item.FlowerType, Color: item.Color},
		WrapperID: item.WrapperID,
	}
	for _, a := range item.Addons {
		in.Addons = append(in.Addons, AddonSelection{ProductID: a.ProductID, Quantity: a.Quantity})
	}
	return in
}

func (s *cartService) Merge(ctx context.Context, sessionID string, userID uint) (*model.Cart, error) {
	userOwner := repository.CartOwner{UserID: &userID}
	if sessionID == "" {
		return s.Summary(ctx, userOwner)
	}
	guestOwner := repository.CartOwner{SessionID: sessionID}

	logger.Info("Merging guest cart into user cart", map[string]interface{}{
		"user_id": userID,
	})

	guest, err := s.cartRepo.FindByOwner(ctx, guestOwner)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.Summary(ctx, userOwner)
		}
		return nil, persistenceError("load guest cart", err)
	}

	// Lines are re-resolved so the merged cart carries current prices.
	type mergeLine struct {
		line     ResolvedLine
		quantity int
	}
	var merged []mergeLine
	if !s.expired(guest) {
		for _, item := range guest.Items {
			line, err := s.lines.resolve(ctx, lineInputFromCartItem(item))
			if err == nil && line.Product.Quantity == 0 {
				err = &InsufficientStockError{ProductID: item.ProductID, Name: item.ProductName, Requested: item.Quantity}
			}
			if err != nil {
				logger.Warn("Dropping guest cart line during merge", map[string]interface{}{
					"user_id":    userID,
					"product_id": item.ProductID,
					"error":      err.Error(),
				})
				continue
			}
			merged = append(merged, mergeLine{line: line, quantity: item.Quantity})
		}
	}

	var cart *model.Cart
	err = s.cartRepo.Transaction(ctx, func(repo repository.CartRepository) error {
		locked, err := repo.FindOrCreateForUpdate(ctx, userOwner)
		if err != nil {
			return err
		}
		for _, m := range merged {
			item, err := upsertLine(ctx, repo, locked.ID, m.line, m.quantity)
			if err != nil {
				return err
			}
			if available := m.line.Product.Quantity; item.Quantity > available {
				logger.Warn("Merged cart line capped at available stock", map[string]interface{}{
					"user_id":    userID,
					"product_id": item.ProductID,
					"requested":  item.Quantity,
					"available":  available,
				})
				if _, err := repo.UpdateItemQuantity(ctx, locked.ID, item.ID, available); err != nil {
					return err
				}
			}
		}
		if err := repo.Delete(ctx, guest.ID); err != nil {
			return err
		}
		if err := refresh(ctx, repo, locked); err != nil {
			return err
		}
		cart = locked
		return nil
	})
	if err != nil {
		logger.Error("Failed to merge guest cart", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, persistenceError("merge cart", err)
	}

	logger.Info("Guest cart merged", map[string]interface{}{
		"user_id":     userID,
		"cart_id":     cart.ID,
		"lines":       len(merged),
		"total_items": cart.TotalItems,
	})
	return cart, nil
}

func (s *cartService) PurgeExpiredGuestCarts(ctx context.Context) (int64, error) {
	deleted, err := s.cartRepo.DeleteExpiredGuestCarts(ctx, s.now())
	if err != nil {
		return 0, persistenceError("purge guest carts", err)
	}
	if deleted > 0 {
		logger.Info("Expired guest carts purged", map[string]interface{}{
			"count": deleted,
		})
	}
	return deleted, nil
}

// withFields merges extra over base into a new map; neither argument is
// modified.
func withFields(base map[string]interface{}, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
