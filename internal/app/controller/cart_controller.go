package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
)

type CartController struct {
	cartService service.CartService
}

func NewCartController(cartService service.CartService) *CartController {
	return &CartController{
		cartService: cartService,
	}
}

type VariantRequest struct {
	FlowerType string `json:"flower_type"`
	Color      string `json:"color"`
}

type AddonRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// LineRequest is one line sent to the cart or straight to checkout.
type LineRequest struct {
	ProductID uint           `json:"product_id" binding:"required"`
	Quantity  int            `json:"quantity" binding:"required,gt=0"`
	Variant   VariantRequest `json:"variant"`
	WrapperID *uint          `json:"wrapper_id"`
	Addons    []AddonRequest `json:"addons" binding:"dive"`
}

func (r LineRequest) toInput() service.LineInput {
	input := service.LineInput{
		ProductID: r.ProductID,
		Quantity:  r.Quantity,
		Variant:   service.Variant{FlowerType: r.Variant.FlowerType, Color: r.Variant.Color},
		WrapperID: r.WrapperID,
	}
	for _, a := range r.Addons {
		input.Addons = append(input.Addons, service.AddonSelection{ProductID: a.ProductID, Quantity: a.Quantity})
	}
	return input
}

type UpdateCartItemRequest struct {
	Quantity int    `json:"quantity" binding:"required,gt=0"`
	ItemType string `json:"item_type" binding:"omitempty,oneof=product addon"`
}

func itemTypeOrDefault(itemType string) model.CartItemType {
	if itemType == "" {
		return model.CartItemTypeProduct
	}
	return model.CartItemType(itemType)
}

func respondCart(c *gin.Context, cart *model.Cart) {
	c.JSON(http.StatusOK, gin.H{
		"cart": cart,
	})
}

// GetCart returns the caller's cart
// GET /api/v1/cart
func (ctrl *CartController) GetCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	owner := principalFrom(c).CartOwner()

	cart, err := ctrl.cartService.Summary(c.Request.Context(), owner)
	if err != nil {
		respondServiceError(c, err, "fetch cart")
		return
	}

	log.Info("Cart fetched successfully", map[string]interface{}{
		"items": len(cart.Items),
		"total": cart.Total,
	})
	respondCart(c, cart)
}

// AddItem adds a line to the cart, merging with an identical line
// POST /api/v1/cart/items
func (ctrl *CartController) AddItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req LineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid add to cart request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
		return
	}

	log.Debug("Adding item to cart", map[string]interface{}{
		"product_id": req.ProductID,
		"quantity":   req.Quantity,
		"wrapper_id": req.WrapperID,
		"addons":     len(req.Addons),
	})

	cart, err := ctrl.cartService.AddItem(c.Request.Context(), principalFrom(c).CartOwner(), req.toInput())
	if err != nil {
		respondServiceError(c, err, "add cart item")
		return
	}

	log.Info("Item added to cart", map[string]interface{}{
		"product_id": req.ProductID,
		"total":      cart.Total,
	})
	respondCart(c, cart)
}

// UpdateItem sets the quantity of a cart line
// PUT /api/v1/cart/items/:id
func (ctrl *CartController) UpdateItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid cart update request", map[string]interface{}{
			"cart_item_id": itemID,
			"error":        err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
		return
	}

	cart, err := ctrl.cartService.UpdateItemQuantity(c.Request.Context(), principalFrom(c).CartOwner(),
		itemID, req.Quantity, itemTypeOrDefault(req.ItemType))
	if err != nil {
		respondServiceError(c, err, "update cart item")
		return
	}

	log.Info("Cart item updated", map[string]interface{}{
		"cart_item_id": itemID,
		"quantity":     req.Quantity,
	})
	respondCart(c, cart)
}

// RemoveItem deletes a cart line
// DELETE /api/v1/cart/items/:id?item_type=
func (ctrl *CartController) RemoveItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	itemID, ok := parseID(c, "id")
	if !ok {
		return
	}

	itemType := c.Query("item_type")
	if itemType != "" && itemType != string(model.CartItemTypeProduct) && itemType != string(model.CartItemTypeAddon) {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "잘못된 항목 유형입니다")
		return
	}

	cart, err := ctrl.cartService.RemoveItem(c.Request.Context(), principalFrom(c).CartOwner(),
		itemID, itemTypeOrDefault(itemType))
	if err != nil {
		respondServiceError(c, err, "delete cart item")
		return
	}

	log.Info("Cart item removed", map[string]interface{}{
		"cart_item_id": itemID,
	})
	respondCart(c, cart)
}

// ClearCart empties the cart
// DELETE /api/v1/cart
func (ctrl *CartController) ClearCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	cart, err := ctrl.cartService.Clear(c.Request.Context(), principalFrom(c).CartOwner())
	if err != nil {
		respondServiceError(c, err, "clear cart")
		return
	}

	log.Info("Cart cleared", nil)
	respondCart(c, cart)
}

// MergeGuestCart folds the guest session cart into the signed-in user's cart
// POST /api/v1/cart/merge
func (ctrl *CartController) MergeGuestCart(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized attempt to merge cart", nil)
		apperrors.Unauthorized(c, "")
		return
	}

	cart, err := ctrl.cartService.Merge(c.Request.Context(), c.GetHeader(middleware.SessionHeader), userID)
	if err != nil {
		respondServiceError(c, err, "merge cart")
		return
	}

	log.Info("Guest cart merged", map[string]interface{}{
		"user_id": userID,
		"items":   len(cart.Items),
	})
	c.JSON(http.StatusOK, gin.H{
		"cart": cart,
	})
}
