package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
)

type OrderController struct {
	orderService service.OrderService
}

func NewOrderController(orderService service.OrderService) *OrderController {
	return &OrderController{
		orderService: orderService,
	}
}

type GuestRequest struct {
	Name  string `json:"name"`
	Email string `json:"email" binding:"omitempty,email"`
	Phone string `json:"phone"`
}

type CreateOrderRequest struct {
	Guest           GuestRequest  `json:"guest"`
	RecipientName   string        `json:"recipient_name" binding:"required"`
	RecipientPhone  string        `json:"recipient_phone" binding:"required"`
	DeliveryAddress string        `json:"delivery_address" binding:"required"`
	DeliveryNote    string        `json:"delivery_note"`
	PaymentMethod   string        `json:"payment_method"`
	Items           []LineRequest `json:"items" binding:"dive"`
	FromCart        bool          `json:"from_cart"`
}

func (r CreateOrderRequest) toInput() service.CreateOrderInput {
	input := service.CreateOrderInput{
		Guest: model.GuestInfo{
			Name:  r.Guest.Name,
			Email: r.Guest.Email,
			Phone: r.Guest.Phone,
		},
		RecipientName:   r.RecipientName,
		RecipientPhone:  r.RecipientPhone,
		DeliveryAddress: r.DeliveryAddress,
		DeliveryNote:    r.DeliveryNote,
		PaymentMethod:   r.PaymentMethod,
		FromCart:        r.FromCart,
	}
	for _, line := range r.Items {
		input.Items = append(input.Items, line.toInput())
	}
	return input
}

// CreateOrder places an order for the caller, registered or guest
// POST /api/v1/orders
func (ctrl *OrderController) CreateOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid order creation request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "입력 정보가 올바르지 않습니다")
		return
	}

	principal := principalFrom(c)
	log.Debug("Creating order", map[string]interface{}{
		"registered": principal.Registered(),
		"items":      len(req.Items),
		"from_cart":  req.FromCart,
	})

	order, err := ctrl.orderService.CreateOrder(c.Request.Context(), principal, req.toInput())
	if err != nil {
		respondServiceError(c, err, "create order")
		return
	}

	log.Info("Order created successfully", map[string]interface{}{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total_amount": order.TotalAmount,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Order created successfully",
		"order":   order,
	})
}

// GetOrders returns the signed-in user's orders
// GET /api/v1/orders
func (ctrl *OrderController) GetOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized access to orders", nil)
		apperrors.Unauthorized(c, "")
		return
	}

	orders, err := ctrl.orderService.ListUserOrders(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err, "list orders")
		return
	}

	log.Info("Orders fetched successfully", map[string]interface{}{
		"user_id": userID,
		"count":   len(orders),
	})

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
	})
}

// GetOrderByID returns one of the signed-in user's orders
// GET /api/v1/orders/:id
func (ctrl *OrderController) GetOrderByID(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, exists := middleware.GetUserID(c)
	if !exists {
		log.Warn("Unauthorized access to order", nil)
		apperrors.Unauthorized(c, "")
		return
	}

	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetUserOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		respondServiceError(c, err, "fetch order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}
