package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/repository"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
	"github.com/petalhouse/petalhouse-backend/internal/spreadsheet"
)

const (
	exportPageSize = 500
	xlsxMimeType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AdminOrderController serves the shop owner's order console.
type AdminOrderController struct {
	orderService service.OrderService
	lifecycle    service.OrderLifecycle
}

func NewAdminOrderController(orderService service.OrderService, lifecycle service.OrderLifecycle) *AdminOrderController {
	return &AdminOrderController{
		orderService: orderService,
		lifecycle:    lifecycle,
	}
}

type UpdateOrderStatusRequest struct {
	Status model.OrderStatus `json:"status" binding:"required,oneof=pending in_progress completed cancelled"`
}

type UpdateOrderItemRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

// parseDate accepts YYYY-MM-DD or RFC3339. A bare date used as an upper
// bound covers the whole day.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (ctrl *AdminOrderController) bindFilter(c *gin.Context) (repository.OrderFilter, bool) {
	filter := repository.OrderFilter{
		Status: model.OrderStatus(c.Query("status")),
	}

	var err error
	if filter.From, err = parseDate(c.Query("from"), false); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "잘못된 날짜 형식입니다")
		return filter, false
	}
	if filter.To, err = parseDate(c.Query("to"), true); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "잘못된 날짜 형식입니다")
		return filter, false
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		apperrors.BadRequest(c, apperrors.ValidationInvalidRange, "종료일이 시작일보다 빠릅니다")
		return filter, false
	}

	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 0 {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "잘못된 limit 값입니다")
			return filter, false
		}
	}
	if v := c.Query("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "잘못된 offset 값입니다")
			return filter, false
		}
	}
	return filter, true
}

// ListOrders returns orders matching the filter, newest first
// GET /api/v1/admin/orders?status=&from=&to=&limit=&offset=
func (ctrl *AdminOrderController) ListOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	filter, ok := ctrl.bindFilter(c)
	if !ok {
		return
	}

	orders, total, err := ctrl.orderService.ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err, "list orders")
		return
	}

	log.Info("Admin orders fetched", map[string]interface{}{
		"status": filter.Status,
		"count":  len(orders),
		"total":  total,
	})

	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"count":  len(orders),
		"total":  total,
	})
}

// GetOrder returns any order
// GET /api/v1/admin/orders/:id
func (ctrl *AdminOrderController) GetOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := ctrl.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondServiceError(c, err, "fetch order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}

// ExportOrders downloads the filtered orders as a workbook
// GET /api/v1/admin/orders/export
func (ctrl *AdminOrderController) ExportOrders(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	filter, ok := ctrl.bindFilter(c)
	if !ok {
		return
	}
	filter.Limit = exportPageSize
	filter.Offset = 0

	var all []model.Order
	for {
		page, total, err := ctrl.orderService.ListOrders(c.Request.Context(), filter)
		if err != nil {
			respondServiceError(c, err, "export orders")
			return
		}
		all = append(all, page...)
		if len(page) == 0 || int64(len(all)) >= total {
			break
		}
		filter.Offset += len(page)
	}

	var buf bytes.Buffer
	if err := spreadsheet.WriteOrders(&buf, all); err != nil {
		log.Error("Failed to render order export", err, map[string]interface{}{
			"count": len(all),
		})
		apperrors.InternalError(c, "")
		return
	}

	log.Info("Orders exported", map[string]interface{}{
		"count": len(all),
	})

	filename := fmt.Sprintf("orders-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxMimeType, buf.Bytes())
}

// UpdateOrderStatus moves an order through the lifecycle
// PUT /api/v1/admin/orders/:id/status
func (ctrl *AdminOrderController) UpdateOrderStatus(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid order status request", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "잘못된 주문 상태입니다")
		return
	}

	order, err := ctrl.lifecycle.Transition(c.Request.Context(), orderID, req.Status)
	if err != nil {
		respondServiceError(c, err, "update order status")
		return
	}

	log.Info("Order status updated", map[string]interface{}{
		"order_id": orderID,
		"status":   order.Status,
	})
	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}

// UpdateOrderItem sets the quantity of the item at the given position
// PUT /api/v1/admin/orders/:id/items/:index/quantity
func (ctrl *AdminOrderController) UpdateOrderItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	index, ok := parseIndex(c, "index")
	if !ok {
		return
	}

	var req UpdateOrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid order item request", map[string]interface{}{
			"order_id": orderID,
			"error":    err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "수량은 1 이상이어야 합니다")
		return
	}

	order, err := ctrl.lifecycle.UpdateItemQuantity(c.Request.Context(), orderID, index, req.Quantity)
	if err != nil {
		respondServiceError(c, err, "update order item")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
	})
}

// RemoveOrderItem deletes the item at the given position. Removing the last
// item deletes the order.
// DELETE /api/v1/admin/orders/:id/items/:index
func (ctrl *AdminOrderController) RemoveOrderItem(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}
	index, ok := parseIndex(c, "index")
	if !ok {
		return
	}

	order, deleted, err := ctrl.lifecycle.RemoveItem(c.Request.Context(), orderID, index)
	if err != nil {
		respondServiceError(c, err, "delete order item")
		return
	}

	if deleted {
		log.Info("Order deleted with its last item", map[string]interface{}{
			"order_id": orderID,
		})
		c.JSON(http.StatusOK, gin.H{
			"deleted": true,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deleted": false,
		"order":   order,
	})
}

// DeleteOrder removes an order and returns the stock it holds
// DELETE /api/v1/admin/orders/:id
func (ctrl *AdminOrderController) DeleteOrder(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := ctrl.lifecycle.DeleteOrder(c.Request.Context(), orderID); err != nil {
		respondServiceError(c, err, "delete order")
		return
	}

	log.Info("Order deleted", map[string]interface{}{
		"order_id": orderID,
	})
	c.JSON(http.StatusOK, gin.H{
		"message": "Order deleted successfully",
	})
}
