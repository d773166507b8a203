package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/app/service"
	apperrors "github.com/petalhouse/petalhouse-backend/internal/errors"
	"github.com/petalhouse/petalhouse-backend/internal/middleware"
)

// principalFrom builds the caller identity. An authenticated user wins over
// the guest session header.
func principalFrom(c *gin.Context) service.Principal {
	if userID, ok := middleware.GetUserID(c); ok {
		role, _ := middleware.GetUserRole(c)
		return service.Principal{UserID: &userID, Role: role}
	}
	return service.Principal{SessionID: middleware.GetSessionID(c), Role: model.RoleGuest}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil {
		middleware.GetLoggerFromContext(c).Warn("Invalid id parameter", map[string]interface{}{
			"param": param,
			"value": c.Param(param),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "잘못된 ID 형식입니다")
		return 0, false
	}
	return uint(id), true
}

func parseIndex(c *gin.Context, param string) (int, bool) {
	index, err := strconv.Atoi(c.Param(param))
	if err != nil || index < 0 {
		apperrors.BadRequest(c, apperrors.ValidationInvalidID, "잘못된 항목 번호입니다")
		return 0, false
	}
	return index, true
}

// respondServiceError maps service failures to the error response contract.
func respondServiceError(c *gin.Context, err error, context string) {
	log := middleware.GetLoggerFromContext(c)

	var validationErr *service.ValidationError
	var shortfallErr *service.InsufficientProductQuantityError
	var stockErr *service.InsufficientStockError
	var transitionErr *service.TransitionError

	switch {
	case errors.As(err, &validationErr):
		log.Warn("Validation failed", map[string]interface{}{
			"context": context,
			"fields":  validationErr.Fields,
		})
		apperrors.RespondWithValidationError(c, validationErr.Fields)
	case errors.As(err, &shortfallErr):
		log.Warn("Order rejected for insufficient stock", map[string]interface{}{
			"context":    context,
			"shortfalls": shortfallErr.Shortfalls,
		})
		apperrors.RespondWithShortfall(c, apperrors.StockInsufficientOrder,
			"재고가 부족한 상품이 있습니다", shortfallErr.Shortfalls)
	case errors.As(err, &stockErr):
		log.Warn("Insufficient stock", map[string]interface{}{
			"context":    context,
			"product_id": stockErr.ProductID,
			"requested":  stockErr.Requested,
			"available":  stockErr.Available,
		})
		apperrors.RespondWithShortfall(c, apperrors.StockInsufficient, "재고가 부족합니다",
			[]service.Shortfall{{
				ProductID: stockErr.ProductID,
				Name:      stockErr.Name,
				Requested: stockErr.Requested,
				Available: stockErr.Available,
			}})
	case errors.As(err, &transitionErr):
		log.Warn("Invalid status transition", map[string]interface{}{
			"context": context,
			"from":    transitionErr.From,
			"to":      transitionErr.To,
		})
		apperrors.Conflict(c, apperrors.OrderInvalidTransition, "현재 상태에서 변경할 수 없는 주문 상태입니다")
	case errors.Is(err, service.ErrStatusConflict):
		apperrors.Conflict(c, apperrors.OrderStatusConflict, "주문이 이미 변경되었습니다. 다시 시도해주세요")
	case errors.Is(err, service.ErrProductNotFound):
		apperrors.NotFound(c, apperrors.ProductNotFound, "상품을 찾을 수 없습니다")
	case errors.Is(err, service.ErrProductUnavailable):
		apperrors.BadRequest(c, apperrors.ProductUnavailable, "판매 중이 아닌 상품입니다")
	case errors.Is(err, service.ErrCartItemNotFound):
		apperrors.NotFound(c, apperrors.CartItemNotFound, "장바구니 항목을 찾을 수 없습니다")
	case errors.Is(err, service.ErrEmptyCart):
		apperrors.BadRequest(c, apperrors.CartEmpty, "장바구니가 비어 있습니다")
	case errors.Is(err, service.ErrOrderNotFound):
		apperrors.NotFound(c, apperrors.OrderNotFound, "주문을 찾을 수 없습니다")
	case errors.Is(err, service.ErrOrderItemNotFound):
		apperrors.NotFound(c, apperrors.OrderItemNotFound, "주문 항목을 찾을 수 없습니다")
	case errors.Is(err, service.ErrEmailAlreadyExists):
		apperrors.Conflict(c, apperrors.AuthEmailAlreadyExists, "이미 사용 중인 이메일입니다")
	case errors.Is(err, service.ErrInvalidCredentials):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthInvalidCredentials,
			"이메일 또는 비밀번호가 올바르지 않습니다")
	case errors.Is(err, service.ErrInvalidRefreshToken):
		apperrors.RespondWithError(c, http.StatusUnauthorized, apperrors.AuthTokenInvalid, "유효하지 않은 토큰입니다")
	case errors.Is(err, service.ErrUserNotFound):
		apperrors.NotFound(c, apperrors.ResourceNotFound, "사용자를 찾을 수 없습니다")
	default:
		log.Error("Request failed", err, map[string]interface{}{
			"context": context,
		})
		info := apperrors.ParseError(err, context)
		apperrors.RespondWithError(c, http.StatusInternalServerError, info.Code, info.Message)
	}
}
