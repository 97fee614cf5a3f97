package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/response"
	"go.uber.org/zap"
)

// handleError maps domain errors to HTTP responses
func handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		response.Unauthorized(c, "UNAUTHENTICATED", err.Error())
	case errors.Is(err, domain.ErrBadToken):
		response.Unauthorized(c, "BAD_TOKEN", err.Error())
	case domain.IsValidationError(err):
		response.BadRequest(c, "INVALID_REQUEST", err.Error())
	case errors.Is(err, domain.ErrConcertNotFound):
		response.NotFound(c, "CONCERT_NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrReservationNotFound):
		response.NotFound(c, "RESERVATION_NOT_FOUND", err.Error())
	case domain.IsNotFoundError(err):
		response.NotFound(c, "NOT_FOUND", err.Error())
	case errors.Is(err, domain.ErrInsufficientSeats):
		response.Conflict(c, "INSUFFICIENT_SEATS", err.Error())
	case errors.Is(err, domain.ErrReservationExpired):
		response.Error(c, http.StatusGone, "RESERVATION_EXPIRED", err.Error(), "")
	case errors.Is(err, domain.ErrCreditCardNotRegistered):
		response.Error(c, http.StatusPaymentRequired, "CREDIT_CARD_NOT_REGISTERED", err.Error(), "")
	case errors.Is(err, lock.ErrLockTimeout):
		response.Error(c, http.StatusServiceUnavailable, "BUSY", "Too many concurrent requests for this concert date", "")
	default:
		logger.Get().ErrorContext(c.Request.Context(), "request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		response.InternalError(c, err)
	}
}

// requireUser returns the authenticated user id or writes 401
func requireUser(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		response.Unauthorized(c, "UNAUTHENTICATED", "Authentication is required")
		return "", false
	}
	return userID, true
}
