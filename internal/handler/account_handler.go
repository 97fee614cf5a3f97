package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/response"
)

// AccountHandler handles the caller's billing details and bookings
type AccountHandler struct {
	accountService service.AccountService
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accountService service.AccountService) *AccountHandler {
	return &AccountHandler{accountService: accountService}
}

// RegisterCreditCard handles PUT /users/me/credit-card
func (h *AccountHandler) RegisterCreditCard(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req dto.RegisterCreditCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	card, err := h.accountService.RegisterCreditCard(c.Request.Context(), userID, req.ToInput())
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.CreditCardFromDomain(card))
}

// ListBookings handles GET /bookings
func (h *AccountHandler) ListBookings(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	bookings, err := h.accountService.ListBookings(c.Request.Context(), userID)
	if err != nil {
		handleError(c, err)
		return
	}

	response.List(c, dto.BookingsFromDomain(bookings), len(bookings))
}
