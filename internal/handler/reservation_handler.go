package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/response"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReservationHandler handles reservation HTTP requests
type ReservationHandler struct {
	reservationService service.ReservationService
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(reservationService service.ReservationService) *ReservationHandler {
	return &ReservationHandler{reservationService: reservationService}
}

// Reserve handles POST /reservations
func (h *ReservationHandler) Reserve(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.reserve")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUser(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthenticated")
		return
	}

	var req dto.ReserveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		response.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("concert_id", req.ConcertID),
		attribute.String("price_band", req.PriceBand),
		attribute.Int("seat_count", req.SeatCount),
	)

	res, err := h.reservationService.Reserve(ctx, userID, req.ToDomain())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("reservation_id", res.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, "/api/v1/reservations/"+res.ID, dto.ReservationFromDomain(res))
}

// Confirm handles POST /reservations/:id/confirm
func (h *ReservationHandler) Confirm(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.reservation.confirm")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	userID, ok := requireUser(c)
	if !ok {
		span.SetStatus(codes.Error, "unauthenticated")
		return
	}

	reservationID := c.Param("id")
	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("reservation_id", reservationID),
	)

	booking, err := h.reservationService.Confirm(ctx, userID, reservationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	response.Created(c, "", dto.BookingFromDomain(booking))
}

// GetReservation handles GET /reservations/:id
func (h *ReservationHandler) GetReservation(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	res, err := h.reservationService.GetReservation(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.ReservationFromDomain(res))
}
