package dto

import (
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// ReserveRequest represents a request to hold seats
type ReserveRequest struct {
	ConcertID string    `json:"concert_id" binding:"required"`
	Date      time.Time `json:"date" binding:"required"`
	PriceBand string    `json:"price_band" binding:"required,priceband"`
	SeatCount int       `json:"seat_count" binding:"required,min=1"`
}

// ToDomain converts the request to a domain reservation request
func (r *ReserveRequest) ToDomain() domain.ReservationRequest {
	return domain.ReservationRequest{
		ConcertID: r.ConcertID,
		Date:      r.Date,
		Band:      domain.PriceBand(r.PriceBand),
		Count:     r.SeatCount,
	}
}

// ReservationResponse represents a reservation in API response
type ReservationResponse struct {
	ID        string    `json:"id"`
	ConcertID string    `json:"concert_id"`
	Date      time.Time `json:"date"`
	PriceBand string    `json:"price_band"`
	Seats     []string  `json:"seats"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReservationFromDomain converts a domain reservation to its response
func ReservationFromDomain(r *domain.Reservation) *ReservationResponse {
	return &ReservationResponse{
		ID:        r.ID,
		ConcertID: r.Request.ConcertID,
		Date:      r.Request.Date,
		PriceBand: string(r.Request.Band),
		Seats:     seatLabels(r.Seats),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

// BookingResponse represents a booking in API response
type BookingResponse struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	ConcertID     string    `json:"concert_id"`
	Date          time.Time `json:"date"`
	PriceBand     string    `json:"price_band"`
	Seats         []string  `json:"seats"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}

// BookingFromDomain converts a domain booking to its response
func BookingFromDomain(b *domain.Booking) *BookingResponse {
	return &BookingResponse{
		ID:            b.ID,
		ReservationID: b.ReservationID,
		ConcertID:     b.ConcertID,
		Date:          b.Date,
		PriceBand:     string(b.Band),
		Seats:         seatLabels(b.Seats),
		ConfirmedAt:   b.CreatedAt,
	}
}

// BookingsFromDomain converts a list of bookings, never returning nil
func BookingsFromDomain(bookings []*domain.Booking) []*BookingResponse {
	out := make([]*BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, BookingFromDomain(b))
	}
	return out
}

func seatLabels(seats []domain.Seat) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.String()
	}
	return out
}
