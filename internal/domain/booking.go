package domain

import (
	"time"

	"github.com/google/uuid"
)

// Booking is a confirmed, permanent claim on seats for a concert date
type Booking struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	ReservationID string    `json:"reservation_id"`
	ConcertID     string    `json:"concert_id"`
	Date          time.Time `json:"date"`
	Band          PriceBand `json:"price_band"`
	Seats         []Seat    `json:"seats"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewBookingFromReservation promotes a reservation. The booking owns its
// own copy of the seat set.
func NewBookingFromReservation(r *Reservation, userID string, now time.Time) *Booking {
	return &Booking{
		ID:            uuid.New().String(),
		UserID:        userID,
		ReservationID: r.ID,
		ConcertID:     r.Request.ConcertID,
		Date:          r.Request.Date.UTC(),
		Band:          r.Request.Band,
		Seats:         CopySeats(r.Seats),
		CreatedAt:     now,
	}
}

// Slot returns the concert date the booking consumes seats for
func (b *Booking) Slot() Slot {
	return NewSlot(b.ConcertID, b.Date)
}

// Clone returns a deep copy
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	c.Seats = CopySeats(b.Seats)
	return &c
}
