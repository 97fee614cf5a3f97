package domain

import (
	"time"
)

// EventType names a lifecycle event
type EventType string

const (
	EventReservationCreated EventType = "reservation.created"
	EventReservationExpired EventType = "reservation.expired"
	EventBookingConfirmed   EventType = "booking.confirmed"
)

// LifecycleEvent is published after a reservation or booking change commits
type LifecycleEvent struct {
	EventID       string    `json:"event_id"`
	EventType     EventType `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	ConcertID     string    `json:"concert_id"`
	Date          time.Time `json:"date"`
	Band          PriceBand `json:"price_band"`
	Seats         []Seat    `json:"seats"`
	UserID        string    `json:"user_id"`
	ReservationID string    `json:"reservation_id"`
	BookingID     string    `json:"booking_id,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

// NewReservationEvent builds a reservation.created or reservation.expired event
func NewReservationEvent(eventType EventType, r *Reservation, eventID string, now time.Time) *LifecycleEvent {
	return &LifecycleEvent{
		EventID:       eventID,
		EventType:     eventType,
		OccurredAt:    now,
		ConcertID:     r.Request.ConcertID,
		Date:          r.Request.Date,
		Band:          r.Request.Band,
		Seats:         CopySeats(r.Seats),
		UserID:        r.UserID,
		ReservationID: r.ID,
		ExpiresAt:     r.ExpiresAt,
	}
}

// NewBookingEvent builds a booking.confirmed event
func NewBookingEvent(b *Booking, eventID string, now time.Time) *LifecycleEvent {
	return &LifecycleEvent{
		EventID:       eventID,
		EventType:     EventBookingConfirmed,
		OccurredAt:    now,
		ConcertID:     b.ConcertID,
		Date:          b.Date,
		Band:          b.Band,
		Seats:         CopySeats(b.Seats),
		UserID:        b.UserID,
		ReservationID: b.ReservationID,
		BookingID:     b.ID,
	}
}

// Key partitions events by concert so per-concert ordering is kept
func (e *LifecycleEvent) Key() string {
	return e.ConcertID
}
