package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultHoldDuration is how long a reservation keeps its seats
const DefaultHoldDuration = 5 * time.Second

// ReservationStatus is the lifecycle state of a reservation.
// ACTIVE moves to EXPIRED or CONFIRMED and never leaves those states.
type ReservationStatus string

const (
	ReservationActive    ReservationStatus = "ACTIVE"
	ReservationExpired   ReservationStatus = "EXPIRED"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
)

// ReservationRequest is what a caller asks to hold
type ReservationRequest struct {
	ConcertID string    `json:"concert_id"`
	Date      time.Time `json:"date"`
	Band      PriceBand `json:"price_band"`
	Count     int       `json:"seat_count"`
}

// Validate checks that every field is present and the count is positive
func (r *ReservationRequest) Validate() error {
	if strings.TrimSpace(r.ConcertID) == "" {
		return ErrInvalidConcertID
	}
	if r.Date.IsZero() {
		return ErrInvalidDate
	}
	if !r.Band.Valid() {
		return ErrInvalidPriceBand
	}
	if r.Count < 1 {
		return ErrInvalidSeatCount
	}
	return nil
}

// Slot identifies the concert and date a reservation competes for
func (r *ReservationRequest) Slot() Slot {
	return NewSlot(r.ConcertID, r.Date)
}

// Slot is a concert performance: the unit of seat contention
type Slot struct {
	ConcertID string
	Date      time.Time
}

func NewSlot(concertID string, date time.Time) Slot {
	return Slot{ConcertID: concertID, Date: date.UTC()}
}

// Key is a stable string form used for locks and store indexes
func (s Slot) Key() string {
	return s.ConcertID + "|" + s.Date.UTC().Format(time.RFC3339)
}

// Reservation is a time-bounded hold on concrete seats
type Reservation struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Request   ReservationRequest `json:"request"`
	Seats     []Seat             `json:"seats"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	Version   int64              `json:"version"`
}

// NewReservation creates an ACTIVE reservation holding a copy of seats
func NewReservation(userID string, req ReservationRequest, seats []Seat, now time.Time, hold time.Duration) *Reservation {
	req.Date = req.Date.UTC()
	return &Reservation{
		ID:        uuid.New().String(),
		UserID:    userID,
		Request:   req,
		Seats:     CopySeats(seats),
		CreatedAt: now,
		ExpiresAt: now.Add(hold),
		Version:   1,
	}
}

// IsExpired reports whether the hold has lapsed at now (expiry <= now)
func (r *Reservation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Status reports ACTIVE or EXPIRED at now. A confirmed reservation no
// longer exists, so it never reports CONFIRMED.
func (r *Reservation) Status(now time.Time) ReservationStatus {
	if r.IsExpired(now) {
		return ReservationExpired
	}
	return ReservationActive
}

// Slot returns the concert date the reservation holds seats for
func (r *Reservation) Slot() Slot {
	return r.Request.Slot()
}

// Clone returns a deep copy
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	c.Seats = CopySeats(r.Seats)
	return &c
}
