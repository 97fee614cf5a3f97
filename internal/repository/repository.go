package repository

import (
	"context"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// ReservationRepository stores in-flight reservations. Every implementation
// is version-stamped: writes that depend on a previously read version fail
// with domain.ErrConcurrencyConflict when the record changed underneath.
type ReservationRepository interface {
	// Get returns a copy of the reservation or domain.ErrReservationNotFound
	Get(ctx context.Context, id string) (*domain.Reservation, error)

	// Put inserts a new reservation. It fails with ErrConcurrencyConflict
	// when the id exists or any of its seats is already held for the slot.
	Put(ctx context.Context, r *domain.Reservation) error

	// Delete removes a reservation whose stored version is expectedVersion
	Delete(ctx context.Context, id string, expectedVersion int64) error

	// Expire removes a reservation like Delete and remembers the id as
	// expired until retainUntil
	Expire(ctx context.Context, id string, expectedVersion int64, retainUntil time.Time) error

	// WasExpired reports whether id was removed by Expire and is still retained at now
	WasExpired(ctx context.Context, id string, now time.Time) (bool, error)

	// CompareAndSwapVersion bumps the version if it equals expected and
	// returns the new version
	CompareAndSwapVersion(ctx context.Context, id string, expected int64) (int64, error)

	// ListBySlot returns every stored reservation for a concert date
	ListBySlot(ctx context.Context, slot domain.Slot) ([]*domain.Reservation, error)

	// ListExpired returns up to limit reservations with expiry <= before
	ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Reservation, error)
}

// BookingRepository stores confirmed bookings
type BookingRepository interface {
	// Create persists a booking. It fails with ErrConcurrencyConflict when
	// any seat is already booked for the slot or the reservation was
	// already promoted.
	Create(ctx context.Context, b *domain.Booking) error

	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	ListBySlot(ctx context.Context, slot domain.Slot) ([]*domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error)
}

// ConcertRepository is the read side of the concert catalog
type ConcertRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Concert, error)
	List(ctx context.Context) ([]*domain.Concert, error)
	Save(ctx context.Context, c *domain.Concert) error
}

// AccountRepository is the booking-side view of user accounts
type AccountRepository interface {
	Get(ctx context.Context, userID string) (*domain.Account, error)
	HasCreditCard(ctx context.Context, userID string) (bool, error)
	RegisterCreditCard(ctx context.Context, userID string, card *domain.CreditCard) error
	AttachBooking(ctx context.Context, userID, bookingID string) error
}

// HealthChecker is implemented by stores backed by a remote server
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}
