package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// MemoryBookingRepository implements BookingRepository using in-memory storage
type MemoryBookingRepository struct {
	bookings      map[string]*domain.Booking
	bySlot        map[string][]string               // slot key -> booking ids
	byUser        map[string][]string               // user id -> booking ids
	byReservation map[string]string                 // reservation id -> booking id
	bookedSeats   map[string]map[domain.Seat]string // slot key -> seat -> booking id
	mu            sync.RWMutex
}

// NewMemoryBookingRepository creates an empty in-memory booking store
func NewMemoryBookingRepository() *MemoryBookingRepository {
	return &MemoryBookingRepository{
		bookings:      make(map[string]*domain.Booking),
		bySlot:        make(map[string][]string),
		byUser:        make(map[string][]string),
		byReservation: make(map[string]string),
		bookedSeats:   make(map[string]map[domain.Seat]string),
	}
}

// Create stores a booking unless one of its seats is already booked
func (r *MemoryBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bookings[b.ID]; exists {
		return fmt.Errorf("booking %s already exists: %w", b.ID, domain.ErrConcurrencyConflict)
	}
	if existing, promoted := r.byReservation[b.ReservationID]; promoted && b.ReservationID != "" {
		return fmt.Errorf("reservation %s already promoted to %s: %w", b.ReservationID, existing, domain.ErrConcurrencyConflict)
	}

	key := b.Slot().Key()
	booked := r.bookedSeats[key]
	for _, seat := range b.Seats {
		if holder, taken := booked[seat]; taken {
			return fmt.Errorf("seat %s already booked by %s: %w", seat, holder, domain.ErrConcurrencyConflict)
		}
	}

	if booked == nil {
		booked = make(map[domain.Seat]string)
		r.bookedSeats[key] = booked
	}
	for _, seat := range b.Seats {
		booked[seat] = b.ID
	}
	r.bookings[b.ID] = b.Clone()
	r.bySlot[key] = append(r.bySlot[key], b.ID)
	r.byUser[b.UserID] = append(r.byUser[b.UserID], b.ID)
	if b.ReservationID != "" {
		r.byReservation[b.ReservationID] = b.ID
	}

	return nil
}

// GetByID retrieves a booking by its ID
func (r *MemoryBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return b.Clone(), nil
}

// ListBySlot returns all bookings for a concert date
func (r *MemoryBookingRepository) ListBySlot(ctx context.Context, slot domain.Slot) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.collect(r.bySlot[slot.Key()]), nil
}

// ListByUser returns a user's bookings, newest first
func (r *MemoryBookingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := r.collect(r.byUser[userID])
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (r *MemoryBookingRepository) collect(ids []string) []*domain.Booking {
	result := make([]*domain.Booking, 0, len(ids))
	for _, id := range ids {
		if b, ok := r.bookings[id]; ok {
			result = append(result, b.Clone())
		}
	}
	return result
}

// Count returns the number of stored bookings
func (r *MemoryBookingRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bookings)
}

var _ BookingRepository = (*MemoryBookingRepository)(nil)
