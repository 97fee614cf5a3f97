package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// MemoryReservationRepository implements ReservationRepository in process memory.
// Used for development, single-replica deployments and tests.
type MemoryReservationRepository struct {
	reservations map[string]*domain.Reservation
	bySlot       map[string]map[string]struct{}    // slot key -> reservation ids
	heldSeats    map[string]map[domain.Seat]string // slot key -> seat -> reservation id
	tombstones   map[string]time.Time              // reservation id -> retain until
	mu           sync.RWMutex
}

// NewMemoryReservationRepository creates an empty in-memory reservation store
func NewMemoryReservationRepository() *MemoryReservationRepository {
	return &MemoryReservationRepository{
		reservations: make(map[string]*domain.Reservation),
		bySlot:       make(map[string]map[string]struct{}),
		heldSeats:    make(map[string]map[domain.Seat]string),
		tombstones:   make(map[string]time.Time),
	}
}

// Get retrieves a reservation by id
func (r *MemoryReservationRepository) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.reservations[id]
	if !ok {
		return nil, domain.ErrReservationNotFound
	}
	return res.Clone(), nil
}

// Put inserts a reservation, rejecting id or seat collisions
func (r *MemoryReservationRepository) Put(ctx context.Context, res *domain.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.reservations[res.ID]; exists {
		return fmt.Errorf("reservation %s already exists: %w", res.ID, domain.ErrConcurrencyConflict)
	}

	key := res.Slot().Key()
	held := r.heldSeats[key]
	for _, seat := range res.Seats {
		if holder, taken := held[seat]; taken {
			return fmt.Errorf("seat %s held by %s: %w", seat, holder, domain.ErrConcurrencyConflict)
		}
	}

	if held == nil {
		held = make(map[domain.Seat]string)
		r.heldSeats[key] = held
	}
	for _, seat := range res.Seats {
		held[seat] = res.ID
	}
	if r.bySlot[key] == nil {
		r.bySlot[key] = make(map[string]struct{})
	}
	r.bySlot[key][res.ID] = struct{}{}
	r.reservations[res.ID] = res.Clone()

	return nil
}

// Delete removes a reservation if its version still matches
func (r *MemoryReservationRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.removeLocked(id, expectedVersion)
}

// Expire removes a reservation and keeps a tombstone until retainUntil
func (r *MemoryReservationRepository) Expire(ctx context.Context, id string, expectedVersion int64, retainUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if err := r.removeLocked(id, expectedVersion); err != nil {
		return err
	}

	// callers only expire lapsed holds, so anything retained for less
	// than this hold's expiry is already past its retention
	for tid, until := range r.tombstones {
		if until.Before(res.ExpiresAt) {
			delete(r.tombstones, tid)
		}
	}
	r.tombstones[id] = retainUntil
	return nil
}

// WasExpired reports whether a tombstone for id is still retained
func (r *MemoryReservationRepository) WasExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	until, ok := r.tombstones[id]
	return ok && now.Before(until), nil
}

func (r *MemoryReservationRepository) removeLocked(id string, expectedVersion int64) error {
	res, ok := r.reservations[id]
	if !ok {
		return domain.ErrReservationNotFound
	}
	if res.Version != expectedVersion {
		return fmt.Errorf("reservation %s at version %d, expected %d: %w", id, res.Version, expectedVersion, domain.ErrConcurrencyConflict)
	}

	key := res.Slot().Key()
	if held := r.heldSeats[key]; held != nil {
		for _, seat := range res.Seats {
			if held[seat] == id {
				delete(held, seat)
			}
		}
		if len(held) == 0 {
			delete(r.heldSeats, key)
		}
	}
	if ids := r.bySlot[key]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(r.bySlot, key)
		}
	}
	delete(r.reservations, id)

	return nil
}

// CompareAndSwapVersion bumps the version when it equals expected
func (r *MemoryReservationRepository) CompareAndSwapVersion(ctx context.Context, id string, expected int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, ok := r.reservations[id]
	if !ok {
		return 0, domain.ErrReservationNotFound
	}
	if res.Version != expected {
		return 0, fmt.Errorf("reservation %s at version %d, expected %d: %w", id, res.Version, expected, domain.ErrConcurrencyConflict)
	}
	res.Version++
	return res.Version, nil
}

// ListBySlot returns the reservations of a concert date ordered by creation
func (r *MemoryReservationRepository) ListBySlot(ctx context.Context, slot domain.Slot) ([]*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.bySlot[slot.Key()]
	result := make([]*domain.Reservation, 0, len(ids))
	for id := range ids {
		result = append(result, r.reservations[id].Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// ListExpired returns up to limit reservations whose expiry is <= before, oldest first
func (r *MemoryReservationRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Reservation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Reservation, 0)
	for _, res := range r.reservations {
		if res.IsExpired(before) {
			result = append(result, res.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiresAt.Before(result[j].ExpiresAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Count returns the number of stored reservations
func (r *MemoryReservationRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.reservations)
}

var _ ReservationRepository = (*MemoryReservationRepository)(nil)
