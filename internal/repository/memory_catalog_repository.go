package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
)

// MemoryConcertRepository implements ConcertRepository using in-memory storage
type MemoryConcertRepository struct {
	concerts map[string]*domain.Concert
	mu       sync.RWMutex
}

// NewMemoryConcertRepository creates a catalog holding the given concerts
func NewMemoryConcertRepository(concerts ...*domain.Concert) *MemoryConcertRepository {
	r := &MemoryConcertRepository{concerts: make(map[string]*domain.Concert)}
	for _, c := range concerts {
		r.concerts[c.ID] = cloneConcert(c)
	}
	return r
}

// GetByID retrieves a concert by id
func (r *MemoryConcertRepository) GetByID(ctx context.Context, id string) (*domain.Concert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.concerts[id]
	if !ok {
		return nil, domain.ErrConcertNotFound
	}
	return cloneConcert(c), nil
}

// List returns all concerts ordered by title
func (r *MemoryConcertRepository) List(ctx context.Context) ([]*domain.Concert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Concert, 0, len(r.concerts))
	for _, c := range r.concerts {
		result = append(result, cloneConcert(c))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Title == result[j].Title {
			return result[i].ID < result[j].ID
		}
		return result[i].Title < result[j].Title
	})
	return result, nil
}

// Save inserts or replaces a concert
func (r *MemoryConcertRepository) Save(ctx context.Context, c *domain.Concert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.concerts[c.ID] = cloneConcert(c)
	return nil
}

func cloneConcert(c *domain.Concert) *domain.Concert {
	out := *c
	out.Dates = append([]time.Time(nil), c.Dates...)
	out.PerformerIDs = append([]string(nil), c.PerformerIDs...)
	out.Prices = make(map[domain.PriceBand]float64, len(c.Prices))
	for band, price := range c.Prices {
		out.Prices[band] = price
	}
	return &out
}

// MemoryAccountRepository implements AccountRepository using in-memory storage.
// Accounts are created on first write.
type MemoryAccountRepository struct {
	accounts map[string]*domain.Account
	mu       sync.RWMutex
}

// NewMemoryAccountRepository creates an empty account store
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[string]*domain.Account)}
}

// Get returns the account or domain.ErrAccountNotFound
func (r *MemoryAccountRepository) Get(ctx context.Context, userID string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[userID]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	out := *a
	out.BookingIDs = append([]string(nil), a.BookingIDs...)
	if a.CreditCard != nil {
		card := *a.CreditCard
		out.CreditCard = &card
	}
	return &out, nil
}

// HasCreditCard reports whether the user has a card on file
func (r *MemoryAccountRepository) HasCreditCard(ctx context.Context, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.accounts[userID].HasCreditCard(), nil
}

// RegisterCreditCard stores or replaces the user's card
func (r *MemoryAccountRepository) RegisterCreditCard(ctx context.Context, userID string, card *domain.CreditCard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *card
	r.account(userID).CreditCard = &c
	return nil
}

// AttachBooking records a booking against the user
func (r *MemoryAccountRepository) AttachBooking(ctx context.Context, userID, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := r.account(userID)
	for _, id := range a.BookingIDs {
		if id == bookingID {
			return nil
		}
	}
	a.BookingIDs = append(a.BookingIDs, bookingID)
	return nil
}

func (r *MemoryAccountRepository) account(userID string) *domain.Account {
	a, ok := r.accounts[userID]
	if !ok {
		a = &domain.Account{UserID: userID}
		r.accounts[userID] = a
	}
	return a
}

var (
	_ ConcertRepository = (*MemoryConcertRepository)(nil)
	_ AccountRepository = (*MemoryAccountRepository)(nil)
)
