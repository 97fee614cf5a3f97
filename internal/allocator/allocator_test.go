package allocator

import (
	"sync"
	"testing"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallVenue(t *testing.T) *domain.Venue {
	t.Helper()
	v, err := domain.NewVenue("ABCD", 3, map[string]string{"A": "A-B", "B": "C", "C": "D"})
	require.NoError(t, err)
	return v
}

func seat(row string, n int) domain.Seat {
	return domain.Seat{Row: row, Number: n}
}

func TestAllocate(t *testing.T) {
	v := smallVenue(t)

	tests := []struct {
		name  string
		band  domain.PriceBand
		count int
		taken []domain.Seat
		want  []domain.Seat
	}{
		{
			name:  "first seats in canonical order",
			band:  domain.PriceBandA,
			count: 2,
			want:  []domain.Seat{seat("A", 1), seat("A", 2)},
		},
		{
			name:  "skips taken seats and crosses rows",
			band:  domain.PriceBandA,
			count: 3,
			taken: []domain.Seat{seat("A", 1), seat("A", 3)},
			want:  []domain.Seat{seat("A", 2), seat("B", 1), seat("B", 2)},
		},
		{
			name:  "restricted to band",
			band:  domain.PriceBandB,
			count: 3,
			taken: []domain.Seat{seat("A", 1)},
			want:  []domain.Seat{seat("C", 1), seat("C", 2), seat("C", 3)},
		},
		{
			name:  "exact fit",
			band:  domain.PriceBandC,
			count: 1,
			taken: []domain.Seat{seat("D", 1), seat("D", 2)},
			want:  []domain.Seat{seat("D", 3)},
		},
		{
			name:  "insufficient returns nothing rather than a partial set",
			band:  domain.PriceBandC,
			count: 2,
			taken: []domain.Seat{seat("D", 1), seat("D", 2)},
			want:  nil,
		},
		{
			name:  "more than capacity",
			band:  domain.PriceBandB,
			count: 4,
			want:  nil,
		},
		{
			name:  "zero count",
			band:  domain.PriceBandA,
			count: 0,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Allocate(v, tt.band, tt.count, domain.NewSeatSet(tt.taken))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAllocate_DoesNotMutateInputs(t *testing.T) {
	v := smallVenue(t)
	taken := domain.NewSeatSet([]domain.Seat{seat("A", 1)})
	before := append([]domain.Seat(nil), v.SeatsInBand(domain.PriceBandA)...)

	Allocate(v, domain.PriceBandA, 2, taken)

	assert.Len(t, taken, 1)
	assert.Equal(t, before, v.SeatsInBand(domain.PriceBandA))
}

func TestAllocate_Deterministic(t *testing.T) {
	v := domain.DefaultVenue()
	taken := domain.NewSeatSet([]domain.Seat{seat("A", 2), seat("A", 5)})

	first := Allocate(v, domain.PriceBandA, 10, taken)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, first, Allocate(v, domain.PriceBandA, 10, taken))
		}()
	}
	wg.Wait()
}

func TestAvailable(t *testing.T) {
	v := smallVenue(t)
	taken := domain.NewSeatSet([]domain.Seat{seat("A", 1), seat("C", 2)})

	assert.Equal(t, 5, Available(v, domain.PriceBandA, taken))
	assert.Equal(t, 2, Available(v, domain.PriceBandB, taken))
	assert.Equal(t, 3, Available(v, domain.PriceBandC, taken))
}
