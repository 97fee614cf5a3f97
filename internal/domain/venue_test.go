package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultVenue(t *testing.T) {
	v := DefaultVenue()

	for _, band := range PriceBands {
		assert.Equal(t, 6*DefaultSeatsPerRow, v.Capacity(band), "band %s", band)
	}

	seats := v.SeatsInBand(PriceBandB)
	assert.Equal(t, Seat{Row: "G", Number: 1}, seats[0])
	assert.Equal(t, Seat{Row: "G", Number: 2}, seats[1])
	assert.Equal(t, Seat{Row: "L", Number: DefaultSeatsPerRow}, seats[len(seats)-1])

	band, ok := v.BandOf(Seat{Row: "R", Number: 3})
	assert.True(t, ok)
	assert.Equal(t, PriceBandC, band)

	_, ok = v.BandOf(Seat{Row: "Z", Number: 1})
	assert.False(t, ok)
}

func TestNewVenue_SingleRowBand(t *testing.T) {
	v, err := NewVenue("A", 3, map[string]string{"A": "A"})
	require.NoError(t, err)

	assert.Equal(t, 3, v.Capacity(PriceBandA))
	assert.Equal(t, 0, v.Capacity(PriceBandB))
	assert.Equal(t, []string{"A"}, v.Rows())
}

func TestNewVenue_Errors(t *testing.T) {
	tests := []struct {
		name  string
		rows  string
		seats int
		bands map[string]string
	}{
		{"no rows", "", 10, nil},
		{"no seats", "AB", 0, nil},
		{"duplicate row", "AA", 10, nil},
		{"unknown band", "AB", 10, map[string]string{"D": "A-B"}},
		{"unknown row", "AB", 10, map[string]string{"A": "A-C"}},
		{"reversed range", "AB", 10, map[string]string{"A": "B-A"}},
		{"overlapping bands", "ABC", 10, map[string]string{"A": "A-B", "B": "B-C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewVenue(tt.rows, tt.seats, tt.bands)
			assert.Error(t, err)
		})
	}
}
