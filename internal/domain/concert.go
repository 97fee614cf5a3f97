package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PriceBand is a named tier of seats with its own price and availability pool
type PriceBand string

const (
	PriceBandA PriceBand = "A"
	PriceBandB PriceBand = "B"
	PriceBandC PriceBand = "C"
)

// PriceBands lists the bands in canonical order
var PriceBands = []PriceBand{PriceBandA, PriceBandB, PriceBandC}

// Valid reports whether b is a known band
func (b PriceBand) Valid() bool {
	switch b {
	case PriceBandA, PriceBandB, PriceBandC:
		return true
	}
	return false
}

// ParsePriceBand accepts "A", "b", "PriceBandC" and similar spellings
func ParsePriceBand(s string) (PriceBand, error) {
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "PRICEBAND")
	b := PriceBand(s)
	if !b.Valid() {
		return "", ErrInvalidPriceBand
	}
	return b, nil
}

// Seat is a fixed slot in the venue, identified by row and number
type Seat struct {
	Row    string `json:"row"`
	Number int    `json:"number"`
}

// String renders the seat as e.g. "C12"
func (s Seat) String() string {
	return s.Row + strconv.Itoa(s.Number)
}

// ParseSeat is the inverse of Seat.String
func ParseSeat(s string) (Seat, error) {
	if len(s) < 2 {
		return Seat{}, fmt.Errorf("invalid seat %q", s)
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 {
		return Seat{}, fmt.Errorf("invalid seat %q", s)
	}
	return Seat{Row: s[:1], Number: n}, nil
}

// SeatSet is an unordered set of seats
type SeatSet map[Seat]struct{}

// NewSeatSet builds a set from any number of seat slices
func NewSeatSet(groups ...[]Seat) SeatSet {
	set := make(SeatSet)
	for _, seats := range groups {
		set.Add(seats...)
	}
	return set
}

func (s SeatSet) Add(seats ...Seat) {
	for _, seat := range seats {
		s[seat] = struct{}{}
	}
}

func (s SeatSet) Contains(seat Seat) bool {
	_, ok := s[seat]
	return ok
}

// CopySeats returns an independent copy of seats
func CopySeats(seats []Seat) []Seat {
	if seats == nil {
		return nil
	}
	out := make([]Seat, len(seats))
	copy(out, seats)
	return out
}

// Concert is a catalog entry. Relationships to performers are stored as ids.
type Concert struct {
	ID           string                `json:"id"`
	Title        string                `json:"title"`
	Dates        []time.Time           `json:"dates"`
	Prices       map[PriceBand]float64 `json:"prices"`
	PerformerIDs []string              `json:"performer_ids"`
}

// HasDate reports whether the concert is scheduled at exactly date
func (c *Concert) HasDate(date time.Time) bool {
	for _, d := range c.Dates {
		if d.Equal(date) {
			return true
		}
	}
	return false
}

// PriceOf returns the per-seat price for a band
func (c *Concert) PriceOf(band PriceBand) float64 {
	return c.Prices[band]
}
