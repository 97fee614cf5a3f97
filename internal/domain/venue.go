package domain

import (
	"fmt"
	"strings"
)

// Default venue layout: rows A..R, 20 seats each, bands in blocks of six rows
const (
	DefaultVenueRows   = "ABCDEFGHIJKLMNOPQR"
	DefaultSeatsPerRow = 20
)

// DefaultBandRows maps each band to an inclusive row range
var DefaultBandRows = map[string]string{
	"A": "A-F",
	"B": "G-L",
	"C": "M-R",
}

// Venue is the fixed seat map shared by every concert and date.
// It is immutable after construction and safe for concurrent use.
type Venue struct {
	rows        []string
	seatsPerRow int
	bandSeats   map[PriceBand][]Seat
	seatBand    map[Seat]PriceBand
}

// NewVenue builds a venue from single-letter rows, a seat count per row and
// band row ranges such as {"A": "A-F"}. Rows not covered by a band hold no
// sellable seats; a row may belong to at most one band.
func NewVenue(rows string, seatsPerRow int, bandRows map[string]string) (*Venue, error) {
	if rows == "" {
		return nil, fmt.Errorf("venue: no rows")
	}
	if seatsPerRow < 1 {
		return nil, fmt.Errorf("venue: seats per row must be at least 1")
	}

	v := &Venue{
		seatsPerRow: seatsPerRow,
		bandSeats:   make(map[PriceBand][]Seat),
		seatBand:    make(map[Seat]PriceBand),
	}

	index := make(map[string]int, len(rows))
	for i, r := range rows {
		row := string(r)
		if _, dup := index[row]; dup {
			return nil, fmt.Errorf("venue: duplicate row %s", row)
		}
		index[row] = i
		v.rows = append(v.rows, row)
	}

	rowBand := make(map[string]PriceBand)
	for rawBand, rng := range bandRows {
		band, err := ParsePriceBand(rawBand)
		if err != nil {
			return nil, fmt.Errorf("venue: band %q: %w", rawBand, err)
		}
		from, to, ok := strings.Cut(strings.TrimSpace(rng), "-")
		if !ok {
			to = from
		}
		start, okStart := index[strings.TrimSpace(from)]
		end, okEnd := index[strings.TrimSpace(to)]
		if !okStart || !okEnd || start > end {
			return nil, fmt.Errorf("venue: band %s has invalid row range %q", band, rng)
		}
		for i := start; i <= end; i++ {
			if other, taken := rowBand[v.rows[i]]; taken {
				return nil, fmt.Errorf("venue: row %s assigned to bands %s and %s", v.rows[i], other, band)
			}
			rowBand[v.rows[i]] = band
		}
	}

	// canonical order: row order, then seat number
	for _, row := range v.rows {
		band, ok := rowBand[row]
		if !ok {
			continue
		}
		for n := 1; n <= seatsPerRow; n++ {
			seat := Seat{Row: row, Number: n}
			v.bandSeats[band] = append(v.bandSeats[band], seat)
			v.seatBand[seat] = band
		}
	}

	return v, nil
}

// DefaultVenue returns the standard 18-row layout
func DefaultVenue() *Venue {
	v, err := NewVenue(DefaultVenueRows, DefaultSeatsPerRow, DefaultBandRows)
	if err != nil {
		panic(err)
	}
	return v
}

// SeatsInBand returns the band's seats in canonical order. The returned
// slice is shared and must not be modified.
func (v *Venue) SeatsInBand(band PriceBand) []Seat {
	return v.bandSeats[band]
}

// Capacity is the number of seats in a band
func (v *Venue) Capacity(band PriceBand) int {
	return len(v.bandSeats[band])
}

// BandOf returns the band a seat belongs to
func (v *Venue) BandOf(seat Seat) (PriceBand, bool) {
	band, ok := v.seatBand[seat]
	return band, ok
}

// Rows returns the venue rows in order
func (v *Venue) Rows() []string {
	return append([]string(nil), v.rows...)
}
