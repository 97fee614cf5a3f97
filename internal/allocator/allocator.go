// Package allocator picks seats for a reservation request.
package allocator

import "github.com/prohmpiriya/concert-booking/internal/domain"

// Allocate returns the first count free seats of band in the venue's
// canonical order (row, then seat number). It returns nil when fewer than
// count seats are free; a partial set is never returned.
//
// Allocate only reads its arguments and may be called concurrently.
func Allocate(venue *domain.Venue, band domain.PriceBand, count int, taken domain.SeatSet) []domain.Seat {
	if count < 1 {
		return nil
	}

	candidates := venue.SeatsInBand(band)
	if len(candidates) < count {
		return nil
	}

	offered := make([]domain.Seat, 0, count)
	for _, seat := range candidates {
		if taken.Contains(seat) {
			continue
		}
		offered = append(offered, seat)
		if len(offered) == count {
			return offered
		}
	}
	return nil
}

// Available counts the free seats of band
func Available(venue *domain.Venue, band domain.PriceBand, taken domain.SeatSet) int {
	free := 0
	for _, seat := range venue.SeatsInBand(band) {
		if !taken.Contains(seat) {
			free++
		}
	}
	return free
}
