package dto

import (
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/service"
)

// ConcertResponse represents a concert in API response
type ConcertResponse struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	Dates        []time.Time        `json:"dates"`
	Prices       map[string]float64 `json:"prices"`
	PerformerIDs []string           `json:"performer_ids"`
}

// ConcertFromDomain converts a domain concert to its response
func ConcertFromDomain(c *domain.Concert) *ConcertResponse {
	prices := make(map[string]float64, len(c.Prices))
	for band, price := range c.Prices {
		prices[string(band)] = price
	}
	performers := c.PerformerIDs
	if performers == nil {
		performers = []string{}
	}
	return &ConcertResponse{
		ID:           c.ID,
		Title:        c.Title,
		Dates:        c.Dates,
		Prices:       prices,
		PerformerIDs: performers,
	}
}

// ConcertsFromDomain converts a list of concerts
func ConcertsFromDomain(concerts []*domain.Concert) []*ConcertResponse {
	out := make([]*ConcertResponse, 0, len(concerts))
	for _, c := range concerts {
		out = append(out, ConcertFromDomain(c))
	}
	return out
}

// AvailabilityQuery is the query string of the availability endpoint
type AvailabilityQuery struct {
	Date      time.Time `form:"date" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	PriceBand string    `form:"band" binding:"omitempty,priceband"`
}

// AvailabilityResponse represents free seats of a concert date
type AvailabilityResponse struct {
	ConcertID string                     `json:"concert_id"`
	Date      time.Time                  `json:"date"`
	Bands     []service.BandAvailability `json:"bands"`
}
