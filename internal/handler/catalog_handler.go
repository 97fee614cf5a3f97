package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/pkg/response"
)

// CatalogHandler serves concert listings and seat availability
type CatalogHandler struct {
	catalogService     service.CatalogService
	reservationService service.ReservationService
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(catalogService service.CatalogService, reservationService service.ReservationService) *CatalogHandler {
	return &CatalogHandler{
		catalogService:     catalogService,
		reservationService: reservationService,
	}
}

// ListConcerts handles GET /concerts
func (h *CatalogHandler) ListConcerts(c *gin.Context) {
	concerts, err := h.catalogService.ListConcerts(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}

	response.List(c, dto.ConcertsFromDomain(concerts), len(concerts))
}

// GetConcert handles GET /concerts/:id
func (h *CatalogHandler) GetConcert(c *gin.Context) {
	concert, err := h.catalogService.GetConcert(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	response.Success(c, dto.ConcertFromDomain(concert))
}

// Availability handles GET /concerts/:id/availability?date=&band=
func (h *CatalogHandler) Availability(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.BadRequest(c, "INVALID_REQUEST", err.Error())
		return
	}

	concertID := c.Param("id")
	bands, err := h.reservationService.Availability(c.Request.Context(), concertID, query.Date)
	if err != nil {
		handleError(c, err)
		return
	}

	if query.PriceBand != "" {
		filtered := bands[:0]
		for _, b := range bands {
			if b.Band == domain.PriceBand(query.PriceBand) {
				filtered = append(filtered, b)
			}
		}
		bands = filtered
	}

	response.Success(c, &dto.AvailabilityResponse{
		ConcertID: concertID,
		Date:      query.Date.UTC(),
		Bands:     bands,
	})
}
