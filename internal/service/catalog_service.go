package service

import (
	"context"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// CatalogService defines the interface for concert catalog reads
type CatalogService interface {
	ListConcerts(ctx context.Context) ([]*domain.Concert, error)
	GetConcert(ctx context.Context, id string) (*domain.Concert, error)
}

type catalogService struct {
	concerts repository.ConcertRepository
}

// NewCatalogService creates a new catalog service
func NewCatalogService(concerts repository.ConcertRepository) CatalogService {
	return &catalogService{concerts: concerts}
}

// ListConcerts returns every concert in the catalog
func (s *catalogService) ListConcerts(ctx context.Context) ([]*domain.Concert, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.catalog.list_concerts")
	defer span.End()

	concerts, err := s.concerts.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(concerts)))
	span.SetStatus(codes.Ok, "")
	return concerts, nil
}

// GetConcert returns one concert or domain.ErrConcertNotFound
func (s *catalogService) GetConcert(ctx context.Context, id string) (*domain.Concert, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.catalog.get_concert")
	defer span.End()

	if id == "" {
		return nil, domain.ErrInvalidConcertID
	}
	span.SetAttributes(attribute.String("concert_id", id))

	concert, err := s.concerts.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return concert, nil
}

var _ CatalogService = (*catalogService)(nil)
