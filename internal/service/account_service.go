package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// RegisterCreditCardInput is a raw card as submitted by the user
type RegisterCreditCardInput struct {
	Type   domain.CreditCardType
	Holder string
	Number string
	Expiry string // YYYY-MM
}

// AccountService defines the interface for the caller's billing and bookings
type AccountService interface {
	RegisterCreditCard(ctx context.Context, userID string, in *RegisterCreditCardInput) (*domain.CreditCard, error)
	ListBookings(ctx context.Context, userID string) ([]*domain.Booking, error)
}

type accountService struct {
	accounts repository.AccountRepository
	bookings repository.BookingRepository
}

// NewAccountService creates a new account service
func NewAccountService(accounts repository.AccountRepository, bookings repository.BookingRepository) AccountService {
	return &accountService{
		accounts: accounts,
		bookings: bookings,
	}
}

// RegisterCreditCard validates the card and stores or replaces it
func (s *accountService) RegisterCreditCard(ctx context.Context, userID string, in *RegisterCreditCardInput) (*domain.CreditCard, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.account.register_credit_card")
	defer span.End()

	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	if in == nil {
		return nil, domain.ErrInvalidCreditCard
	}
	span.SetAttributes(attribute.String("user_id", userID))

	expiry, err := parseCardExpiry(in.Expiry)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	card, err := domain.NewCreditCard(in.Type, in.Holder, in.Number, expiry)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if err := s.accounts.RegisterCreditCard(ctx, userID, card); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to register credit card: %w", err)
	}

	logger.Get().InfoContext(ctx, "credit card registered",
		zap.String("user_id", userID),
		zap.String("card_type", string(card.Type)),
	)
	span.SetStatus(codes.Ok, "")
	return card, nil
}

// ListBookings returns the caller's bookings, newest first
func (s *accountService) ListBookings(ctx context.Context, userID string) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.account.list_bookings")
	defer span.End()

	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	span.SetAttributes(attribute.String("user_id", userID))

	bookings, err := s.bookings.ListByUser(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// parseCardExpiry reads a YYYY-MM expiry as the first day of that month
func parseCardExpiry(raw string) (time.Time, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, domain.ErrInvalidCreditCard
	}
	return t, nil
}

var _ AccountService = (*accountService)(nil)
