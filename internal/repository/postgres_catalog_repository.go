package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresConcertRepository implements ConcertRepository using PostgreSQL
type PostgresConcertRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresConcertRepository creates a new PostgresConcertRepository
func NewPostgresConcertRepository(pool *pgxpool.Pool) *PostgresConcertRepository {
	return &PostgresConcertRepository{pool: pool}
}

// GetByID retrieves a concert by id
func (r *PostgresConcertRepository) GetByID(ctx context.Context, id string) (*domain.Concert, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.concert.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("concert_id", id))

	c, err := scanConcert(r.pool.QueryRow(ctx, `
		SELECT id, title, dates, prices, performer_ids FROM concerts WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrConcertNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get concert: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return c, nil
}

// List returns all concerts ordered by title
func (r *PostgresConcertRepository) List(ctx context.Context) ([]*domain.Concert, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.concert.list")
	defer span.End()

	rows, err := r.pool.Query(ctx, `
		SELECT id, title, dates, prices, performer_ids FROM concerts ORDER BY title, id
	`)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list concerts: %w", err)
	}
	defer rows.Close()

	concerts := make([]*domain.Concert, 0)
	for rows.Next() {
		c, err := scanConcert(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan concert: %w", err)
		}
		concerts = append(concerts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate concerts: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return concerts, nil
}

// Save upserts a concert
func (r *PostgresConcertRepository) Save(ctx context.Context, c *domain.Concert) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.concert.save")
	defer span.End()

	span.SetAttributes(attribute.String("concert_id", c.ID))

	prices := make(map[string]float64, len(c.Prices))
	for band, price := range c.Prices {
		prices[string(band)] = price
	}
	dates := make([]time.Time, len(c.Dates))
	for i, d := range c.Dates {
		dates[i] = d.UTC()
	}
	performers := c.PerformerIDs
	if performers == nil {
		performers = []string{}
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO concerts (id, title, dates, prices, performer_ids)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			dates = EXCLUDED.dates,
			prices = EXCLUDED.prices,
			performer_ids = EXCLUDED.performer_ids
	`, c.ID, c.Title, dates, prices, performers)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to save concert: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func scanConcert(row pgx.Row) (*domain.Concert, error) {
	var (
		c      domain.Concert
		prices map[string]float64
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Dates, &prices, &c.PerformerIDs); err != nil {
		return nil, err
	}

	for i := range c.Dates {
		c.Dates[i] = c.Dates[i].UTC()
	}
	c.Prices = make(map[domain.PriceBand]float64, len(prices))
	for raw, price := range prices {
		band, err := domain.ParsePriceBand(raw)
		if err != nil {
			return nil, err
		}
		c.Prices[band] = price
	}
	return &c, nil
}

// PostgresAccountRepository implements AccountRepository using PostgreSQL
type PostgresAccountRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresAccountRepository creates a new PostgresAccountRepository
func NewPostgresAccountRepository(pool *pgxpool.Pool) *PostgresAccountRepository {
	return &PostgresAccountRepository{pool: pool}
}

// Get returns the account with its booking ids
func (r *PostgresAccountRepository) Get(ctx context.Context, userID string) (*domain.Account, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.account.get")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	var (
		cardType, holder, last4 *string
		expiry                  *time.Time
	)
	err := r.pool.QueryRow(ctx, `
		SELECT card_type, card_holder, card_last4, card_expiry FROM accounts WHERE user_id = $1
	`, userID).Scan(&cardType, &holder, &last4, &expiry)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrAccountNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	account := &domain.Account{UserID: userID}
	if last4 != nil && cardType != nil {
		account.CreditCard = &domain.CreditCard{
			Type:  domain.CreditCardType(*cardType),
			Last4: *last4,
		}
		if holder != nil {
			account.CreditCard.Holder = *holder
		}
		if expiry != nil {
			account.CreditCard.ExpiryDate = expiry.UTC()
		}
	}

	rows, err := r.pool.Query(ctx, `SELECT booking_id FROM account_bookings WHERE user_id = $1 ORDER BY booking_id`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list account bookings: %w", err)
	}
	account.BookingIDs, err = pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan account bookings: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return account, nil
}

// HasCreditCard reports whether the user has a card on file
func (r *PostgresAccountRepository) HasCreditCard(ctx context.Context, userID string) (bool, error) {
	var has bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE user_id = $1 AND card_last4 IS NOT NULL)
	`, userID).Scan(&has)
	if err != nil {
		return false, fmt.Errorf("failed to check credit card: %w", err)
	}
	return has, nil
}

// RegisterCreditCard stores or replaces the user's card
func (r *PostgresAccountRepository) RegisterCreditCard(ctx context.Context, userID string, card *domain.CreditCard) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.account.register_credit_card")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	_, err := r.pool.Exec(ctx, `
		INSERT INTO accounts (user_id, card_type, card_holder, card_last4, card_expiry)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			card_type = EXCLUDED.card_type,
			card_holder = EXCLUDED.card_holder,
			card_last4 = EXCLUDED.card_last4,
			card_expiry = EXCLUDED.card_expiry
	`, userID, string(card.Type), card.Holder, card.Last4, card.ExpiryDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to register credit card: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// AttachBooking records a booking against the user, creating the account if needed
func (r *PostgresAccountRepository) AttachBooking(ctx context.Context, userID, bookingID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.account.attach_booking")
	defer span.End()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("booking_id", bookingID),
	)

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO accounts (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO account_bookings (user_id, booking_id) VALUES ($1, $2) ON CONFLICT DO NOTHING
		`, userID, bookingID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to attach booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

var (
	_ ConcertRepository = (*PostgresConcertRepository)(nil)
	_ AccountRepository = (*PostgresAccountRepository)(nil)
)
