package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const bookingColumns = `id, reservation_id, user_id, concert_id, concert_date, price_band, seats, created_at`

// PostgresBookingRepository implements BookingRepository using PostgreSQL
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

// Create inserts a booking and its seats in a single transaction
func (r *PostgresBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", b.ID),
		attribute.String("reservation_id", b.ReservationID),
		attribute.String("concert_id", b.ConcertID),
		attribute.Int("seat_count", len(b.Seats)),
	)

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
			b.ID,
			b.ReservationID,
			b.UserID,
			b.ConcertID,
			b.Date.UTC(),
			string(b.Band),
			seatStrings(b.Seats),
			b.CreatedAt,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, seat := range b.Seats {
			batch.Queue(`
				INSERT INTO booked_seats (concert_id, concert_date, seat, booking_id)
				VALUES ($1, $2, $3, $4)
			`, b.ConcertID, b.Date.UTC(), seat.String(), b.ID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if database.IsErrorCode(err, database.UniqueViolation) {
			return fmt.Errorf("booking overlaps an existing one: %w", domain.ErrConcurrencyConflict)
		}
		return fmt.Errorf("failed to create booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a booking by id
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	b, err := scanBooking(r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return b, nil
}

// ListBySlot returns every booking for a concert date
func (r *PostgresBookingRepository) ListBySlot(ctx context.Context, slot domain.Slot) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.list_by_slot")
	defer span.End()

	span.SetAttributes(attribute.String("slot", slot.Key()))

	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE concert_id = $1 AND concert_date = $2
		ORDER BY created_at
	`, slot.ConcertID, slot.Date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list slot bookings: %w", err)
	}

	bookings, err := collectBookings(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// ListByUser returns a user's bookings, newest first
func (r *PostgresBookingRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.booking.list_by_user")
	defer span.End()

	span.SetAttributes(attribute.String("user_id", userID))

	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list user bookings: %w", err)
	}

	bookings, err := collectBookings(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

func collectBookings(rows pgx.Rows) ([]*domain.Booking, error) {
	defer rows.Close()

	bookings := make([]*domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b     domain.Booking
		band  string
		seats []string
	)
	if err := row.Scan(
		&b.ID,
		&b.ReservationID,
		&b.UserID,
		&b.ConcertID,
		&b.Date,
		&band,
		&seats,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}

	b.Band = domain.PriceBand(band)
	b.Date = b.Date.UTC()
	var err error
	if b.Seats, err = parseSeats(seats); err != nil {
		return nil, err
	}
	return &b, nil
}

var _ BookingRepository = (*PostgresBookingRepository)(nil)
