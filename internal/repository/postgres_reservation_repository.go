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

const reservationColumns = `id, user_id, concert_id, concert_date, price_band, seat_count, seats, created_at, expires_at, version`

// PostgresReservationRepository implements ReservationRepository using
// PostgreSQL. The version column provides the optimistic check; the
// reservation_seats primary key rejects overlapping holds.
type PostgresReservationRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresReservationRepository creates a new PostgresReservationRepository
func NewPostgresReservationRepository(pool *pgxpool.Pool) *PostgresReservationRepository {
	return &PostgresReservationRepository{pool: pool}
}

// Get retrieves a reservation by id
func (r *PostgresReservationRepository) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.get")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	res, err := scanReservation(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "not found")
			return nil, domain.ErrReservationNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Put inserts the reservation and one row per held seat in a transaction
func (r *PostgresReservationRepository) Put(ctx context.Context, res *domain.Reservation) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.put")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", res.ID),
		attribute.String("concert_id", res.Request.ConcertID),
		attribute.Int("seat_count", len(res.Seats)),
	)

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO reservations (`+reservationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			res.ID,
			res.UserID,
			res.Request.ConcertID,
			res.Request.Date.UTC(),
			string(res.Request.Band),
			res.Request.Count,
			seatStrings(res.Seats),
			res.CreatedAt,
			res.ExpiresAt,
			res.Version,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, seat := range res.Seats {
			batch.Queue(`
				INSERT INTO reservation_seats (concert_id, concert_date, seat, reservation_id)
				VALUES ($1, $2, $3, $4)
			`, res.Request.ConcertID, res.Request.Date.UTC(), seat.String(), res.ID)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if database.IsErrorCode(err, database.UniqueViolation) {
			return fmt.Errorf("seat already held: %w", domain.ErrConcurrencyConflict)
		}
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes a reservation whose version matches
func (r *PostgresReservationRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.delete")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := r.deleteVersioned(ctx, tx, id, expectedVersion)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Expire removes a reservation and records a tombstone in the same transaction
func (r *PostgresReservationRepository) Expire(ctx context.Context, id string, expectedVersion int64, retainUntil time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.expire")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		expiresAt, err := r.deleteVersioned(ctx, tx, id, expectedVersion)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO reservation_tombstones (id, retain_until) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET retain_until = EXCLUDED.retain_until
		`, id, retainUntil); err != nil {
			return fmt.Errorf("failed to write tombstone: %w", err)
		}

		// anything retained for less than this lapsed hold's expiry is stale
		_, err = tx.Exec(ctx, `DELETE FROM reservation_tombstones WHERE retain_until < $1`, expiresAt)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// deleteVersioned deletes the row and returns its expiry. Seat rows go with
// it through ON DELETE CASCADE.
func (r *PostgresReservationRepository) deleteVersioned(ctx context.Context, tx pgx.Tx, id string, expectedVersion int64) (time.Time, error) {
	var expiresAt time.Time
	err := tx.QueryRow(ctx,
		`DELETE FROM reservations WHERE id = $1 AND version = $2 RETURNING expires_at`,
		id, expectedVersion,
	).Scan(&expiresAt)
	if err == nil {
		return expiresAt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("failed to delete reservation: %w", err)
	}
	return time.Time{}, r.missOrConflict(ctx, tx, id, expectedVersion)
}

// missOrConflict explains why a versioned statement matched no row
func (r *PostgresReservationRepository) missOrConflict(ctx context.Context, q pgx.Tx, id string, expectedVersion int64) error {
	var current int64
	err := q.QueryRow(ctx, `SELECT version FROM reservations WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrReservationNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read reservation version: %w", err)
	}
	return fmt.Errorf("reservation %s at version %d, expected %d: %w", id, current, expectedVersion, domain.ErrConcurrencyConflict)
}

// WasExpired reports whether a tombstone for id is retained at now
func (r *PostgresReservationRepository) WasExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM reservation_tombstones WHERE id = $1 AND retain_until > $2)`,
		id, now,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check reservation tombstone: %w", err)
	}
	return exists, nil
}

// CompareAndSwapVersion bumps the version if it equals expected
func (r *PostgresReservationRepository) CompareAndSwapVersion(ctx context.Context, id string, expected int64) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.cas_version")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", id),
		attribute.Int64("expected_version", expected),
	)

	var next int64
	err := database.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`UPDATE reservations SET version = version + 1 WHERE id = $1 AND version = $2 RETURNING version`,
			id, expected,
		).Scan(&next)
		if errors.Is(err, pgx.ErrNoRows) {
			return r.missOrConflict(ctx, tx, id, expected)
		}
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetStatus(codes.Ok, "")
	return next, nil
}

// ListBySlot returns the reservations of a concert date
func (r *PostgresReservationRepository) ListBySlot(ctx context.Context, slot domain.Slot) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.list_by_slot")
	defer span.End()

	span.SetAttributes(attribute.String("slot", slot.Key()))

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE concert_id = $1 AND concert_date = $2
		ORDER BY created_at
	`, slot.ConcertID, slot.Date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list slot reservations: %w", err)
	}

	result, err := collectReservations(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// ListExpired returns up to limit reservations with expiry <= before
func (r *PostgresReservationRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.list_expired")
	defer span.End()

	if limit <= 0 {
		limit = 1000
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE expires_at <= $1
		ORDER BY expires_at
		LIMIT $2
	`, before, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	result, err := collectReservations(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// HealthCheck pings the database
func (r *PostgresReservationRepository) HealthCheck(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func collectReservations(rows pgx.Rows) ([]*domain.Reservation, error) {
	defer rows.Close()

	result := make([]*domain.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		result = append(result, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reservations: %w", err)
	}
	return result, nil
}

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var (
		res   domain.Reservation
		band  string
		seats []string
	)
	err := row.Scan(
		&res.ID,
		&res.UserID,
		&res.Request.ConcertID,
		&res.Request.Date,
		&band,
		&res.Request.Count,
		&seats,
		&res.CreatedAt,
		&res.ExpiresAt,
		&res.Version,
	)
	if err != nil {
		return nil, err
	}

	res.Request.Band = domain.PriceBand(band)
	res.Request.Date = res.Request.Date.UTC()
	if res.Seats, err = parseSeats(seats); err != nil {
		return nil, err
	}
	return &res, nil
}

func seatStrings(seats []domain.Seat) []string {
	out := make([]string, len(seats))
	for i, s := range seats {
		out[i] = s.String()
	}
	return out
}

func parseSeats(raw []string) ([]domain.Seat, error) {
	out := make([]domain.Seat, 0, len(raw))
	for _, s := range raw {
		seat, err := domain.ParseSeat(s)
		if err != nil {
			return nil, err
		}
		out = append(out, seat)
	}
	return out, nil
}

var _ ReservationRepository = (*PostgresReservationRepository)(nil)
