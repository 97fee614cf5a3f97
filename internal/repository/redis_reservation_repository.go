package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

//go:embed scripts/put_reservation.lua
var putReservationScript string

//go:embed scripts/cas_version.lua
var casVersionScript string

//go:embed scripts/remove_reservation.lua
var removeReservationScript string

var (
	putReservationLua    = pkgredis.NewScript("put_reservation", putReservationScript)
	casVersionLua        = pkgredis.NewScript("cas_version", casVersionScript)
	removeReservationLua = pkgredis.NewScript("remove_reservation", removeReservationScript)
)

const reservationExpiryKey = "reservations:expiry"

func reservationKey(id string) string          { return "reservation:" + id }
func reservationTombstoneKey(id string) string { return "reservation:expired:" + id }
func slotIndexKey(slotKey string) string       { return "reservations:slot:" + slotKey }
func slotSeatsKey(slotKey string) string       { return "reservations:slot:" + slotKey + ":seats" }

// RedisReservationRepository implements ReservationRepository on Redis.
// Each reservation is a hash (JSON payload plus a version field); a per-slot
// hash maps held seats to their reservation so inserts detect collisions
// atomically inside a Lua script.
type RedisReservationRepository struct {
	client *pkgredis.Client
}

// NewRedisReservationRepository creates a new RedisReservationRepository
func NewRedisReservationRepository(client *pkgredis.Client) *RedisReservationRepository {
	return &RedisReservationRepository{client: client}
}

// LoadScripts loads all Lua scripts into Redis
func (r *RedisReservationRepository) LoadScripts(ctx context.Context) error {
	return r.client.LoadScripts(ctx, putReservationLua, casVersionLua, removeReservationLua)
}

// HealthCheck pings Redis
func (r *RedisReservationRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

// Get retrieves a reservation by id
func (r *RedisReservationRepository) Get(ctx context.Context, id string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.reservation.get")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	fields, err := r.client.Redis().HGetAll(ctx, reservationKey(id)).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	if len(fields) == 0 {
		span.SetStatus(codes.Ok, "not found")
		return nil, domain.ErrReservationNotFound
	}

	res, err := decodeReservation(fields)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Put inserts a reservation atomically with its seat claims
func (r *RedisReservationRepository) Put(ctx context.Context, res *domain.Reservation) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.reservation.put")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", res.ID),
		attribute.String("concert_id", res.Request.ConcertID),
		attribute.Int("seat_count", len(res.Seats)),
	)

	payload, err := json.Marshal(res)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to encode reservation: %w", err)
	}

	slotKey := res.Slot().Key()
	keys := []string{reservationKey(res.ID), slotIndexKey(slotKey), slotSeatsKey(slotKey), reservationExpiryKey}
	args := []interface{}{
		res.ID,                    // ARGV[1]: id
		string(payload),           // ARGV[2]: payload
		res.Version,               // ARGV[3]: version
		res.ExpiresAt.UnixMilli(), // ARGV[4]: expires_at ms
		slotKey,                   // ARGV[5]: slot key
	}
	for _, seat := range res.Seats {
		args = append(args, seat.String())
	}

	_, err = r.runScript(ctx, putReservationLua, keys, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Delete removes a reservation if its version matches
func (r *RedisReservationRepository) Delete(ctx context.Context, id string, expectedVersion int64) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.reservation.delete")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	if err := r.remove(ctx, id, expectedVersion, time.Time{}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Expire removes a reservation and leaves a tombstone with a TTL
func (r *RedisReservationRepository) Expire(ctx context.Context, id string, expectedVersion int64, retainUntil time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.reservation.expire")
	defer span.End()

	span.SetAttributes(attribute.String("reservation_id", id))

	if err := r.remove(ctx, id, expectedVersion, retainUntil); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

func (r *RedisReservationRepository) remove(ctx context.Context, id string, expectedVersion int64, retainUntil time.Time) error {
	// seats and slot are needed to build the keys
	res, err := r.Get(ctx, id)
	if err != nil {
		return err
	}

	var tombstoneTTL int64
	if !retainUntil.IsZero() {
		// measured from the hold's expiry, which is never after the caller's now
		tombstoneTTL = retainUntil.Sub(res.ExpiresAt).Milliseconds()
		if tombstoneTTL < 1 {
			tombstoneTTL = 1
		}
	}

	slotKey := res.Slot().Key()
	keys := []string{
		reservationKey(id),
		slotIndexKey(slotKey),
		slotSeatsKey(slotKey),
		reservationExpiryKey,
		reservationTombstoneKey(id),
	}
	args := []interface{}{id, expectedVersion, tombstoneTTL}
	for _, seat := range res.Seats {
		args = append(args, seat.String())
	}

	_, err = r.runScript(ctx, removeReservationLua, keys, args...)
	return err
}

// WasExpired checks for a tombstone; Redis TTL handles retention
func (r *RedisReservationRepository) WasExpired(ctx context.Context, id string, _ time.Time) (bool, error) {
	n, err := r.client.Redis().Exists(ctx, reservationTombstoneKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check reservation tombstone: %w", err)
	}
	return n == 1, nil
}

// CompareAndSwapVersion bumps the version if it equals expected
func (r *RedisReservationRepository) CompareAndSwapVersion(ctx context.Context, id string, expected int64) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.reservation.cas_version")
	defer span.End()

	span.SetAttributes(
		attribute.String("reservation_id", id),
		attribute.Int64("expected_version", expected),
	)

	value, err := r.runScript(ctx, casVersionLua, []string{reservationKey(id)}, expected)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	next, ok := toInt64(value)
	if !ok {
		err := fmt.Errorf("unexpected version value %v", value)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	span.SetStatus(codes.Ok, "")
	return next, nil
}

// ListBySlot returns the reservations of a concert date
func (r *RedisReservationRepository) ListBySlot(ctx context.Context, slot domain.Slot) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.reservation.list_by_slot")
	defer span.End()

	span.SetAttributes(attribute.String("slot", slot.Key()))

	ids, err := r.client.Redis().SMembers(ctx, slotIndexKey(slot.Key())).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list slot reservations: %w", err)
	}

	result, err := r.fetch(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// ListExpired returns up to limit reservations with expiry <= before
func (r *RedisReservationRepository) ListExpired(ctx context.Context, before time.Time, limit int) ([]*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.redis.reservation.list_expired")
	defer span.End()

	ids, err := r.client.Redis().ZRangeByScore(ctx, reservationExpiryKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(before.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	result, err := r.fetch(ctx, ids)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(result)))
	span.SetStatus(codes.Ok, "")
	return result, nil
}

// fetch loads reservations in one pipeline, skipping ids removed meanwhile
func (r *RedisReservationRepository) fetch(ctx context.Context, ids []string) ([]*domain.Reservation, error) {
	if len(ids) == 0 {
		return []*domain.Reservation{}, nil
	}

	pipe := r.client.Redis().Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, reservationKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to load reservations: %w", err)
	}

	result := make([]*domain.Reservation, 0, len(ids))
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		res, err := decodeReservation(fields)
		if err != nil {
			return nil, err
		}
		result = append(result, res)
	}
	return result, nil
}

// runScript executes a script following the {success, value, message} convention
func (r *RedisReservationRepository) runScript(ctx context.Context, script *pkgredis.Script, keys []string, args ...interface{}) (interface{}, error) {
	values, err := r.client.Run(ctx, script, keys, args...).Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s script: %w", script.Name, err)
	}
	if len(values) < 3 {
		return nil, fmt.Errorf("unexpected %s script result length: %d", script.Name, len(values))
	}

	if success, _ := toInt64(values[0]); success == 1 {
		return values[1], nil
	}

	code, _ := values[1].(string)
	message, _ := values[2].(string)
	switch code {
	case "NOT_FOUND":
		return nil, domain.ErrReservationNotFound
	case "CONFLICT":
		return nil, fmt.Errorf("%s: %w", message, domain.ErrConcurrencyConflict)
	default:
		return nil, fmt.Errorf("%s script failed: %s %s", script.Name, code, message)
	}
}

func decodeReservation(fields map[string]string) (*domain.Reservation, error) {
	var res domain.Reservation
	if err := json.Unmarshal([]byte(fields["payload"]), &res); err != nil {
		return nil, fmt.Errorf("failed to decode reservation: %w", err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid reservation version %q: %w", fields["version"], err)
	}
	res.Version = version
	return &res, nil
}

// toInt64 converts a Lua reply number
func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

var _ ReservationRepository = (*RedisReservationRepository)(nil)
