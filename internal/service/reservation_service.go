package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/concert-booking/internal/allocator"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/retry"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Expiry triggers, used as metric labels
const (
	triggerSweep   = "sweep"
	triggerConfirm = "confirm"
	triggerWorker  = "worker"
)

// ReservationService is the reservation lifecycle manager. It holds seats
// for a bounded time, promotes holds to bookings, and sweeps lapsed holds.
type ReservationService interface {
	// Reserve holds count seats of a price band for a concert date
	Reserve(ctx context.Context, userID string, req domain.ReservationRequest) (*domain.Reservation, error)

	// Confirm promotes the caller's reservation to a permanent booking
	Confirm(ctx context.Context, userID, reservationID string) (*domain.Booking, error)

	// GetReservation returns one of the caller's live reservations
	GetReservation(ctx context.Context, userID, reservationID string) (*domain.Reservation, error)

	// Availability reports free seats per price band for a concert date
	Availability(ctx context.Context, concertID string, date time.Time) ([]BandAvailability, error)

	// ExpireReservations removes up to limit lapsed holds across all
	// concerts and returns how many were expired
	ExpireReservations(ctx context.Context, limit int) (int, error)
}

// BandAvailability is the seat count summary of one price band
type BandAvailability struct {
	Band      domain.PriceBand `json:"price_band"`
	Price     float64          `json:"price"`
	Capacity  int              `json:"capacity"`
	Available int              `json:"available"`
}

// ReservationServiceConfig contains configuration for the reservation service
type ReservationServiceConfig struct {
	// HoldDuration is how long a reservation keeps its seats
	HoldDuration time.Duration
	// ExpiredRetention is how long an expired id still answers ReservationExpired
	ExpiredRetention time.Duration
	// ConflictBackoff is the pause before the single conflict retry
	ConflictBackoff time.Duration
	// LockTimeout bounds the wait for a concert date's lock
	LockTimeout time.Duration
}

// reservationService implements ReservationService
type reservationService struct {
	reservations repository.ReservationRepository
	bookings     repository.BookingRepository
	concerts     repository.ConcertRepository
	accounts     repository.AccountRepository
	locker       lock.Locker
	venue        *domain.Venue
	publisher    EventPublisher
	metrics      *metrics.Metrics
	clock        Clock

	holdDuration     time.Duration
	expiredRetention time.Duration
	conflictBackoff  time.Duration
	lockTimeout      time.Duration
}

// ReservationServiceDeps groups the collaborators of the reservation service
type ReservationServiceDeps struct {
	Reservations repository.ReservationRepository
	Bookings     repository.BookingRepository
	Concerts     repository.ConcertRepository
	Accounts     repository.AccountRepository
	Locker       lock.Locker
	Venue        *domain.Venue
	Publisher    EventPublisher
	Metrics      *metrics.Metrics
	Clock        Clock
}

// NewReservationService creates a new reservation service
func NewReservationService(deps ReservationServiceDeps, cfg *ReservationServiceConfig) ReservationService {
	s := &reservationService{
		reservations:     deps.Reservations,
		bookings:         deps.Bookings,
		concerts:         deps.Concerts,
		accounts:         deps.Accounts,
		locker:           deps.Locker,
		venue:            deps.Venue,
		publisher:        deps.Publisher,
		metrics:          deps.Metrics,
		clock:            deps.Clock,
		holdDuration:     domain.DefaultHoldDuration,
		expiredRetention: 24 * time.Hour,
		conflictBackoff:  10 * time.Millisecond,
		lockTimeout:      5 * time.Second,
	}
	if cfg != nil {
		if cfg.HoldDuration > 0 {
			s.holdDuration = cfg.HoldDuration
		}
		if cfg.ExpiredRetention > 0 {
			s.expiredRetention = cfg.ExpiredRetention
		}
		if cfg.ConflictBackoff > 0 {
			s.conflictBackoff = cfg.ConflictBackoff
		}
		if cfg.LockTimeout > 0 {
			s.lockTimeout = cfg.LockTimeout
		}
	}
	if s.locker == nil {
		s.locker = lock.NewLocalLocker()
	}
	if s.venue == nil {
		s.venue = domain.DefaultVenue()
	}
	if s.publisher == nil {
		s.publisher = NewNoOpEventPublisher()
	}
	if s.clock == nil {
		s.clock = SystemClock{}
	}
	return s
}

// Reserve holds seats. The sweep, allocation and insert for a concert date
// run under that date's lock; a conflict from the store is retried once and
// then reported as insufficient seats.
func (s *reservationService) Reserve(ctx context.Context, userID string, req domain.ReservationRequest) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.reserve")
	defer span.End()
	defer s.metrics.ObserveDuration("reserve", time.Now())

	if userID == "" {
		span.SetStatus(codes.Error, "unauthenticated")
		return nil, domain.ErrUnauthenticated
	}
	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ReservationAttempt(string(req.Band), metrics.OutcomeRejected, 0)
		return nil, err
	}
	req.Date = req.Date.UTC()

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("concert_id", req.ConcertID),
		attribute.String("date", req.Date.Format(time.RFC3339)),
		attribute.String("price_band", string(req.Band)),
		attribute.Int("seat_count", req.Count),
	)

	concert, err := s.concerts.GetByID(ctx, req.ConcertID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ReservationAttempt(string(req.Band), metrics.OutcomeRejected, 0)
		return nil, err
	}
	if !concert.HasDate(req.Date) {
		span.SetStatus(codes.Error, "date not scheduled")
		s.metrics.ReservationAttempt(string(req.Band), metrics.OutcomeRejected, 0)
		return nil, domain.ErrDateNotScheduled
	}

	var (
		res     *domain.Reservation
		expired []*domain.Reservation
	)
	err = retry.Do(ctx, retry.Once(s.conflictBackoff, domain.IsConflictError), func(ctx context.Context) error {
		var swept []*domain.Reservation
		var err error
		res, swept, err = s.reserveLocked(ctx, userID, req)
		expired = append(expired, swept...)
		if domain.IsConflictError(err) {
			s.metrics.Conflict("reserve")
		}
		return err
	})

	s.afterSweep(ctx, triggerSweep, expired)

	if err != nil {
		if domain.IsConflictError(err) {
			err = domain.ErrInsufficientSeats
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, domain.ErrInsufficientSeats) {
			s.metrics.ReservationAttempt(string(req.Band), metrics.OutcomeRejected, 0)
		} else {
			s.metrics.ReservationAttempt(string(req.Band), metrics.OutcomeError, 0)
		}
		return nil, err
	}

	s.metrics.ReservationAttempt(string(req.Band), metrics.OutcomeSuccess, len(res.Seats))
	s.publish(ctx, domain.NewReservationEvent(domain.EventReservationCreated, res, uuid.New().String(), res.CreatedAt))

	span.SetAttributes(
		attribute.String("reservation_id", res.ID),
		attribute.Int("expired_count", len(expired)),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// reserveLocked is one attempt of sweep, allocate and insert for a concert date
func (s *reservationService) reserveLocked(ctx context.Context, userID string, req domain.ReservationRequest) (*domain.Reservation, []*domain.Reservation, error) {
	slot := req.Slot()
	unlock, err := s.lockSlot(ctx, slot)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	now := s.clock.Now()
	live, expired, err := s.sweepSlot(ctx, slot, now)
	if err != nil {
		return nil, expired, err
	}

	taken, err := s.takenSeats(ctx, slot, live)
	if err != nil {
		return nil, expired, err
	}

	seats := allocator.Allocate(s.venue, req.Band, req.Count, taken)
	if seats == nil {
		return nil, expired, domain.ErrInsufficientSeats
	}

	res := domain.NewReservation(userID, req, seats, now, s.holdDuration)
	if err := s.reservations.Put(ctx, res); err != nil {
		return nil, expired, err
	}
	return res, expired, nil
}

// sweepSlot expires the lapsed reservations of a slot and returns the rest.
// Ids are collected first and removed afterwards. A reservation another
// caller is already expiring or confirming is skipped; a version conflict
// leaves it counted as live.
func (s *reservationService) sweepSlot(ctx context.Context, slot domain.Slot, now time.Time) (live, expired []*domain.Reservation, err error) {
	all, err := s.reservations.ListBySlot(ctx, slot)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	var lapsed []*domain.Reservation
	for _, r := range all {
		if r.IsExpired(now) {
			lapsed = append(lapsed, r)
		} else {
			live = append(live, r)
		}
	}

	for _, r := range lapsed {
		err := s.reservations.Expire(ctx, r.ID, r.Version, now.Add(s.expiredRetention))
		switch {
		case err == nil:
			expired = append(expired, r)
		case errors.Is(err, domain.ErrReservationNotFound):
		case domain.IsConflictError(err):
			live = append(live, r)
		default:
			return nil, expired, fmt.Errorf("failed to expire reservation %s: %w", r.ID, err)
		}
	}
	return live, expired, nil
}

// takenSeats is every booked seat of the slot plus every seat held by live
func (s *reservationService) takenSeats(ctx context.Context, slot domain.Slot, live []*domain.Reservation) (domain.SeatSet, error) {
	booked, err := s.bookings.ListBySlot(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	taken := domain.NewSeatSet()
	for _, b := range booked {
		taken.Add(b.Seats...)
	}
	for _, r := range live {
		taken.Add(r.Seats...)
	}
	return taken, nil
}

// Confirm promotes a reservation. Under the concert date's lock the
// reservation is re-read and its expiry checked again, then its version is
// claimed before the booking is written, so a sweep or a racing confirm
// cannot act on the same version.
func (s *reservationService) Confirm(ctx context.Context, userID, reservationID string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.confirm")
	defer span.End()
	defer s.metrics.ObserveDuration("confirm", time.Now())

	if userID == "" {
		span.SetStatus(codes.Error, "unauthenticated")
		return nil, domain.ErrUnauthenticated
	}
	if reservationID == "" {
		span.SetStatus(codes.Error, "missing reservation id")
		return nil, domain.ErrInvalidReservationID
	}

	span.SetAttributes(
		attribute.String("user_id", userID),
		attribute.String("reservation_id", reservationID),
	)

	res, err := s.ownedReservation(ctx, userID, reservationID)
	if err != nil {
		return nil, s.failConfirm(span, "", err)
	}
	band := string(res.Request.Band)

	hasCard, err := s.accounts.HasCreditCard(ctx, userID)
	if err != nil {
		return nil, s.failConfirm(span, band, fmt.Errorf("failed to check credit card: %w", err))
	}
	if !hasCard {
		return nil, s.failConfirm(span, band, domain.ErrCreditCardNotRegistered)
	}

	var (
		booking *domain.Booking
		lapsed  *domain.Reservation
	)
	err = retry.Do(ctx, retry.Once(s.conflictBackoff, domain.IsConflictError), func(ctx context.Context) error {
		var err error
		booking, lapsed, err = s.confirmLocked(ctx, userID, res.Slot(), reservationID)
		if domain.IsConflictError(err) {
			s.metrics.Conflict("confirm")
		}
		return err
	})

	if lapsed != nil {
		s.afterSweep(ctx, triggerConfirm, []*domain.Reservation{lapsed})
	}

	if err != nil {
		if domain.IsConflictError(err) {
			err = s.resolveConfirmConflict(ctx, reservationID)
		}
		return nil, s.failConfirm(span, band, err)
	}

	s.metrics.ConfirmAttempt(band, metrics.OutcomeSuccess, len(booking.Seats))
	s.publish(ctx, domain.NewBookingEvent(booking, uuid.New().String(), booking.CreatedAt))

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// confirmLocked is one promotion attempt. It returns the reservation it
// expired, if the hold lapsed before the attempt.
func (s *reservationService) confirmLocked(ctx context.Context, userID string, slot domain.Slot, reservationID string) (*domain.Booking, *domain.Reservation, error) {
	unlock, err := s.lockSlot(ctx, slot)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	now := s.clock.Now()
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return nil, nil, s.missingReservation(ctx, reservationID, now)
		}
		return nil, nil, err
	}

	if res.IsExpired(now) {
		err := s.reservations.Expire(ctx, res.ID, res.Version, now.Add(s.expiredRetention))
		switch {
		case err == nil:
			return nil, res, domain.ErrReservationExpired
		case errors.Is(err, domain.ErrReservationNotFound), domain.IsConflictError(err):
			return nil, nil, domain.ErrReservationExpired
		default:
			return nil, nil, fmt.Errorf("failed to expire reservation: %w", err)
		}
	}

	claimed, err := s.reservations.CompareAndSwapVersion(ctx, res.ID, res.Version)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return nil, nil, s.missingReservation(ctx, reservationID, now)
		}
		return nil, nil, err
	}

	booking := domain.NewBookingFromReservation(res, userID, now)
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, nil, err
	}

	if err := s.reservations.Delete(ctx, res.ID, claimed); err != nil {
		// the booking is committed; the claimed hold only lingers until the sweep
		logger.Get().ErrorContext(ctx, "failed to delete promoted reservation",
			zap.String("reservation_id", res.ID),
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
	}

	if err := s.accounts.AttachBooking(ctx, userID, booking.ID); err != nil {
		logger.Get().ErrorContext(ctx, "failed to attach booking to account",
			zap.String("user_id", userID),
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
	}

	return booking, nil, nil
}

// resolveConfirmConflict decides the outcome once the conflict retry is spent
func (s *reservationService) resolveConfirmConflict(ctx context.Context, reservationID string) error {
	_, err := s.reservations.Get(ctx, reservationID)
	if errors.Is(err, domain.ErrReservationNotFound) {
		return s.missingReservation(ctx, reservationID, s.clock.Now())
	}
	return domain.ErrReservationExpired
}

// missingReservation distinguishes a swept reservation from an unknown one
func (s *reservationService) missingReservation(ctx context.Context, reservationID string, now time.Time) error {
	expired, err := s.reservations.WasExpired(ctx, reservationID, now)
	if err != nil {
		return err
	}
	if expired {
		return domain.ErrReservationExpired
	}
	return domain.ErrReservationNotFound
}

// ownedReservation loads a reservation and hides ones owned by other users
func (s *reservationService) ownedReservation(ctx context.Context, userID, reservationID string) (*domain.Reservation, error) {
	res, err := s.reservations.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			return nil, s.missingReservation(ctx, reservationID, s.clock.Now())
		}
		return nil, err
	}
	if res.UserID != userID {
		return nil, domain.ErrReservationNotFound
	}
	return res, nil
}

func (s *reservationService) failConfirm(span trace.Span, band string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	outcome := metrics.OutcomeRejected
	if !domain.IsNotFoundError(err) && !domain.IsExpiredError(err) && !errors.Is(err, domain.ErrCreditCardNotRegistered) {
		outcome = metrics.OutcomeError
	}
	s.metrics.ConfirmAttempt(band, outcome, 0)
	return err
}

// GetReservation returns a live reservation of the caller
func (s *reservationService) GetReservation(ctx context.Context, userID, reservationID string) (*domain.Reservation, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get")
	defer span.End()

	if userID == "" {
		span.SetStatus(codes.Error, "unauthenticated")
		return nil, domain.ErrUnauthenticated
	}
	if reservationID == "" {
		return nil, domain.ErrInvalidReservationID
	}

	span.SetAttributes(attribute.String("reservation_id", reservationID))

	res, err := s.ownedReservation(ctx, userID, reservationID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if res.IsExpired(s.clock.Now()) {
		span.SetStatus(codes.Error, "expired")
		return nil, domain.ErrReservationExpired
	}

	span.SetStatus(codes.Ok, "")
	return res, nil
}

// Availability counts free seats without sweeping: lapsed holds are simply
// not counted as taken.
func (s *reservationService) Availability(ctx context.Context, concertID string, date time.Time) ([]BandAvailability, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.availability")
	defer span.End()

	if concertID == "" {
		return nil, domain.ErrInvalidConcertID
	}
	if date.IsZero() {
		return nil, domain.ErrInvalidDate
	}

	concert, err := s.concerts.GetByID(ctx, concertID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !concert.HasDate(date) {
		return nil, domain.ErrDateNotScheduled
	}

	slot := domain.NewSlot(concertID, date)
	held, err := s.reservations.ListBySlot(ctx, slot)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	now := s.clock.Now()
	live := make([]*domain.Reservation, 0, len(held))
	for _, r := range held {
		if !r.IsExpired(now) {
			live = append(live, r)
		}
	}

	taken, err := s.takenSeats(ctx, slot, live)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	result := make([]BandAvailability, 0, len(domain.PriceBands))
	for _, band := range domain.PriceBands {
		result = append(result, BandAvailability{
			Band:      band,
			Price:     concert.PriceOf(band),
			Capacity:  s.venue.Capacity(band),
			Available: allocator.Available(s.venue, band, taken),
		})
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// ExpireReservations sweeps lapsed holds across every concert date. Each
// candidate is re-read under its date's lock before it is expired, so
// running it twice has the same effect as running it once.
func (s *reservationService) ExpireReservations(ctx context.Context, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.expire_reservations")
	defer span.End()

	now := s.clock.Now()
	candidates, err := s.reservations.ListExpired(ctx, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to list expired reservations: %w", err)
	}

	bySlot := make(map[string][]*domain.Reservation)
	var order []domain.Slot
	for _, r := range candidates {
		key := r.Slot().Key()
		if _, ok := bySlot[key]; !ok {
			order = append(order, r.Slot())
		}
		bySlot[key] = append(bySlot[key], r)
	}

	var expired []*domain.Reservation
	var firstErr error
	for _, slot := range order {
		done, err := s.expireInSlot(ctx, slot, bySlot[slot.Key()], now)
		expired = append(expired, done...)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	s.afterSweep(ctx, triggerWorker, expired)

	span.SetAttributes(
		attribute.Int("candidates", len(candidates)),
		attribute.Int("expired_count", len(expired)),
	)
	if firstErr != nil {
		span.RecordError(firstErr)
		span.SetStatus(codes.Error, firstErr.Error())
		return len(expired), firstErr
	}
	span.SetStatus(codes.Ok, "")
	return len(expired), nil
}

func (s *reservationService) expireInSlot(ctx context.Context, slot domain.Slot, candidates []*domain.Reservation, now time.Time) ([]*domain.Reservation, error) {
	unlock, err := s.lockSlot(ctx, slot)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var expired []*domain.Reservation
	for _, c := range candidates {
		r, err := s.reservations.Get(ctx, c.ID)
		if errors.Is(err, domain.ErrReservationNotFound) {
			continue
		}
		if err != nil {
			return expired, err
		}
		if !r.IsExpired(now) {
			continue
		}

		err = s.reservations.Expire(ctx, r.ID, r.Version, now.Add(s.expiredRetention))
		switch {
		case err == nil:
			expired = append(expired, r)
		case errors.Is(err, domain.ErrReservationNotFound), domain.IsConflictError(err):
		default:
			return expired, fmt.Errorf("failed to expire reservation %s: %w", r.ID, err)
		}
	}
	return expired, nil
}

func (s *reservationService) lockSlot(ctx context.Context, slot domain.Slot) (lock.Unlock, error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	unlock, err := s.locker.Lock(lockCtx, slot.Key())
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", slot.Key(), err)
	}
	return unlock, nil
}

// afterSweep records and announces reservations that were expired
func (s *reservationService) afterSweep(ctx context.Context, trigger string, expired []*domain.Reservation) {
	if len(expired) == 0 {
		return
	}
	s.metrics.ReservationsExpired(trigger, len(expired))

	now := s.clock.Now()
	for _, r := range expired {
		s.publish(ctx, domain.NewReservationEvent(domain.EventReservationExpired, r, uuid.New().String(), now))
	}
}

// publish hands an event to the bus. Failures are logged; the change it
// describes has already committed.
func (s *reservationService) publish(ctx context.Context, event *domain.LifecycleEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.metrics.EventPublished(string(event.EventType), metrics.OutcomeError)
		logger.Get().WarnContext(ctx, "failed to publish lifecycle event",
			zap.String("event_type", string(event.EventType)),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}
	s.metrics.EventPublished(string(event.EventType), metrics.OutcomeSuccess)
}

var _ ReservationService = (*reservationService)(nil)
