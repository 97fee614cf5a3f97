package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBookingRepository(t *testing.T, newRepo func(t *testing.T) BookingRepository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		res := newTestReservation("concert-"+uuid.NewString(), seats("A1", "A2"), testNow)
		b := domain.NewBookingFromReservation(res, res.UserID, testNow)
		require.NoError(t, repo.Create(ctx, b))

		got, err := repo.GetByID(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, b.ReservationID, got.ReservationID)
		assert.Equal(t, b.Seats, got.Seats)
		assert.True(t, b.Date.Equal(got.Date))

		_, err = repo.GetByID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
	})

	t.Run("booked seat cannot be booked again", func(t *testing.T) {
		repo := newRepo(t)
		concertID := "concert-" + uuid.NewString()
		first := newTestReservation(concertID, seats("B1", "B2"), testNow)
		second := newTestReservation(concertID, seats("B2", "B3"), testNow)

		require.NoError(t, repo.Create(ctx, domain.NewBookingFromReservation(first, first.UserID, testNow)))
		err := repo.Create(ctx, domain.NewBookingFromReservation(second, second.UserID, testNow))
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)

		list, err := repo.ListBySlot(ctx, first.Slot())
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("reservation is promoted at most once", func(t *testing.T) {
		repo := newRepo(t)
		res := newTestReservation("concert-"+uuid.NewString(), seats("C1"), testNow)

		require.NoError(t, repo.Create(ctx, domain.NewBookingFromReservation(res, res.UserID, testNow)))
		err := repo.Create(ctx, domain.NewBookingFromReservation(res, res.UserID, testNow))
		assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	})

	t.Run("list by user newest first", func(t *testing.T) {
		repo := newRepo(t)
		concertID := "concert-" + uuid.NewString()
		userID := "user-" + uuid.NewString()
		older := newTestReservation(concertID, seats("D1"), testNow)
		newer := newTestReservation(concertID, seats("D2"), testNow)

		require.NoError(t, repo.Create(ctx, domain.NewBookingFromReservation(older, userID, testNow)))
		require.NoError(t, repo.Create(ctx, domain.NewBookingFromReservation(newer, userID, testNow.Add(time.Minute))))

		list, err := repo.ListByUser(ctx, userID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, newer.ID, list[0].ReservationID)
		assert.Equal(t, older.ID, list[1].ReservationID)
	})
}

func TestMemoryBookingRepository(t *testing.T) {
	testBookingRepository(t, func(t *testing.T) BookingRepository {
		return NewMemoryBookingRepository()
	})
}

func TestMemoryBookingRepository_ClonesOnRead(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository()
	res := newTestReservation("c1", seats("A1"), testNow)
	b := domain.NewBookingFromReservation(res, res.UserID, testNow)
	require.NoError(t, repo.Create(ctx, b))

	got, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	got.Seats[0] = domain.Seat{Row: "Z", Number: 99}

	again, err := repo.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "A1", again.Seats[0].String())
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryAccountRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAccountRepository()

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	has, err := repo.HasCreditCard(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, has)

	card, err := domain.NewCreditCard(domain.CardVisa, "Jo Bloggs", "4111 1111 1111 1111", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, repo.RegisterCreditCard(ctx, "u1", card))

	has, err = repo.HasCreditCard(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, repo.AttachBooking(ctx, "u1", "b1"))
	require.NoError(t, repo.AttachBooking(ctx, "u1", "b1"))

	account, err := repo.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, account.BookingIDs)
	assert.Equal(t, "1111", account.CreditCard.Last4)
}

func TestMemoryConcertRepository(t *testing.T) {
	ctx := context.Background()
	date := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	repo := NewMemoryConcertRepository(
		&domain.Concert{ID: "2", Title: "Zebra", Dates: []time.Time{date}},
		&domain.Concert{ID: "1", Title: "Aardvark", Dates: []time.Time{date}, Prices: map[domain.PriceBand]float64{domain.PriceBandA: 100}},
	)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Aardvark", list[0].Title)

	c, err := repo.GetByID(ctx, "1")
	require.NoError(t, err)
	c.Prices[domain.PriceBandA] = 1

	again, err := repo.GetByID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, 100.0, again.Prices[domain.PriceBandA])

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrConcertNotFound)
}
