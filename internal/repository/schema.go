package repository

// Schema holds the DDL applied by PostgresDB.Migrate. Statements are
// idempotent so they can run on every start.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS concerts (
		id            TEXT PRIMARY KEY,
		title         TEXT NOT NULL,
		dates         TIMESTAMPTZ[] NOT NULL DEFAULT '{}',
		prices        JSONB NOT NULL DEFAULT '{}',
		performer_ids TEXT[] NOT NULL DEFAULT '{}'
	)`,

	`CREATE TABLE IF NOT EXISTS reservations (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL,
		concert_id   TEXT NOT NULL,
		concert_date TIMESTAMPTZ NOT NULL,
		price_band   TEXT NOT NULL,
		seat_count   INT NOT NULL,
		seats        TEXT[] NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL,
		version      BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_slot ON reservations (concert_id, concert_date)`,
	`CREATE INDEX IF NOT EXISTS idx_reservations_expires_at ON reservations (expires_at)`,

	// one row per held seat; the primary key rejects overlapping holds
	`CREATE TABLE IF NOT EXISTS reservation_seats (
		concert_id     TEXT NOT NULL,
		concert_date   TIMESTAMPTZ NOT NULL,
		seat           TEXT NOT NULL,
		reservation_id TEXT NOT NULL REFERENCES reservations (id) ON DELETE CASCADE,
		PRIMARY KEY (concert_id, concert_date, seat)
	)`,

	`CREATE TABLE IF NOT EXISTS reservation_tombstones (
		id           TEXT PRIMARY KEY,
		retain_until TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_reservation_tombstones_retain ON reservation_tombstones (retain_until)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id             TEXT PRIMARY KEY,
		reservation_id TEXT UNIQUE,
		user_id        TEXT NOT NULL,
		concert_id     TEXT NOT NULL,
		concert_date   TIMESTAMPTZ NOT NULL,
		price_band     TEXT NOT NULL,
		seats          TEXT[] NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_slot ON bookings (concert_id, concert_date)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user ON bookings (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS booked_seats (
		concert_id   TEXT NOT NULL,
		concert_date TIMESTAMPTZ NOT NULL,
		seat         TEXT NOT NULL,
		booking_id   TEXT NOT NULL REFERENCES bookings (id) ON DELETE CASCADE,
		PRIMARY KEY (concert_id, concert_date, seat)
	)`,

	`CREATE TABLE IF NOT EXISTS accounts (
		user_id     TEXT PRIMARY KEY,
		card_type   TEXT,
		card_holder TEXT,
		card_last4  TEXT,
		card_expiry DATE
	)`,
	`CREATE TABLE IF NOT EXISTS account_bookings (
		user_id    TEXT NOT NULL REFERENCES accounts (user_id),
		booking_id TEXT NOT NULL,
		PRIMARY KEY (user_id, booking_id)
	)`,
}
