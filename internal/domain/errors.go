package domain

import "errors"

// Domain errors
var (
	// Authentication errors
	ErrUnauthenticated = errors.New("authentication required")
	ErrBadToken        = errors.New("authentication token not recognised")

	// Validation errors
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidConcertID     = errors.New("concert id is required")
	ErrInvalidDate          = errors.New("date is required")
	ErrInvalidPriceBand     = errors.New("price band must be one of A, B, C")
	ErrInvalidSeatCount     = errors.New("seat count must be at least 1")
	ErrDateNotScheduled     = errors.New("concert is not scheduled on the requested date")
	ErrInvalidReservationID = errors.New("reservation id is required")
	ErrInvalidCreditCard    = errors.New("invalid credit card")

	// Not found errors
	ErrConcertNotFound     = errors.New("concert not found")
	ErrReservationNotFound = errors.New("reservation not found")
	ErrBookingNotFound     = errors.New("booking not found")
	ErrAccountNotFound     = errors.New("account not found")

	// Reservation outcomes
	ErrInsufficientSeats       = errors.New("insufficient seats available")
	ErrReservationExpired      = errors.New("reservation has expired")
	ErrCreditCardNotRegistered = errors.New("no credit card registered")

	// ErrConcurrencyConflict signals that state read before a write changed
	// underneath it. The lifecycle manager retries it once and never
	// returns it to callers.
	ErrConcurrencyConflict = errors.New("concurrent modification detected")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrConcertNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrAccountNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidConcertID) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPriceBand) ||
		errors.Is(err, ErrInvalidSeatCount) ||
		errors.Is(err, ErrDateNotScheduled) ||
		errors.Is(err, ErrInvalidReservationID) ||
		errors.Is(err, ErrInvalidCreditCard)
}

// IsAuthError checks if the error is an authentication error
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthenticated) ||
		errors.Is(err, ErrBadToken)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrConcurrencyConflict)
}

// IsExpiredError checks if the error is an expiration error
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrReservationExpired)
}
