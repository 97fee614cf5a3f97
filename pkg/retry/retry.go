package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrContextCanceled is returned when the context ends between attempts
var ErrContextCanceled = errors.New("context canceled during retry")

// Config contains retry configuration
type Config struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// InitialInterval is the first backoff interval (default: 100ms)
	InitialInterval time.Duration
	// MaxInterval caps the backoff interval (default: 5s)
	MaxInterval time.Duration
	// Multiplier grows the interval after each retry (default: 2.0)
	Multiplier float64
	// JitterFactor adds +/- random jitter as a fraction of the interval
	JitterFactor float64
	// RetryIf decides whether an error is worth another attempt.
	// When nil every error except a Permanent one is retried.
	RetryIf func(err error) bool
}

// DefaultConfig returns default retry configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     5 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Once returns a config that retries a single time when retryIf matches
func Once(backoff time.Duration, retryIf func(err error) bool) *Config {
	return &Config{
		MaxRetries:      1,
		InitialInterval: backoff,
		MaxInterval:     backoff,
		Multiplier:      1,
		RetryIf:         retryIf,
	}
}

// Operation is the function to be retried
type Operation func(ctx context.Context) error

// PermanentError wraps an error that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks an error as permanent
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result contains the outcome of a retried operation
type Result struct {
	// Err is the final error, nil on success
	Err error
	// Attempts counts every call to the operation
	Attempts int
	// LastError is the error returned by the last attempt
	LastError error
}

// Retrier runs operations with exponential backoff
type Retrier struct {
	config *Config
}

// New creates a new Retrier with the given configuration
func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}

	cfg := *config
	if cfg.InitialInterval < 0 {
		cfg.InitialInterval = 0
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	cfg.JitterFactor = math.Max(0, math.Min(1, cfg.JitterFactor))

	return &Retrier{config: &cfg}
}

// Do executes the operation until it succeeds, a non-retryable error is
// returned, or the retries are exhausted. When retries run out the last
// error is returned as Err so callers can still classify it.
func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	result := &Result{}

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			result.Err = ErrContextCanceled
			return result
		}

		result.Attempts = attempt + 1
		err := op(ctx)
		if err == nil {
			result.Err = nil
			return result
		}
		result.LastError = err

		var permErr *PermanentError
		if errors.As(err, &permErr) {
			result.Err = permErr.Err
			result.LastError = permErr.Err
			return result
		}

		if r.config.RetryIf != nil && !r.config.RetryIf(err) {
			result.Err = err
			return result
		}

		if attempt >= r.config.MaxRetries {
			result.Err = err
			return result
		}

		interval := r.interval(attempt)
		if interval <= 0 {
			continue
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Err = ErrContextCanceled
			return result
		case <-timer.C:
		}
	}
}

// interval computes the backoff before retry number attempt+1
func (r *Retrier) interval(attempt int) time.Duration {
	interval := float64(r.config.InitialInterval) * math.Pow(r.config.Multiplier, float64(attempt))

	if r.config.JitterFactor > 0 {
		jitter := interval * r.config.JitterFactor
		interval += (rand.Float64()*2 - 1) * jitter
	}

	if interval > float64(r.config.MaxInterval) {
		interval = float64(r.config.MaxInterval)
	}
	if interval < 0 {
		interval = 0
	}

	return time.Duration(interval)
}

// Do is a convenience function that creates a retrier and runs the operation
func Do(ctx context.Context, config *Config, op Operation) error {
	return New(config).Do(ctx, op).Err
}
