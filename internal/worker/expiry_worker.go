package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"go.uber.org/zap"
)

// Expirer removes lapsed reservations. It is satisfied by
// service.ReservationService.
type Expirer interface {
	ExpireReservations(ctx context.Context, limit int) (int, error)
}

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// ScanInterval is the interval between sweeps
	ScanInterval time.Duration
	// BatchSize is the number of reservations to expire in each sweep
	BatchSize int
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		ScanInterval: 5 * time.Second,
		BatchSize:    500,
	}
}

// ExpiryWorker sweeps lapsed reservations in the background. Reserve
// already sweeps the concert date it touches; the worker reclaims holds on
// dates nobody is currently reserving.
type ExpiryWorker struct {
	expirer Expirer
	metrics *metrics.Metrics
	config  *ExpiryWorkerConfig
	log     *logger.Logger
	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	// Stats
	totalExpired     int64
	totalErrors      int64
	lastScanTime     time.Time
	lastExpiredCount int
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(expirer Expirer, m *metrics.Metrics, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	defaults := DefaultExpiryWorkerConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = defaults.ScanInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}

	return &ExpiryWorker{
		expirer: expirer,
		metrics: m,
		config:  config,
		log:     logger.Get(),
		stopCh:  make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry worker",
		zap.Duration("scan_interval", w.config.ScanInterval),
		zap.Int("batch_size", w.config.BatchSize),
	)

	w.wg.Add(1)
	go w.run(ctx)

	return nil
}

// Stop stops the expiry worker and waits for the running sweep to finish
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry worker stopped")
}

func (w *ExpiryWorker) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.ScanInterval)
	defer ticker.Stop()

	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// sweep expires full batches back to back until a short batch shows the
// backlog is drained
func (w *ExpiryWorker) sweep(ctx context.Context) {
	w.metrics.SweepRun()

	total := 0
	for {
		n, err := w.expirer.ExpireReservations(ctx, w.config.BatchSize)
		total += n
		if err != nil {
			w.mu.Lock()
			w.totalErrors++
			w.mu.Unlock()
			w.log.Error("Failed to expire reservations", zap.Error(err))
			break
		}
		if n < w.config.BatchSize || ctx.Err() != nil {
			break
		}
	}

	w.mu.Lock()
	w.lastScanTime = time.Now()
	w.lastExpiredCount = total
	w.totalExpired += int64(total)
	w.mu.Unlock()

	if total > 0 {
		w.log.Info(fmt.Sprintf("Expired %d reservations", total))
	}
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpiryWorkerStats{
		IsRunning:        w.running,
		TotalExpired:     w.totalExpired,
		TotalErrors:      w.totalErrors,
		LastScanTime:     w.lastScanTime,
		LastExpiredCount: w.lastExpiredCount,
	}
}

// ExpiryWorkerStats contains worker statistics
type ExpiryWorkerStats struct {
	IsRunning        bool      `json:"is_running"`
	TotalExpired     int64     `json:"total_expired"`
	TotalErrors      int64     `json:"total_errors"`
	LastScanTime     time.Time `json:"last_scan_time"`
	LastExpiredCount int       `json:"last_expired_count"`
}
