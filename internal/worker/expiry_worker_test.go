package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockExpirer returns queued results, then zero
type mockExpirer struct {
	mu      sync.Mutex
	results []int
	err     error
	calls   int
	limits  []int
}

func (m *mockExpirer) ExpireReservations(ctx context.Context, limit int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.limits = append(m.limits, limit)
	if m.err != nil {
		return 0, m.err
	}
	if len(m.results) == 0 {
		return 0, nil
	}
	n := m.results[0]
	m.results = m.results[1:]
	return n, nil
}

func (m *mockExpirer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewExpiryWorker_Defaults(t *testing.T) {
	w := NewExpiryWorker(&mockExpirer{}, nil, &ExpiryWorkerConfig{})

	if w.config.ScanInterval != 5*time.Second {
		t.Errorf("Expected ScanInterval=5s, got %v", w.config.ScanInterval)
	}
	if w.config.BatchSize != 500 {
		t.Errorf("Expected BatchSize=500, got %d", w.config.BatchSize)
	}
}

func TestExpiryWorker_SweepDrainsFullBatches(t *testing.T) {
	expirer := &mockExpirer{results: []int{10, 10, 4}}
	w := NewExpiryWorker(expirer, nil, &ExpiryWorkerConfig{ScanInterval: time.Hour, BatchSize: 10})

	w.sweep(context.Background())

	if expirer.Calls() != 3 {
		t.Errorf("Expected 3 calls, got %d", expirer.Calls())
	}
	for _, limit := range expirer.limits {
		if limit != 10 {
			t.Errorf("Expected limit=10, got %d", limit)
		}
	}

	stats := w.GetStats()
	if stats.TotalExpired != 24 {
		t.Errorf("Expected TotalExpired=24, got %d", stats.TotalExpired)
	}
	if stats.LastExpiredCount != 24 {
		t.Errorf("Expected LastExpiredCount=24, got %d", stats.LastExpiredCount)
	}
	if stats.LastScanTime.IsZero() {
		t.Error("Expected LastScanTime to be set")
	}
}

func TestExpiryWorker_SweepError(t *testing.T) {
	expirer := &mockExpirer{err: errors.New("store unavailable")}
	w := NewExpiryWorker(expirer, nil, &ExpiryWorkerConfig{ScanInterval: time.Hour, BatchSize: 10})

	w.sweep(context.Background())

	if expirer.Calls() != 1 {
		t.Errorf("Expected 1 call, got %d", expirer.Calls())
	}
	stats := w.GetStats()
	if stats.TotalErrors != 1 {
		t.Errorf("Expected TotalErrors=1, got %d", stats.TotalErrors)
	}
	if stats.TotalExpired != 0 {
		t.Errorf("Expected TotalExpired=0, got %d", stats.TotalExpired)
	}
}

func TestExpiryWorker_StartStop(t *testing.T) {
	expirer := &mockExpirer{results: []int{3}}
	w := NewExpiryWorker(expirer, nil, &ExpiryWorkerConfig{ScanInterval: 10 * time.Millisecond, BatchSize: 10})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := w.Start(context.Background()); err == nil {
		t.Error("Expected error on second Start")
	}
	if !w.GetStats().IsRunning {
		t.Error("Expected worker to be running")
	}

	deadline := time.Now().Add(2 * time.Second)
	for expirer.Calls() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	w.Stop()
	w.Stop()

	stats := w.GetStats()
	if stats.IsRunning {
		t.Error("Expected worker to be stopped")
	}
	if stats.TotalExpired != 3 {
		t.Errorf("Expected TotalExpired=3, got %d", stats.TotalExpired)
	}
	if expirer.Calls() < 3 {
		t.Errorf("Expected at least 3 sweeps, got %d", expirer.Calls())
	}
}

func TestExpiryWorker_StopsOnContextCancel(t *testing.T) {
	expirer := &mockExpirer{}
	w := NewExpiryWorker(expirer, nil, &ExpiryWorkerConfig{ScanInterval: time.Hour, BatchSize: 10})

	ctx, cancel := context.WithCancel(context.Background())
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not exit after context cancel")
	}
}
