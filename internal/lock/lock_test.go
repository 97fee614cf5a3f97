package lock

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_MutualExclusion(t *testing.T) {
	l := NewLocalLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := l.Lock(context.Background(), "c1|d1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.held())
}

func TestLocalLocker_DifferentKeysDoNotBlock(t *testing.T) {
	l := NewLocalLocker()

	unlockA, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	unlockB, err := l.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestLocalLocker_TimesOut(t *testing.T) {
	l := NewLocalLocker()

	unlock, err := l.Lock(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock() // second call is a no-op
	assert.Equal(t, 0, l.held())
}

func newMockLocker(t *testing.T) (*RedisLocker, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	l := NewRedisLocker(pkgredis.NewFromClient(db), &RedisLockerConfig{
		Prefix:        "lock:",
		TTL:           5 * time.Second,
		RetryInterval: time.Millisecond,
	})
	l.newToken = func() string { return "tok" }
	return l, mock
}

func TestRedisLocker_AcquireAndRelease(t *testing.T) {
	l, mock := newMockLocker(t)

	mock.ExpectSetNX("lock:c1", "tok", 5*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseLua.SHA, []string{"lock:c1"}, "tok").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), "c1")
	require.NoError(t, err)
	unlock()
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_RetriesWhileHeld(t *testing.T) {
	l, mock := newMockLocker(t)

	mock.ExpectSetNX("lock:c1", "tok", 5*time.Second).SetVal(false)
	mock.ExpectSetNX("lock:c1", "tok", 5*time.Second).SetVal(false)
	mock.ExpectSetNX("lock:c1", "tok", 5*time.Second).SetVal(true)

	_, err := l.Lock(context.Background(), "c1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisLocker_ContextDone(t *testing.T) {
	l, mock := newMockLocker(t)
	ctx, cancel := context.WithCancel(context.Background())

	mock.ExpectSetNX("lock:c1", "tok", 5*time.Second).SetVal(false)
	cancel()

	_, err := l.Lock(ctx, "c1")
	assert.ErrorIs(t, err, ErrLockTimeout)
}

func TestRedisLocker_RedisError(t *testing.T) {
	l, mock := newMockLocker(t)

	mock.ExpectSetNX("lock:c1", "tok", 5*time.Second).SetErr(errors.New("connection refused"))

	_, err := l.Lock(context.Background(), "c1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockTimeout)
	assert.Contains(t, err.Error(), "connection refused")
}
