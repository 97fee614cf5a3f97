package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Equal(t, 100, cfg.PoolSize)
	assert.Equal(t, 3, cfg.MaxRetries)
}

func TestNewClient_Unreachable(t *testing.T) {
	cfg := &Config{
		Addr:          "invalid-host-that-does-not-exist:9999",
		MaxRetries:    0,
		RetryInterval: 100 * time.Millisecond,
		DialTimeout:   500 * time.Millisecond,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewClient(ctx, cfg)
	assert.Error(t, err)
}

func TestNewScript_SHA(t *testing.T) {
	a := NewScript("a", "return 1")
	b := NewScript("b", "return 1")
	c := NewScript("c", "return 2")

	assert.Len(t, a.SHA, 40)
	assert.Equal(t, a.SHA, b.SHA)
	assert.NotEqual(t, a.SHA, c.SHA)
	// sha1("return 1")
	assert.Equal(t, "e0e1f9fabfc9d4800c877a703b823ac0578ff8db", a.SHA)
}

func TestIsNoScriptError(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{fmt.Errorf("some error"), false},
		{fmt.Errorf("NOSCRIPT No matching script. Please use EVAL."), true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, isNoScriptError(tt.err), "err=%v", tt.err)
	}
}

func TestClient_Run_ReloadsOnNoScript(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)
	script := NewScript("echo", "return ARGV[1]")

	mock.ExpectEvalSha(script.SHA, []string{"k"}, "v").SetErr(errors.New("NOSCRIPT No matching script. Please use EVAL."))
	mock.ExpectScriptLoad(script.Source).SetVal(script.SHA)
	mock.ExpectEvalSha(script.SHA, []string{"k"}, "v").SetVal("v")

	val, err := client.Run(context.Background(), script, []string{"k"}, "v").Text()
	require.NoError(t, err)
	assert.Equal(t, "v", val)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClient_Run_PassesThroughOtherErrors(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := NewFromClient(db)
	script := NewScript("echo", "return ARGV[1]")

	mock.ExpectEvalSha(script.SHA, []string{"k"}, "v").SetErr(errors.New("WRONGTYPE"))

	err := client.Run(context.Background(), script, []string{"k"}, "v").Err()
	assert.EqualError(t, err, "WRONGTYPE")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Integration tests - require Redis to be running

func TestClient_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg := DefaultConfig()
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	ctx := context.Background()

	client, err := NewClient(ctx, cfg)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.HealthCheck(ctx))

	script := NewScript("incr", "return redis.call('INCRBY', KEYS[1], ARGV[1])")
	require.NoError(t, client.LoadScripts(ctx, script))

	key := "test:script:incr"
	defer client.Redis().Del(ctx, key)

	n, err := client.Run(ctx, script, []string{key}, 5).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
