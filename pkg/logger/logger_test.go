package logger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGet_BeforeInit(t *testing.T) {
	mu.Lock()
	global = nil
	mu.Unlock()

	l := Get()
	require.NotNil(t, l)
	// must not panic
	l.Info("noop")
	Info("noop")
}

func TestInit_WritesServiceField(t *testing.T) {
	out := filepath.Join(t.TempDir(), "log.json")

	err := Init(&Config{
		Level:       "debug",
		ServiceName: "concert-booking",
		OutputPaths: []string{out},
	})
	require.NoError(t, err)

	Info("reservation created", zap.String("reservation_id", "r-1"))
	ErrorContext(context.Background(), "store failure")
	Sync()

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"service":"concert-booking"`)
	assert.Contains(t, lines[0], `"reservation_id":"r-1"`)
	assert.Contains(t, lines[1], `"level":"error"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("development"))
}
