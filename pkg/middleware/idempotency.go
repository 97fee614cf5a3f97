package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/response"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// IdempotencyKeyHeader lets clients retry a write without repeating its effect
	IdempotencyKeyHeader = "X-Idempotency-Key"

	DefaultIdempotencyTTL = 10 * time.Minute
	IdempotencyKeyPrefix  = "idempotency:"
)

type idempotencyStatus string

const (
	statusProcessing idempotencyStatus = "processing"
	statusCompleted  idempotencyStatus = "completed"
)

type idempotencyRecord struct {
	Status       idempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
}

// IdempotencyStore is the subset of go-redis the middleware needs
type IdempotencyStore interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig configures Idempotency
type IdempotencyConfig struct {
	Store IdempotencyStore
	// TTL of a completed record
	TTL time.Duration
	// ProcessingTTL bounds how long an in-flight marker blocks retries
	ProcessingTTL time.Duration
}

// Idempotency replays the stored response when a client repeats a write with
// the same X-Idempotency-Key. Requests without the header pass through. Keys
// are scoped per user, and reusing a key for a different body is rejected.
// Server errors are not stored so the client can retry them. Redis failures
// fail open.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultIdempotencyTTL
	}
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = 30 * time.Second
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" || cfg.Store == nil {
			c.Next()
			return
		}

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		userID, _ := GetUserID(c)
		storeKey := IdempotencyKeyPrefix + userID + ":" + key
		hash := requestHash(c.Request.Method, c.Request.URL.Path, body)
		ctx := c.Request.Context()

		existing, err := loadIdempotencyRecord(ctx, cfg.Store, storeKey)
		if err != nil && !errors.Is(err, redis.Nil) {
			logger.Warn("idempotency lookup failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}
		if existing != nil {
			replayIdempotent(c, existing, hash)
			return
		}

		marker := &idempotencyRecord{Status: statusProcessing, RequestHash: hash}
		if !storeIdempotencyRecord(ctx, cfg.Store, storeKey, marker, cfg.ProcessingTTL, true) {
			// lost the race to a concurrent retry
			if existing, _ = loadIdempotencyRecord(ctx, cfg.Store, storeKey); existing != nil {
				replayIdempotent(c, existing, hash)
				return
			}
		}

		rw := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw
		c.Next()

		status := rw.Status()
		if status >= http.StatusInternalServerError {
			_ = cfg.Store.Del(context.WithoutCancel(ctx), storeKey).Err()
			return
		}

		done := &idempotencyRecord{
			Status:       statusCompleted,
			RequestHash:  hash,
			ResponseCode: status,
			ResponseBody: rw.body.String(),
		}
		storeIdempotencyRecord(context.WithoutCancel(ctx), cfg.Store, storeKey, done, cfg.TTL, false)
	}
}

func replayIdempotent(c *gin.Context, rec *idempotencyRecord, hash string) {
	switch {
	case rec.RequestHash != hash:
		response.Error(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "Idempotency key already used with a different request", "")
	case rec.Status == statusProcessing:
		response.Conflict(c, "REQUEST_IN_PROGRESS", "A request with this idempotency key is already being processed")
	default:
		c.Header("Idempotent-Replayed", "true")
		c.Data(rec.ResponseCode, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	}
	c.Abort()
}

func requestHash(method, path string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func loadIdempotencyRecord(ctx context.Context, store IdempotencyStore, key string) (*idempotencyRecord, error) {
	raw, err := store.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var rec idempotencyRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func storeIdempotencyRecord(ctx context.Context, store IdempotencyStore, key string, rec *idempotencyRecord, ttl time.Duration, onlyIfAbsent bool) bool {
	data, err := json.Marshal(rec)
	if err != nil {
		return false
	}

	if onlyIfAbsent {
		ok, err := store.SetNX(ctx, key, string(data), ttl).Result()
		return err == nil && ok
	}
	if err := store.Set(ctx, key, string(data), ttl).Err(); err != nil {
		logger.Warn("failed to store idempotent response", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// capturingWriter copies the response body while writing it through
type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *capturingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
