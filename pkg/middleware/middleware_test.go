package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

type mockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, token string) (string, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, token)
	}
	return "", errMissing
}

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuth(t *testing.T) {
	authn := &mockAuthenticator{
		AuthenticateFunc: func(ctx context.Context, token string) (string, error) {
			if token == "good" {
				return "user-1", nil
			}
			return "", errors.New("bad signature")
		},
	}

	router := gin.New()
	router.Use(Auth(AuthConfig{Authenticator: authn, ErrUnauthenticated: errMissing}))
	router.GET("/me", func(c *gin.Context) {
		userID, _ := GetUserID(c)
		c.String(http.StatusOK, userID)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "user-1"},
		{name: "no header", header: "", wantStatus: http.StatusUnauthorized, wantBody: "UNAUTHENTICATED"},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized, wantBody: "UNAUTHENTICATED"},
		{name: "empty bearer", header: "Bearer   ", wantStatus: http.StatusUnauthorized, wantBody: "UNAUTHENTICATED"},
		{name: "invalid token", header: "Bearer forged", wantStatus: http.StatusUnauthorized, wantBody: "BAD_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextKeyRequestID))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Body.String(), 36)
}

func newIdempotentRouter(store IdempotencyStore, calls *int) *gin.Engine {
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(ContextKeyUserID, "u1")
		c.Next()
	})
	router.Use(Idempotency(IdempotencyConfig{Store: store, TTL: time.Minute, ProcessingTTL: 5 * time.Second}))
	router.POST("/reservations", func(c *gin.Context) {
		*calls++
		c.JSON(http.StatusCreated, gin.H{"id": "r1"})
	})
	return router
}

func mustJSON(t *testing.T, v interface{}) string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return string(data)
}

func TestIdempotency_StoresFirstResponse(t *testing.T) {
	db, mock := redismock.NewClientMock()
	calls := 0
	router := newIdempotentRouter(db, &calls)

	body := `{"seat_count":2}`
	hash := requestHash(http.MethodPost, "/reservations", []byte(body))
	key := IdempotencyKeyPrefix + "u1:k1"

	mock.ExpectGet(key).SetErr(redis.Nil)
	mock.ExpectSetNX(key, mustJSON(t, &idempotencyRecord{Status: statusProcessing, RequestHash: hash}), 5*time.Second).SetVal(true)
	mock.ExpectSet(key, mustJSON(t, &idempotencyRecord{
		Status:       statusCompleted,
		RequestHash:  hash,
		ResponseCode: http.StatusCreated,
		ResponseBody: `{"id":"r1"}`,
	}), time.Minute).SetVal("OK")

	req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
	req.Header.Set(IdempotencyKeyHeader, "k1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIdempotency_Replay(t *testing.T) {
	body := `{"seat_count":2}`
	hash := requestHash(http.MethodPost, "/reservations", []byte(body))
	key := IdempotencyKeyPrefix + "u1:k1"

	tests := []struct {
		name       string
		record     idempotencyRecord
		wantStatus int
		wantBody   string
	}{
		{
			name:       "completed replays",
			record:     idempotencyRecord{Status: statusCompleted, RequestHash: hash, ResponseCode: http.StatusCreated, ResponseBody: `{"id":"r1"}`},
			wantStatus: http.StatusCreated,
			wantBody:   `{"id":"r1"}`,
		},
		{
			name:       "in progress",
			record:     idempotencyRecord{Status: statusProcessing, RequestHash: hash},
			wantStatus: http.StatusConflict,
			wantBody:   "REQUEST_IN_PROGRESS",
		},
		{
			name:       "different body",
			record:     idempotencyRecord{Status: statusCompleted, RequestHash: "other"},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   "IDEMPOTENCY_KEY_REUSED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := redismock.NewClientMock()
			calls := 0
			router := newIdempotentRouter(db, &calls)
			mock.ExpectGet(key).SetVal(mustJSON(t, &tt.record))

			req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
			req.Header.Set(IdempotencyKeyHeader, "k1")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			assert.Equal(t, 0, calls)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIdempotency_PassThrough(t *testing.T) {
	t.Run("no key", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		calls := 0
		router := newIdempotentRouter(db, &calls)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader("{}")))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, calls)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis down fails open", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		calls := 0
		router := newIdempotentRouter(db, &calls)
		mock.ExpectGet(IdempotencyKeyPrefix + "u1:k1").SetErr(errors.New("connection refused"))

		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader("{}"))
		req.Header.Set(IdempotencyKeyHeader, "k1")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, calls)
	})
}
