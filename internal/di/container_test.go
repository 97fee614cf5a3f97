package di

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/auth"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogYAML = `
concerts:
  - id: concert-1
    title: Evening Symphony
    dates:
      - "2026-06-01T20:00:00Z"
    prices:
      A: 120
      B: 80
      C: 50
    performer_ids: ["performer-1"]
`

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code string `json:"code"`
	} `json:"error"`
}

func newTestContainer(t *testing.T, authenticator auth.Authenticator) *Container {
	t.Helper()

	c, err := NewContainer(&ContainerConfig{
		Authenticator: authenticator,
		Metrics:       metrics.New(),
		ServiceName:   "concert-booking",
		StoreDriver:   config.StoreMemory,
		LockDriver:    config.LockLocal,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))
	n, err := c.SeedCatalog(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	return c
}

func call(t *testing.T, router *gin.Engine, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestNewContainer_Drivers(t *testing.T) {
	tests := []struct {
		name    string
		store   string
		lock    string
		wantErr bool
	}{
		{name: "memory defaults", store: "", lock: ""},
		{name: "memory and local", store: config.StoreMemory, lock: config.LockLocal},
		{name: "postgres without database", store: config.StorePostgres, wantErr: true},
		{name: "redis store without redis", store: config.StoreRedis, wantErr: true},
		{name: "redis lock without redis", store: config.StoreMemory, lock: config.LockRedis, wantErr: true},
		{name: "unknown store", store: "mongo", wantErr: true},
		{name: "unknown lock", store: config.StoreMemory, lock: "zookeeper", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContainer(&ContainerConfig{StoreDriver: tt.store, LockDriver: tt.lock})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, c.ReservationService)
			assert.NotNil(t, c.EventPublisher)
			assert.IsType(t, &lock.LocalLocker{}, c.Locker)
		})
	}
}

func TestSeedCatalog_EmptyPath(t *testing.T) {
	c, err := NewContainer(&ContainerConfig{})
	require.NoError(t, err)

	n, err := c.SeedCatalog(context.Background(), "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRouter_ReserveConfirmFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)

	authenticator := auth.NewJWTAuthenticator(auth.Config{Secret: "test-secret", Issuer: "concert-auth"})
	c := newTestContainer(t, authenticator)
	defer c.Close()
	router := NewRouter(c, RouterConfig{ServiceName: "concert-booking", Version: "test", MetricsPath: "/metrics"})

	token, err := authenticator.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	// Catalog is public
	w, env := call(t, router, http.MethodGet, "/api/v1/concerts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	reserve := map[string]interface{}{
		"concert_id": "concert-1",
		"date":       "2026-06-01T20:00:00Z",
		"price_band": "A",
		"seat_count": 2,
	}

	w, env = call(t, router, http.MethodPost, "/api/v1/reservations", "", reserve)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", env.Error.Code)

	w, env = call(t, router, http.MethodPost, "/api/v1/reservations", token, reserve)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var res struct {
		ID    string   `json:"id"`
		Seats []string `json:"seats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Len(t, res.Seats, 2)
	assert.Equal(t, "/api/v1/reservations/"+res.ID, w.Header().Get("Location"))

	w, env = call(t, router, http.MethodGet, "/api/v1/concerts/concert-1/availability?date=2026-06-01T20:00:00Z&band=A", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var avail struct {
		Bands []struct {
			Capacity  int `json:"capacity"`
			Available int `json:"available"`
		} `json:"bands"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &avail))
	require.Len(t, avail.Bands, 1)
	assert.Equal(t, avail.Bands[0].Capacity-2, avail.Bands[0].Available)

	confirmPath := "/api/v1/reservations/" + res.ID + "/confirm"
	w, env = call(t, router, http.MethodPost, confirmPath, token, nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "CREDIT_CARD_NOT_REGISTERED", env.Error.Code)

	card := map[string]string{
		"type":   "Visa",
		"holder": "Jane Doe",
		"number": "4111111111111111",
		"expiry": "2030-12",
	}
	w, _ = call(t, router, http.MethodPut, "/api/v1/users/me/credit-card", token, card)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = call(t, router, http.MethodPost, confirmPath, token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = call(t, router, http.MethodPost, confirmPath, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RESERVATION_NOT_FOUND", env.Error.Code)

	w, env = call(t, router, http.MethodGet, "/api/v1/bookings", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var bookings []struct {
		ReservationID string   `json:"reservation_id"`
		Seats         []string `json:"seats"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bookings))
	require.Len(t, bookings, 1)
	assert.Equal(t, res.ID, bookings[0].ReservationID)
	assert.ElementsMatch(t, res.Seats, bookings[0].Seats)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c := newTestContainer(t, auth.NewJWTAuthenticator(auth.Config{Secret: "test-secret"}))
	router := NewRouter(c, RouterConfig{ServiceName: "concert-booking", MetricsPath: "/metrics"})

	for _, path := range []string{"/health", "/ready", "/metrics", "/api/v1/status"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
