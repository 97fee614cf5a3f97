package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func render(t *testing.T, write func(c *gin.Context)) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	write(c)

	var resp Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestSuccessAndList(t *testing.T) {
	w, resp := render(t, func(c *gin.Context) { Success(c, gin.H{"id": "1"}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	w, resp = render(t, func(c *gin.Context) { List(c, []string{"a", "b"}, 2) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"total": float64(2)}, resp.Meta)
}

func TestCreated(t *testing.T) {
	w, resp := render(t, func(c *gin.Context) { Created(c, "/api/v1/reservations/r-1", gin.H{"id": "r-1"}) })
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "/api/v1/reservations/r-1", w.Header().Get("Location"))
	assert.True(t, resp.Success)

	w, _ = render(t, func(c *gin.Context) { Created(c, "", nil) })
	assert.Empty(t, w.Header().Get("Location"))
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(c *gin.Context)
		status int
		code   string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "INVALID_REQUEST", "bad") }, http.StatusBadRequest, "INVALID_REQUEST"},
		{"not found", func(c *gin.Context) { NotFound(c, "NOT_FOUND", "missing") }, http.StatusNotFound, "NOT_FOUND"},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "BAD_TOKEN", "nope") }, http.StatusUnauthorized, "BAD_TOKEN"},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "FORBIDDEN", "no") }, http.StatusForbidden, "FORBIDDEN"},
		{"conflict", func(c *gin.Context) { Conflict(c, "INSUFFICIENT_SEATS", "full") }, http.StatusConflict, "INSUFFICIENT_SEATS"},
		{"custom", func(c *gin.Context) { Error(c, http.StatusGone, "RESERVATION_EXPIRED", "gone", "details") }, http.StatusGone, "RESERVATION_EXPIRED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, resp := render(t, tt.write)
			assert.Equal(t, tt.status, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestInternalError_HidesCause(t *testing.T) {
	var ctx *gin.Context
	w, resp := render(t, func(c *gin.Context) {
		ctx = c
		InternalError(c, errors.New("pq: connection refused"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
	require.Len(t, ctx.Errors, 1)
}
