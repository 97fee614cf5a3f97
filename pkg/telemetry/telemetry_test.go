package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func useRecorder(t *testing.T) *tracetest.InMemoryExporter {
	t.Helper()

	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	setGlobal(&Telemetry{provider: provider, tracer: provider.Tracer("test")})
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
		setGlobal(nil)
	})
	return exporter
}

func TestInit_Disabled(t *testing.T) {
	tel, err := Init(context.Background(), &Config{Enabled: false, ServiceName: "concert-booking"})
	require.NoError(t, err)
	require.NotNil(t, tel)
	t.Cleanup(func() { setGlobal(nil) })

	ctx, span := StartSpan(context.Background(), "service.test")
	defer span.End()

	assert.Empty(t, GetTraceID(ctx))
	assert.NoError(t, Shutdown(context.Background()))
}

func TestStartSpan_RecordsTraceID(t *testing.T) {
	exporter := useRecorder(t)

	ctx, span := StartSpan(context.Background(), "service.reservation.reserve")
	assert.NotEmpty(t, GetTraceID(ctx))
	AddSpanEvent(ctx, "seats_allocated")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "service.reservation.reserve", spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "seats_allocated", spans[0].Events[0].Name)
}

func TestTracingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	exporter := useRecorder(t)

	router := gin.New()
	router.Use(TracingMiddleware("concert-booking"))
	router.GET("/concerts/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.GET("/boom", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/concerts/concert-1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(TraceIDHeader))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "GET /concerts/:id", spans[0].Name)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Equal(t, "GET /boom", spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}
