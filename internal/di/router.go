package di

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	"github.com/prohmpiriya/concert-booking/pkg/middleware"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
)

// RouterConfig contains configuration for the HTTP router
type RouterConfig struct {
	ServiceName string
	Version     string
	MetricsPath string
	Tracing     bool
}

// NewRouter wires middleware and routes onto a gin engine
func NewRouter(c *Container, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(logger.Get(), "/health", "/ready", cfg.MetricsPath))
	if cfg.Tracing {
		router.Use(telemetry.TracingMiddleware(cfg.ServiceName))
	}

	// Health check endpoints
	router.GET("/health", c.HealthHandler.Health)
	router.GET("/ready", c.HealthHandler.Ready)
	if c.Metrics != nil && cfg.MetricsPath != "" {
		router.GET(cfg.MetricsPath, gin.WrapH(c.Metrics.Handler()))
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{
				"status":  "ok",
				"version": cfg.Version,
				"service": cfg.ServiceName,
			})
		})

		// Catalog routes are public
		v1.GET("/concerts", c.CatalogHandler.ListConcerts)
		v1.GET("/concerts/:id", c.CatalogHandler.GetConcert)
		v1.GET("/concerts/:id/availability", c.CatalogHandler.Availability)

		authed := v1.Group("")
		authed.Use(middleware.Auth(middleware.AuthConfig{
			Authenticator:      c.Authenticator,
			ErrUnauthenticated: domain.ErrUnauthenticated,
		}))

		// Write operations replay on a repeated X-Idempotency-Key when Redis is available
		writes := []gin.HandlerFunc{}
		if c.Redis != nil {
			writes = append(writes, middleware.Idempotency(middleware.IdempotencyConfig{
				Store: c.Redis.Redis(),
			}))
		}

		authed.POST("/reservations", append(writes, c.ReservationHandler.Reserve)...)
		authed.POST("/reservations/:id/confirm", append(writes, c.ReservationHandler.Confirm)...)
		authed.GET("/reservations/:id", c.ReservationHandler.GetReservation)
		authed.GET("/bookings", c.AccountHandler.ListBookings)
		authed.PUT("/users/me/credit-card", c.AccountHandler.RegisterCreditCard)
	}

	return router
}
