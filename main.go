package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/concert-booking/internal/auth"
	"github.com/prohmpiriya/concert-booking/internal/di"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"github.com/prohmpiriya/concert-booking/pkg/telemetry"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Concert Booking Service...",
		zap.String("store_driver", cfg.Booking.StoreDriver),
		zap.String("lock_driver", cfg.Booking.LockDriver),
		zap.String("event_driver", cfg.Booking.EventDriver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	if cfg.OTel.Enabled {
		if _, err := telemetry.Init(ctx, &telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.OTel.ServiceName,
			ServiceVersion: cfg.App.Version,
			Environment:    cfg.App.Environment,
			CollectorAddr:  cfg.OTel.CollectorAddr,
			SampleRatio:    cfg.OTel.SampleRatio,
		}); err != nil {
			appLog.Warn(fmt.Sprintf("Tracing disabled: %v", err))
		} else {
			defer func() {
				shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
				defer done()
				_ = telemetry.Shutdown(shutdownCtx)
			}()
			appLog.Info("Tracing enabled", zap.String("collector", cfg.OTel.CollectorAddr))
		}
	}

	// Initialize database connection
	var db *database.PostgresDB
	if di.NeedsPostgres(cfg) || di.WantsPostgres(cfg) {
		db, err = di.ConnectPostgres(ctx, cfg)
		switch {
		case err != nil && di.NeedsPostgres(cfg):
			appLog.Fatal(fmt.Sprintf("Database connection failed: %v", err))
		case err != nil:
			appLog.Warn(fmt.Sprintf("Database unavailable, keeping bookings in memory: %v", err))
			db = nil
		default:
			defer db.Close()
			appLog.Info(fmt.Sprintf("Database connected (pool: min=%d, max=%d)", cfg.Database.MinConns, cfg.Database.MaxConns))
		}
	}

	// Initialize Redis connection
	var redisClient *pkgredis.Client
	if di.NeedsRedis(cfg) {
		redisClient, err = di.ConnectRedis(ctx, cfg)
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Redis connection failed: %v", err))
		}
		defer redisClient.Close()
		appLog.Info(fmt.Sprintf("Redis connected (pool: %d, minIdle: %d)", cfg.Redis.PoolSize, cfg.Redis.MinIdleConns))
	}

	venue, err := di.NewVenue(cfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Invalid venue configuration: %v", err))
	}

	// Build dependency injection container
	containerCfg := di.ContainerConfigFrom(cfg)
	containerCfg.DB = db
	containerCfg.Redis = redisClient
	containerCfg.Venue = venue
	containerCfg.EventPublisher = di.NewEventPublisher(ctx, cfg)
	containerCfg.Authenticator = auth.NewJWTAuthenticator(auth.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	})
	if cfg.Metrics.Enabled {
		containerCfg.Metrics = metrics.New()
	}

	container, err := di.NewContainer(containerCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to build container: %v", err))
	}
	defer container.Close()
	container.PrepareStores(ctx)

	seeded, err := container.SeedCatalog(ctx, cfg.Catalog.SeedFile)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to seed catalog: %v", err))
	}
	if seeded > 0 {
		appLog.Info(fmt.Sprintf("Catalog seeded with %d concerts", seeded))
	}

	// Start the expiry sweep
	if cfg.Booking.SweepEnabled {
		if err := container.ExpiryWorker.Start(ctx); err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to start expiry worker: %v", err))
		}
	}

	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := di.NewRouter(container, di.RouterConfig{
		ServiceName: cfg.App.Name,
		Version:     cfg.App.Version,
		MetricsPath: cfg.Metrics.Path,
		Tracing:     cfg.OTel.Enabled,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ReadHeaderTimeout: 2 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Start server in goroutine
	go func() {
		appLog.Info(fmt.Sprintf("Concert Booking Service listening on %s", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal(fmt.Sprintf("Failed to start server: %v", err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLog.Info("Shutting down server...")

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error(fmt.Sprintf("Server forced to shutdown: %v", err))
	}
	container.ExpiryWorker.Stop()

	appLog.Info("Server exited gracefully")
}
