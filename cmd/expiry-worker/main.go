package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prohmpiriya/concert-booking/internal/di"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
)

// The expiry worker sweeps a shared store on behalf of API replicas that run
// with BOOKING_SWEEP_ENABLED=false.
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Booking.StoreDriver == config.StoreMemory {
		log.Fatalf("expiry worker needs a shared store, got %q", cfg.Booking.StoreDriver)
	}

	// Initialize logger
	logCfg := &logger.Config{
		Level:       cfg.App.LogLevel,
		ServiceName: "expiry-worker",
		Development: cfg.IsDevelopment(),
	}
	if err := logger.Init(logCfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("Starting Expiry Worker...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var db *database.PostgresDB
	if di.NeedsPostgres(cfg) || di.WantsPostgres(cfg) {
		db, err = di.ConnectPostgres(ctx, cfg)
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to connect to database: %v", err))
		}
		defer db.Close()
		appLog.Info("Database connected")
	}

	var redisClient *pkgredis.Client
	if di.NeedsRedis(cfg) {
		redisClient, err = di.ConnectRedis(ctx, cfg)
		if err != nil {
			appLog.Fatal(fmt.Sprintf("Failed to connect to Redis: %v", err))
		}
		defer redisClient.Close()
		appLog.Info("Redis connected")
	}

	venue, err := di.NewVenue(cfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Invalid venue configuration: %v", err))
	}

	containerCfg := di.ContainerConfigFrom(cfg)
	containerCfg.ServiceName = "expiry-worker"
	containerCfg.DB = db
	containerCfg.Redis = redisClient
	containerCfg.Venue = venue
	containerCfg.EventPublisher = di.NewEventPublisher(ctx, cfg)

	container, err := di.NewContainer(containerCfg)
	if err != nil {
		appLog.Fatal(fmt.Sprintf("Failed to build container: %v", err))
	}
	defer container.Close()
	container.PrepareStores(ctx)

	// Start worker
	if err := container.ExpiryWorker.Start(ctx); err != nil {
		appLog.Fatal(fmt.Sprintf("Worker error: %v", err))
	}
	appLog.Info("Expiry Worker started successfully")

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("Shutting down worker...")
	container.ExpiryWorker.Stop()
	cancel()

	stats := container.ExpiryWorker.GetStats()
	appLog.Info(fmt.Sprintf("Worker exited gracefully (expired=%d, errors=%d)", stats.TotalExpired, stats.TotalErrors))
}
