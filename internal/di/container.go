package di

import (
	"context"
	"fmt"

	"github.com/prohmpiriya/concert-booking/internal/auth"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/dto"
	"github.com/prohmpiriya/concert-booking/internal/handler"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/metrics"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/internal/worker"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
)

// Container holds all dependencies for the booking service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *pkgredis.Client

	// Repositories
	ReservationRepo repository.ReservationRepository
	BookingRepo     repository.BookingRepository
	ConcertRepo     repository.ConcertRepository
	AccountRepo     repository.AccountRepository

	// Collaborators
	Locker         lock.Locker
	EventPublisher service.EventPublisher
	Authenticator  auth.Authenticator
	Metrics        *metrics.Metrics

	// Services
	ReservationService service.ReservationService
	CatalogService     service.CatalogService
	AccountService     service.AccountService

	// Workers
	ExpiryWorker *worker.ExpiryWorker

	// Handlers
	HealthHandler      *handler.HealthHandler
	ReservationHandler *handler.ReservationHandler
	CatalogHandler     *handler.CatalogHandler
	AccountHandler     *handler.AccountHandler
}

// ContainerConfig contains configuration for building the container.
// DB and Redis are optional; the drivers decide which of them are required.
type ContainerConfig struct {
	DB             *database.PostgresDB
	Redis          *pkgredis.Client
	EventPublisher service.EventPublisher
	Authenticator  auth.Authenticator
	Metrics        *metrics.Metrics
	Venue          *domain.Venue
	Clock          service.Clock

	ServiceName   string
	StoreDriver   string
	LockDriver    string
	LockConfig    *lock.RedisLockerConfig
	ServiceConfig *service.ReservationServiceConfig
	WorkerConfig  *worker.ExpiryWorkerConfig
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *ContainerConfig) (*Container, error) {
	if err := dto.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}

	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		EventPublisher: cfg.EventPublisher,
		Authenticator:  cfg.Authenticator,
		Metrics:        cfg.Metrics,
	}
	if c.EventPublisher == nil {
		c.EventPublisher = service.NewNoOpEventPublisher()
	}

	if err := c.initRepositories(cfg.StoreDriver); err != nil {
		return nil, err
	}
	if err := c.initLocker(cfg.LockDriver, cfg.LockConfig); err != nil {
		return nil, err
	}

	// Initialize services
	c.ReservationService = service.NewReservationService(service.ReservationServiceDeps{
		Reservations: c.ReservationRepo,
		Bookings:     c.BookingRepo,
		Concerts:     c.ConcertRepo,
		Accounts:     c.AccountRepo,
		Locker:       c.Locker,
		Venue:        cfg.Venue,
		Publisher:    c.EventPublisher,
		Metrics:      c.Metrics,
		Clock:        cfg.Clock,
	}, cfg.ServiceConfig)
	c.CatalogService = service.NewCatalogService(c.ConcertRepo)
	c.AccountService = service.NewAccountService(c.AccountRepo, c.BookingRepo)

	c.ExpiryWorker = worker.NewExpiryWorker(c.ReservationService, c.Metrics, cfg.WorkerConfig)

	// Initialize handlers
	c.HealthHandler = handler.NewHealthHandler(cfg.ServiceName, c.healthChecks())
	c.ReservationHandler = handler.NewReservationHandler(c.ReservationService)
	c.CatalogHandler = handler.NewCatalogHandler(c.CatalogService, c.ReservationService)
	c.AccountHandler = handler.NewAccountHandler(c.AccountService)

	return c, nil
}

// initRepositories picks the stores. The redis driver keeps reservations in
// Redis and the durable records in Postgres when a database is configured.
func (c *Container) initRepositories(driver string) error {
	switch driver {
	case config.StorePostgres:
		if c.DB == nil {
			return fmt.Errorf("store driver %q needs a database", driver)
		}
		c.ReservationRepo = repository.NewPostgresReservationRepository(c.DB.Pool())
		c.useDurableStores()
	case config.StoreRedis:
		if c.Redis == nil {
			return fmt.Errorf("store driver %q needs redis", driver)
		}
		c.ReservationRepo = repository.NewRedisReservationRepository(c.Redis)
		if c.DB != nil {
			c.useDurableStores()
		} else {
			c.useMemoryStores()
		}
	case config.StoreMemory, "":
		c.ReservationRepo = repository.NewMemoryReservationRepository()
		c.useMemoryStores()
	default:
		return fmt.Errorf("unknown store driver: %s", driver)
	}
	return nil
}

func (c *Container) useDurableStores() {
	c.BookingRepo = repository.NewPostgresBookingRepository(c.DB.Pool())
	c.ConcertRepo = repository.NewPostgresConcertRepository(c.DB.Pool())
	c.AccountRepo = repository.NewPostgresAccountRepository(c.DB.Pool())
}

func (c *Container) useMemoryStores() {
	c.BookingRepo = repository.NewMemoryBookingRepository()
	c.ConcertRepo = repository.NewMemoryConcertRepository()
	c.AccountRepo = repository.NewMemoryAccountRepository()
}

func (c *Container) initLocker(driver string, cfg *lock.RedisLockerConfig) error {
	switch driver {
	case config.LockRedis:
		if c.Redis == nil {
			return fmt.Errorf("lock driver %q needs redis", driver)
		}
		c.Locker = lock.NewRedisLocker(c.Redis, cfg)
	case config.LockLocal, "":
		c.Locker = lock.NewLocalLocker()
	default:
		return fmt.Errorf("unknown lock driver: %s", driver)
	}
	return nil
}

func (c *Container) healthChecks() map[string]handler.HealthCheck {
	checks := make(map[string]handler.HealthCheck)
	if c.DB != nil {
		checks["postgres"] = c.DB.HealthCheck
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.HealthCheck
	}
	return checks
}

// SeedCatalog loads concerts from a seed file into the concert store
func (c *Container) SeedCatalog(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	concerts, err := repository.LoadConcertSeed(path)
	if err != nil {
		return 0, err
	}
	if err := repository.SeedConcerts(ctx, c.ConcertRepo, concerts); err != nil {
		return 0, err
	}
	return len(concerts), nil
}

// Close releases the resources the container owns
func (c *Container) Close() error {
	if c.ExpiryWorker != nil {
		c.ExpiryWorker.Stop()
	}
	if c.EventPublisher != nil {
		return c.EventPublisher.Close()
	}
	return nil
}
