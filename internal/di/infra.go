package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/prohmpiriya/concert-booking/internal/lock"
	"github.com/prohmpiriya/concert-booking/internal/repository"
	"github.com/prohmpiriya/concert-booking/internal/service"
	"github.com/prohmpiriya/concert-booking/internal/worker"
	"github.com/prohmpiriya/concert-booking/pkg/config"
	"github.com/prohmpiriya/concert-booking/pkg/database"
	"github.com/prohmpiriya/concert-booking/pkg/logger"
	pkgredis "github.com/prohmpiriya/concert-booking/pkg/redis"
	"go.uber.org/zap"
)

// NeedsPostgres reports whether the store driver requires a database
func NeedsPostgres(cfg *config.Config) bool {
	return cfg.Booking.StoreDriver == config.StorePostgres
}

// WantsPostgres reports whether a database should be tried even though the
// store driver can run without one
func WantsPostgres(cfg *config.Config) bool {
	return cfg.Booking.StoreDriver == config.StoreRedis
}

// NeedsRedis reports whether the store or lock driver requires Redis
func NeedsRedis(cfg *config.Config) bool {
	return cfg.Booking.StoreDriver == config.StoreRedis || cfg.Booking.LockDriver == config.LockRedis
}

// ConnectPostgres opens the pool and applies the schema when migrations are enabled
func ConnectPostgres(ctx context.Context, cfg *config.Config) (*database.PostgresDB, error) {
	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		DSN:             cfg.Database.DSN(),
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Database.Migrate {
		if err := db.Migrate(ctx, repository.Schema...); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}
	return db, nil
}

// ConnectRedis opens the Redis client
func ConnectRedis(ctx context.Context, cfg *config.Config) (*pkgredis.Client, error) {
	return pkgredis.NewClient(ctx, &pkgredis.Config{
		Addr:          cfg.Redis.Addr(),
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MinIdleConns:  cfg.Redis.MinIdleConns,
		DialTimeout:   cfg.Redis.DialTimeout,
		ReadTimeout:   cfg.Redis.ReadTimeout,
		WriteTimeout:  cfg.Redis.WriteTimeout,
		MaxRetries:    3,
		RetryInterval: 100 * time.Millisecond,
		EnableTracing: cfg.OTel.Enabled,
	})
}

// NewEventPublisher connects the configured broker. A broker that cannot be
// reached degrades to the no-op publisher so bookings keep working.
func NewEventPublisher(ctx context.Context, cfg *config.Config) service.EventPublisher {
	log := logger.Get()
	pubCfg := &service.EventPublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		Topic:       cfg.Kafka.Topic,
		ServiceName: cfg.App.Name,
		ClientID:    cfg.Kafka.ClientID,
		AMQPURL:     cfg.AMQP.URL,
		Exchange:    cfg.AMQP.Exchange,
	}

	switch cfg.Booking.EventDriver {
	case config.EventsKafka:
		publisher, err := service.NewKafkaEventPublisher(ctx, pubCfg)
		if err != nil {
			log.Warn("Kafka connection failed, using no-op publisher", zap.Error(err))
			return service.NewNoOpEventPublisher()
		}
		log.Info("Kafka event publisher connected", zap.String("topic", cfg.Kafka.Topic))
		return publisher
	case config.EventsAMQP:
		publisher, err := service.NewAMQPEventPublisher(ctx, pubCfg)
		if err != nil {
			log.Warn("RabbitMQ connection failed, using no-op publisher", zap.Error(err))
			return service.NewNoOpEventPublisher()
		}
		log.Info("RabbitMQ event publisher connected", zap.String("exchange", cfg.AMQP.Exchange))
		return publisher
	default:
		return service.NewNoOpEventPublisher()
	}
}

// NewVenue builds the seat map from the venue settings
func NewVenue(cfg *config.Config) (*domain.Venue, error) {
	return domain.NewVenue(cfg.Venue.Rows, cfg.Venue.SeatsPerRow, cfg.Venue.Bands)
}

// ContainerConfigFrom maps application settings onto a ContainerConfig.
// Infrastructure and collaborators are left for the caller to fill in.
func ContainerConfigFrom(cfg *config.Config) *ContainerConfig {
	return &ContainerConfig{
		ServiceName: cfg.App.Name,
		StoreDriver: cfg.Booking.StoreDriver,
		LockDriver:  cfg.Booking.LockDriver,
		LockConfig: &lock.RedisLockerConfig{
			Prefix: "concert-booking:lock:",
			TTL:    cfg.Booking.LockTTL,
		},
		ServiceConfig: &service.ReservationServiceConfig{
			HoldDuration:     cfg.Booking.HoldDuration,
			ExpiredRetention: cfg.Booking.ExpiredRetention,
			ConflictBackoff:  cfg.Booking.ConflictBackoff,
		},
		WorkerConfig: &worker.ExpiryWorkerConfig{
			ScanInterval: cfg.Booking.SweepInterval,
			BatchSize:    cfg.Booking.SweepBatchSize,
		},
	}
}

// PrepareStores runs store-specific startup work once the container is built
func (c *Container) PrepareStores(ctx context.Context) {
	if repo, ok := c.ReservationRepo.(*repository.RedisReservationRepository); ok {
		if err := repo.LoadScripts(ctx); err != nil {
			logger.Get().Warn("Failed to pre-load Lua scripts", zap.Error(err))
		} else {
			logger.Get().Info("Lua scripts pre-loaded into Redis")
		}
	}
}
