package redis

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/prohmpiriya/concert-booking/pkg/retry"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
)

// Nil is returned by Redis when a key does not exist
const Nil = redis.Nil

// Config holds Redis connection configuration
type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Retry configuration
	MaxRetries    int
	RetryInterval time.Duration

	EnableTracing bool
}

// DefaultConfig returns default Redis configuration
func DefaultConfig() *Config {
	return &Config{
		Addr:          "localhost:6379",
		PoolSize:      100,
		MinIdleConns:  10,
		DialTimeout:   5 * time.Second,
		ReadTimeout:   3 * time.Second,
		WriteTimeout:  3 * time.Second,
		MaxRetries:    3,
		RetryInterval: time.Second,
	}
}

// Client wraps a go-redis client with Lua script support
type Client struct {
	rdb redis.UniversalClient
}

// NewClient connects to Redis, retrying the initial ping
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	err := retry.Do(ctx, &retry.Config{
		MaxRetries:      cfg.MaxRetries,
		InitialInterval: cfg.RetryInterval,
		MaxInterval:     cfg.RetryInterval,
		Multiplier:      1,
	}, func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	if err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", cfg.MaxRetries+1, err)
	}

	if cfg.EnableTracing {
		if err := redisotel.InstrumentTracing(rdb); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("failed to instrument redis tracing: %w", err)
		}
	}

	return &Client{rdb: rdb}, nil
}

// NewFromClient wraps an existing go-redis client, e.g. a redismock client
func NewFromClient(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

// Redis returns the underlying go-redis client
func (c *Client) Redis() redis.UniversalClient {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// HealthCheck pings Redis
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := c.rdb.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	if result != "PONG" {
		return fmt.Errorf("redis health check unexpected response: %s", result)
	}
	return nil
}

// Script is a Lua script addressed by its SHA1
type Script struct {
	Name   string
	Source string
	SHA    string
}

// NewScript creates a script and computes its SHA the way Redis does
func NewScript(name, source string) *Script {
	return &Script{Name: name, Source: source, SHA: computeSHA1(source)}
}

func computeSHA1(script string) string {
	h := sha1.New()
	h.Write([]byte(script))
	return hex.EncodeToString(h.Sum(nil))
}

// LoadScripts preloads scripts so the first EVALSHA does not miss
func (c *Client) LoadScripts(ctx context.Context, scripts ...*Script) error {
	for _, s := range scripts {
		if err := c.rdb.ScriptLoad(ctx, s.Source).Err(); err != nil {
			return fmt.Errorf("failed to load script %s: %w", s.Name, err)
		}
	}
	return nil
}

// Run executes a script by SHA and reloads it once if the server lost it
func (c *Client) Run(ctx context.Context, s *Script, keys []string, args ...interface{}) *redis.Cmd {
	cmd := c.rdb.EvalSha(ctx, s.SHA, keys, args...)
	if !isNoScriptError(cmd.Err()) {
		return cmd
	}

	if err := c.rdb.ScriptLoad(ctx, s.Source).Err(); err != nil {
		failed := redis.NewCmd(ctx)
		failed.SetErr(fmt.Errorf("failed to reload script %s: %w", s.Name, err))
		return failed
	}
	return c.rdb.EvalSha(ctx, s.SHA, keys, args...)
}

func isNoScriptError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "NOSCRIPT")
}
