package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/snap2pass/internal/core/domain"
	"github.com/vietddude/snap2pass/internal/infra/storage"
)

// DefaultTTL bounds how long an unfinished trial state can be resumed.
const DefaultTTL = 7 * 24 * time.Hour

// Client wraps Redis operations for trial state persistence.
type Client struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// Config holds Redis connection configuration.
type Config struct {
	URL       string        `yaml:"url"`
	Password  string        `yaml:"password"`
	TTL       time.Duration `yaml:"ttl"`
	KeyPrefix string        `yaml:"key_prefix"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg Config) *Client {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Client{rdb: rdb, ttl: ttl, prefix: cfg.KeyPrefix}
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Key helpers
func (c *Client) trialKey(key string) string {
	return fmt.Sprintf("%strial:%s", c.prefix, key)
}

// TrialStore implements storage.TrialStateStore using Redis.
type TrialStore struct {
	c *Client
}

// NewTrialStore creates a Redis-backed trial state store.
func NewTrialStore(client *Client) *TrialStore {
	return &TrialStore{c: client}
}

// Get retrieves the state stored under key.
func (s *TrialStore) Get(ctx context.Context, key string) (*domain.TrialState, error) {
	data, err := s.c.rdb.Get(ctx, s.c.trialKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	return storage.UnmarshalTrialState(data)
}

// Save stores the state and refreshes its TTL.
func (s *TrialStore) Save(ctx context.Context, state *domain.TrialState) error {
	data, err := storage.MarshalTrialState(state)
	if err != nil {
		return err
	}
	if err := s.c.rdb.Set(ctx, s.c.trialKey(state.Key), data, s.c.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Delete discards the state.
func (s *TrialStore) Delete(ctx context.Context, key string) error {
	if err := s.c.rdb.Del(ctx, s.c.trialKey(key)).Err(); err != nil {
		return fmt.Errorf("del failed: %w", err)
	}
	return nil
}

// Health checks if Redis is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
