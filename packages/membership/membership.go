// Package membership wraps the Redis set the duplicate check and the
// outbound emitter share: every accepted message's local mobile number is
// added to it, and the duplicate check tests membership before a message is
// allowed into the outbound store. Grounded verbatim on
// original_source/checks/duplicate_check.py, which names the key
// "out_sms_numbers" and uses sismember/sadd directly, and on the go-redis/v9
// client construction style from the pack's DNC cache reference.
package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// acceptedNumbersKey is the exact Redis set key original_source uses.
const acceptedNumbersKey = "out_sms_numbers"

// Config holds Redis connection configuration.
type Config struct {
	Host         string
	Port         int
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sensible defaults for a local Redis instance.
func DefaultConfig() *Config {
	return &Config{
		Host:         "localhost",
		Port:         6379,
		DB:           0,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Cache is the accepted-number membership set.
type Cache struct {
	client *redis.Client
}

// Connect opens a Redis client and verifies it with PING.
func Connect(cfg *Config) (*Cache, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("membership: ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

// Close closes the underlying Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}

// Contains reports whether localMobile is a member of the accepted-numbers
// set.
func (c *Cache) Contains(ctx context.Context, localMobile string) (bool, error) {
	ok, err := c.client.SIsMember(ctx, acceptedNumbersKey, localMobile).Result()
	if err != nil {
		return false, fmt.Errorf("membership: sismember: %w", err)
	}
	return ok, nil
}

// Add adds localMobile to the accepted-numbers set.
func (c *Cache) Add(ctx context.Context, localMobile string) error {
	if err := c.client.SAdd(ctx, acceptedNumbersKey, localMobile).Err(); err != nil {
		return fmt.Errorf("membership: sadd: %w", err)
	}
	return nil
}

// WarmStart bulk-loads localMobiles into the accepted-numbers set in one
// round trip. Called once at startup to rebuild the cache from out_sms
// (spec.md §4.3/§9) — without it, a restart silently weakens the duplicate
// check (I1) for every number accepted before the process came up.
func (c *Cache) WarmStart(ctx context.Context, localMobiles []string) error {
	if len(localMobiles) == 0 {
		return nil
	}
	members := make([]interface{}, len(localMobiles))
	for i, m := range localMobiles {
		members[i] = m
	}
	if err := c.client.SAdd(ctx, acceptedNumbersKey, members...).Err(); err != nil {
		return fmt.Errorf("membership: warm start sadd: %w", err)
	}
	return nil
}
