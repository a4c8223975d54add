package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure RedisLimiter implements the interface.
var _ driven.CallerLimiter = (*RedisLimiter)(nil)

// RedisConfig configures a RedisLimiter.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// Prefix namespaces the counter keys.
	Prefix string

	Limit  int
	Window time.Duration
}

// RedisLimiter is a fixed-window counter shared by every process using the
// same Redis database.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration

	now func() time.Time
}

// NewRedisLimiter connects to Redis and verifies the connection.
func NewRedisLimiter(ctx context.Context, cfg RedisConfig) (*RedisLimiter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return newRedisLimiter(client, cfg), nil
}

func newRedisLimiter(client *redis.Client, cfg RedisConfig) *RedisLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "dossier:ratelimit"
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	return &RedisLimiter{
		client: client,
		prefix: cfg.Prefix,
		limit:  cfg.Limit,
		window: cfg.Window,
		now:    time.Now,
	}
}

// Allow increments the caller's counter for the current window.
func (l *RedisLimiter) Allow(ctx context.Context, caller string) (bool, error) {
	key := l.key(caller, l.now())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.window+time.Second)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("increment rate counter: %w", err)
	}
	return incr.Val() <= int64(l.limit), nil
}

// Close releases the Redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}

func (l *RedisLimiter) key(caller string, now time.Time) string {
	window := now.UnixNano() / int64(l.window)
	return l.prefix + ":" + caller + ":" + strconv.FormatInt(window, 10)
}
