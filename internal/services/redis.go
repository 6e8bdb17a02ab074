package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// InitRedis initializes the Redis client
func InitRedis(redisURL string) error {
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return nil
}

// WindowCounter counts hits per key inside a fixed window.
type WindowCounter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisWindowCounter struct {
	client *redis.Client
}

func NewRedisWindowCounter(client *redis.Client) WindowCounter {
	return &redisWindowCounter{client: client}
}

func (c *redisWindowCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// RateLimiter allows a fixed number of requests per key per minute.
type RateLimiter struct {
	counter   WindowCounter
	perMinute int
	now       func() time.Time
}

func NewRateLimiter(counter WindowCounter, perMinute int) *RateLimiter {
	return &RateLimiter{counter: counter, perMinute: perMinute, now: time.Now}
}

// Allow reports whether key may make another request in the current minute.
// A zero or negative limit disables limiting.
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	if l.perMinute <= 0 {
		return true, 0, nil
	}
	window := l.now().UTC().Truncate(time.Minute).Unix()
	count, err := l.counter.Incr(ctx, fmt.Sprintf("ratelimit:%s:%d", key, window), time.Minute)
	if err != nil {
		return false, 0, err
	}
	remaining := l.perMinute - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return count <= int64(l.perMinute), remaining, nil
}

var ErrLocked = errors.New("lock is held by another job")

// Locker hands out exclusive, expiring locks.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

type redisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) Locker {
	return &redisLocker{client: client}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *redisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	key = "lock:" + key
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, nil
}
