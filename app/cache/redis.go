package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/MrMohammed1/miran-search/app/logging"
)

const scanBatch = 500

// BreakerSettings controls when the Redis backend stops calling Redis.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
}

// RedisBackend stores entries in Redis. All calls pass through a circuit
// breaker so an unreachable server costs one fast error per call instead of
// a dial timeout.
type RedisBackend struct {
	client  redis.UniversalClient
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func NewRedisBackend(client redis.UniversalClient, settings BreakerSettings, logger *zap.Logger) *RedisBackend {
	logger = logging.OrNop(logger)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-cache",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &RedisBackend{client: client, breaker: breaker, logger: logger}
}

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	res, err := r.breaker.Execute(func() (interface{}, error) {
		value, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return value, err
	})
	if err != nil {
		return nil, false, err
	}
	value, _ := res.([]byte)
	if value == nil {
		return nil, false, nil
	}
	return value, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.exec(func() error {
		return r.client.Set(ctx, key, value, ttl).Err()
	})
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.exec(func() error {
		return r.client.Unlink(ctx, keys...).Err()
	})
}

// DeletePrefix walks the keyspace with SCAN and unlinks every page of
// matches as it goes.
func (r *RedisBackend) DeletePrefix(ctx context.Context, prefix string) error {
	return r.exec(func() error {
		pattern := globEscaper.Replace(prefix) + "*"
		var cursor uint64
		for {
			keys, next, err := r.client.Scan(ctx, cursor, pattern, scanBatch).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			cursor = next
			if cursor == 0 {
				return nil
			}
		}
	})
}

func (r *RedisBackend) AddToSet(ctx context.Context, set string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return r.exec(func() error {
		return r.client.SAdd(ctx, set, args...).Err()
	})
}

func (r *RedisBackend) SetMembers(ctx context.Context, set string) ([]string, error) {
	res, err := r.breaker.Execute(func() (interface{}, error) {
		return r.client.SMembers(ctx, set).Result()
	})
	if err != nil {
		return nil, err
	}
	members, _ := res.([]string)
	return members, nil
}

func (r *RedisBackend) exec(fn func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
