package lock

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"tally/internal/core"
)

const (
	redisKeyPrefix = "tally:lock:"
	retryInterval  = 50 * time.Millisecond
)

// Redis is a Locker shared by every process that talks to the same Redis.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis wraps rdb. ttl bounds how long a crashed holder can block a key.
func NewRedis(rdb redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{client: redislock.New(rdb), ttl: ttl, logger: logger}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.ttl)
		defer cancel()
	}

	l, err := r.client.Obtain(ctx, redisKeyPrefix+key, r.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(retryInterval),
	})
	if err != nil {
		return nil, core.Unavailable("obtain lock "+key, err)
	}

	return func() {
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := l.Release(relCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.Warn("Failed to release lock", "key", key, "error", err)
		}
	}, nil
}
