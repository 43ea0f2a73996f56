package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrLockUnavailable indicates the keyed lock could not be acquired in time.
var ErrLockUnavailable = errors.New("keyed lock unavailable")

// KeyedLocker serializes the eligibility check-and-create sequence per
// learner/assessment/context key, so two simultaneous LMS launches cannot
// both pass the attempt-count check before either writes.
type KeyedLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	logger zerolog.Logger
}

// Deleting only when the stored token matches prevents a slow holder from
// releasing a lock re-acquired by someone else.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// NewRedisLocker creates a Redis-backed keyed locker. The TTL bounds how long
// a crashed holder can wedge a key; wait bounds how long an acquirer spins.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration, logger zerolog.Logger) KeyedLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}

	return &redisLocker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		logger: logger.With().Str("component", "keyed_locker").Logger(),
	}
}

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if _, err := releaseScript.Run(context.Background(), l.client, []string{key}, token).Result(); err != nil {
					l.logger.Warn().Err(err).Str("key", key).Msg("failed to release keyed lock")
				}
			}, nil
		}

		if time.Now().After(deadline) {
			return nil, ErrLockUnavailable
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(25 * time.Millisecond):
		}
	}
}
