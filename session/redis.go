package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each client scope as one Redis hash, one field per session key.
//
// HGETALL gives [Store.Load] a consistent snapshot and MULTI/EXEC makes writes atomic, so a
// partially written session is never observable.
//
//	Key layout: <prefix>:<scope>  (hash)
type RedisBackend struct {
	redis   redis.UniversalClient
	prefix  string
	ttl     time.Duration
	sliding bool
}

// NewRedisBackend creates a [RedisBackend]. A ttl of zero keeps sessions until logout; with
// sliding enabled every successful read renews the ttl.
func NewRedisBackend(client redis.UniversalClient, prefix string, ttl time.Duration, sliding bool) *RedisBackend {
	if prefix == "" {
		prefix = "ss"
	}
	return &RedisBackend{
		redis:   client,
		prefix:  prefix,
		ttl:     ttl,
		sliding: sliding && ttl > 0,
	}
}

func (r *RedisBackend) key(scope string) string {
	return r.prefix + ":" + scope
}

// Read returns the scope's hash.
//
//	Performance: 1 Redis HGETALL, plus 1 EXPIRE when sliding.
func (r *RedisBackend) Read(ctx context.Context, scope string) (map[string]string, error) {
	key := r.key(scope)

	entries, err := r.redis.HGetAll(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	if r.sliding && len(entries) > 0 {
		if err := r.redis.Expire(ctx, key, r.ttl).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	return entries, nil
}

// Write applies set and remove in one transaction and refreshes the ttl.
//
//	Performance: 1 MULTI/EXEC round-trip.
func (r *RedisBackend) Write(ctx context.Context, scope string, set map[string]string, remove []string) error {
	key := r.key(scope)

	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(remove) > 0 {
			pipe.HDel(ctx, key, remove...)
		}
		if len(set) > 0 {
			pipe.HSet(ctx, key, set)
			if r.ttl > 0 {
				pipe.Expire(ctx, key, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Drop deletes the scope's hash. Deleting a missing key is not an error.
func (r *RedisBackend) Drop(ctx context.Context, scope string) error {
	if err := r.redis.Del(ctx, r.key(scope)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

// Scopes returns the scopes currently holding a session, for operator tooling.
// It walks the keyspace with SCAN and must not be used on request paths.
func (r *RedisBackend) Scopes(ctx context.Context) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	match := r.prefix + ":*"
	for {
		keys, next, err := r.redis.Scan(ctx, cursor, match, 256).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		for _, k := range keys {
			out = append(out, k[len(r.prefix)+1:])
		}
		cursor = next
		if cursor == 0 {
			return out, nil
		}
	}
}

// TTL returns the remaining lifetime of a scope, or a negative duration when it has none.
func (r *RedisBackend) TTL(ctx context.Context, scope string) (time.Duration, error) {
	ttl, err := r.redis.PTTL(ctx, r.key(scope)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return ttl, nil
}
