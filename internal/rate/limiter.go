package rate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds login throttle tuning parameters.
type Config struct {
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// Limiter counts failed storefront logins per username and per client IP in Redis, so the
// gateway stops forwarding guesses to the backend once a window is exhausted.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// incrWindow bumps a counter and starts its window on the first hit, atomically.
var incrWindow = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

func (l *Limiter) keys(username, ip string) []string {
	keys := []string{loginUserKey(username)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, loginIPKey(ip))
	}
	return keys
}

// CheckLogin returns [ErrRateLimited] when the username or, with IP throttling, the IP has used
// up its failure budget for the current window.
func (l *Limiter) CheckLogin(ctx context.Context, username, ip string) error {
	counts, err := l.counts(ctx, l.keys(username, ip))
	if err != nil {
		return err
	}
	for _, n := range counts {
		if n >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed login for the username and IP. It returns [ErrRateLimited]
// when this failure used up a budget.
func (l *Limiter) IncrementLogin(ctx context.Context, username, ip string) error {
	ttl := l.config.LoginCooldownDuration.Milliseconds()

	limited := false
	for _, key := range l.keys(username, ip) {
		n, err := incrWindow.Run(ctx, l.redis, []string{key}, ttl).Int64()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		if n >= int64(l.config.MaxLoginAttempts) {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin clears the username counter after a successful login. The IP counter is left to
// expire so one valid account cannot launder guesses against others.
func (l *Limiter) ResetLogin(ctx context.Context, username string) error {
	if err := l.redis.Del(ctx, loginUserKey(username)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Attempts returns the current failure count for a username.
func (l *Limiter) Attempts(ctx context.Context, username string) (int, error) {
	counts, err := l.counts(ctx, []string{loginUserKey(username)})
	if err != nil {
		return 0, err
	}
	return int(counts[0]), nil
}

// counts reads every key in one round trip. Missing keys count as zero.
func (l *Limiter) counts(ctx context.Context, keys []string) ([]int64, error) {
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := l.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = p.Get(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]int64, len(keys))
	for i, cmd := range cmds {
		n, err := cmd.Int64()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		case n > 0:
			out[i] = n
		}
	}
	return out, nil
}

func loginUserKey(username string) string {
	return "sl:" + strings.ToLower(strings.TrimSpace(username))
}

func loginIPKey(ip string) string {
	return "sli:" + ip
}
