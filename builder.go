package storeAuth

import (
	"errors"

	"github.com/MrEthical07/storeAuth/internal/rate"
	"github.com/MrEthical07/storeAuth/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles a [Provider].
//
//	p, err := storeAuth.New().
//		WithRedis(rdb).
//		WithAuthenticator(api.NewClient(baseURL, nil)).
//		WithLogger(logger).
//		Build()
type Builder struct {
	config  Config
	backend session.Backend
	redis   redis.UniversalClient

	auth      Authenticator
	auditSink AuditSink
	logger    *zap.Logger

	built bool
}

// New returns a builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithBackend sets the session backend. Without it, Build uses a Redis backend on the client
// passed to [Builder.WithRedis].
func (b *Builder) WithBackend(backend session.Backend) *Builder {
	b.backend = backend
	return b
}

// WithRedis sets the Redis client used for the login throttle and, when no backend is given,
// for session storage.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithAuthenticator(auth Authenticator) *Builder {
	b.auth = auth
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns the provider. A builder can be used once.
func (b *Builder) Build() (*Provider, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backend := b.backend
	if backend == nil && b.redis != nil {
		backend = session.NewRedisBackend(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL, cfg.Session.SlidingExpiration)
	}
	if backend == nil {
		return nil, ErrNoBackend
	}

	var limiter *rate.Limiter
	if cfg.Login.Throttle {
		if b.redis != nil {
			limiter = rate.New(b.redis, rate.Config{
				EnableIPThrottle:      cfg.Login.EnableIPThrottle,
				MaxLoginAttempts:      cfg.Login.MaxAttempts,
				LoginCooldownDuration: cfg.Login.Cooldown,
			})
		} else {
			logger.Warn("login throttle disabled: no redis client configured")
		}
	}

	b.built = true
	return &Provider{
		cfg:     cfg,
		backend: backend,
		deps: managerDeps{
			auth:    b.auth,
			limiter: limiter,
			metrics: NewMetrics(cfg.Metrics),
			audit:   newAuditDispatcher(cfg.Audit, b.auditSink),
			logger:  logger,
		},
		managers: make(map[string]*managerEntry),
	}, nil
}
