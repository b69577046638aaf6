// Command storefront-gateway serves the storefront behind session-aware route guards.
//
// Configuration comes from the environment (and a .env file when present):
//
//	BACKEND_URL      backend auth API (default http://localhost:5000)
//	UPSTREAM_URL     proxied pages and API (default BACKEND_URL)
//	REDIS_URL        Redis session store and login throttle
//	DATABASE_URL     Postgres session store, used when REDIS_URL is empty
//	POLICY_PATH      route policy YAML (default: built-in storefront policy)
//	GOOGLE_CLIENT_ID enables Google sign-in on the login page
//
// Without REDIS_URL or DATABASE_URL sessions live in process memory.
package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/api"
	"github.com/MrEthical07/storeAuth/gateway"
	"github.com/MrEthical07/storeAuth/internal/config"
	"github.com/MrEthical07/storeAuth/policy"
	"github.com/MrEthical07/storeAuth/session"
	"github.com/MrEthical07/storeAuth/session/postgres"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Missing .env is fine in production.
	_ = godotenv.Load()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "storefront-gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendClient := api.NewClient(cfg.BackendURL, nil)
	builder := storeAuth.New().
		WithConfig(cfg.Auth()).
		WithAuthenticator(backendClient).
		WithLogger(logger)
	if cfg.AuditLog {
		builder = builder.WithAuditSink(storeAuth.NewZapSink(logger.Named("audit")))
	}

	switch {
	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(rdb)
		logger.Info("session store: redis", zap.String("addr", opts.Addr))

	case cfg.DatabaseURL != "":
		pg, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		builder = builder.WithBackend(pg)
		if cfg.SessionTTL > 0 {
			go purgeLoop(ctx, pg, cfg.SessionTTL, logger)
		}
		logger.Info("session store: postgres")

	default:
		builder = builder.WithBackend(session.NewMemoryBackend())
		logger.Warn("session store: in-memory; sessions are lost on restart")
	}

	provider, err := builder.Build()
	if err != nil {
		return err
	}

	pol := policy.Default()
	if cfg.PolicyPath != "" {
		if pol, err = policy.Load(cfg.PolicyPath); err != nil {
			return err
		}
	}

	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil {
		return fmt.Errorf("UPSTREAM_URL: %w", err)
	}

	srv, err := gateway.New(gateway.Options{
		Upstream:       upstream,
		CookieName:     cfg.CookieName,
		CookieSecure:   cfg.CookieSecure,
		CookieMaxAge:   cfg.SessionTTL,
		CORSOrigins:    cfg.CORSOrigins,
		PendingWait:    cfg.PendingWait,
		GoogleClientID: cfg.GoogleClientID,
	}, provider, backendClient, pol, logger)
	if err != nil {
		return err
	}

	logger.Info("gateway starting",
		zap.String("environment", cfg.Environment),
		zap.String("backend", cfg.BackendURL),
		zap.String("upstream", cfg.UpstreamURL),
		zap.Int("guarded_routes", len(pol.Routes)),
	)
	return srv.Run(ctx, ":"+cfg.Port, cfg.ShutdownTimeout)
}

// purgeLoop deletes Postgres session entries idle for longer than ttl.
func purgeLoop(ctx context.Context, pg *postgres.Backend, ttl time.Duration, logger *zap.Logger) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := pg.Purge(ctx, ttl)
			if err != nil {
				logger.Warn("session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("purged idle sessions", zap.Int64("entries", n))
			}
		}
	}
}
