// Package config reads the gateway's process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the gateway's process configuration.
type Config struct {
	Environment string
	Port        string
	BackendURL  string
	// UpstreamURL receives proxied page and API traffic. Defaults to BackendURL.
	UpstreamURL string
	// RedisURL selects the Redis session backend. Empty falls back to DatabaseURL, then to an
	// in-process store.
	RedisURL    string
	DatabaseURL string
	CORSOrigins []string
	PolicyPath  string
	LogLevel    string

	GoogleClientID string

	CookieName   string
	CookieSecure bool

	SessionTTL         time.Duration
	CheckTimeout       time.Duration
	ManagerIdleTimeout time.Duration
	PendingWait        time.Duration
	ShutdownTimeout    time.Duration

	LoginThrottle    bool
	MaxLoginAttempts int
	LoginCooldown    time.Duration

	AuditLog bool
}

// Load reads the environment. Call godotenv.Load first to pick up a .env file.
func Load() (*Config, error) {
	env := getEnv("ENVIRONMENT", "dev")

	cfg := &Config{
		Environment:    env,
		Port:           getEnv("PORT", "8080"),
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:5000"), "/"),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", ""),
		RedisURL:       getEnv("REDIS_URL", ""),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		CORSOrigins:    splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		PolicyPath:     getEnv("POLICY_PATH", ""),
		LogLevel:       getEnv("LOG_LEVEL", defaultLogLevel(env)),
		CookieName:     getEnv("SESSION_COOKIE", "storefront_session"),
		CookieSecure:   getEnv("COOKIE_SECURE", strconv.FormatBool(env == "prod")) == "true",
		AuditLog:       getEnv("AUDIT_LOG", "false") == "true",
	}

	cfg.UpstreamURL = strings.TrimRight(getEnv("UPSTREAM_URL", cfg.BackendURL), "/")

	defaults := storeAuth.DefaultConfig()
	var err error
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", defaults.Session.TTL); err != nil {
		return nil, err
	}
	if cfg.CheckTimeout, err = getDuration("SESSION_CHECK_TIMEOUT", defaults.Session.CheckTimeout); err != nil {
		return nil, err
	}
	if cfg.ManagerIdleTimeout, err = getDuration("SESSION_IDLE_TIMEOUT", defaults.Session.ManagerIdleTimeout); err != nil {
		return nil, err
	}
	if cfg.PendingWait, err = getDuration("GUARD_PENDING_WAIT", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.LoginCooldown, err = getDuration("LOGIN_COOLDOWN", defaults.Login.Cooldown); err != nil {
		return nil, err
	}

	cfg.LoginThrottle = getEnv("LOGIN_THROTTLE", strconv.FormatBool(defaults.Login.Throttle)) == "true"
	attempts := getEnv("LOGIN_MAX_ATTEMPTS", strconv.Itoa(defaults.Login.MaxAttempts))
	if cfg.MaxLoginAttempts, err = strconv.Atoi(attempts); err != nil {
		return nil, fmt.Errorf("LOGIN_MAX_ATTEMPTS: %w", err)
	}
	return cfg, nil
}

// Auth maps the process configuration onto the session library's configuration.
func (c *Config) Auth() storeAuth.Config {
	out := storeAuth.DefaultConfig()
	out.Session.TTL = c.SessionTTL
	out.Session.SlidingExpiration = c.SessionTTL > 0
	out.Session.CheckTimeout = c.CheckTimeout
	out.Session.ManagerIdleTimeout = c.ManagerIdleTimeout
	out.Login.Throttle = c.LoginThrottle
	out.Login.MaxAttempts = c.MaxLoginAttempts
	out.Login.Cooldown = c.LoginCooldown
	out.Audit.Enabled = c.AuditLog
	return out
}

// Logger builds the process logger: JSON in production, console otherwise.
func (c *Config) Logger() (*zap.Logger, error) {
	var zc zap.Config
	if c.Environment == "prod" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func defaultLogLevel(env string) string {
	if env == "prod" {
		return "info"
	}
	return "debug"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
