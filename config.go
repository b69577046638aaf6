package storeAuth

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Config is the library configuration consumed by [Builder.Build].
//
// Start from [DefaultConfig] and override fields; Build calls [Config.Validate].
type Config struct {
	Session SessionConfig
	Login   LoginConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

// SessionConfig controls session storage and manager lifetime.
type SessionConfig struct {
	// RedisPrefix is the key prefix used when the builder creates a Redis backend.
	RedisPrefix string
	// TTL bounds how long an idle session survives in storage. Zero keeps it until logout.
	TTL time.Duration
	// SlidingExpiration renews TTL on every read.
	SlidingExpiration bool
	// CheckTimeout bounds the mount-time status check started by [Provider.Acquire].
	CheckTimeout time.Duration
	// ManagerIdleTimeout keeps a released manager cached so the next request of the same
	// client skips the loading state. Zero disposes on last release.
	ManagerIdleTimeout time.Duration
}

// LoginConfig controls throttling of password logins.
type LoginConfig struct {
	Throttle         bool
	EnableIPThrottle bool
	MaxAttempts      int
	Cooldown         time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns production defaults: sessions live 7 days with sliding renewal, five
// failed logins per 15 minutes, metrics on, audit off.
func DefaultConfig() Config {
	return Config{
		Session: SessionConfig{
			RedisPrefix:        "ss",
			TTL:                7 * 24 * time.Hour,
			SlidingExpiration:  true,
			CheckTimeout:       3 * time.Second,
			ManagerIdleTimeout: 5 * time.Minute,
		},
		Login: LoginConfig{
			Throttle:         true,
			EnableIPThrottle: true,
			MaxAttempts:      5,
			Cooldown:         15 * time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

// Validate reports the first invalid section.
func (c *Config) Validate() error {
	s := &c.Session
	if err := validation.ValidateStruct(s,
		validation.Field(&s.RedisPrefix, validation.Required, validation.Length(1, 32)),
		validation.Field(&s.TTL, validation.Min(time.Duration(0))),
		validation.Field(&s.CheckTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&s.ManagerIdleTimeout, validation.Min(time.Duration(0))),
	); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if s.SlidingExpiration && s.TTL == 0 {
		return fmt.Errorf("session config: sliding expiration requires a ttl")
	}

	l := &c.Login
	if err := validation.ValidateStruct(l,
		validation.Field(&l.MaxAttempts, validation.When(l.Throttle, validation.Required, validation.Min(1))),
		validation.Field(&l.Cooldown, validation.When(l.Throttle, validation.Required, validation.Min(time.Second))),
	); err != nil {
		return fmt.Errorf("login config: %w", err)
	}

	a := &c.Audit
	if err := validation.ValidateStruct(a,
		validation.Field(&a.BufferSize, validation.When(a.Enabled, validation.Required, validation.Min(1))),
	); err != nil {
		return fmt.Errorf("audit config: %w", err)
	}

	return nil
}
