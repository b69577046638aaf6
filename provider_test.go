package storeAuth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MrEthical07/storeAuth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.ManagerIdleTimeout = 0
	cfg.Login.Throttle = false
	return cfg
}

func newTestProvider(t *testing.T, backend session.Backend, cfg Config, auth Authenticator) *Provider {
	t.Helper()
	p, err := New().WithConfig(cfg).WithBackend(backend).WithAuthenticator(auth).Build()
	if err != nil {
		t.Fatalf("build provider: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestProviderSharesManagerPerScope(t *testing.T) {
	p := newTestProvider(t, session.NewMemoryBackend(), testConfig(), nil)
	ctx := context.Background()

	a, releaseA, err := p.Acquire(ctx, "client-1")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	b, releaseB, _ := p.Acquire(ctx, "client-1")
	c, releaseC, _ := p.Acquire(ctx, "client-2")
	defer releaseC()

	if a != b {
		t.Fatal("expected one manager per scope")
	}
	if a == c {
		t.Fatal("expected distinct managers for distinct scopes")
	}
	if p.Active() != 2 {
		t.Fatalf("expected 2 active managers, got %d", p.Active())
	}

	if _, err := a.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}

	releaseA()
	releaseA()
	if a.Disposed() {
		t.Fatal("manager disposed while still held")
	}
	releaseB()
	if !a.Disposed() {
		t.Fatal("expected dispose on last release")
	}
	if p.Active() != 1 {
		t.Fatalf("expected 1 active manager, got %d", p.Active())
	}
}

func TestProviderIdleTimeoutKeepsManager(t *testing.T) {
	cfg := testConfig()
	cfg.Session.ManagerIdleTimeout = 30 * time.Millisecond
	p := newTestProvider(t, session.NewMemoryBackend(), cfg, nil)
	ctx := context.Background()

	first, release, _ := p.Acquire(ctx, "client-1")
	release()

	again, releaseAgain, _ := p.Acquire(ctx, "client-1")
	if again != first {
		t.Fatal("expected cached manager within idle timeout")
	}
	releaseAgain()

	deadline := time.Now().Add(time.Second)
	for p.Active() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if p.Active() != 0 || !first.Disposed() {
		t.Fatal("expected manager evicted after idle timeout")
	}
}

func TestProviderRestoresSessionInBackground(t *testing.T) {
	backend := session.NewMemoryBackend()
	ctx := context.Background()
	_ = backend.Write(ctx, "client-1", map[string]string{
		session.KeyToken:    roleToken(t, "ADMIN"),
		session.KeyUsername: "ana",
	}, nil)

	p := newTestProvider(t, backend, testConfig(), nil)
	m, release, _ := p.Acquire(ctx, "client-1")
	defer release()

	snap, err := m.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !snap.Authenticated() || snap.User.Role != RoleAdmin {
		t.Fatalf("expected restored admin, got %+v", snap)
	}
	if p.Metrics().Value(MetricSessionRestored) != 1 {
		t.Fatal("expected restored metric on the shared counters")
	}
}

func TestProviderCloseDisposesAll(t *testing.T) {
	p, err := New().WithConfig(testConfig()).WithBackend(session.NewMemoryBackend()).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	m, release, _ := p.Acquire(context.Background(), "client-1")

	p.Close()
	p.Close()
	release()

	if !m.Disposed() {
		t.Fatal("expected manager disposed by Close")
	}
	if _, _, err := p.Acquire(context.Background(), "client-2"); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed after Close, got %v", err)
	}
}

func TestProviderAcquireRejectsEmptyScope(t *testing.T) {
	p := newTestProvider(t, session.NewMemoryBackend(), testConfig(), nil)
	if _, _, err := p.Acquire(context.Background(), ""); !errors.Is(err, session.ErrEmptyScope) {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
}

func TestBuilderRequiresBackend(t *testing.T) {
	if _, err := New().WithConfig(testConfig()).Build(); !errors.Is(err, ErrNoBackend) {
		t.Fatalf("expected ErrNoBackend, got %v", err)
	}

	b := New().WithConfig(testConfig()).WithBackend(session.NewMemoryBackend())
	if _, err := b.Build(); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}

func TestBuilderRedisBackendAndThrottle(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	cfg := testConfig()
	cfg.Login.Throttle = true
	cfg.Login.MaxAttempts = 2
	cfg.Login.Cooldown = time.Minute

	auth := &fakeAuth{
		login: func(string, string) (Grant, error) {
			return Grant{}, fmt.Errorf("%w: Invalid username or password", ErrLoginRejected)
		},
	}
	p, err := New().WithConfig(cfg).WithRedis(rdb).WithAuthenticator(auth).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer p.Close()

	ctx := WithClientIP(context.Background(), "10.0.0.7")
	m, release, _ := p.Acquire(ctx, "client-1")
	defer release()

	for i := 0; i < 2; i++ {
		if _, err := m.LoginWithPassword(ctx, "ana", "bad"); !errors.Is(err, ErrLoginRejected) {
			t.Fatalf("attempt %d: expected rejection, got %v", i+1, err)
		}
	}
	if _, err := m.LoginWithPassword(ctx, "ana", "bad"); !errors.Is(err, ErrLoginRateLimited) {
		t.Fatalf("expected ErrLoginRateLimited, got %v", err)
	}
	if auth.LoginCalls() != 2 {
		t.Fatalf("throttled login must not reach the backend, got %d calls", auth.LoginCalls())
	}
	if p.Metrics().Value(MetricLoginRateLimited) != 1 {
		t.Fatal("expected rate limited metric")
	}

	// The session itself lives in Redis under the configured prefix.
	if _, err := m.Login(ctx, roleToken(t, "STAFF"), "ana", "", Profile{}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if !mr.Exists(cfg.Session.RedisPrefix + ":client-1") {
		t.Fatal("expected session hash in redis")
	}
}

func TestProviderAuditEvents(t *testing.T) {
	cfg := testConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	sink := NewChannelSink(8)

	p, err := New().WithConfig(cfg).WithBackend(session.NewMemoryBackend()).WithAuditSink(sink).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ctx := WithClientIP(context.Background(), "10.0.0.9")
	m, release, _ := p.Acquire(ctx, "client-1")
	_, _ = m.Wait(ctx)
	_, _ = m.Login(ctx, roleToken(t, "ADMIN"), "ana", "", Profile{})
	_, _ = m.Logout(ctx)
	release()
	p.Close()

	select {
	case ev := <-sink.Events():
		if ev.EventType != AuditLogout || ev.Username != "ana" || ev.Role != "ADMIN" || ev.IP != "10.0.0.9" {
			t.Fatalf("unexpected audit event %+v", ev)
		}
		if ev.Scope != "client-1" || !ev.Success {
			t.Fatalf("unexpected audit scope/success %+v", ev)
		}
	default:
		t.Fatal("expected a logout audit event")
	}
	if p.AuditDropped() != 0 {
		t.Fatal("expected no dropped events")
	}
}
