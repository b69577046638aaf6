package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisBackendTest(t *testing.T, ttl time.Duration, sliding bool) (*RedisBackend, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return NewRedisBackend(rdb, "ss", ttl, sliding), mr, rdb
}

// backends runs fn against every in-repo backend that needs no external service.
func backends(t *testing.T, fn func(t *testing.T, backend Backend)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryBackend())
	})
	t.Run("redis", func(t *testing.T) {
		backend, _, _ := newRedisBackendTest(t, time.Hour, true)
		fn(t, backend)
	})
}

func mustStore(t *testing.T, backend Backend, scope string) *Store {
	t.Helper()
	store, err := NewStore(backend, scope)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func TestPersistLoadRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		store := mustStore(t, backend, "client-1")

		want := Session{Token: "tok-1", Username: "ana"}
		if err := store.Persist(ctx, want); err != nil {
			t.Fatalf("persist: %v", err)
		}

		got, ok, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !ok {
			t.Fatal("expected a session after persist")
		}
		if got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	})
}

func TestPersistProfileFields(t *testing.T) {
	backends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		store := mustStore(t, backend, "client-1")

		google := Session{
			Token:        "tok-g",
			Username:     "ana",
			Email:        "ana@example.com",
			ProfileImage: "https://img.example.com/ana.png",
			FullName:     "Ana Diaz",
		}
		if err := store.Persist(ctx, google); err != nil {
			t.Fatalf("persist google session: %v", err)
		}
		got, _, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got != google {
			t.Fatalf("expected %+v, got %+v", google, got)
		}

		// A plain login afterwards must not inherit the federated profile.
		plain := Session{Token: "tok-p", Username: "bob"}
		if err := store.Persist(ctx, plain); err != nil {
			t.Fatalf("persist plain session: %v", err)
		}
		got, _, err = store.Load(ctx)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if got != plain {
			t.Fatalf("expected profile fields removed, got %+v", got)
		}
	})
}

func TestClearIsIdempotent(t *testing.T) {
	backends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		store := mustStore(t, backend, "client-1")

		if err := store.Persist(ctx, Session{Token: "tok", Username: "ana", Email: "a@example.com"}); err != nil {
			t.Fatalf("persist: %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := store.Clear(ctx); err != nil {
				t.Fatalf("clear #%d: %v", i+1, err)
			}
			got, ok, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("load after clear #%d: %v", i+1, err)
			}
			if ok || got != (Session{}) {
				t.Fatalf("expected empty session after clear #%d, got ok=%v %+v", i+1, ok, got)
			}
		}
	})
}

func TestLoadPartialSessionIsEmpty(t *testing.T) {
	backends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		store := mustStore(t, backend, "client-1")

		if err := backend.Write(ctx, "client-1", map[string]string{KeyToken: "tok"}, nil); err != nil {
			t.Fatalf("seed token only: %v", err)
		}
		if _, ok, err := store.Load(ctx); err != nil || ok {
			t.Fatalf("token without username must load as no session, ok=%v err=%v", ok, err)
		}

		if err := backend.Write(ctx, "client-1", map[string]string{KeyUsername: "ana"}, []string{KeyToken}); err != nil {
			t.Fatalf("seed username only: %v", err)
		}
		if _, ok, err := store.Load(ctx); err != nil || ok {
			t.Fatalf("username without token must load as no session, ok=%v err=%v", ok, err)
		}
	})
}

func TestScopesAreIsolated(t *testing.T) {
	backends(t, func(t *testing.T, backend Backend) {
		ctx := context.Background()
		a := mustStore(t, backend, "client-a")
		b := mustStore(t, backend, "client-b")

		if err := a.Persist(ctx, Session{Token: "tok-a", Username: "ana"}); err != nil {
			t.Fatalf("persist a: %v", err)
		}
		if _, ok, err := b.Load(ctx); err != nil || ok {
			t.Fatalf("scope b must not see scope a, ok=%v err=%v", ok, err)
		}
		if err := b.Clear(ctx); err != nil {
			t.Fatalf("clear b: %v", err)
		}
		if _, ok, _ := a.Load(ctx); !ok {
			t.Fatal("clearing scope b must not touch scope a")
		}
	})
}

func TestPersistRejectsIncompleteSession(t *testing.T) {
	store := mustStore(t, NewMemoryBackend(), "client-1")
	if err := store.Persist(context.Background(), Session{Token: "tok"}); err == nil {
		t.Fatal("expected persist without username to fail")
	}
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(nil, "scope"); err == nil {
		t.Fatal("expected nil backend to fail")
	}
	if _, err := NewStore(NewMemoryBackend(), ""); !errors.Is(err, ErrEmptyScope) {
		t.Fatalf("expected ErrEmptyScope, got %v", err)
	}
}

func TestRedisBackendSlidingTTL(t *testing.T) {
	backend, mr, _ := newRedisBackendTest(t, time.Minute, true)
	ctx := context.Background()
	store := mustStore(t, backend, "client-1")

	if err := store.Persist(ctx, Session{Token: "tok", Username: "ana"}); err != nil {
		t.Fatalf("persist: %v", err)
	}
	mr.FastForward(45 * time.Second)
	if _, ok, err := store.Load(ctx); err != nil || !ok {
		t.Fatalf("expected session before expiry, ok=%v err=%v", ok, err)
	}

	ttl, err := backend.TTL(ctx, "client-1")
	if err != nil {
		t.Fatalf("ttl: %v", err)
	}
	if ttl < 50*time.Second {
		t.Fatalf("expected sliding renewal to restore ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	if _, ok, err := store.Load(ctx); err != nil || ok {
		t.Fatalf("expected session to expire, ok=%v err=%v", ok, err)
	}
}

func TestRedisBackendUnavailable(t *testing.T) {
	backend, mr, _ := newRedisBackendTest(t, 0, false)
	mr.Close()

	store := mustStore(t, backend, "client-1")
	_, _, err := store.Load(context.Background())
	if !errors.Is(err, ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

func TestRedisBackendScopes(t *testing.T) {
	backend, _, _ := newRedisBackendTest(t, 0, false)
	ctx := context.Background()

	for _, scope := range []string{"a", "b"} {
		if err := mustStore(t, backend, scope).Persist(ctx, Session{Token: "t", Username: scope}); err != nil {
			t.Fatalf("persist %s: %v", scope, err)
		}
	}
	scopes, err := backend.Scopes(ctx)
	if err != nil {
		t.Fatalf("scopes: %v", err)
	}
	if len(scopes) != 2 {
		t.Fatalf("expected 2 scopes, got %v", scopes)
	}
}
