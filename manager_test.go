package storeAuth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/storeAuth/session"
	gjwt "github.com/golang-jwt/jwt/v5"
)

func signToken(t testing.TB, claims gjwt.MapClaims) string {
	t.Helper()
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

func roleToken(t testing.TB, role string) string {
	t.Helper()
	return signToken(t, gjwt.MapClaims{"sub": "u-1", "role": role})
}

type fakeAuth struct {
	mu          sync.Mutex
	loginCalls  int
	googleCalls int
	login       func(username, password string) (Grant, error)
	google      func(req GoogleLogin) (Grant, error)
}

func (f *fakeAuth) Login(_ context.Context, username, password string) (Grant, error) {
	f.mu.Lock()
	f.loginCalls++
	f.mu.Unlock()
	return f.login(username, password)
}

func (f *fakeAuth) Google(_ context.Context, req GoogleLogin) (Grant, error) {
	f.mu.Lock()
	f.googleCalls++
	f.mu.Unlock()
	return f.google(req)
}

func (f *fakeAuth) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

// gatedBackend blocks the first Read until gate is closed.
type gatedBackend struct {
	session.Backend
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newGatedBackend(inner session.Backend) *gatedBackend {
	return &gatedBackend{Backend: inner, entered: make(chan struct{}), gate: make(chan struct{})}
}

func (g *gatedBackend) Read(ctx context.Context, scope string) (map[string]string, error) {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.gate
	}
	return g.Backend.Read(ctx, scope)
}

// writeGatedBackend blocks the first Write until gate is closed.
type writeGatedBackend struct {
	session.Backend
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func newWriteGatedBackend(inner session.Backend) *writeGatedBackend {
	return &writeGatedBackend{Backend: inner, entered: make(chan struct{}), gate: make(chan struct{})}
}

func (g *writeGatedBackend) Write(ctx context.Context, scope string, set map[string]string, remove []string) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.gate
	}
	return g.Backend.Write(ctx, scope, set, remove)
}

type failingBackend struct{}

func (failingBackend) Read(context.Context, string) (map[string]string, error) {
	return nil, fmt.Errorf("%w: connection refused", session.ErrBackendUnavailable)
}

func (failingBackend) Write(context.Context, string, map[string]string, []string) error {
	return fmt.Errorf("%w: connection refused", session.ErrBackendUnavailable)
}

func (failingBackend) Drop(context.Context, string) error {
	return fmt.Errorf("%w: connection refused", session.ErrBackendUnavailable)
}

func newTestManager(t *testing.T, backend session.Backend, auth Authenticator) (*Manager, *session.Store) {
	t.Helper()
	store, err := session.NewStore(backend, "client-1")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return newManager(store, managerDeps{auth: auth, metrics: NewMetrics(MetricsConfig{Enabled: true})}), store
}

func TestManagerStartsLoading(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryBackend(), nil)
	if !m.Snapshot().Loading() {
		t.Fatalf("expected loading before the first check, got %v", m.Snapshot().State)
	}

	snap := m.Init(context.Background())
	if snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated with empty storage, got %v", snap.State)
	}
	if m.metrics.Value(MetricSessionAbsent) != 1 {
		t.Fatal("expected absent-session metric")
	}
}

func TestLoginPersistsAndRestores(t *testing.T) {
	backend := session.NewMemoryBackend()
	m, store := newTestManager(t, backend, nil)
	ctx := context.Background()
	token := roleToken(t, "STAFF")

	snap, err := m.Login(ctx, token, "ana", "", Profile{})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if !snap.Authenticated() || snap.User.Username != "ana" || snap.User.Role != RoleStaff {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	got, ok, err := store.Load(ctx)
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if got.Token != token || got.Username != "ana" {
		t.Fatalf("expected stored {%s, ana}, got %+v", token, got)
	}

	// A fresh manager on the same storage rehydrates the session.
	restored, _ := newTestManager(t, backend, nil)
	rs := restored.Init(ctx)
	if !rs.Authenticated() || rs.User.Role != RoleStaff || rs.User.Username != "ana" {
		t.Fatalf("expected restored staff session, got %+v", rs)
	}
}

func TestLoginRoleResolution(t *testing.T) {
	adminToken := roleToken(t, "ADMIN")

	tests := []struct {
		name     string
		token    string
		explicit Role
		want     Role
	}{
		{name: "explicit wins", token: adminToken, explicit: RoleSupplier, want: RoleSupplier},
		{name: "claim when omitted", token: adminToken, want: RoleAdmin},
		{name: "claim when explicit invalid", token: adminToken, explicit: Role("manager"), want: RoleAdmin},
		{name: "malformed token defaults", token: "not-a-jwt", want: RoleCustomer},
		{name: "two segments defaults", token: "a.b", want: RoleCustomer},
		{name: "bad base64 defaults", token: "a.%%%.c", want: RoleCustomer},
		{name: "unknown claim defaults", token: roleToken(t, "OWNER"), want: RoleCustomer},
		{name: "missing claim defaults", token: signToken(t, gjwt.MapClaims{"sub": "x"}), want: RoleCustomer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestManager(t, session.NewMemoryBackend(), nil)
			snap, err := m.Login(context.Background(), tt.token, "ana", tt.explicit, Profile{})
			if err != nil {
				t.Fatalf("login: %v", err)
			}
			if snap.User.Role != tt.want {
				t.Fatalf("expected role %s, got %s", tt.want, snap.User.Role)
			}
			if !snap.Authenticated() {
				t.Fatal("role resolution must never cost the session")
			}
		})
	}
}

func TestCheckAuthStatusMalformedTokenDefaultsCustomer(t *testing.T) {
	backend := session.NewMemoryBackend()
	ctx := context.Background()
	if err := backend.Write(ctx, "client-1", map[string]string{
		session.KeyToken:    "garbage",
		session.KeyUsername: "ana",
	}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	m, _ := newTestManager(t, backend, nil)
	snap := m.CheckAuthStatus(ctx)
	if !snap.Authenticated() {
		t.Fatalf("expected authenticated despite malformed token, got %v", snap.State)
	}
	if snap.User.Role != RoleCustomer {
		t.Fatalf("expected CUSTOMER fallback, got %s", snap.User.Role)
	}
	if m.metrics.Value(MetricTokenDecodeFailure) != 1 {
		t.Fatal("expected decode failure to be counted")
	}
}

func TestLoginRejectsIncompleteInput(t *testing.T) {
	m, store := newTestManager(t, session.NewMemoryBackend(), nil)
	ctx := context.Background()

	if _, err := m.Login(ctx, "", "ana", "", Profile{}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := m.Login(ctx, "tok", "", "", Profile{}); !errors.Is(err, ErrMissingUsername) {
		t.Fatalf("expected ErrMissingUsername, got %v", err)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("rejected logins must not write storage")
	}
}

func TestLogoutClearsAndIsIdempotent(t *testing.T) {
	m, store := newTestManager(t, session.NewMemoryBackend(), nil)
	ctx := context.Background()

	if _, err := m.Login(ctx, roleToken(t, "ADMIN"), "ana", "", Profile{Email: "ana@example.com", FullName: "Ana"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	var results []Snapshot
	for i := 0; i < 2; i++ {
		snap, err := m.Logout(ctx)
		if err != nil {
			t.Fatalf("logout #%d: %v", i+1, err)
		}
		results = append(results, snap)

		got, ok, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("load after logout #%d: %v", i+1, err)
		}
		if ok || got != (session.Session{}) {
			t.Fatalf("expected empty session after logout #%d, got %+v", i+1, got)
		}
	}
	if results[0] != results[1] || results[0].State != StateUnauthenticated {
		t.Fatalf("expected identical unauthenticated results, got %+v", results)
	}
	if m.GetToken(ctx) != "" {
		t.Fatal("expected no token after logout")
	}
}

func TestSlowCheckCannotResurrectAfterLogout(t *testing.T) {
	inner := session.NewMemoryBackend()
	ctx := context.Background()
	if err := inner.Write(ctx, "client-1", map[string]string{
		session.KeyToken:    roleToken(t, "ADMIN"),
		session.KeyUsername: "ana",
	}, nil); err != nil {
		t.Fatalf("seed: %v", err)
	}

	gated := newGatedBackend(inner)
	m, store := newTestManager(t, gated, nil)

	checkDone := make(chan struct{})
	go func() {
		defer close(checkDone)
		m.CheckAuthStatus(ctx)
	}()
	<-gated.entered

	logoutDone := make(chan struct{})
	go func() {
		defer close(logoutDone)
		if _, err := m.Logout(ctx); err != nil {
			t.Errorf("logout: %v", err)
		}
	}()

	// Logout must wait for the in-flight check instead of racing it.
	select {
	case <-logoutDone:
		t.Fatal("logout finished while a status check was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(gated.gate)
	<-checkDone
	<-logoutDone

	if snap := m.Snapshot(); snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated after logout, got %v", snap.State)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("session resurrected in storage")
	}
}

func TestDisposeStopsPublication(t *testing.T) {
	inner := session.NewMemoryBackend()
	ctx := context.Background()
	_ = inner.Write(ctx, "client-1", map[string]string{
		session.KeyToken:    roleToken(t, "ADMIN"),
		session.KeyUsername: "ana",
	}, nil)

	gated := newGatedBackend(inner)
	m, _ := newTestManager(t, gated, nil)
	updates, cancel := m.Subscribe()
	defer cancel()
	<-updates

	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Init(ctx)
	}()
	<-gated.entered

	m.Dispose()
	close(gated.gate)
	<-done

	if snap := m.Snapshot(); !snap.Loading() {
		t.Fatalf("disposed manager published %v", snap.State)
	}
	if _, ok := <-updates; ok {
		t.Fatal("expected subscription closed by Dispose")
	}
	if _, err := m.Wait(ctx); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed from Wait, got %v", err)
	}
	if _, err := m.Logout(ctx); !errors.Is(err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed from Logout, got %v", err)
	}
	m.Dispose()
}

func TestDisposeDuringLoginReportsDisposed(t *testing.T) {
	gated := newWriteGatedBackend(session.NewMemoryBackend())
	m, _ := newTestManager(t, gated, nil)
	ctx := context.Background()
	token := roleToken(t, "ADMIN")

	type result struct {
		snap Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := m.Login(ctx, token, "ana", "", Profile{})
		done <- result{snap, err}
	}()
	<-gated.entered

	m.Dispose()
	close(gated.gate)

	res := <-done
	if !errors.Is(res.err, ErrDisposed) {
		t.Fatalf("expected ErrDisposed, got %v", res.err)
	}
	if res.snap.Authenticated() {
		t.Fatal("login reported a session that was never published")
	}
	if got := m.metrics.Value(MetricSessionCreated); got != 0 {
		t.Fatalf("expected no session counted, got %d", got)
	}
}

func TestWaitAndSubscribe(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryBackend(), nil)
	ctx := context.Background()

	updates, cancel := m.Subscribe()
	if first := <-updates; !first.Loading() {
		t.Fatalf("expected loading as first snapshot, got %v", first.State)
	}

	short, stop := context.WithTimeout(ctx, 10*time.Millisecond)
	defer stop()
	if _, err := m.Wait(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected Wait to time out while loading, got %v", err)
	}

	go m.Init(ctx)

	snap, err := m.Wait(ctx)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", snap.State)
	}
	select {
	case got := <-updates:
		if got.State != StateUnauthenticated {
			t.Fatalf("expected unauthenticated update, got %v", got.State)
		}
	case <-time.After(time.Second):
		t.Fatal("no update delivered")
	}

	cancel()
	cancel()
	if _, ok := <-updates; ok {
		t.Fatal("expected channel closed after cancel")
	}
}

func TestStoreFailurePublishesUnauthenticated(t *testing.T) {
	m, _ := newTestManager(t, failingBackend{}, nil)
	ctx := context.Background()

	snap := m.CheckAuthStatus(ctx)
	if snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated on storage failure, got %v", snap.State)
	}
	if m.GetToken(ctx) != "" {
		t.Fatal("expected empty token on storage failure")
	}

	if _, err := m.Login(ctx, "tok", "ana", "", Profile{}); !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable, got %v", err)
	}
	if m.Snapshot().Authenticated() {
		t.Fatal("failed persist must not publish authenticated")
	}

	snap, err := m.Logout(ctx)
	if !errors.Is(err, ErrSessionUnavailable) {
		t.Fatalf("expected ErrSessionUnavailable from logout, got %v", err)
	}
	if snap.State != StateUnauthenticated {
		t.Fatalf("logout must still publish unauthenticated, got %v", snap.State)
	}
	if m.metrics.Value(MetricStoreFailure) != 3 {
		t.Fatalf("expected 3 store failures, got %d", m.metrics.Value(MetricStoreFailure))
	}
}

func TestLoginWithPassword(t *testing.T) {
	token := roleToken(t, "SUPPLIER")
	auth := &fakeAuth{
		login: func(username, password string) (Grant, error) {
			if password != "secret" {
				return Grant{}, fmt.Errorf("%w: Invalid username or password", ErrLoginRejected)
			}
			return Grant{Token: token}, nil
		},
	}
	m, store := newTestManager(t, session.NewMemoryBackend(), auth)
	ctx := context.Background()
	m.Init(ctx)

	if _, err := m.LoginWithPassword(ctx, "  ", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if auth.LoginCalls() != 0 {
		t.Fatal("blank username must not reach the backend")
	}

	_, err := m.LoginWithPassword(ctx, "acme", "wrong")
	if !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("expected ErrLoginRejected, got %v", err)
	}
	if m.Snapshot().State != StateUnauthenticated {
		t.Fatal("rejected login must leave the client unauthenticated")
	}

	snap, err := m.LoginWithPassword(ctx, "acme", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if snap.User.Role != RoleSupplier || snap.User.Username != "acme" {
		t.Fatalf("unexpected user %+v", snap.User)
	}
	if got, _, _ := store.Load(ctx); got.Token != token {
		t.Fatal("expected backend token persisted")
	}
	if m.metrics.Value(MetricLoginSuccess) != 1 || m.metrics.Value(MetricLoginFailure) != 1 {
		t.Fatal("expected one success and one failure counted")
	}
}

func TestLoginWithoutAuthenticator(t *testing.T) {
	m, _ := newTestManager(t, session.NewMemoryBackend(), nil)
	if _, err := m.LoginWithPassword(context.Background(), "ana", "pw"); !errors.Is(err, ErrNoAuthenticator) {
		t.Fatalf("expected ErrNoAuthenticator, got %v", err)
	}
	if _, err := m.LoginWithGoogle(context.Background(), GoogleLogin{IDToken: "x"}); !errors.Is(err, ErrNoAuthenticator) {
		t.Fatalf("expected ErrNoAuthenticator, got %v", err)
	}
}

func TestLoginWithGoogle(t *testing.T) {
	backendToken := signToken(t, gjwt.MapClaims{"role": "CUSTOMER", "isGoogleAuth": true})
	auth := &fakeAuth{
		google: func(req GoogleLogin) (Grant, error) {
			if req.AccountType != "CUSTOMER" {
				return Grant{}, fmt.Errorf("%w: unsupported account type", ErrLoginRejected)
			}
			return Grant{
				Token: backendToken,
				User:  User{Username: "ana.g", Profile: Profile{Email: "ana@example.com"}},
			}, nil
		},
	}
	m, store := newTestManager(t, session.NewMemoryBackend(), auth)
	ctx := context.Background()

	if _, err := m.LoginWithGoogle(ctx, GoogleLogin{}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for empty id token, got %v", err)
	}

	req := GoogleLogin{
		IDToken:     "id-token",
		Email:       "ana@example.com",
		Name:        "Ana Diaz",
		Picture:     "https://img.example.com/ana.png",
		AccountType: "CUSTOMER",
	}
	snap, err := m.LoginWithGoogle(ctx, req)
	if err != nil {
		t.Fatalf("google login: %v", err)
	}
	if !snap.User.IsGoogleAuth || snap.User.Role != RoleCustomer {
		t.Fatalf("unexpected user %+v", snap.User)
	}
	if snap.User.FullName != "Ana Diaz" || snap.User.ProfileImage != req.Picture {
		t.Fatalf("expected profile fallback from id token, got %+v", snap.User.Profile)
	}

	got, _, _ := store.Load(ctx)
	want := session.Session{
		Token:        backendToken,
		Username:     "ana.g",
		Email:        "ana@example.com",
		ProfileImage: req.Picture,
		FullName:     "Ana Diaz",
	}
	if got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}

	req.AccountType = "SUPPLIER"
	if _, err := m.LoginWithGoogle(ctx, req); !errors.Is(err, ErrLoginRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
}

func TestExpireFromUpstream(t *testing.T) {
	m, store := newTestManager(t, session.NewMemoryBackend(), nil)
	ctx := context.Background()
	_, _ = m.Login(ctx, roleToken(t, "ADMIN"), "ana", "", Profile{})

	snap, err := m.ExpireFromUpstream(ctx, 401)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if snap.State != StateUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", snap.State)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("expected storage cleared")
	}
	if m.metrics.Value(MetricUpstreamUnauthorized) != 1 {
		t.Fatal("expected upstream metric")
	}
}

func TestStateString(t *testing.T) {
	if StateLoading.String() != "loading" || StateAuthenticated.String() != "authenticated" ||
		StateUnauthenticated.String() != "unauthenticated" {
		t.Fatal("unexpected state names")
	}
	if State(9).String() != "State(9)" {
		t.Fatalf("unexpected fallback %q", State(9).String())
	}
}
