package storeAuth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/storeAuth/internal/audit"
	"github.com/MrEthical07/storeAuth/internal/rate"
	"github.com/MrEthical07/storeAuth/jwt"
	"github.com/MrEthical07/storeAuth/session"
	"go.uber.org/zap"
)

// State is the published authentication state of one client.
type State int32

const (
	// StateLoading is the initial state, before the first status check resolves.
	StateLoading State = iota
	// StateAuthenticated means a token and a username are stored.
	StateAuthenticated
	// StateUnauthenticated means nothing is stored or the session was cleared.
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Snapshot is an immutable view of a manager's state. User is zero unless authenticated.
type Snapshot struct {
	State State `json:"-"`
	User  User  `json:"user"`
}

// Loading reports whether the first status check has not resolved yet.
func (s Snapshot) Loading() bool { return s.State == StateLoading }

// Authenticated reports whether the client holds a session.
func (s Snapshot) Authenticated() bool { return s.State == StateAuthenticated }

type managerDeps struct {
	auth    Authenticator
	limiter *rate.Limiter
	metrics *Metrics
	audit   *audit.Dispatcher
	logger  *zap.Logger
}

// Manager is the session manager of one client scope. It owns the state machine
// loading -> authenticated | unauthenticated and is the only writer of the scope's session.
//
// Every transition (status check, login, logout) runs under one lock, so at most one is in
// flight and a slow status check can never resolve after a logout and resurrect the session.
// After [Manager.Dispose] nothing is published any more, including transitions already running.
//
// Managers are normally obtained from [Provider.Acquire]; [NewManager] builds a standalone one.
type Manager struct {
	store *session.Store
	managerDeps

	transition sync.Mutex
	initOnce   sync.Once

	mu       sync.Mutex
	snap     Snapshot
	disposed bool
	resolved chan struct{}
	subs     map[uint64]chan Snapshot
	nextSub  uint64
}

// NewManager creates a standalone manager in the loading state. auth may be nil when only
// [Manager.Login] is used; logger may be nil.
func NewManager(store *session.Store, auth Authenticator, logger *zap.Logger) *Manager {
	return newManager(store, managerDeps{auth: auth, logger: logger})
}

func newManager(store *session.Store, deps managerDeps) *Manager {
	if deps.logger == nil {
		deps.logger = zap.NewNop()
	}
	return &Manager{
		store:       store,
		managerDeps: deps,
		snap:        Snapshot{State: StateLoading},
		resolved:    make(chan struct{}),
		subs:        make(map[uint64]chan Snapshot),
	}
}

// Scope returns the client scope this manager owns.
func (m *Manager) Scope() string {
	return m.store.Scope()
}

// Init runs the mount-time status check exactly once and returns the resulting snapshot.
// Later calls return the current snapshot without touching storage.
func (m *Manager) Init(ctx context.Context) Snapshot {
	m.initOnce.Do(func() {
		m.CheckAuthStatus(ctx)
	})
	return m.Snapshot()
}

// CheckAuthStatus reads the stored session, decodes its token, and publishes the result.
//
// It never fails. A token whose payload cannot be decoded still yields an authenticated
// session with role CUSTOMER. A storage error is logged and yields unauthenticated.
//
//	Performance: one session read, no network call.
func (m *Manager) CheckAuthStatus(ctx context.Context) Snapshot {
	m.transition.Lock()
	defer m.transition.Unlock()

	if m.Disposed() {
		return m.Snapshot()
	}

	start := time.Now()
	next := m.restore(ctx)
	published := m.publish(next)
	m.metrics.Observe(MetricTransitionLatency, time.Since(start))

	if published && next.Authenticated() {
		m.emitAudit(ctx, AuditSessionRestored, next.User.Username, next.User.Role, nil, nil)
	}
	return next
}

func (m *Manager) restore(ctx context.Context) Snapshot {
	sess, ok, err := m.store.Load(ctx)
	if err != nil {
		m.metrics.Inc(MetricStoreFailure)
		m.logger.Warn("session load failed",
			zap.String("scope", m.Scope()),
			zap.Error(err),
		)
		return Snapshot{State: StateUnauthenticated}
	}
	if !ok {
		m.metrics.Inc(MetricSessionAbsent)
		return Snapshot{State: StateUnauthenticated}
	}

	m.metrics.Inc(MetricSessionRestored)
	profile := Profile{Email: sess.Email, ProfileImage: sess.ProfileImage, FullName: sess.FullName}
	return Snapshot{
		State: StateAuthenticated,
		User:  m.userFor(sess.Token, sess.Username, "", profile),
	}
}

// userFor resolves the published user. The role is the explicit one when valid, else the
// decoded claim, else CUSTOMER.
func (m *Manager) userFor(token, username string, explicit Role, profile Profile) User {
	user := User{Username: username, Role: RoleCustomer, Profile: profile}

	claims, ok := jwt.Decode(token)
	if ok {
		user.IsGoogleAuth = claims.IsGoogleAuth
	} else {
		m.metrics.Inc(MetricTokenDecodeFailure)
		m.logger.Debug("token payload not decodable, using default role",
			zap.String("scope", m.Scope()),
		)
	}

	switch {
	case explicit.Valid():
		user.Role = explicit
	case ok:
		user.Role = NormalizeRole(claims.Role)
	}
	return user
}

// Login persists token, username, and the non-empty profile fields, then publishes
// authenticated. An empty or invalid role is derived from the token.
func (m *Manager) Login(ctx context.Context, token, username string, role Role, profile Profile) (Snapshot, error) {
	m.transition.Lock()
	defer m.transition.Unlock()

	return m.login(ctx, token, username, role, profile)
}

// login must be called with m.transition held.
func (m *Manager) login(ctx context.Context, token, username string, role Role, profile Profile) (Snapshot, error) {
	if m.Disposed() {
		return m.Snapshot(), ErrDisposed
	}
	if token == "" {
		return m.Snapshot(), ErrMissingToken
	}
	if username == "" {
		return m.Snapshot(), ErrMissingUsername
	}

	start := time.Now()
	err := m.store.Persist(ctx, session.Session{
		Token:        token,
		Username:     username,
		Email:        profile.Email,
		ProfileImage: profile.ProfileImage,
		FullName:     profile.FullName,
	})
	if err != nil {
		m.metrics.Inc(MetricStoreFailure)
		m.logger.Error("session persist failed",
			zap.String("scope", m.Scope()),
			zap.Error(err),
		)
		return m.Snapshot(), fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}

	next := Snapshot{State: StateAuthenticated, User: m.userFor(token, username, role, profile)}
	if !m.publish(next) {
		return m.Snapshot(), ErrDisposed
	}
	m.metrics.Inc(MetricSessionCreated)
	m.metrics.Observe(MetricTransitionLatency, time.Since(start))
	return next, nil
}

// LoginWithPassword exchanges credentials with the backend and logs in with the returned token.
//
// A refused login leaves the state untouched and returns an error wrapping [ErrLoginRejected]
// with the backend's message. Failures count against the login throttle when one is configured.
func (m *Manager) LoginWithPassword(ctx context.Context, username, password string) (Snapshot, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return m.Snapshot(), ErrInvalidCredentials
	}
	if m.auth == nil {
		return m.Snapshot(), ErrNoAuthenticator
	}

	ip := clientIPFromContext(ctx)
	if err := m.checkThrottle(ctx, username, ip); err != nil {
		return m.Snapshot(), err
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	if m.Disposed() {
		return m.Snapshot(), ErrDisposed
	}

	grant, err := m.auth.Login(ctx, username, password)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		if errors.Is(err, ErrLoginRejected) {
			m.recordFailure(ctx, username, ip)
		}
		m.logger.Info("password login failed", zap.String("username", username), zap.Error(err))
		m.emitAudit(ctx, AuditLoginFailure, username, "", err, nil)
		return m.Snapshot(), err
	}

	if m.limiter != nil {
		if err := m.limiter.ResetLogin(ctx, username); err != nil {
			m.logger.Warn("login throttle reset failed", zap.Error(err))
		}
	}

	if grant.User.Username != "" {
		username = grant.User.Username
	}
	snap, err := m.login(ctx, grant.Token, username, grant.User.Role, grant.User.Profile)
	if err != nil {
		m.metrics.Inc(MetricLoginFailure)
		m.emitAudit(ctx, AuditLoginFailure, username, "", err, nil)
		return snap, err
	}

	m.metrics.Inc(MetricLoginSuccess)
	m.emitAudit(ctx, AuditLoginSuccess, username, snap.User.Role, nil, nil)
	return snap, nil
}

func (m *Manager) checkThrottle(ctx context.Context, username, ip string) error {
	if m.limiter == nil {
		return nil
	}
	err := m.limiter.CheckLogin(ctx, username, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		m.metrics.Inc(MetricLoginRateLimited)
		m.emitAudit(ctx, AuditLoginRateLimited, username, "", ErrLoginRateLimited, nil)
		return ErrLoginRateLimited
	default:
		// Throttle storage down: let the backend decide.
		m.logger.Warn("login throttle unavailable", zap.Error(err))
		return nil
	}
}

func (m *Manager) recordFailure(ctx context.Context, username, ip string) {
	if m.limiter == nil {
		return
	}
	if err := m.limiter.IncrementLogin(ctx, username, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
		m.logger.Warn("login throttle increment failed", zap.Error(err))
	}
}

// LoginWithGoogle exchanges a federated ID token with the backend and logs in as the user the
// backend returns. Profile fields the backend leaves empty fall back to the ID token's.
func (m *Manager) LoginWithGoogle(ctx context.Context, req GoogleLogin) (Snapshot, error) {
	if req.IDToken == "" {
		return m.Snapshot(), ErrInvalidCredentials
	}
	if m.auth == nil {
		return m.Snapshot(), ErrNoAuthenticator
	}

	m.transition.Lock()
	defer m.transition.Unlock()

	if m.Disposed() {
		return m.Snapshot(), ErrDisposed
	}

	grant, err := m.auth.Google(ctx, req)
	if err != nil {
		m.metrics.Inc(MetricGoogleLoginFailure)
		m.logger.Info("google login failed", zap.String("email", req.Email), zap.Error(err))
		m.emitAudit(ctx, AuditGoogleLoginFailure, req.Email, "", err, nil)
		return m.Snapshot(), err
	}

	user := grant.User
	if user.Username == "" {
		user.Username = req.Email
	}
	if user.Email == "" {
		user.Email = req.Email
	}
	if user.ProfileImage == "" {
		user.ProfileImage = req.Picture
	}
	if user.FullName == "" {
		user.FullName = req.Name
	}

	snap, err := m.login(ctx, grant.Token, user.Username, user.Role, user.Profile)
	if err != nil {
		m.metrics.Inc(MetricGoogleLoginFailure)
		m.emitAudit(ctx, AuditGoogleLoginFailure, user.Username, "", err, nil)
		return snap, err
	}

	m.metrics.Inc(MetricGoogleLoginSuccess)
	m.emitAudit(ctx, AuditGoogleLoginSuccess, user.Username, snap.User.Role, nil, map[string]string{
		"account_type": req.AccountType,
	})
	return snap, nil
}

// Logout clears the stored session and publishes unauthenticated. It is idempotent.
//
// A storage error is returned wrapped in [ErrSessionUnavailable], but the manager still
// publishes unauthenticated: the client is logged out even if the entries linger.
func (m *Manager) Logout(ctx context.Context) (Snapshot, error) {
	return m.logout(ctx, AuditLogout, nil)
}

// ExpireFromUpstream logs the client out because the backend rejected its token with status.
func (m *Manager) ExpireFromUpstream(ctx context.Context, status int) (Snapshot, error) {
	m.metrics.Inc(MetricUpstreamUnauthorized)
	return m.logout(ctx, AuditUpstreamUnauthorized, map[string]string{
		"status": fmt.Sprint(status),
	})
}

func (m *Manager) logout(ctx context.Context, eventType string, meta map[string]string) (Snapshot, error) {
	m.transition.Lock()
	defer m.transition.Unlock()

	if m.Disposed() {
		return m.Snapshot(), ErrDisposed
	}

	prev := m.Snapshot()
	start := time.Now()
	err := m.store.Clear(ctx)

	next := Snapshot{State: StateUnauthenticated}
	m.publish(next)
	m.metrics.Inc(MetricLogout)
	m.metrics.Observe(MetricTransitionLatency, time.Since(start))
	m.emitAudit(ctx, eventType, prev.User.Username, prev.User.Role, err, meta)

	if err != nil {
		m.metrics.Inc(MetricStoreFailure)
		m.logger.Error("session clear failed",
			zap.String("scope", m.Scope()),
			zap.Error(err),
		)
		return next, fmt.Errorf("%w: %v", ErrSessionUnavailable, err)
	}
	return next, nil
}

// GetToken reads the bearer token through to storage. It returns "" when no complete session
// is stored or storage fails.
func (m *Manager) GetToken(ctx context.Context) string {
	sess, ok, err := m.store.Load(ctx)
	if err != nil {
		m.logger.Warn("token read failed", zap.String("scope", m.Scope()), zap.Error(err))
		return ""
	}
	if !ok {
		return ""
	}
	return sess.Token
}

// Snapshot returns the last published state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snap
}

// Wait blocks until the manager has left the loading state, ctx ends, or the manager is
// disposed. It returns the current snapshot together with ctx.Err() or [ErrDisposed].
func (m *Manager) Wait(ctx context.Context) (Snapshot, error) {
	select {
	case <-m.resolved:
		snap := m.Snapshot()
		if snap.Loading() {
			return snap, ErrDisposed
		}
		return snap, nil
	case <-ctx.Done():
		return m.Snapshot(), ctx.Err()
	}
}

// Subscribe returns a channel that receives the current snapshot immediately and every later
// one. Slow readers only see the latest snapshot. The channel is closed by cancel or Dispose.
func (m *Manager) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		close(ch)
		return ch, func() {}
	}

	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	ch <- m.snap

	cancel := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Dispose stops publication, closes subscriptions, and releases waiters. Transitions still
// running finish their storage I/O but publish nothing. Safe to call more than once.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return
	}
	m.disposed = true
	m.markResolvedLocked()
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}

// Disposed reports whether Dispose has run.
func (m *Manager) Disposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

func (m *Manager) publish(next Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.disposed {
		return false
	}
	m.snap = next
	if next.State != StateLoading {
		m.markResolvedLocked()
	}
	for _, ch := range m.subs {
		// Latest wins: replace an unread snapshot.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
	return true
}

func (m *Manager) markResolvedLocked() {
	select {
	case <-m.resolved:
	default:
		close(m.resolved)
	}
}
