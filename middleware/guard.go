package middleware

import (
	"context"
	"net/http"
	"net/url"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	"go.uber.org/zap"
)

// Decision is the outcome of a route guard for one request.
type Decision int

const (
	// DecisionPending means the session is still loading; nothing is rendered.
	DecisionPending Decision = iota
	// DecisionAllow runs the wrapped handler.
	DecisionAllow
	// DecisionRedirect sends the client to the login page.
	DecisionRedirect
	// DecisionDeny renders the access-denied page in place.
	DecisionDeny
)

func (d Decision) String() string {
	switch d {
	case DecisionPending:
		return "pending"
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	case DecisionDeny:
		return "deny"
	default:
		return "unknown"
	}
}

// Evaluate decides a guard outcome from a snapshot. A nil allowed set only requires
// authentication; a non-nil set also requires the session role to be a member, so an empty
// non-nil set denies every role.
func Evaluate(snap storeAuth.Snapshot, allowed []storeAuth.Role) Decision {
	switch snap.State {
	case storeAuth.StateLoading:
		return DecisionPending
	case storeAuth.StateAuthenticated:
		if allowed != nil && !storeAuth.RoleIn(snap.User.Role, allowed) {
			return DecisionDeny
		}
		return DecisionAllow
	default:
		return DecisionRedirect
	}
}

// Options configures the guards. The zero value is usable.
type Options struct {
	// LoginPath receives unauthenticated clients. Defaults to "/login".
	LoginPath string
	// PendingWait bounds how long a guard waits for a loading session before answering
	// 204 No Content. Zero answers immediately.
	PendingWait time.Duration
	Metrics     *storeAuth.Metrics
	Logger      *zap.Logger
}

func (o Options) loginPath() string {
	if o.LoginPath == "" {
		return "/login"
	}
	return o.LoginPath
}

type snapshotContextKey struct{}

// SnapshotFromContext returns the snapshot a guard admitted the request with.
func SnapshotFromContext(ctx context.Context) (storeAuth.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(storeAuth.Snapshot)
	return snap, ok
}

// RequireAuth admits authenticated clients and redirects everyone else to the login page with
// the requested path and query in the from parameter.
func RequireAuth(opts Options) func(http.Handler) http.Handler {
	return Guard(opts, nil)
}

// RequireRole admits authenticated clients whose role is in roles. Other authenticated clients
// get a 403 access-denied page with a back link; there is no redirect.
func RequireRole(opts Options, roles ...storeAuth.Role) func(http.Handler) http.Handler {
	allowed := make([]storeAuth.Role, len(roles))
	copy(allowed, roles)
	return Guard(opts, allowed)
}

// Guard is the shared implementation of [RequireAuth] and [RequireRole]; allowed follows
// [Evaluate]. The wrapped handler never runs before the session has left the loading state.
func Guard(opts Options, allowed []storeAuth.Role) func(http.Handler) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := currentSnapshot(r.Context(), opts.PendingWait)

			switch Evaluate(snap, allowed) {
			case DecisionPending:
				opts.Metrics.Inc(storeAuth.MetricGuardPending)
				w.Header().Set("Cache-Control", "no-store")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusNoContent)

			case DecisionRedirect:
				opts.Metrics.Inc(storeAuth.MetricGuardRedirect)
				http.Redirect(w, r, LoginURL(opts.loginPath(), r.URL.RequestURI()), http.StatusFound)

			case DecisionDeny:
				opts.Metrics.Inc(storeAuth.MetricGuardDeny)
				logger.Info("access denied",
					zap.String("path", r.URL.Path),
					zap.String("username", snap.User.Username),
					zap.String("role", snap.User.Role.String()),
				)
				renderDenied(w, snap.User.Role, allowed)

			default:
				opts.Metrics.Inc(storeAuth.MetricGuardAllow)
				ctx := context.WithValue(r.Context(), snapshotContextKey{}, snap)
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// currentSnapshot reads the request's manager. A request without one is unauthenticated.
func currentSnapshot(ctx context.Context, wait time.Duration) storeAuth.Snapshot {
	m := storeAuth.ManagerFromContext(ctx)
	if m == nil {
		return storeAuth.Snapshot{State: storeAuth.StateUnauthenticated}
	}

	snap := m.Snapshot()
	if !snap.Loading() || wait <= 0 {
		return snap
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	snap, _ = m.Wait(waitCtx)
	return snap
}

// LoginURL builds the login redirect target carrying from.
func LoginURL(loginPath, from string) string {
	if from == "" {
		return loginPath
	}
	return loginPath + "?from=" + url.QueryEscape(from)
}
