package gateway

import (
	"context"
	"errors"
	"net/http"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/api"
	"github.com/MrEthical07/storeAuth/federated"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionBody struct {
	State    string          `json:"state"`
	User     *storeAuth.User `json:"user,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
}

func newSessionBody(snap storeAuth.Snapshot) sessionBody {
	body := sessionBody{State: snap.State.String()}
	if snap.Authenticated() {
		user := snap.User
		body.User = &user
	}
	return body
}

// homeFor is the landing page of a role after login.
func homeFor(role storeAuth.Role) string {
	switch role {
	case storeAuth.RoleAdmin:
		return "/admin"
	case storeAuth.RoleStaff:
		return "/staff"
	case storeAuth.RoleSupplier:
		return "/supplier"
	default:
		return "/"
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.provider.Active(),
	})
}

// snapshot returns the request's session state, waiting up to PendingWait while it loads.
func (s *Server) snapshot(r *http.Request) (*storeAuth.Manager, storeAuth.Snapshot) {
	m := storeAuth.ManagerFromContext(r.Context())
	if m == nil {
		return nil, storeAuth.Snapshot{State: storeAuth.StateUnauthenticated}
	}
	snap := m.Snapshot()
	if snap.Loading() && s.opts.PendingWait > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), s.opts.PendingWait)
		defer cancel()
		snap, _ = m.Wait(ctx)
	}
	return m, snap
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	_, snap := s.snapshot(r)
	writeJSON(w, http.StatusOK, newSessionBody(snap))
}

func (s *Server) loginPage(w http.ResponseWriter, r *http.Request) {
	from := safeRedirect(r.URL.Query().Get("from"))
	m, snap := s.snapshot(r)
	if snap.Authenticated() {
		// A cached snapshot can outlive its stored entries.
		snap = m.CheckAuthStatus(r.Context())
	}
	if snap.Authenticated() {
		target := from
		if target == "" {
			target = homeFor(snap.User.Role)
		}
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	renderLogin(w, http.StatusOK, loginPageData{
		LoginPath:      s.policy.LoginPath,
		From:           from,
		Registered:     r.URL.Query().Get("registered") == "1",
		GoogleClientID: s.opts.GoogleClientID,
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := decodeForm(w, r, &form, form.fields()); err != nil {
		s.loginFailed(w, r, form, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := form.Validate(); err != nil {
		s.loginFailed(w, r, form, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := s.rotate(w, r, func(m *storeAuth.Manager) (storeAuth.Snapshot, error) {
		return m.LoginWithPassword(r.Context(), form.Username, form.Password)
	})
	if err != nil {
		status, message := s.authFailure(err)
		s.loginFailed(w, r, form, status, message)
		return
	}
	s.loggedIn(w, r, snap, form.From)
}

func (s *Server) google(w http.ResponseWriter, r *http.Request) {
	var form googleForm
	if err := decodeForm(w, r, &form, form.fields()); err != nil {
		s.loginFailed(w, r, loginForm{}, http.StatusBadRequest, "invalid request body")
		return
	}
	form.normalize()
	if err := form.Validate(); err != nil {
		s.loginFailed(w, r, loginForm{From: form.From}, http.StatusBadRequest, err.Error())
		return
	}

	cred, err := federated.FromIDToken(form.IDToken)
	if err != nil {
		s.loginFailed(w, r, loginForm{From: form.From}, http.StatusBadRequest, "Google sign-in failed")
		return
	}

	snap, err := s.rotate(w, r, func(m *storeAuth.Manager) (storeAuth.Snapshot, error) {
		return m.LoginWithGoogle(r.Context(), cred.GoogleLogin(form.AccountType))
	})
	if err != nil {
		status, message := s.authFailure(err)
		s.loginFailed(w, r, loginForm{From: form.From}, status, message)
		return
	}
	s.loggedIn(w, r, snap, form.From)
}

// rotate runs login against a freshly minted scope. On success the client's cookie moves to
// that scope and any session under the previous one ends, so a pre-login id never becomes
// authenticated.
func (s *Server) rotate(w http.ResponseWriter, r *http.Request, login func(*storeAuth.Manager) (storeAuth.Snapshot, error)) (storeAuth.Snapshot, error) {
	ctx := r.Context()
	scope := uuid.NewString()
	m, release, err := s.provider.Acquire(ctx, scope)
	if err != nil {
		return storeAuth.Snapshot{State: storeAuth.StateUnauthenticated}, err
	}
	defer release()

	snap, err := login(m)
	if err != nil {
		return snap, err
	}
	s.setScopeCookie(w, scope)

	prev := storeAuth.ManagerFromContext(ctx)
	if prev == nil || prev.Snapshot().State == storeAuth.StateUnauthenticated {
		return snap, nil
	}
	if _, err := prev.Logout(ctx); err != nil {
		s.logger.Warn("previous session left behind",
			zap.String("scope", prev.Scope()),
			zap.Error(err),
		)
	}
	return snap, nil
}

func (s *Server) loggedIn(w http.ResponseWriter, r *http.Request, snap storeAuth.Snapshot, from string) {
	target := safeRedirect(from)
	if target == "" {
		target = homeFor(snap.User.Role)
	}
	if wantsJSON(r) {
		body := newSessionBody(snap)
		body.Redirect = target
		writeJSON(w, http.StatusOK, body)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) loginFailed(w http.ResponseWriter, r *http.Request, form loginForm, status int, message string) {
	if wantsJSON(r) {
		writeError(w, status, message)
		return
	}
	renderLogin(w, status, loginPageData{
		LoginPath:      s.policy.LoginPath,
		From:           safeRedirect(form.From),
		Username:       form.Username,
		Error:          message,
		GoogleClientID: s.opts.GoogleClientID,
	})
}

// authFailure maps a login error onto a status and a message safe to show the user.
func (s *Server) authFailure(err error) (int, string) {
	var rejected *api.RejectedError
	switch {
	case errors.As(err, &rejected):
		return http.StatusUnauthorized, rejected.Message
	case errors.Is(err, storeAuth.ErrInvalidCredentials):
		return http.StatusBadRequest, "Username and password are required"
	case errors.Is(err, storeAuth.ErrLoginRateLimited):
		return http.StatusTooManyRequests, "Too many login attempts. Try again later."
	case errors.Is(err, storeAuth.ErrLoginRejected):
		return http.StatusUnauthorized, "Login failed"
	case errors.Is(err, api.ErrUnavailable), errors.Is(err, api.ErrUnexpectedResponse):
		s.logger.Warn("backend login call failed", zap.Error(err))
		return http.StatusBadGateway, "Login service unavailable"
	case errors.Is(err, storeAuth.ErrSessionUnavailable), errors.Is(err, storeAuth.ErrDisposed):
		s.logger.Error("session unavailable during login", zap.Error(err))
		return http.StatusServiceUnavailable, "Session storage unavailable"
	default:
		s.logger.Error("login failed", zap.Error(err))
		return http.StatusInternalServerError, "Login failed"
	}
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var form signupForm
	if err := decodeForm(w, r, &form, form.fields()); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	form.normalize()
	if err := form.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := s.backend.Signup(r.Context(), api.SignupRequest{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		var rejected *api.RejectedError
		if errors.As(err, &rejected) {
			status := rejected.Status
			if status < 400 || status >= 500 {
				status = http.StatusBadRequest
			}
			writeError(w, status, rejected.Message)
			return
		}
		s.logger.Warn("backend signup call failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "Signup service unavailable")
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, map[string]string{"message": message})
		return
	}
	http.Redirect(w, r, s.policy.LoginPath+"?registered=1", http.StatusSeeOther)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	m := storeAuth.ManagerFromContext(r.Context())
	snap, err := m.Logout(r.Context())
	switch {
	case errors.Is(err, storeAuth.ErrDisposed):
		writeError(w, http.StatusServiceUnavailable, "session unavailable")
		return
	case err != nil:
		// The manager already published unauthenticated; the stored entries expire on their own.
		s.logger.Warn("logout left session entries behind", zap.String("scope", m.Scope()), zap.Error(err))
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, newSessionBody(snap))
		return
	}
	http.Redirect(w, r, s.policy.LoginPath, http.StatusSeeOther)
}
