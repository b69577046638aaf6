package gateway

import (
	"net"
	"net/http"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// sessions resolves the request's client scope from the session cookie, minting one when it
// is missing or malformed, and attaches the scope's manager for the rest of the request.
func (s *Server) sessions(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope := s.scopeFor(w, r)
		ctx := storeAuth.WithClientIP(r.Context(), clientIP(r))

		m, release, err := s.provider.Acquire(ctx, scope)
		if err != nil {
			s.logger.Error("session manager unavailable", zap.Error(err))
			writeError(w, http.StatusServiceUnavailable, "session unavailable")
			return
		}
		defer release()

		next.ServeHTTP(w, r.WithContext(storeAuth.WithManager(ctx, m)))
	})
}

func (s *Server) scopeFor(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(s.opts.CookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String()
		}
	}

	scope := uuid.NewString()
	s.setScopeCookie(w, scope)
	return scope
}

func (s *Server) setScopeCookie(w http.ResponseWriter, scope string) {
	cookie := &http.Cookie{
		Name:     s.opts.CookieName,
		Value:    scope,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if s.opts.CookieMaxAge > 0 {
		cookie.MaxAge = int(s.opts.CookieMaxAge.Seconds())
	}
	http.SetCookie(w, cookie)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
