package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	storeAuth "github.com/MrEthical07/storeAuth"
	"github.com/MrEthical07/storeAuth/api"
	"github.com/MrEthical07/storeAuth/metrics/export/prometheus"
	"github.com/MrEthical07/storeAuth/middleware"
	"github.com/MrEthical07/storeAuth/policy"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// Options configures a Server.
type Options struct {
	// Upstream receives every request the gateway does not answer itself.
	Upstream *url.URL
	// CookieName names the session scope cookie. Defaults to "storefront_session".
	CookieName   string
	CookieSecure bool
	// CookieMaxAge bounds the cookie's lifetime. Zero makes it a browser-session cookie.
	CookieMaxAge time.Duration
	CORSOrigins  []string
	// PendingWait lets guards and the session endpoint wait for a loading session.
	PendingWait time.Duration
	// GoogleClientID enables the Google sign-in button on the login page.
	GoogleClientID string
	// Metrics serves GET /metrics. Defaults to the Prometheus exporter over the provider.
	Metrics http.Handler
}

// Server wires sessions, auth endpoints and the guarded proxy into one handler.
type Server struct {
	opts     Options
	provider *storeAuth.Provider
	backend  *api.Client
	policy   *policy.Policy
	logger   *zap.Logger
	guards   middleware.Options
	handler  http.Handler
}

// New builds the gateway. backend serves the auth endpoints; the proxy gets its own client so
// redirects from the upstream reach the browser untouched.
func New(opts Options, provider *storeAuth.Provider, backend *api.Client, pol *policy.Policy, logger *zap.Logger) (*Server, error) {
	if provider == nil {
		return nil, errors.New("gateway: provider required")
	}
	if backend == nil {
		return nil, errors.New("gateway: backend client required")
	}
	if opts.Upstream == nil {
		return nil, errors.New("gateway: upstream url required")
	}
	if pol == nil {
		pol = policy.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.CookieName == "" {
		opts.CookieName = "storefront_session"
	}
	if opts.Metrics == nil {
		opts.Metrics = prometheus.NewExporter(provider).Handler()
	}

	s := &Server{
		opts:     opts,
		provider: provider,
		backend:  backend,
		policy:   pol,
		logger:   logger,
		guards: middleware.Options{
			LoginPath:   pol.LoginPath,
			PendingWait: opts.PendingWait,
			Metrics:     provider.Metrics(),
			Logger:      logger,
		},
	}
	s.handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	app := http.NewServeMux()
	app.HandleFunc("GET "+s.policy.LoginPath, s.loginPage)
	app.HandleFunc("POST "+s.policy.LoginPath, s.login)
	app.HandleFunc("POST /signup", s.signup)
	app.HandleFunc("POST /auth/google", s.google)
	app.HandleFunc("POST /logout", s.logout)
	app.HandleFunc("GET /session", s.session)
	app.Handle("/", s.policy.Middleware(s.guards)(s.proxy()))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.Handle("GET /metrics", s.opts.Metrics)
	mux.Handle("/", s.sessions(app))

	// Order: CORS → request log → recovery → routes
	var handler http.Handler = mux
	handler = recovery(s.logger)(handler)
	handler = requestLogger(s.logger)(handler)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		AllowCredentials: true,
	})
	return corsHandler.Handler(handler)
}

// Handler returns the gateway's root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) proxy() http.Handler {
	upstream := s.opts.Upstream
	proxyClient := api.NewClient(upstream.String(), &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	})

	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(upstream)
			pr.SetXForwarded()
			dropCookie(pr.Out, s.opts.CookieName)
		},
		Transport:    &bearerTransport{client: proxyClient, loginPath: s.policy.LoginPath, logger: s.logger},
		ErrorHandler: s.proxyError,
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), originalURIKey{}, r.URL.RequestURI())
		rp.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) proxyError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	s.logger.Warn("upstream request failed",
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusBadGateway, "upstream unavailable")
}

// Run serves on addr until ctx ends, then drains in-flight requests for at most
// shutdownTimeout and disposes every session manager.
func (s *Server) Run(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.provider.Close()
		if err != nil {
			return fmt.Errorf("gateway: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("gateway shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := server.Shutdown(shutdownCtx)
	s.provider.Close()
	if err != nil {
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return nil
}
