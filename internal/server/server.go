package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"worshiplive/internal/auth"
	"worshiplive/internal/control"
	"worshiplive/internal/hub"
	"worshiplive/internal/metrics"
	"worshiplive/internal/store"
	"worshiplive/internal/surfaces"
)

const (
	prayerLimit  = 5
	prayerWindow = time.Minute
)

type Server struct {
	router     chi.Router
	store      *store.Store
	auth       *auth.Manager
	control    *control.Service
	surfaces   *surfaces.Manager
	hub        *hub.Hub
	metrics    *metrics.Metrics
	corsOrigin string
	trustProxy bool

	prayerLimiter *rateLimiter
	loginLimiter  *rateLimiter
}

func NewServer(s *store.Store, opts ...Option) *Server {
	srv := &Server{
		router:        chi.NewRouter(),
		store:         s,
		prayerLimiter: newRateLimiter(prayerLimit, prayerWindow),
		loginLimiter:  newRateLimiter(loginFailures, loginWindow),
	}
	for _, o := range opts {
		o(srv)
	}
	srv.router.Use(middleware.RequestID)
	if srv.trustProxy {
		srv.router.Use(middleware.RealIP)
	}
	srv.router.Use(requestLogger)
	srv.router.Use(middleware.Recoverer)
	srv.routes()
	return srv
}

type Option func(*Server)

func WithCORSOrigin(origin string) Option {
	return func(s *Server) { s.corsOrigin = origin }
}

// WithTrustProxy takes client addresses from X-Forwarded-For and X-Real-IP.
// Only enable it behind a reverse proxy that sets them.
func WithTrustProxy(trust bool) Option {
	return func(s *Server) { s.trustProxy = trust }
}

func WithAuth(m *auth.Manager) Option {
	return func(s *Server) { s.auth = m }
}

func WithControl(c *control.Service) Option {
	return func(s *Server) { s.control = c }
}

func WithSurfaces(m *surfaces.Manager) Option {
	return func(s *Server) { s.surfaces = m }
}

func WithHub(h *hub.Hub) Option {
	return func(s *Server) { s.hub = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiters' cleanup goroutines.
func (s *Server) Close() {
	s.prayerLimiter.stop()
	s.loginLimiter.stop()
}
