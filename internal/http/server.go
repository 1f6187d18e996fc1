// Package http serves the calendar UI: full pages, HTMX partials, the
// iCalendar export and the operational endpoints.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"budgetcal/internal/cache"
	"budgetcal/internal/calendar"
	"budgetcal/internal/log"
	"budgetcal/internal/middleware/ratelimit"
	"budgetcal/internal/middleware/security"
	"budgetcal/internal/middleware/trace"
	"budgetcal/internal/propagation"
	"budgetcal/internal/store"
	appweb "budgetcal/web"
)

const (
	sessionCookie        = "budgetcal_session"
	cacheCleanupInterval = 5 * time.Minute
	readyTimeout         = 5 * time.Second
)

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Options wires the server to the rest of the application.
type Options struct {
	Addr     string
	Calendar *calendar.Service
	Auth     store.Authenticator
	Logger   *log.Logger

	SessionTTL         time.Duration
	SessionCacheSize   int
	RateLimitPerMinute int

	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]HealthCheck
	// PropagationStats feeds /metrics when set.
	PropagationStats func() propagation.Stats
	// Cleaners are expired periodically next to the session cache.
	Cleaners []cache.Cleaner
}

type Server struct {
	http.Server
	templates *template.Template
	calendar  *calendar.Service
	auth      store.Authenticator
	logger    *log.Logger

	sessions     *cache.LRUCache[*calendar.Session]
	sessionLocks tokenLocks
	sessionTTL   time.Duration
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector

	checks           map[string]HealthCheck
	propagationStats func() propagation.Stats
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and registers every route.
func NewServer(opts Options) (*Server, error) {
	if opts.Calendar == nil || opts.Auth == nil {
		return nil, fmt.Errorf("calendar service and authenticator are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 12 * time.Hour
	}
	if opts.SessionCacheSize <= 0 {
		opts.SessionCacheSize = 1000
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector(logger)
	s := &Server{
		templates:        tmpl,
		calendar:         opts.Calendar,
		auth:             opts.Auth,
		logger:           logger,
		sessions:         cache.NewLRUCache[*calendar.Session](opts.SessionCacheSize, opts.SessionTTL),
		sessionTTL:       opts.SessionTTL,
		cacheManager:     cache.NewManager(logger),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		securityDetector: detector,
		checks:           opts.Checks,
		propagationStats: opts.PropagationStats,
		appMetrics:       newAppMetrics(),
	}
	s.sessions.OnEvict(func(_ string, sess *calendar.Session) {
		logger.Debug("Session evicted", log.FieldUserID, sess.Identity.UserID)
	})
	s.cacheManager.Register(s.sessions)
	for _, c := range opts.Cleaners {
		s.cacheManager.Register(c)
	}
	s.cacheManager.StartCleanup(cacheCleanupInterval)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.Handle("GET /{$}", s.withSession(s.handleIndex))
	mux.Handle("GET /ui/calendar", s.withSession(s.handleCalendar))
	mux.Handle("POST /ui/month/{dir}", s.withSession(s.handleNavigate))
	mux.Handle("POST /ui/day", s.withSession(s.handleSelectDay))
	mux.Handle("POST /events", s.withSession(s.handleCreateEvent))
	mux.Handle("POST /events/{id}/done", s.withSession(s.handleToggleDone))
	mux.Handle("POST /events/{id}", s.withSession(s.handleEditEvent))
	mux.Handle("DELETE /events/{id}", s.withSession(s.handleDeleteEvent))
	mux.Handle("POST /events/{id}/delete", s.withSession(s.handleDeleteEvent))
	mux.Handle("GET /export.ics", s.withSession(s.handleExport))

	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.securityDetector.Middleware(h)
	h = s.traceMiddleware.Middleware(h)
	return h
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests, try again in a minute").
		Header("Retry-After", "60").
		Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
