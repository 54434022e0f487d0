// Package web provides the HTTP server exposing table views and forms.
//
// Every opened view or form gets a server-side session holding its grid or
// validation engine. Interactive elements post back to the session through
// HTMX and receive the re-rendered fragment.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/viewkit/internal/bus"
	"github.com/JonMunkholm/viewkit/internal/catalog"
	"github.com/JonMunkholm/viewkit/internal/config"
	"github.com/JonMunkholm/viewkit/internal/grid"
	"github.com/JonMunkholm/viewkit/internal/render"
	"github.com/JonMunkholm/viewkit/internal/schema"
	"github.com/JonMunkholm/viewkit/internal/validate"
	"github.com/JonMunkholm/viewkit/internal/view"
	mw "github.com/JonMunkholm/viewkit/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed static
var staticFiles embed.FS

// Options are the collaborators of a Server.
type Options struct {
	Config    *config.Config
	Catalog   *catalog.Catalog
	Schemas   schema.Provider    // Nil disables schema-derived rules
	Templates *render.Registry   // Cell templates referenced by view columns
	Rules     *validate.Registry // Defaults to validate.DefaultRegistry()
	Bus       *bus.Bus
}

// Server is the HTTP server for the view application.
type Server struct {
	cfg       *config.Config
	catalog   *catalog.Catalog
	schemas   schema.Provider
	templates *render.Registry
	rules     *validate.Registry
	bus       *bus.Bus
	sessions  *sessionStore

	router *chi.Mux
	server *http.Server

	stopOnce sync.Once
	stop     chan struct{}
}

// NewServer creates a new Server instance.
func NewServer(opts Options) *Server {
	rules := opts.Rules
	if rules == nil {
		rules = validate.DefaultRegistry()
	}
	templates := opts.Templates
	if templates == nil {
		templates = render.NewRegistry()
	}
	b := opts.Bus
	if b == nil {
		b = bus.New()
	}

	s := &Server{
		cfg:       opts.Config,
		catalog:   opts.Catalog,
		schemas:   opts.Schemas,
		templates: templates,
		rules:     rules,
		bus:       b,
		sessions:  newSessionStore(opts.Config.Server.SessionTTL),
		router:    chi.NewRouter(),
		stop:      make(chan struct{}),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.cfg.Rate.Enabled {
		limiter := newRateLimiter(s.cfg.Rate.RequestsPerMinute, time.Minute, s.stop)
		s.router.Use(limiter.middleware)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Pages
	s.router.Get("/", s.handleDashboard)
	s.router.Get("/view/{viewKey}", s.handleViewPage)
	s.router.Get("/form/{viewKey}", s.handleFormPage)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		r.Get("/views", s.handleListViews)

		// Table views
		r.Post("/grid/{sessionID}/overlay/{pos}", s.handleCreateOverlay)
		r.Delete("/grid/{sessionID}/overlay/{pos}", s.handleRemoveOverlay)
		r.Get("/grid/{sessionID}/checked", s.handleCheckedRows)
		r.Patch("/grid/{sessionID}/rows/{pos}", s.handleUpdateRow)
		r.Delete("/grid/{sessionID}/rows/{pos}", s.handleDeleteRow)
		r.Post("/grid/{sessionID}/rows", s.handleAppendRows)
		r.Put("/grid/{sessionID}/rows", s.handleReplaceRow)
		r.Post("/grid/{sessionID}/rows/cell", s.handleUpdateCell)
		r.Post("/grid/{sessionID}/rows/bulk", s.handleBulkEdit)
		r.Post("/grid/{sessionID}/rows/delete", s.handleDeleteRows)
		r.Post("/grid/{sessionID}/{action}", s.handleGridAction)
		r.Delete("/grid/{sessionID}", s.handleCloseSession)

		// Forms
		r.Post("/form/{sessionID}/field/{field}", s.handleValidateField)
		r.Post("/form/{sessionID}/group/{group}", s.handleResolveGroup)
		r.Post("/form/{sessionID}/submit", s.handleSubmit)
		r.Post("/form/{sessionID}/ack", s.handleAcknowledge)
		r.Get("/form/{sessionID}/state", s.handleFormState)
		r.Get("/form/{sessionID}/body", s.handleFormBody)
		r.Delete("/form/{sessionID}", s.handleCloseSession)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	go s.logEvents()

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// logEvents writes engine events to the debug log until shutdown.
func (s *Server) logEvents() {
	rendered, cancelRendered := s.bus.Subscribe(grid.TopicRendered, 64)
	defer cancelRendered()
	groups, cancelGroups := s.bus.Subscribe(validate.TopicGroup, 64)
	defer cancelGroups()
	states, cancelStates := s.bus.Subscribe(view.TopicState, 16)
	defer cancelStates()

	for {
		select {
		case <-s.stop:
			return
		case ev, ok := <-rendered:
			if !ok {
				return
			}
			if e, ok := ev.Payload.(grid.RenderedEvent); ok {
				slog.Debug("grid rendered", "grid", e.Grid, "version", e.Version, "page", e.Page, "rows", e.Rows)
			}
		case ev, ok := <-groups:
			if !ok {
				return
			}
			if e, ok := ev.Payload.(validate.GroupEvent); ok && e.Severity != e.Previous {
				slog.Debug("group status changed", "form", e.Engine, "group", e.Group,
					"from", e.Previous.String(), "to", e.Severity.String())
			}
		case ev, ok := <-states:
			if !ok {
				return
			}
			if e, ok := ev.Payload.(view.StateEvent); ok {
				slog.Debug("view state changed", "view", e.View, "state", string(e.State))
			}
		}
	}
}

// securityHeaders adds security headers to all responses.
func securityHeaders(csp bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Prevent MIME type sniffing
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			w.Header().Set("X-Frame-Options", "DENY")

			if csp {
				// HTMX is served from unpkg; everything else from self.
				w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self' https://unpkg.com; style-src 'self' 'unsafe-inline'; img-src 'self' data:")
			}

			// Control referrer information
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter implements a simple token bucket rate limiter per IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
// Stale visitors are swept until stop is closed.
func newRateLimiter(rate int, window time.Duration, stop <-chan struct{}) *rateLimiter {
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
	}
	go rl.cleanup(stop)
	return rl
}

// cleanup removes stale visitor entries every window.
func (rl *rateLimiter) cleanup(stop <-chan struct{}) {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		rl.mu.Lock()
		for ip, v := range rl.visitors {
			if time.Since(v.lastReset) > rl.window*2 {
				delete(rl.visitors, ip)
			}
		}
		rl.mu.Unlock()
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		rl.visitors[ip] = &visitor{
			tokens:    rl.rate - 1,
			lastReset: time.Now(),
		}
		return true
	}

	// Reset tokens if window has passed
	if time.Since(v.lastReset) > rl.window {
		v.tokens = rl.rate - 1
		v.lastReset = time.Now()
		return true
	}

	if v.tokens <= 0 {
		return false
	}

	v.tokens--
	return true
}

// middleware returns an HTTP middleware that rate limits by IP.
// RemoteAddr has already been resolved by TrustedRealIP; the port is ignored.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		if !rl.allow(ip) {
			w.Header().Set("Retry-After", "60")
			respondErrorJSON(w, MapError(errRateLimited), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
