// Package http serves the board page and the JSON API over the game,
// ledger and goal services.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"callbingo/internal/cache"
	applog "callbingo/internal/log"
	"callbingo/internal/middleware/ratelimit"
	"callbingo/internal/middleware/security"
	"callbingo/internal/middleware/trace"
	"callbingo/internal/services"
	appweb "callbingo/web"
)

// Services are the application services the handlers call.
type Services struct {
	Game   *services.GameService
	Ledger *services.LedgerService
	Goal   *services.GoalService
}

// CacheStats reports hit and miss counters, e.g. *cache.LRUCache.
type CacheStats interface {
	Stats() cache.Stats
}

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

type Options struct {
	Logger             *applog.Logger
	RateLimitPerMinute int
	StandingsCache     CacheStats
	ReadinessChecks    map[string]ReadinessCheck
}

type Server struct {
	http.Server
	templates *template.Template
	svc       Services
	logger    *applog.Logger

	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	standings CacheStats
	checks    map[string]ReadinessCheck
	startedAt time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.Config{Component: applog.ComponentHTTP})
	}

	s := &Server{
		svc:       svc,
		logger:    logger,
		detector:  security.NewDetector(),
		standings: opts.StandingsCache,
		checks:    opts.ReadinessChecks,
		startedAt: time.Now(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.newMetricsRegistry(), promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}))

	mux.HandleFunc("GET /api/board", s.handleBoard)
	mux.HandleFunc("POST /api/board/cells/{id}/increment", s.handleIncrement)
	mux.HandleFunc("POST /api/board/reset", s.handleReset)
	mux.HandleFunc("POST /api/board/shuffle", s.handleShuffle)
	mux.HandleFunc("PUT /api/board/cells", s.handleEditCells)

	mux.HandleFunc("GET /api/ledger", s.handleLedger)
	mux.HandleFunc("POST /api/ledger", s.handleRecordEntry)
	mux.HandleFunc("DELETE /api/ledger/{id}", s.handleDeleteEntry)
	mux.HandleFunc("GET /api/players", s.handlePlayers)
	mux.HandleFunc("PUT /api/players", s.handleUpdatePlayers)

	mux.HandleFunc("GET /api/goal", s.handleGoal)
	mux.HandleFunc("PUT /api/goal", s.handleUpdateGoal)
	mux.HandleFunc("POST /api/goal/calls", s.handleAddCalls)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, isMutation, func(w http.ResponseWriter, r *http.Request) {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldComponent, applog.ComponentRateLimit,
			applog.FieldMethod, r.Method,
			applog.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	})

	var h http.Handler = mux
	h = limited(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func isMutation(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	default:
		return true
	}
}

// Shutdown stops the server and the rate limiter cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
