// Package http serves the zenith web UI: HTMX pages and fragments, file
// import and export, and the small JSON API used by the suggestion widget.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"zenith/internal/ai"
	"zenith/internal/cache"
	"zenith/internal/core"
	zlog "zenith/internal/log"
	"zenith/internal/middleware/ratelimit"
	"zenith/internal/middleware/security"
	"zenith/internal/middleware/trace"
	"zenith/internal/transactions"
	appweb "zenith/web"
)

// Deps are the collaborators the server needs. Store is required; the AI
// pieces may be nil, in which case suggestion and chat report unavailable.
type Deps struct {
	Store     *transactions.Store
	Suggester *ai.Suggester
	Assistant *ai.Assistant
	Sequencer *ai.Sequencer
	Logger    *zlog.Logger
	// Caches, when set, gets the server's session caches for periodic cleanup.
	Caches             *cache.Manager
	RateLimitPerMinute int
	Now                func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	store     *transactions.Store
	registry  *core.Registry

	suggester *ai.Suggester
	assistant *ai.Assistant
	sequencer *ai.Sequencer
	chats     *cache.LRUCache[[]ai.Turn]

	logger           *zlog.Logger
	events           *zlog.StructuredLogger
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics
	now              func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = zlog.FromContext(context.Background())
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	seq := deps.Sequencer
	if seq == nil {
		seq = ai.NewSequencer()
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		store:            deps.Store,
		registry:         deps.Store.Registry(),
		suggester:        deps.Suggester,
		assistant:        deps.Assistant,
		sequencer:        seq,
		chats:            cache.NewLRUCache[[]ai.Turn](500, 24*time.Hour),
		logger:           logger.WithComponent(zlog.ComponentHTTP),
		events:           zlog.NewStructuredLogger(logger.WithComponent(zlog.ComponentHTTP)),
		securityDetector: security.NewDetector(),
		appMetrics:       newAppMetrics(now()),
		now:              now,
	}
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{
		RequestsPerMinute: deps.RateLimitPerMinute,
		Methods:           ratelimit.DefaultConfig().Methods,
	})
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	if deps.Caches != nil {
		deps.Caches.Register(s.chats)
		deps.Caches.Register(seq.Cache())
	}

	t, err := template.New("zenith").Funcs(templateFuncs(s.registry)).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", zlog.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", zlog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleDashboard)
	mux.HandleFunc("GET /ui/dashboard", s.handleDashboardPartial)

	mux.HandleFunc("GET /transactions", s.handleListTransactions)
	mux.HandleFunc("GET /transactions/new", s.handleNewTransaction)
	mux.HandleFunc("GET /transactions/{id}/edit", s.handleEditTransaction)
	mux.HandleFunc("POST /transactions", s.handleCreateTransaction)
	mux.HandleFunc("POST /transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("/transactions/{id}/delete", s.handleDeleteTransaction)
	mux.HandleFunc("POST /transactions/import", s.handleImport)
	mux.HandleFunc("GET /transactions/export", s.handleExport)

	mux.HandleFunc("GET /reports", s.handleReports)
	mux.HandleFunc("GET /reports/statement.pdf", s.handleStatementPDF)

	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/suggest", s.handleSuggest)

	mux.HandleFunc("GET /api/categories", s.handleCategories)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.onRateLimit)(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		zlog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		zlog.FieldPath, r.URL.Path)
	if r.URL.Path == "/suggest" {
		writeJSONError(w, http.StatusTooManyRequests, "too many requests")
		return
	}
	msg := "Too many requests, please wait a minute."
	ErrorResponse(http.StatusTooManyRequests, msg).
		TriggerErrorNotification(msg).
		Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// render executes a named template. Execution is buffered so a failure can
// still produce a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.ErrorContext(r.Context(), "Templates not loaded", zlog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	buf := getBuffer()
	defer putBuffer(buf)
	if err := s.templates.ExecuteTemplate(buf, name, data); err != nil {
		s.logger.ErrorContext(r.Context(), "Template execution failed", zlog.FieldError, err, "template", name)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
