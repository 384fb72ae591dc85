package http

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"paylog/internal/auth"
	"paylog/internal/core"
	"paylog/internal/ledger"
	"paylog/internal/log"
	"paylog/internal/middleware/ratelimit"
	"paylog/internal/middleware/security"
	"paylog/internal/middleware/trace"
	"paylog/internal/roster"
	appweb "paylog/web"
)

// Options are the server settings that come from configuration.
type Options struct {
	Addr           string
	MaxUploadBytes int64
	SecureCookies  bool
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Engine     *ledger.Engine
	Reconciler *roster.Reconciler
	Admin      *auth.Admin
	Sessions   *auth.SessionStore
	Feed       http.Handler // websocket change feed
	Store      core.Store   // readiness probe
	Limiter    *ratelimit.Limiter
	Detector   *security.Detector
	Logger     *log.Logger
}

type Server struct {
	http.Server

	engine     *ledger.Engine
	reconciler *roster.Reconciler
	admin      *auth.Admin
	sessions   *auth.SessionStore
	feed       http.Handler
	store      core.Store
	limiter    *ratelimit.Limiter
	detector   *security.Detector
	logger     *log.Logger
	tracer     *trace.Middleware

	maxUploadBytes int64
	secureCookies  bool
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.New(log.DefaultConfig())
	}
	if deps.Detector == nil {
		deps.Detector = security.MustNewDetector()
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}

	logger := deps.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		engine:         deps.Engine,
		reconciler:     deps.Reconciler,
		admin:          deps.Admin,
		sessions:       deps.Sessions,
		feed:           deps.Feed,
		store:          deps.Store,
		limiter:        deps.Limiter,
		detector:       deps.Detector,
		logger:         logger,
		tracer:         trace.NewMiddleware(logger, deps.Detector.ExtractClientIP),
		maxUploadBytes: opts.MaxUploadBytes,
		secureCookies:  opts.SecureCookies,
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var handler http.Handler = mux
	handler = s.logSuspicious(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = s.recoverPanic(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /members", s.requireAuth(s.handleListMembers))
	mux.HandleFunc("GET /members/{id}", s.requireAuth(s.handleGetMember))
	mux.HandleFunc("POST /members/{id}/transactions", s.requireAuth(s.handleApplyTransaction))
	mux.HandleFunc("DELETE /members/{id}/transactions/last", s.requireAuth(s.handleUndoTransaction))
	mux.HandleFunc("POST /members/import/preview", s.requireAuth(s.handleImportPreview))
	mux.HandleFunc("POST /members/import", s.requireAuth(s.handleImport))

	mux.HandleFunc("GET /admin/session", s.handleSession)
	mux.Handle("POST /admin/login", s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(http.HandlerFunc(s.handleLogin)))
	mux.HandleFunc("POST /admin/logout", s.handleLogout)
	mux.HandleFunc("POST /admin/password", s.requireAuth(s.handleChangePassword))

	if s.feed != nil {
		mux.Handle("GET /ws", s.requireAuth(s.feed.ServeHTTP))
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Embedded UI
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-cache")
			http.ServeFileFS(w, r, sub, "index.html")
		})
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", log.FieldError, err)
			http.Error(w, "store unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	TooManyRequestsError().Write(w)
}
