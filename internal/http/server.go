package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
)

// Ledger is the write and lookup surface the handlers need.
type Ledger interface {
	Add(ctx context.Context, n core.NewTransaction) (core.Transaction, error)
	AddText(ctx context.Context, ownerID int64, text string) (core.Transaction, error)
	Get(ctx context.Context, ownerID, id int64) (core.Transaction, bool, error)
	Update(ctx context.Context, ownerID, id int64, p core.Patch) (bool, error)
	Delete(ctx context.Context, ownerID, id int64) (bool, error)
	List(ctx context.Context, ownerID int64, w core.Window) ([]core.Transaction, error)
	ListKind(ctx context.Context, ownerID int64, kind core.Kind, w core.Window) ([]core.Transaction, error)
}

// Deps are the collaborators of a Server.
type Deps struct {
	Ledger    Ledger
	Analytics cache.Aggregator
	// Ready backs /readyz; nil means always ready.
	Ready  func(ctx context.Context) error
	Logger *log.Logger
	// WritesPerMinute caps mutating requests per client; 0 uses the
	// limiter default.
	WritesPerMinute int
	TrustedProxies  []string
}

type Server struct {
	http.Server
	ledger    Ledger
	analytics cache.Aggregator
	ready     func(ctx context.Context) error
	logger    *log.Logger
	limiter   *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer builds the JSON API on addr. Call Shutdown to release the rate
// limiter along with the listener.
func NewServer(addr string, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = log.Default()
	}

	clientIP := security.NewClientIP()
	for _, cidr := range deps.TrustedProxies {
		if err := clientIP.AddTrustedProxy(cidr); err != nil {
			return nil, err
		}
	}

	s := &Server{
		ledger:    deps.Ledger,
		analytics: deps.Analytics,
		ready:     deps.Ready,
		logger:    logger.WithComponent(log.ComponentHTTP),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.WritesPerMinute}),
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		NotFoundError("not found").Write(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		MethodNotAllowedError().Write(w)
	})
	r.Use(log.Middleware(logger), security.Headers(security.DefaultHeadersConfig()))

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)

	// Writes are limited per client IP.
	r.Use(s.limiter.Middleware(clientIP.Extract, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded", log.FieldClientIP, clientIP.Extract(r))
		ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
	}, http.MethodPost, http.MethodPatch, http.MethodDelete))

	const ownerPath = "/owners/{owner:[0-9]+}"
	const txPath = ownerPath + "/transactions/{id:[0-9]+}"

	r.HandleFunc(ownerPath+"/transactions", s.handleCreateTransaction).Methods(http.MethodPost)
	r.HandleFunc(ownerPath+"/transactions", s.handleListTransactions).Methods(http.MethodGet)
	r.HandleFunc(txPath, s.handleGetTransaction).Methods(http.MethodGet)
	r.HandleFunc(txPath, s.handleUpdateTransaction).Methods(http.MethodPatch)
	r.HandleFunc(txPath, s.handleDeleteTransaction).Methods(http.MethodDelete)

	r.HandleFunc(ownerPath+"/balance", s.handleBalance).Methods(http.MethodGet)
	r.HandleFunc(ownerPath+"/categories", s.handleCategories).Methods(http.MethodGet)
	r.HandleFunc(ownerPath+"/trend", s.handleTrend).Methods(http.MethodGet)
	r.HandleFunc(ownerPath+"/top", s.handleTop).Methods(http.MethodGet)
	r.HandleFunc(ownerPath+"/summary", s.handleSummary).Methods(http.MethodGet)
	r.HandleFunc(ownerPath+"/dashboard", s.handleDashboard).Methods(http.MethodGet)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.LogError(r.Context(), "Readiness check failed", err, log.ErrorTypeDatabase, log.OpRead, nil)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// Shutdown gracefully shuts down the server and its rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
