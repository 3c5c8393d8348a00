package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/evidence"
	"skuldbot/compliance/pkg/evidence/query"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/policy/manager"
	"skuldbot/compliance/pkg/policy/service"
	"skuldbot/compliance/pkg/ratelimit"
	"skuldbot/compliance/pkg/telemetry/health"
	"skuldbot/compliance/pkg/telemetry/tracing"
)

const defaultShutdownTimeout = 30 * time.Second

// Evaluator runs evaluation requests. *service.Service implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, req service.Request) (*service.Evaluation, error)
}

// PackCatalog lists and resolves registered packs. *manager.Registry
// implements it.
type PackCatalog interface {
	List(tenantID string) []manager.PackSummary
	Resolve(tenantID string, ref pack.Ref) (*pack.Pack, error)
}

// Deps are the components served by the API. Evaluator and Packs are
// required; the rest are mounted only when set.
type Deps struct {
	Evaluator Evaluator
	Packs     PackCatalog

	// Evidence serves /v1/evidence when set.
	Evidence    evidence.Storage
	QueryLimits query.Limits

	Health *health.Checker
	Tracer *tracing.Tracer

	// Metrics is served at MetricsPath, "/metrics" when empty.
	Metrics     http.Handler
	MetricsPath string

	Version   string
	Commit    string
	BuildTime string
}

// Server is the compliance HTTP API.
type Server struct {
	config       *config.ServerConfig
	deps         Deps
	logger       *slog.Logger
	validate     *validator.Validate
	limiter      *ratelimit.Limiter
	certs        *certReloader
	tlsConfig    *tls.Config
	handler      http.Handler
	httpServer   *http.Server
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// New creates a server. It does not listen until Start.
func New(cfg *config.ServerConfig, deps Deps, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config is required")
	}
	if deps.Evaluator == nil || deps.Packs == nil {
		return nil, errors.New("server requires an evaluator and a pack catalog")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if deps.QueryLimits == (query.Limits{}) {
		deps.QueryLimits = query.DefaultLimits()
	}

	s := &Server{
		config:   cfg,
		deps:     deps,
		logger:   logger.With("component", "server"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		limiter:  ratelimit.New(ratelimit.FromConfig(&cfg.RateLimit)),
	}
	if cfg.TLS.Enabled {
		certs, err := newCertReloader(cfg.TLS.CertFile, cfg.TLS.KeyFile, s.logger)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		if s.tlsConfig, err = buildTLSConfig(&cfg.TLS, certs); err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		s.certs = certs
	}
	s.handler = s.routes()
	return s, nil
}

// Start listens on the configured address and blocks until ctx is done or
// the listener fails. A cancelled ctx triggers a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
		TLSConfig:    s.tlsConfig,
	}
	s.mu.Unlock()

	if s.certs != nil && s.config.TLS.ReloadOnChange {
		go func() {
			if err := s.certs.watch(ctx); err != nil {
				s.logger.Error("certificate watcher stopped", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting compliance API", "address", s.config.ListenAddress, "tls", s.tlsConfig != nil)
		var err error
		if s.tlsConfig != nil {
			err = s.httpServer.ListenAndServeTLS("", "")
		} else {
			err = s.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if !ok {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}
}

// Shutdown drains in-flight requests within the configured shutdown
// timeout. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv == nil {
			return
		}

		timeout := s.config.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		s.logger.Info("shutting down compliance API", "timeout", timeout)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			shutdownErr = fmt.Errorf("server shutdown failed: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("compliance API stopped")
	})

	return shutdownErr
}

// IsRunning reports whether Start is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the routed handler with its middleware chain.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(recoverer(s.logger))
	r.Use(requestID)
	if s.deps.Tracer != nil {
		r.Use(tracing.HTTPMiddleware(s.deps.Tracer))
	}
	r.Use(accessLog(s.logger))
	r.Use(limitBody(s.config.MaxBodyBytes))

	if s.deps.Health != nil {
		r.Get("/healthz", s.deps.Health.LivenessHandler())
		r.Get("/readyz", s.deps.Health.ReadinessHandler())
	}
	r.Get("/version", health.VersionHandler(s.deps.Version, s.deps.Commit, s.deps.BuildTime))
	if s.deps.Metrics != nil {
		path := s.deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, s.deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/evaluations", s.handleEvaluate)
		r.Get("/packs", s.handleListPacks)
		r.Get("/packs/{id}/{version}", s.handleGetPack)
		if s.deps.Evidence != nil {
			r.Get("/evidence", s.handleQueryEvidence)
			r.Get("/evidence/{id}", s.handleGetEvidence)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "no route for "+r.Method+" "+r.URL.Path, nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", r.Method+" is not allowed on "+r.URL.Path, nil)
	})
	return r
}
