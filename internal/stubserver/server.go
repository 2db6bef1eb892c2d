// Package stubserver is a self-contained controller that serves the REST
// surface ctlstudio talks to. It backs local development and end-to-end
// tests.
package stubserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/ctlstudio/internal/events"
	"github.com/mattjoyce/ctlstudio/internal/log"
)

// Config holds stub server configuration.
type Config struct {
	Listen string
	// Token, when set, is required as a bearer token on every API route.
	Token string
	// Settle is how long a run reports "running" before it completes on
	// its own. Zero completes runs immediately.
	Settle time.Duration
}

// Server serves the controller API over a Store.
type Server struct {
	config    Config
	store     *Store
	events    *events.Hub
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time

	// cycleMu serializes run id allocation and cycle writes.
	cycleMu sync.Mutex
}

// New creates a stub server over store.
func New(config Config, store *Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	return &Server{
		config:    config,
		store:     store,
		events:    events.NewHub(256),
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Events exposes the server's event hub.
func (s *Server) Events() *events.Hub {
	return s.events
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves until ctx is cancelled (blocking).
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.setupRoutes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // event streams stay open
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("stub controller starting", "listen", s.config.Listen, "auth", s.config.Token != "")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("stub controller shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/workspaces", s.handleListWorkspaces)
			r.Get("/workspaces/current", s.handleCurrentWorkspace)
			r.Post("/workspaces/mount", s.handleMountWorkspace)
			r.Post("/workspaces/select", s.handleSelectWorkspace)

			r.Get("/artifacts", s.handleListArtifacts)
			r.Post("/artifacts", s.handleCreateArtifact)
			r.Get("/artifacts/{artifactID}", s.handleGetArtifact)
			r.Put("/artifacts/{artifactID}", s.handleUpdateArtifact)

			r.Get("/llm/prompt-templates", s.handlePromptTemplates)
			r.Get("/llm/configs", s.handleListLLMConfigs)
			r.Post("/llm/configs", s.handleCreateLLMConfig)

			r.Get("/runs/{runID}", s.handleGetRun)
			r.Post("/runs/{runID}/cancel", s.handleCancelRun)

			r.Get("/events", s.handleEvents)
		})

		r.Route("/api/controller", func(r chi.Router) {
			r.Get("/bundles", s.handleListBundles)
			r.Post("/cycle", s.handleRunCycle)
			r.Get("/reports", s.handleListReports)
			r.Get("/reports/{runID}", s.handleGetReport)
			r.Get("/artifacts", s.handleListArtifacts)
			r.Post("/artifacts/diff", s.handleDiffArtifacts)
			r.Get("/artifacts/{artifactID}", s.handleGetArtifact)
		})
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
