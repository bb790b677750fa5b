// Package api serves the command center REST API, the log stream WebSocket
// and the embedded front end.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/crovest/command-center/internal/config"
	"github.com/crovest/command-center/internal/logstream"
	"github.com/crovest/command-center/internal/metrics"
	"github.com/crovest/command-center/internal/store"
	"github.com/crovest/command-center/internal/tracing"
)

// Options wires a Server to its collaborators. Hub and Collector may be nil
// in tests; the corresponding endpoints are then not mounted.
type Options struct {
	Config    *config.Config
	Store     *store.Store
	Hub       *logstream.Hub
	Collector *metrics.Collector
	// AuthToken is the resolved bearer token; it is required on /api/*
	// when Config.Auth.Enabled is set.
	AuthToken string
}

// Server is the HTTP server for the command center. It binds the chi router
// to the configured address and provides graceful shutdown support.
type Server struct {
	router  chi.Router
	store   *store.Store
	hub     *logstream.Hub
	now     func() time.Time
	httpSrv *http.Server
}

// NewServer builds the router and the underlying http.Server.
func NewServer(opts Options) *Server {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Server{
		store: opts.Store,
		hub:   opts.Hub,
		now:   time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware(cfg.Dashboard.AllowedOrigins))
	if cfg.Tracing.Enabled {
		r.Use(tracing.HTTPMiddleware)
	}
	if opts.Collector != nil {
		r.Use(metrics.Middleware(opts.Collector))
	}
	r.Use(accessLog)
	r.Use(bodyLimit(cfg.Server.MaxBodySize))

	r.Get("/health", s.handleLiveness)

	r.Route("/api", func(r chi.Router) {
		if cfg.RateLimit.Enabled {
			if rl, err := newRateLimiter(cfg.RateLimit); err != nil {
				log.Error().Err(err).Msg("rate limiting disabled")
			} else {
				r.Use(rl.middleware)
			}
		}
		if cfg.Auth.Enabled {
			r.Use(authMiddleware(opts.AuthToken))
		}

		r.Get("/dashboard", s.handleDashboard)

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", s.handleListTodos)
			r.Post("/", s.handleCreateTodo)
			r.Patch("/{id}", s.handleUpdateTodo)
			r.Delete("/{id}", s.handleDeleteTodo)
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Get("/", s.handleListTasks)
			r.Post("/", s.handleCreateTask)
			r.Put("/{id}", s.handleUpdateTask)
			r.Patch("/{id}", s.handleUpdateTask)
			r.Delete("/{id}", s.handleDeleteTask)
		})

		r.Route("/decisions", func(r chi.Router) {
			r.Get("/", s.handleListDecisions)
			r.Post("/", s.handleCreateDecision)
			r.Delete("/{id}", s.handleDeleteDecision)
		})

		r.Get("/bot-logs", s.handleListBotLogs)
		r.Post("/bot-logs", s.handleCreateBotLog)

		r.Get("/health", s.handleListBotHealth)
		r.Post("/health/log", s.handleReportBotHealth)

		r.Route("/objectives", func(r chi.Router) {
			r.Get("/", s.handleListObjectives)
			r.Post("/", s.handleCreateObjective)
			r.Put("/{id}", s.handleUpdateObjective)
			r.Patch("/{id}", s.handleUpdateObjective)
			r.Delete("/{id}", s.handleDeleteObjective)
		})

		r.Route("/costs", func(r chi.Router) {
			r.Get("/", s.handleListCosts)
			r.Post("/", s.handleCreateCost)
			r.Get("/summary", s.handleCostSummary)
			r.Delete("/{id}", s.handleDeleteCost)
		})

		r.Route("/tools", func(r chi.Router) {
			r.Get("/", s.handleListTools)
			r.Post("/", s.handleCreateTool)
			r.Patch("/{id}", s.handleUpdateTool)
			r.Delete("/{id}", s.handleDeleteTool)
			r.Post("/{id}/errors", s.handleToolError)
			r.Post("/{id}/reset", s.handleToolReset)
		})

		r.Route("/habits", func(r chi.Router) {
			r.Get("/", s.handleListHabits)
			r.Post("/", s.handleCreateHabit)
			r.Delete("/{id}", s.handleDeleteHabit)
			r.Post("/{id}/checkin", s.handleCheckIn)
			r.Delete("/{id}/checkin", s.handleUncheck)
			r.Post("/{id}/toggle", s.handleToggleHabit)
			r.Get("/{id}/logs", s.handleHabitLogs)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", s.handleListClients)
			r.Post("/", s.handleCreateClient)
			r.Put("/{id}", s.handleUpdateClient)
			r.Patch("/{id}", s.handleUpdateClient)
			r.Delete("/{id}", s.handleDeleteClient)
		})

		if opts.Collector != nil {
			r.Get("/stats", metrics.StatsHandler(opts.Collector))
		}

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
	})

	if opts.Hub != nil {
		r.Get("/ws/logs", logstream.NewHandler(opts.Hub, cfg.Dashboard.AllowedOrigins).ServeHTTP)
	}
	if opts.Collector != nil {
		r.Get("/metrics", metrics.PrometheusHandler(opts.Collector))
	}

	if cfg.Dashboard.Enabled {
		mountFrontend(r)
	}

	s.router = r
	s.httpSrv = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	return s
}

// Router returns the underlying chi.Router, useful for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpSrv.Addr
}

// Start begins listening for HTTP connections on the configured address.
// It blocks until the server is shut down or encounters a fatal error.
func (s *Server) Start() error {
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
