package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/cloudlease/blueprints/internal/api/handler"
	mw "github.com/cloudlease/blueprints/internal/api/middleware"
	"github.com/cloudlease/blueprints/internal/config"
	"github.com/cloudlease/blueprints/internal/store"
)

type Server struct {
	router         chi.Router
	logger         zerolog.Logger
	pool           *pgxpool.Pool
	temporalClient temporalclient.Client
	cfg            *config.Config
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, temporalClient temporalclient.Client, cfg *config.Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger,
		pool:           pool,
		temporalClient: temporalClient,
		cfg:            cfg,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	st := store.New(s.pool, s.cfg.DeploymentRetentionDays)

	s.router.Route("/api/v1", func(r chi.Router) {
		blueprint := handler.NewBlueprint(st)
		r.Post("/blueprints", blueprint.Create)
		r.Get("/blueprints/{id}", blueprint.Get)
		r.Put("/blueprints/{id}/stacksets/{stackSetId}", blueprint.PutStackSet)
		r.Get("/blueprints/{id}/stacksets/{stackSetId}/deployments", blueprint.ListDeployments)

		workflows := handler.Workflows{
			Client: s.temporalClient,
			Store:  st,
		}
		deployment := handler.NewDeployment(workflows, s.cfg.TaskQueue, s.cfg.DeploymentPollSeconds)
		r.Post("/deployments", deployment.Create)
		r.Post("/teardowns", deployment.CreateTeardown)

		// Raw orchestrator action payloads (CREATE / DELETE) enter here.
		action := handler.NewAction(workflows, s.cfg.TaskQueue, s.cfg.DeploymentPollSeconds)
		r.Post("/actions", action.Submit)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.pool.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("readiness check failed")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("database unavailable"))
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
