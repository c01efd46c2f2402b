package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/orchestrator"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/internal/application/workers"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/bundle"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// Publisher is the part of the orchestrator the API exposes
type Publisher interface {
	Publish(ctx context.Context, projectID, userID string, opts domain.PublishOptions) (*orchestrator.PublishResult, error)
	PreviewBundle(ctx context.Context, projectID, userID string, opts domain.PublishOptions) (*bundle.ContentBundle, bundle.Result, error)
	GetJob(ctx context.Context, jobID string) (*domain.PublishJob, error)
	ListJobs(ctx context.Context, projectID string) ([]*domain.PublishJob, error)
	ListVersions(ctx context.Context, projectID string) ([]*domain.ProjectVersion, error)
	ActiveJobs() int
}

// HealthReporter reports worker pool health
type HealthReporter interface {
	Health() *workers.HealthStatus
}

// Server represents the HTTP API server
type Server struct {
	router    *gin.Engine
	server    *http.Server
	publisher Publisher
	health    HealthReporter
	logger    *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port      int
	Publisher Publisher
	Health    HealthReporter
	Logger    *zap.Logger
	// Metrics serves /metrics; nil uses the default Prometheus registry
	Metrics http.Handler
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware())

	s := &Server{
		router:    router,
		publisher: cfg.Publisher,
		health:    cfg.Health,
		logger:    cfg.Logger,
	}

	metrics := cfg.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	s.setupRoutes(metrics)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(metrics http.Handler) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/projects/:id/publish", s.handlePublish)
		v1.POST("/projects/:id/bundle/preview", s.handlePreviewBundle)
		v1.GET("/projects/:id/jobs", s.handleListJobs)
		v1.GET("/projects/:id/versions", s.handleListVersions)

		v1.GET("/jobs/:id", s.handleGetJob)
		v1.GET("/jobs/:id/bundle", s.handleGetJobBundle)
	}
}

// SetupWebSocket adds the job progress stream to the server
func (s *Server) SetupWebSocket(handler interface{ HandleJobStream(*gin.Context) }) {
	s.router.GET("/api/v1/jobs/:id/ws", handler.HandleJobStream)
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info("HTTP server shut down complete")
	return nil
}
