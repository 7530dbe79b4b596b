package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aescanero/sparkcopilot/internal/application/orchestrator"
	"github.com/aescanero/sparkcopilot/internal/application/workers"
	"github.com/aescanero/sparkcopilot/internal/pipeline"
)

// Service identification reported by / and /health
const (
	ServiceName = "Spark Intelligence Copilot"
	Version     = "1.0.0"
)

// HealthReporter reports worker pool health
type HealthReporter interface {
	GetStatus() *workers.HealthStatus
}

// Server represents the HTTP API server
type Server struct {
	router        *gin.Engine
	server        *http.Server
	orchestrator  *orchestrator.Manager
	plan          *pipeline.Plan
	health        HealthReporter
	skewThreshold float64
	logger        *zap.Logger
}

// Config holds HTTP server configuration
type Config struct {
	Port         int
	Orchestrator *orchestrator.Manager
	// Plan is the compiled pipeline served by GET /api/v1/pipeline
	Plan *pipeline.Plan
	// Health is optional; without it /health only reports the process
	Health        HealthReporter
	Gatherer      prometheus.Gatherer
	CORSOrigins   []string
	SkewThreshold float64
	Logger        *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(cfg.Logger))
	router.Use(corsMiddleware(cfg.CORSOrigins))

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		router:        router,
		orchestrator:  cfg.Orchestrator,
		plan:          cfg.Plan,
		health:        cfg.Health,
		skewThreshold: cfg.SkewThreshold,
		logger:        cfg.Logger,
	}

	s.setupRoutes(gatherer)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	return s
}

// setupRoutes configures API routes
func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.router.GET("/", s.handleRoot)
	s.router.GET("/health", s.handleHealth)

	// Metrics
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// Synchronous analysis
		v1.POST("/analyze/job", s.handleAnalyzeJob)
		v1.POST("/analyze/partition", s.handleAnalyzePartition)

		// Asynchronous analysis
		v1.POST("/analyses", s.handleSubmitAnalysis)
		v1.GET("/analyses/:id", s.handleGetAnalysis)
		v1.GET("/analyses/:id/status", s.handleGetStatus)
		v1.POST("/analyses/:id/cancel", s.handleCancelAnalysis)

		// Job views
		v1.GET("/jobs/:job_id/analyses", s.handleListJobAnalyses)
		v1.GET("/recommendations/:job_id", s.handleGetRecommendations)
		v1.GET("/metrics/:job_id", s.handleGetJobMetrics)

		v1.GET("/pipeline", s.handleGetPipeline)
	}
}

// SetupWebSocket adds the analysis event stream to the server
func (s *Server) SetupWebSocket(handler interface {
	HandleAnalysisStream(*gin.Context)
}) {
	s.router.GET("/api/v1/analyses/:id/ws", handler.HandleAnalysisStream)
}

// Handler returns the HTTP handler serving the API
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
