// Package server exposes the extraction pipeline over an HTTP JSON API.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/doculab/extract/internal/export"
	"github.com/doculab/extract/internal/extract"
	"github.com/doculab/extract/internal/repository"
	"github.com/doculab/extract/internal/resilient"
)

// Server holds the state for the REST API server.
type Server struct {
	factory  *extract.Factory
	jobs     repository.JobRepository
	exporter *export.Service
	metrics  *resilient.Metrics
	caps     extract.Capabilities
	logger   *slog.Logger
	router   *gin.Engine
	http     *http.Server
}

func NewServer(factory *extract.Factory, jobs repository.JobRepository, exporter *export.Service,
	metrics *resilient.Metrics, caps extract.Capabilities, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		factory:  factory,
		jobs:     jobs,
		exporter: exporter,
		metrics:  metrics,
		caps:     caps,
		logger:   logger,
		router:   r,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	api := s.router.Group("/api")
	{
		api.POST("/process-document", s.handleProcessDocument)
		api.POST("/extract-text", s.handleExtractText)
		api.POST("/extract-metadata", s.handleExtractMetadata)
		api.POST("/export-tables", s.handleExportTables)
		api.GET("/status", s.handleStatus)
		api.GET("/metrics", s.handleMetrics)
	}
}

// Run starts the server and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Run(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("http server listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) healthCheck(c *gin.Context) {
	c.Status(http.StatusOK)
}
