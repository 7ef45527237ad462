package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/cache"
	"github.com/mbs-billing-assistant/internal/catalog"
	"github.com/mbs-billing-assistant/internal/domain"
	"github.com/mbs-billing-assistant/internal/middleware"
	"github.com/mbs-billing-assistant/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server

	catalog       *catalog.Store
	loader        *catalog.Loader
	extractor     domain.SignalExtractor
	recommender   domain.Recommender
	compliance    domain.ComplianceChecker
	consultations *service.ConsultationService
	documents     domain.DocumentGenerator
	cache         *cache.RecommendationCache
}

// Dependencies carries the wired services the server exposes.
type Dependencies struct {
	Catalog       *catalog.Store
	Loader        *catalog.Loader
	Extractor     domain.SignalExtractor
	Recommender   domain.Recommender
	Compliance    domain.ComplianceChecker
	Consultations *service.ConsultationService
	Documents     domain.DocumentGenerator
	Cache         *cache.RecommendationCache
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, deps Dependencies) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(middleware.AuditLogger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS())
	router.Use(middleware.CorrelationID())

	server := &Server{
		configManager: configManager,
		logger:        logger,
		router:        router,
		catalog:       deps.Catalog,
		loader:        deps.Loader,
		extractor:     deps.Extractor,
		recommender:   deps.Recommender,
		compliance:    deps.Compliance,
		consultations: deps.Consultations,
		documents:     deps.Documents,
		cache:         deps.Cache,
	}

	// Setup routes
	server.setupRoutes()

	return server
}

// Router exposes the configured handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.WithField("addr", addr).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.handleHealth)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/mbs/items", s.handleListItems)
		v1.GET("/mbs/items/:item", s.handleGetItem)
		v1.POST("/mbs/recommend", s.handleRecommend)
		v1.POST("/mbs/check", s.handleCheck)
		v1.POST("/mbs/reload", s.handleReload)

		v1.POST("/consultations/process", s.handleProcessConsultation)
		v1.GET("/consultations", s.handleListConsultations)
		v1.GET("/consultations/:id", s.handleGetConsultation)

		v1.POST("/claims", s.handleGenerateClaim)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "healthy",
		"timestamp":       time.Now().UTC(),
		"catalog_version": s.catalog.Snapshot().Version(),
		"catalog_items":   s.catalog.Snapshot().Len(),
	})
}
