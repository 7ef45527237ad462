package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/mbs-billing-assistant/internal/api"
	"github.com/mbs-billing-assistant/internal/cache"
	"github.com/mbs-billing-assistant/internal/catalog"
	"github.com/mbs-billing-assistant/internal/config"
	"github.com/mbs-billing-assistant/internal/repository"
	"github.com/mbs-billing-assistant/internal/service"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging.Level, cfg.Logging.Format)

	// Load the schedule catalog
	loader := catalog.NewLoader(logger, cfg.Catalog.DataPath)
	initial, err := loader.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load schedule catalog")
	}
	catalogStore := catalog.NewStore(initial)

	// Open the consultation store
	repo, err := repository.NewSQLiteConsultationStore(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open consultation store")
	}
	defer repo.Close()

	// Optional recommendation cache
	var recommendationCache *cache.RecommendationCache
	if cfg.Cache.Enabled {
		recommendationCache, err = cache.New(logger, cfg.Cache)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create recommendation cache")
		}
		defer recommendationCache.Close()
	}

	// Wire services
	extractor := service.NewExtractorService(logger)
	recommender := service.NewRecommenderService(logger, cfg.Engine)
	compliance := service.NewComplianceService(logger)
	consultations := service.NewConsultationService(logger, extractor, recommender, repo)
	documents := service.NewDocumentService(logger, cfg.Documents.OutputDir)

	server := api.NewServer(configManager, logger, api.Dependencies{
		Catalog:       catalogStore,
		Loader:        loader,
		Extractor:     extractor,
		Recommender:   recommender,
		Compliance:    compliance,
		Consultations: consultations,
		Documents:     documents,
		Cache:         recommendationCache,
	})

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down")
		cancel()
	}()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting MBS billing assistant")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logger.SetLevel(parsed)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
