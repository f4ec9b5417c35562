package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mx-roomstats-go/internal/config"
	"github.com/mx-roomstats-go/internal/handlers"
	"github.com/mx-roomstats-go/internal/i18n"
	"github.com/mx-roomstats-go/internal/matrix"
	"github.com/mx-roomstats-go/internal/middleware"
	"github.com/mx-roomstats-go/internal/services/media"
	"github.com/mx-roomstats-go/internal/services/profile"
	"github.com/mx-roomstats-go/internal/services/stats"
	"github.com/mx-roomstats-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info("Starting room statistics service...")
	log.WithField("homeserver", cfg.Homeserver.BaseURL).Info("Homeserver configured")

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	// Initialize homeserver client adapter
	client := matrix.NewRestClient(cfg.Homeserver.BaseURL, cfg.Homeserver.AccessToken, log)

	// Initialize profile store
	profiles, err := profile.NewManager(cfg, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize profile store")
	}
	profiles.SetFetcher(client)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	// Initialize media resolver
	limiter := middleware.NewFetchLimiter(&cfg.Media.RateLimit, log)
	resolver := media.NewResolver(&cfg.Media, limiter, metrics, log)

	// Initialize statistics aggregator
	aggregator := stats.NewAggregator(cfg, profiles, localizer, metrics, log)

	// Initialize HTTP API
	api := handlers.NewServer(client, resolver, aggregator, profiles, localizer, log)

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("HTTP server shutdown failed")
	}

	log.Info("Stopped")
}
