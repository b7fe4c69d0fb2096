package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sitewatch/inspection-engine/internal/access"
	"github.com/sitewatch/inspection-engine/internal/config"
	"github.com/sitewatch/inspection-engine/internal/database"
	"github.com/sitewatch/inspection-engine/internal/events"
	"github.com/sitewatch/inspection-engine/internal/handlers"
	"github.com/sitewatch/inspection-engine/internal/inspection"
	"github.com/sitewatch/inspection-engine/internal/lifecycle"
	"github.com/sitewatch/inspection-engine/internal/linkage"
	"github.com/sitewatch/inspection-engine/internal/metrics"
	"github.com/sitewatch/inspection-engine/internal/middleware"
	"github.com/sitewatch/inspection-engine/internal/notification"
	"github.com/sitewatch/inspection-engine/internal/scheduler"
	"github.com/sitewatch/inspection-engine/internal/schema"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := setupLogging(cfg)
	logger.Info("Starting inspection engine service",
		"environment", cfg.Environment,
		"http_port", cfg.Server.HTTPPort)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(cfg.Database); err != nil {
		logger.Error("Failed to run database migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	faultRepo := database.NewFaultRepository(db, logger)
	inspectionRepo := database.NewInspectionRepository(db, faultRepo, logger)
	schemaRepo := database.NewSchemaRepository(db, logger)
	notificationRepo := database.NewNotificationRepository(db, logger)

	// Schema store, with the Redis version cache when enabled
	var versionCache schema.VersionCache
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Redis unreachable, schema version cache disabled", "error", err)
		} else {
			versionCache = schema.NewRedisVersionCache(redisClient, cfg.Redis.CacheTTL, logger)
		}
	}
	schemaStore := schema.NewStore(schemaRepo, versionCache, logger)

	// Domain engines
	lifecycleMgr := lifecycle.NewManager(cfg.Escalation.OverdueAfter, cfg.Escalation.EmailInterval)
	resolver := linkage.NewResolver(faultRepo, lifecycleMgr, logger)

	// Event publishing is best effort and optional
	var publisher *events.Publisher
	if cfg.Kafka.Enabled {
		publisher = events.NewPublisher(cfg.Kafka, logger)
		defer publisher.Close()
	}

	var eventSink inspection.EventPublisher
	if publisher != nil {
		eventSink = publisher
	}
	service := inspection.NewService(
		schemaStore,
		inspectionRepo,
		faultRepo,
		resolver,
		lifecycleMgr,
		eventSink,
		inspection.EscalationSettings{
			OverdueAfter:  cfg.Escalation.OverdueAfter,
			EmailInterval: cfg.Escalation.EmailInterval,
			BatchSize:     cfg.Escalation.BatchSize,
		},
		logger,
	)

	// Access matrix
	accessCtrl := access.NewController(logger)
	if err := accessCtrl.LoadFile(cfg.Access.MatrixPath); err != nil {
		logger.Error("Failed to load access matrix", "path", cfg.Access.MatrixPath, "error", err)
		os.Exit(1)
	}

	// Metrics and scheduled work
	collector := metrics.NewCollector(faultRepo, cfg.Escalation.OverdueAfter, logger)
	dispatcher := notification.NewDispatcher(cfg.Notifications.Email, notificationRepo, logger)

	var escalationEvents scheduler.EscalationEventSink
	if publisher != nil {
		escalationEvents = publisher
	}
	taskScheduler := scheduler.NewScheduler(cfg, logger,
		scheduler.NewEscalationProcessorHandler(service, dispatcher, escalationEvents, collector, logger),
		scheduler.NewMetricsRefreshHandler(collector, logger),
	)
	if cfg.Scheduler.Enabled {
		if err := taskScheduler.Start(); err != nil {
			logger.Error("Failed to start scheduler", "error", err)
			os.Exit(1)
		}
		defer taskScheduler.Stop()
	}

	// HTTP server
	authenticator := middleware.NewAuthenticator(cfg.Security, logger)
	httpHandler := handlers.NewHTTPHandler(cfg, logger, service, schemaStore,
		faultRepo, inspectionRepo, notificationRepo, accessCtrl, taskScheduler, collector)

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// the scrape endpoint stays open; only the API routes get the
	// authentication middleware
	apiRouter := router.PathPrefix("/").Subrouter()
	apiRouter.Use(authenticator.Middleware)
	httpHandler.RegisterRoutes(apiRouter)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down inspection engine service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown failed", "error", err)
	}

	logger.Info("Inspection engine service stopped")
}

// setupLogging configures structured logging: JSON in production, text
// elsewhere.
func setupLogging(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Environment == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	logger := slog.New(handler).With("service", "inspection-engine")
	slog.SetDefault(logger)
	return logger
}
