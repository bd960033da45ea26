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
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/vitalsentry/vitalsentry-backend/internal/advisor"
	"github.com/vitalsentry/vitalsentry-backend/internal/api/middleware"
	"github.com/vitalsentry/vitalsentry-backend/internal/api/rest"
	"github.com/vitalsentry/vitalsentry-backend/internal/api/websocket"
	"github.com/vitalsentry/vitalsentry-backend/internal/config"
	"github.com/vitalsentry/vitalsentry-backend/internal/detector"
	"github.com/vitalsentry/vitalsentry-backend/internal/ingest"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/logger"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/tracing"
	"github.com/vitalsentry/vitalsentry-backend/internal/pkg/trendcache"
	"github.com/vitalsentry/vitalsentry-backend/internal/repository"
	"github.com/vitalsentry/vitalsentry-backend/internal/service"
	"github.com/vitalsentry/vitalsentry-backend/internal/trends"
	"github.com/vitalsentry/vitalsentry-backend/migrations"
)

func main() {
	log := logger.StdLogger()
	log.Info("vitalsentry backend starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "port", cfg.Port, "db_engine", cfg.DBEngine)

	if cfg.TracingEnabled {
		shutdownTracing, err := tracing.Init("vitalsentry-backend", cfg.OTLPEndpoint, 1.0)
		if err != nil {
			log.Warn("tracing initialization failed", "error", err)
		} else {
			defer shutdownTracing()
		}
	}

	repo, err := openRepository(cfg)
	if err != nil {
		log.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	log.Info("database ready")

	// Detectors and selection
	rangeDet := detector.NewRangeDetector(log)
	baseDet := detector.NewBaselineDetector(repo, cfg.MinBaselineSamples, cfg.ZScoreThreshold, log)
	selector := detector.NewSelector(rangeDet, baseDet)
	if err := selector.Restore(cfg.DefaultDetector, cfg.DefaultUserID); err != nil {
		log.Error("invalid default detector config", "error", err)
		os.Exit(1)
	}

	// Telemetry bus and ingest pipeline
	broker := ingest.NewBroker()
	broker.Subscribe(ingest.TopicRawVitals, ingest.TopicConfig)
	pipeline := ingest.NewPipeline(repo, selector, broker, log)
	loop := ingest.NewLoop(broker, pipeline, cfg.IngestWorkers, log)

	// Trend aggregation
	aggregator := trends.NewAggregator(repo, log)
	cache := trendcache.New(time.Duration(cfg.TrendCacheTTLSec) * time.Second)

	monitor := service.NewMonitorService(repo, pipeline, selector, aggregator, cache, broker, log)
	if err := monitor.RestoreSelection(ctx); err != nil {
		log.Warn("could not restore persisted detector selection", "error", err)
	}
	sel := monitor.CurrentDetector()
	log.Info("detector selection active", "detector_type", string(sel.Kind), "user_id", sel.UserID)

	adv := advisor.NewClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTemperature, log)
	if adv.Enabled() {
		log.Info("trend advisor enabled", "model", cfg.LLMModel)
	}

	// WebSocket hub and broker bridge
	wsHub := websocket.NewHub(ctx, log)
	go wsHub.Run()
	wsHandler := websocket.NewHandler(ctx, wsHub, log)
	go wsHandler.BridgeBroker(broker)

	// Ingest workers
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return loop.Run(groupCtx)
	})

	// HTTP router
	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.StructuredLog)
	router.Use(middleware.SecureHeaders)
	router.Use(recoveryMiddleware(log))
	if cfg.TracingEnabled {
		router.Use(middleware.Tracing)
	}
	if cfg.RateLimitEnabled {
		router.Use(middleware.RateLimit())
	}
	maxBody := int64(cfg.MaxBodyBytes)
	if maxBody <= 0 {
		maxBody = middleware.DefaultStandardMaxBodyBytes
	}
	router.Use(middleware.MaxBodySize(maxBody, middleware.DefaultIngestMaxBodyBytes))
	router.Use(middleware.Auth(cfg))

	healthz := rest.NewHealthzHandler(repo)
	router.HandleFunc("/health", healthz.Live).Methods("GET")
	router.HandleFunc("/healthz/live", healthz.Live).Methods("GET")
	router.HandleFunc("/healthz/ready", healthz.Ready).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handler := rest.NewHandler(monitor, adv)
	rest.SetupRoutes(apiRouter, handler)

	router.HandleFunc("/ws/vitals", wsHandler.ServeWS).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	readWrite := 15 * time.Second
	if cfg.RequestTimeoutSec > 0 {
		readWrite = time.Duration(cfg.RequestTimeoutSec) * time.Second
	}
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      c.Handler(router),
		ReadTimeout:  readWrite,
		WriteTimeout: readWrite,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening",
			"addr", srv.Addr,
			"api", fmt.Sprintf("http://localhost:%d/api/v1", cfg.Port),
			"ws", fmt.Sprintf("ws://localhost:%d/ws/vitals", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			cancel()
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	log.Info("shutting down")

	broker.Close()
	if err := group.Wait(); err != nil {
		log.Warn("ingest loop exited with error", "error", err)
	}
	wsHub.Stop()

	shutdownWait := 10 * time.Second
	if cfg.ShutdownTimeoutSec > 0 {
		shutdownWait = time.Duration(cfg.ShutdownTimeoutSec) * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownWait)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

func openRepository(cfg *config.Config) (repository.Repository, error) {
	switch cfg.DBEngine {
	case "postgres":
		repo, err := repository.NewPostgresRepository(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(migrations.Schema(migrations.PostgresSchema)); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	default:
		repo, err := repository.NewSQLiteRepository(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := repo.RunMigrations(migrations.Schema(migrations.SQLiteSchema)); err != nil {
			repo.Close()
			return nil, err
		}
		return repo, nil
	}
}

func recoveryMiddleware(log *slog.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.Error("panic recovered", "panic", err, "path", r.URL.Path)
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
