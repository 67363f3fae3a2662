package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/fractal-lba/nbeval/internal/cache"
	"github.com/fractal-lba/nbeval/internal/config"
	"github.com/fractal-lba/nbeval/internal/journal"
	"github.com/fractal-lba/nbeval/internal/metrics"
	"github.com/fractal-lba/nbeval/internal/results"
	"github.com/fractal-lba/nbeval/pkg/otel"
	"github.com/fractal-lba/nbeval/pkg/text"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Failed to load .env: %v", err)
	}

	// Run configuration: optional file, then NBEVAL_* overrides
	cfg, err := config.Load(getEnv("NBEVAL_CONFIG", ""))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("Invalid environment: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Tracing
	var shutdownTracing func()
	if endpoint := getEnv("OTEL_ENDPOINT", ""); endpoint != "" {
		otelCfg := otel.DefaultConfig("nbeval-server")
		otelCfg.CollectorEndpoint = endpoint
		tp, err := otel.InitTracer(context.Background(), otelCfg)
		if err != nil {
			log.Printf("Tracing disabled: %v", err)
		} else {
			shutdownTracing = func() {
				if err := otel.Shutdown(context.Background(), tp); err != nil {
					log.Printf("Tracer shutdown error: %v", err)
				}
			}
		}
	}

	// Setup result store
	backend := getEnv("RESULTS_BACKEND", "memory")
	var store results.Store

	switch backend {
	case "memory":
		store, err = results.NewMemoryStore(getEnv("RESULTS_SNAPSHOT", "data/reports.json"))
		if err != nil {
			log.Fatalf("Failed to create memory store: %v", err)
		}
	case "redis":
		store, err = results.NewRedisStore(getEnv("REDIS_ADDR", "localhost:6379"), getEnv("REDIS_PASSWORD", ""), getEnvInt("REDIS_DB", 0))
		if err != nil {
			log.Fatalf("Failed to create Redis store: %v", err)
		}
	case "postgres":
		store, err = results.NewPostgresStore(getEnv("POSTGRES_CONN", ""))
		if err != nil {
			log.Fatalf("Failed to create Postgres store: %v", err)
		}
	default:
		log.Fatalf("Unknown RESULTS_BACKEND: %s", backend)
	}

	// Setup journal
	journalDir := getEnv("JOURNAL_DIR", "data/journal")
	reqJournal, err := journal.Open(journalDir)
	if err != nil {
		log.Fatalf("Failed to open request journal: %v", err)
	}

	// Token cache, keyed by the configured tokenizer
	tokenCache, err := cache.NewTokenCache(text.NewTokenizer(cfg.Run.StopWords, cfg.Run.Stemming, 2), getEnvInt("TOKEN_CACHE_SIZE", cache.DefaultSize))
	if err != nil {
		log.Fatalf("Failed to create token cache: %v", err)
	}

	// Setup metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	// Rate limiter
	tokenRate := getEnvInt("TOKEN_RATE", 10)
	limiter := rate.NewLimiter(rate.Limit(tokenRate), tokenRate*2)

	srv := &Server{
		base:     cfg,
		store:    store,
		journal:  reqJournal,
		cache:    tokenCache,
		metrics:  m,
		registry: registry,
		limiter:  limiter,
		ttl:      time.Duration(getEnvInt("RESULTS_TTL_SECONDS", int(results.DefaultTTL/time.Second))) * time.Second,
		timeout:  time.Duration(getEnvInt("RUN_TIMEOUT_SECONDS", 50)) * time.Second,
		logger:   log.Default(),
	}

	// Metrics auth
	srv.metricsAuth.enabled = getEnv("METRICS_USER", "") != ""
	srv.metricsAuth.user = getEnv("METRICS_USER", "")
	srv.metricsAuth.password = getEnv("METRICS_PASS", "")

	port := getEnv("PORT", "8080")
	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Journal rotation and expired-report sweeps
	maintCtx, stopMaintenance := context.WithCancel(context.Background())
	go srv.maintain(maintCtx, time.Duration(getEnvInt("MAINTENANCE_INTERVAL_SECONDS", 300))*time.Second)

	// Graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Starting server on port %s (results backend %s)", port, backend)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-shutdown
	log.Println("Shutting down server...")
	stopMaintenance()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	if err := reqJournal.Close(); err != nil {
		log.Printf("Error closing journal: %v", err)
	}
	if err := store.Close(); err != nil {
		log.Printf("Error closing result store: %v", err)
	}
	if shutdownTracing != nil {
		shutdownTracing()
	}

	log.Println("Server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
