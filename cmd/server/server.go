package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/fractal-lba/nbeval/internal/cache"
	"github.com/fractal-lba/nbeval/internal/config"
	"github.com/fractal-lba/nbeval/internal/corpus"
	"github.com/fractal-lba/nbeval/internal/dtm"
	"github.com/fractal-lba/nbeval/internal/journal"
	"github.com/fractal-lba/nbeval/internal/metrics"
	"github.com/fractal-lba/nbeval/internal/pipeline"
	"github.com/fractal-lba/nbeval/internal/results"
	"github.com/fractal-lba/nbeval/internal/split"
	"github.com/fractal-lba/nbeval/pkg/otel"
)

const (
	maxBodyBytes = 8 << 20
	tracerName   = "nbeval/server"
)

// EvaluateRequest is the body of POST /v1/evaluate. Run holds optional
// overrides of the server's run configuration.
type EvaluateRequest struct {
	Documents []corpus.Document `json:"documents"`
	Run       json.RawMessage   `json:"run,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Server struct {
	base     config.Config
	store    results.Store
	journal  *journal.Journal
	cache    *cache.TokenCache
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	limiter  *rate.Limiter
	ttl      time.Duration
	timeout  time.Duration
	logger   *log.Logger

	metricsAuth struct {
		enabled  bool
		user     string
		password string
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/evaluate", s.handleEvaluate)
	mux.Handle("/metrics", s.metricsHandler())
	mux.HandleFunc("/health", handleHealth)
	return mux
}

// maintain rotates the request journal at day boundaries and sweeps expired
// reports from stores that keep them, until ctx is done.
func (s *Server) maintain(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.housekeep(ctx, now)
		}
	}
}

func (s *Server) housekeep(ctx context.Context, now time.Time) {
	if old, err := s.journal.Rotate(now); err != nil {
		s.logger.Printf("Journal rotation failed: %v", err)
		s.metrics.JournalErrors.Inc()
	} else if old != "" {
		s.logger.Printf("Rotated request journal, closed %s", old)
	}

	if cleaner, ok := s.store.(results.Cleaner); ok {
		n, err := cleaner.CleanupExpired(ctx)
		if err != nil {
			s.logger.Printf("Result cleanup failed: %v", err)
			s.metrics.StoreErrors.Inc()
		} else if n > 0 {
			s.logger.Printf("Removed %d expired reports", n)
		}
	}
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.limiter.Allow() {
		s.metrics.RateLimited.Inc()
		w.Header().Set("Retry-After", "10")
		http.Error(w, "Too many requests", http.StatusTooManyRequests)
		return
	}

	s.metrics.IngestTotal.Inc()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}

	// Journal BEFORE parsing so malformed requests can be inspected later.
	requestID := uuid.NewString()
	if err := s.journal.Append(requestID, body); err != nil {
		s.logger.Printf("Journal append error: %v", err)
		s.metrics.JournalErrors.Inc()
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-Request-ID", requestID)

	var req EvaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	cfg, err := s.requestConfig(req.Run)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	runner := pipeline.New(cfg)
	runner.Logger = s.logger
	runner.Metrics = s.metrics
	runner.Cache = s.cache

	ctx, span := otel.StartSpan(r.Context(), tracerName, "server.evaluate")
	defer span.End()

	fp, err := runner.Fingerprint(req.Documents)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	existing, err := s.store.Get(ctx, fp)
	if err != nil {
		s.logger.Printf("Result store error: %v", err)
		s.metrics.StoreErrors.Inc()
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		s.metrics.DedupHits.Inc()
		span.SetAttributes(otel.AttrCacheHit.Bool(true))
		respondWithReport(w, existing, true)
		return
	}
	span.SetAttributes(otel.AttrCacheHit.Bool(false))

	runCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	report, err := runner.Run(runCtx, req.Documents)
	if err != nil {
		otel.RecordError(span, err, "run failed")
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Printf("Evaluation %s failed: %v", requestID, err)
		}
		respondError(w, status, err.Error())
		return
	}

	// First write wins; a concurrent identical request may have stored first.
	stored, err := s.store.Put(ctx, fp, report, s.ttl)
	if err != nil {
		s.logger.Printf("Failed to store report: %v", err)
		s.metrics.StoreErrors.Inc()
	} else if !stored {
		if winner, err := s.store.Get(ctx, fp); err == nil && winner != nil {
			report = winner
		}
	}

	respondWithReport(w, report, false)
}

// requestConfig overlays the request's run overrides on the server config.
func (s *Server) requestConfig(overrides json.RawMessage) (pipeline.Config, error) {
	cfg := s.base
	cfg.Run.Representations = append([]string(nil), s.base.Run.Representations...)
	if len(overrides) > 0 {
		if err := json.Unmarshal(overrides, &cfg.Run); err != nil {
			return pipeline.Config{}, err
		}
	}
	// Jobs is a server resource setting.
	cfg.Run.Jobs = s.base.Run.Jobs
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, err
	}
	return cfg.Pipeline(), nil
}

// statusFor maps run errors caused by the submitted data or settings to 422.
func statusFor(err error) int {
	for _, target := range []error{
		pipeline.ErrInvalidConfig,
		corpus.ErrNotBinary,
		corpus.ErrUnknownLabel,
		corpus.ErrDuplicateID,
		dtm.ErrEmptyVocabulary,
		dtm.ErrEmptyCorpus,
		split.ErrInvalidFolds,
		split.ErrInvalidFraction,
		split.ErrEmptyPartition,
	} {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) metricsHandler() http.Handler {
	handler := promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})

	if !s.metricsAuth.enabled {
		return handler
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.metricsAuth.user || pass != s.metricsAuth.password {
			w.Header().Set("WWW-Authenticate", `Basic realm="Metrics"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func respondWithReport(w http.ResponseWriter, report *pipeline.Report, cached bool) {
	w.Header().Set("Content-Type", "application/json")
	if cached {
		w.Header().Set("X-Nbeval-Cache", "hit")
	} else {
		w.Header().Set("X-Nbeval-Cache", "miss")
	}
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(report)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
