package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/fractal-lba/nbeval/internal/config"
	"github.com/fractal-lba/nbeval/internal/corpus"
	"github.com/fractal-lba/nbeval/internal/journal"
	"github.com/fractal-lba/nbeval/internal/metrics"
	"github.com/fractal-lba/nbeval/internal/pipeline"
	"github.com/fractal-lba/nbeval/internal/results"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	store, err := results.NewMemoryStore("")
	if err != nil {
		t.Fatalf("NewMemoryStore: %v", err)
	}
	dir := t.TempDir()
	j, err := journal.Open(dir)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	cfg := config.Default()
	cfg.Run.Folds = 4
	cfg.Run.Jobs = 2

	registry := prometheus.NewRegistry()
	srv := &Server{
		base:     cfg,
		store:    store,
		journal:  j,
		metrics:  metrics.New(registry),
		registry: registry,
		limiter:  rate.NewLimiter(rate.Inf, 1),
		ttl:      time.Hour,
		timeout:  30 * time.Second,
		logger:   log.New(io.Discard, "", 0),
	}
	return srv, j.Path()
}

func requestBody(t *testing.T, run string) []byte {
	t.Helper()

	spam := []string{"free", "prize", "cash", "winner", "offer", "claim"}
	ham := []string{"meeting", "project", "report", "lunch", "schedule", "budget"}
	var docs []corpus.Document
	for i := 0; i < 12; i++ {
		for _, c := range []struct {
			label string
			words []string
		}{{"spam", spam}, {"ham", ham}} {
			var parts []string
			for j := 0; j < 4; j++ {
				parts = append(parts, c.words[(i+j)%len(c.words)])
			}
			docs = append(docs, corpus.Document{
				ID:    fmt.Sprintf("%s-%d", c.label, i),
				Text:  strings.Join(parts, " "),
				Label: c.label,
			})
		}
	}

	req := EvaluateRequest{Documents: docs}
	if run != "" {
		req.Run = json.RawMessage(run)
	}
	body, err := json.Marshal(req)
	if err != nil {
		t.Fatal(err)
	}
	return body
}

func post(t *testing.T, h http.Handler, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader(body)))
	return rec
}

func TestEvaluateIdempotent(t *testing.T) {
	srv, journalPath := newTestServer(t)
	h := srv.routes()
	body := requestBody(t, `{"seed": 7}`)

	first := post(t, h, body)
	if first.Code != http.StatusOK {
		t.Fatalf("first status = %d: %s", first.Code, first.Body.String())
	}
	if got := first.Header().Get("X-Nbeval-Cache"); got != "miss" {
		t.Errorf("first cache header = %q, want miss", got)
	}

	var a pipeline.Report
	if err := json.Unmarshal(first.Body.Bytes(), &a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Config.Seed != 7 || a.Config.Folds != 4 {
		t.Errorf("overrides not applied: seed %d folds %d", a.Config.Seed, a.Config.Folds)
	}
	if len(a.Results) != 3 {
		t.Errorf("got %d results, want 3", len(a.Results))
	}

	second := post(t, h, body)
	if got := second.Header().Get("X-Nbeval-Cache"); got != "hit" {
		t.Errorf("second cache header = %q, want hit", got)
	}
	var b pipeline.Report
	if err := json.Unmarshal(second.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.RunID != b.RunID {
		t.Errorf("repeat submission got a new run %s, want %s", b.RunID, a.RunID)
	}

	records, err := journal.Replay(journalPath)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("journal has %d records, want 2", len(records))
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   []byte
		status int
	}{
		{"invalid json", []byte("{"), http.StatusBadRequest},
		{"bad override", nil, http.StatusUnprocessableEntity},
		{"single class", []byte(`{"documents":[{"id":"1","text":"a b","label":"x"},{"id":"2","text":"c d","label":"x"}]}`), http.StatusUnprocessableEntity},
		{"empty holdout train set", []byte(`{"documents":[{"id":"1","text":"free cash","label":"spam"},{"id":"2","text":"free prize","label":"spam"},` +
			`{"id":"3","text":"team meeting","label":"ham"},{"id":"4","text":"meeting notes","label":"ham"}],` +
			`"run":{"train_fraction":0.4,"folds":2}}`), http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t)
			body := tt.body
			if body == nil {
				body = requestBody(t, `{"folds": 1}`)
			}
			rec := post(t, srv.routes(), body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
		})
	}
}

func TestEvaluateMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/evaluate", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestEvaluateRateLimited(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.limiter = rate.NewLimiter(0, 1)
	h := srv.routes()

	post(t, h, []byte("{"))
	rec := post(t, h, []byte("{"))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rec.Code)
	}
}

func TestMetricsAuth(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.metricsAuth.enabled = true
	srv.metricsAuth.user = "prom"
	srv.metricsAuth.password = "secret"
	h := srv.routes()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status without credentials = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("prom", "secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("status with credentials = %d, want 200", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestHousekeep(t *testing.T) {
	srv, firstJournal := newTestServer(t)
	ctx := context.Background()

	store := srv.store.(*results.MemoryStore)
	if _, err := store.Put(ctx, "stale", &pipeline.Report{RunID: "stale"}, -time.Second); err != nil {
		t.Fatalf("Put: %v", err)
	}

	srv.housekeep(ctx, time.Now().AddDate(0, 0, 1))

	if got, _ := store.Get(ctx, "stale"); got != nil {
		t.Error("expired report survived housekeeping")
	}
	if srv.journal.Path() == firstJournal {
		t.Error("journal was not rotated to the next day")
	}
}
