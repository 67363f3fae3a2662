// Package metrics holds the Prometheus instruments for evaluation runs and
// the evaluation service.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus instruments for the system. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// Run instruments
	Runs            *prometheus.CounterVec
	RunDuration     prometheus.Histogram
	VocabularySize  *prometheus.GaugeVec
	HoldoutAccuracy *prometheus.GaugeVec
	FoldAccuracy    *prometheus.HistogramVec
	DegradedFolds   *prometheus.CounterVec
	EmptyVocabulary *prometheus.CounterVec
	TokenCacheHits  prometheus.Counter
	TokenCacheMiss  prometheus.Counter

	// Service instruments
	IngestTotal   prometheus.Counter
	DedupHits     prometheus.Counter
	RateLimited   prometheus.Counter
	JournalErrors prometheus.Counter
	StoreErrors   prometheus.Counter
}

// New creates all metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		Runs: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbeval_runs_total",
				Help: "Evaluation runs by outcome",
			},
			[]string{"status"},
		),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nbeval_run_duration_seconds",
			Help:    "Wall time of a full evaluation run",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		VocabularySize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nbeval_vocabulary_size",
				Help: "Retained terms in the last built vocabulary per representation",
			},
			[]string{"representation"},
		),
		HoldoutAccuracy: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nbeval_holdout_accuracy",
				Help: "Holdout accuracy of the last run per representation",
			},
			[]string{"representation"},
		),
		FoldAccuracy: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nbeval_fold_accuracy",
				Help:    "Cross-validation fold accuracy per representation",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"representation"},
		),
		DegradedFolds: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbeval_degraded_folds_total",
				Help: "Folds whose train or test group held a single class",
			},
			[]string{"representation"},
		),
		EmptyVocabulary: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nbeval_empty_vocabulary_total",
				Help: "Runs aborted because trimming retained no terms",
			},
			[]string{"representation"},
		),
		TokenCacheHits: f.NewCounter(prometheus.CounterOpts{
			Name: "nbeval_token_cache_hits_total",
			Help: "Documents served from the tokenizer cache",
		}),
		TokenCacheMiss: f.NewCounter(prometheus.CounterOpts{
			Name: "nbeval_token_cache_misses_total",
			Help: "Documents tokenized from scratch",
		}),

		IngestTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nbeval_ingest_total",
			Help: "Total number of evaluation requests received",
		}),
		DedupHits: f.NewCounter(prometheus.CounterOpts{
			Name: "nbeval_dedup_hits_total",
			Help: "Evaluation requests served from a stored report",
		}),
		RateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "nbeval_rate_limited_total",
			Help: "Evaluation requests rejected by the rate limiter",
		}),
		JournalErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "nbeval_journal_errors_total",
			Help: "Number of journal write errors",
		}),
		StoreErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "nbeval_store_errors_total",
			Help: "Number of result store read or write errors",
		}),
	}
}

// RunFinished records the outcome of one run.
func (m *Metrics) RunFinished(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(seconds)
}

// Representation records the vocabulary size and holdout accuracy of one
// representation. Undefined accuracy (NaN) is not exported.
func (m *Metrics) Representation(name string, vocabSize int, holdoutAccuracy float64) {
	if m == nil {
		return
	}
	m.VocabularySize.WithLabelValues(name).Set(float64(vocabSize))
	if !math.IsNaN(holdoutAccuracy) {
		m.HoldoutAccuracy.WithLabelValues(name).Set(holdoutAccuracy)
	}
}

// Fold records one cross-validation fold. Undefined accuracy (NaN) is not
// observed; the fold still counts as degraded when flagged.
func (m *Metrics) Fold(representation string, accuracy float64, degraded bool) {
	if m == nil {
		return
	}
	if !math.IsNaN(accuracy) {
		m.FoldAccuracy.WithLabelValues(representation).Observe(accuracy)
	}
	if degraded {
		m.DegradedFolds.WithLabelValues(representation).Inc()
	}
}

// EmptyVocab records a run aborted by an empty vocabulary.
func (m *Metrics) EmptyVocab(representation string) {
	if m == nil {
		return
	}
	m.EmptyVocabulary.WithLabelValues(representation).Inc()
}

// TokenCache adds tokenizer cache lookups.
func (m *Metrics) TokenCache(hits, misses uint64) {
	if m == nil {
		return
	}
	m.TokenCacheHits.Add(float64(hits))
	m.TokenCacheMiss.Add(float64(misses))
}
