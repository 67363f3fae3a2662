// Package cv runs stratified k-fold cross-validation of the Naive Bayes
// classifier over a document-term matrix.
package cv

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/fractal-lba/nbeval/internal/bayes"
	"github.com/fractal-lba/nbeval/internal/corpus"
	"github.com/fractal-lba/nbeval/internal/dtm"
	"github.com/fractal-lba/nbeval/internal/eval"
	"github.com/fractal-lba/nbeval/internal/split"
	"github.com/fractal-lba/nbeval/pkg/otel"
)

const tracerName = "nbeval/cv"

// Harness fits and scores one model per fold.
type Harness struct {
	Alpha    float64
	Positive int
	Jobs     int // concurrent folds; <= 0 means GOMAXPROCS
}

// FoldResult is the outcome of one fold. Degraded folds had a class missing
// from their train or test group; some of their metrics may be undefined.
type FoldResult struct {
	Index          int                  `json:"index"`
	TrainSize      int                  `json:"train_size"`
	TestSize       int                  `json:"test_size"`
	TestClassCount [2]int               `json:"test_class_count"`
	Confusion      eval.ConfusionMatrix `json:"confusion"`
	Metrics        eval.Metrics         `json:"metrics"`
	Degraded       bool                 `json:"degraded"`
	Reason         string               `json:"reason,omitempty"`
}

// Result collects every fold in index order with per-metric summaries.
type Result struct {
	Folds         []FoldResult `json:"folds"`
	Accuracy      eval.Summary `json:"accuracy"`
	Precision     eval.Summary `json:"precision"`
	Recall        eval.Summary `json:"recall"`
	F1            eval.Summary `json:"f1"`
	DegradedFolds int          `json:"degraded_folds"`
}

// Run evaluates every fold. Folds run concurrently but each reads only the
// shared, read-only matrix and its own precomputed partition, so results do
// not depend on scheduling.
func (h Harness) Run(ctx context.Context, m *dtm.Matrix, labels []int, folds []split.Fold) (*Result, error) {
	if len(labels) != m.Rows() {
		return nil, fmt.Errorf("cv: %d labels for %d rows", len(labels), m.Rows())
	}

	jobs := h.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	results := make([]FoldResult, len(folds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(jobs, len(folds))))

	for i, f := range folds {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			res, err := h.EvaluateFold(gctx, m, labels, f)
			if err != nil {
				return fmt.Errorf("fold %d: %w", f.Index, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return summarize(results), nil
}

// EvaluateFold fits on the fold's train rows and scores its test rows. It
// also serves single holdout partitions.
func (h Harness) EvaluateFold(ctx context.Context, m *dtm.Matrix, labels []int, f split.Fold) (FoldResult, error) {
	_, span := otel.StartSpan(ctx, tracerName, "cv.fold", otel.FoldAttributes(f.Index, len(f.Train), len(f.Test))...)
	defer span.End()

	trainLabels := pick(labels, f.Train)
	testLabels := pick(labels, f.Test)

	model, err := bayes.Fit(m.Subset(f.Train), trainLabels, h.Alpha)
	if err != nil {
		otel.RecordError(span, err, "fit failed")
		return FoldResult{}, err
	}

	preds, err := model.Predict(m.Subset(f.Test))
	if err != nil {
		otel.RecordError(span, err, "predict failed")
		return FoldResult{}, err
	}

	cm, metrics, err := eval.Evaluate(bayes.Labels(preds), testLabels, h.Positive)
	if err != nil {
		return FoldResult{}, err
	}

	res := FoldResult{
		Index:          f.Index,
		TrainSize:      len(f.Train),
		TestSize:       len(f.Test),
		TestClassCount: corpus.Counts(testLabels),
		Confusion:      cm,
		Metrics:        metrics,
	}

	var reasons []string
	if trainCounts := corpus.Counts(trainLabels); trainCounts[0] == 0 || trainCounts[1] == 0 {
		reasons = append(reasons, "train group has a single class")
	}
	if res.TestClassCount[0] == 0 || res.TestClassCount[1] == 0 {
		reasons = append(reasons, "test group has a single class")
	}
	if len(reasons) > 0 {
		res.Degraded = true
		res.Reason = strings.Join(reasons, "; ")
		otel.AddEvent(span, "fold.degraded")
	}

	span.SetAttributes(otel.AttrAccuracy.Float64(metrics.Accuracy.Float()))
	return res, nil
}

func summarize(folds []FoldResult) *Result {
	res := &Result{Folds: folds}

	acc := make([]eval.Score, len(folds))
	prec := make([]eval.Score, len(folds))
	rec := make([]eval.Score, len(folds))
	f1 := make([]eval.Score, len(folds))
	for i, f := range folds {
		acc[i] = f.Metrics.Accuracy
		prec[i] = f.Metrics.Precision
		rec[i] = f.Metrics.Recall
		f1[i] = f.Metrics.F1
		if f.Degraded {
			res.DegradedFolds++
		}
	}

	res.Accuracy = eval.Summarize(acc)
	res.Precision = eval.Summarize(prec)
	res.Recall = eval.Summarize(rec)
	res.F1 = eval.Summarize(f1)
	return res
}

func pick(labels, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}
