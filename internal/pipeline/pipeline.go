// Package pipeline runs a full evaluation: tokenization, one feature matrix
// per representation, a shared stratified holdout split and k-fold
// partition, Naive Bayes fitting and scoring, and a report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/fractal-lba/nbeval/internal/cache"
	"github.com/fractal-lba/nbeval/internal/corpus"
	"github.com/fractal-lba/nbeval/internal/cv"
	"github.com/fractal-lba/nbeval/internal/dtm"
	"github.com/fractal-lba/nbeval/internal/eval"
	"github.com/fractal-lba/nbeval/internal/metrics"
	"github.com/fractal-lba/nbeval/internal/split"
	"github.com/fractal-lba/nbeval/pkg/fingerprint"
	"github.com/fractal-lba/nbeval/pkg/otel"
	"github.com/fractal-lba/nbeval/pkg/text"
)

const tracerName = "nbeval/pipeline"

// Runner executes evaluation runs. Logger, Metrics and Cache are optional.
type Runner struct {
	Config  Config
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Cache   *cache.TokenCache
}

// New returns a Runner with cfg and no optional collaborators.
func New(cfg Config) *Runner {
	return &Runner{Config: cfg}
}

func (r *Runner) logf(format string, args ...any) {
	if r.Logger != nil {
		r.Logger.Printf(format, args...)
	}
}

// Fingerprint identifies a run over docs with the runner's config.
func (r *Runner) Fingerprint(docs []corpus.Document) (string, error) {
	fp := make([]fingerprint.Document, len(docs))
	for i, d := range docs {
		fp[i] = fingerprint.Document{ID: d.ID, Label: d.Label, Text: d.Text}
	}
	return fingerprint.Compute(fp, r.Config.Params())
}

// Run evaluates every configured representation over docs.
//
// The holdout split and the k-fold partition are drawn once from the labels
// and shared by all representations, so their results are comparable.
func (r *Runner) Run(ctx context.Context, docs []corpus.Document) (*Report, error) {
	start := time.Now()
	report, err := r.run(ctx, docs)

	status := "ok"
	if err != nil {
		status = "error"
	}
	r.Metrics.RunFinished(status, time.Since(start).Seconds())
	return report, err
}

func (r *Runner) run(ctx context.Context, docs []corpus.Document) (*Report, error) {
	cfg := r.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	classes, err := corpus.Validate(docs)
	if err != nil {
		return nil, err
	}
	labels, err := classes.Encode(corpus.Labels(docs))
	if err != nil {
		return nil, err
	}

	positive := 1
	if cfg.Positive != "" {
		idx, ok := classes.Index(cfg.Positive)
		if !ok {
			return nil, fmt.Errorf("positive class: %w: %q", corpus.ErrUnknownLabel, cfg.Positive)
		}
		positive = idx
	}

	fp, err := r.Fingerprint(docs)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:       uuid.NewString(),
		Fingerprint: fp,
		CreatedAt:   time.Now().UTC(),
		Documents:   len(docs),
		Classes:     classes,
		ClassCounts: corpus.Counts(labels),
		Positive:    classes.Name(positive),
		Config:      cfg,
	}

	ctx, span := otel.StartSpan(ctx, tracerName, "pipeline.run", otel.RunAttributes(report.RunID, fp, len(docs))...)
	defer span.End()

	holdout, err := split.Stratified(labels, cfg.TrainFraction, cfg.Seed)
	if err != nil {
		otel.RecordError(span, err, "holdout split")
		return nil, err
	}
	folds, err := split.KFold(labels, cfg.Folds, cfg.Seed)
	if err != nil {
		otel.RecordError(span, err, "k-fold split")
		return nil, err
	}

	tokens, cacheInfo := r.tokenize(docs)
	report.TokenCache = cacheInfo

	r.logf("Run %s: %d documents (%s=%d, %s=%d), positive class %q",
		report.RunID, len(docs), classes[0], report.ClassCounts[0], classes[1], report.ClassCounts[1], report.Positive)

	harness := cv.Harness{Alpha: cfg.Alpha, Positive: positive, Jobs: cfg.Jobs}
	matrices := newMatrices(cfg, tokens)

	for _, rep := range cfg.Representations {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m, err := matrices.get(rep)
		if err != nil {
			if errors.Is(err, dtm.ErrEmptyVocabulary) {
				r.Metrics.EmptyVocab(string(rep))
			}
			otel.RecordError(span, err, "build matrix")
			return nil, fmt.Errorf("%s: %w", rep, err)
		}

		res, err := r.evaluate(ctx, harness, rep, m, labels, holdout, folds, classes)
		if err != nil {
			otel.RecordError(span, err, "evaluate")
			return nil, fmt.Errorf("%s: %w", rep, err)
		}
		report.Results = append(report.Results, *res)
	}

	return report, nil
}

func (r *Runner) tokenize(docs []corpus.Document) ([][]string, *TokenCacheInfo) {
	cfg := r.Config
	tok := text.NewTokenizer(cfg.StopWords, cfg.Stemming, 2)

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}

	if r.Cache == nil || r.Cache.Tokenizer().Signature() != tok.Signature() {
		out := make([][]string, len(texts))
		for i, t := range texts {
			out[i] = tok.Tokenize(t)
		}
		return out, nil
	}

	before := r.Cache.Stats()
	out := r.Cache.TokenizeAll(texts)
	after := r.Cache.Stats()

	info := &TokenCacheInfo{
		Hits:   after.Hits - before.Hits,
		Misses: after.Misses - before.Misses,
	}
	r.Metrics.TokenCache(info.Hits, info.Misses)
	return out, info
}

func (r *Runner) evaluate(ctx context.Context, h cv.Harness, rep Representation, m *dtm.Matrix,
	labels []int, holdout split.Holdout, folds []split.Fold, classes corpus.Classes) (*Result, error) {
	ctx, span := otel.StartSpan(ctx, tracerName, "pipeline.representation",
		otel.RepresentationAttributes(string(rep), m.Cols())...)
	defer span.End()

	res := &Result{
		Representation: rep,
		VocabularySize: m.Cols(),
		NonZero:        m.NonZero(),
	}
	for i := 0; i < m.Rows(); i++ {
		if len(m.Row(i)) == 0 {
			res.EmptyRows++
		}
	}

	hr, err := h.EvaluateFold(ctx, m, labels, split.Fold{Train: holdout.Train, Test: holdout.Test})
	if err != nil {
		return nil, fmt.Errorf("holdout: %w", err)
	}
	res.Holdout = Holdout{
		FoldResult: hr,
		Baseline:   eval.MajorityBaseline(pick(labels, holdout.Train), pick(labels, holdout.Test)),
	}
	if hr.Degraded {
		r.logf("%s holdout degraded: %s", rep, hr.Reason)
	}

	cvRes, err := h.Run(ctx, m, labels, folds)
	if err != nil {
		return nil, fmt.Errorf("cross-validation: %w", err)
	}
	res.CrossValidation = cvRes

	r.Metrics.Representation(string(rep), res.VocabularySize, hr.Metrics.Accuracy.Float())
	for _, f := range cvRes.Folds {
		r.Metrics.Fold(string(rep), f.Metrics.Accuracy.Float(), f.Degraded)
		if f.Degraded {
			r.logf("%s fold %d degraded: %s", rep, f.Index, f.Reason)
		}
	}

	if r.Config.TopTerms > 0 {
		res.TopTerms = make(map[string][]dtm.TermWeight, 2)
		for c := 0; c < 2; c++ {
			res.TopTerms[classes.Name(c)] = dtm.TopTerms(m, labels, c, r.Config.TopTerms)
		}
	}

	r.logf("%s: %d terms, holdout accuracy %s (baseline %s), %d-fold accuracy %s ± %s",
		rep, res.VocabularySize, hr.Metrics.Accuracy, res.Holdout.Baseline,
		len(folds), cvRes.Accuracy.Mean, cvRes.Accuracy.StdDev)

	return res, nil
}

// matrices builds each feature matrix at most once; TFIDF reuses the
// bag-of-words counts.
type matrices struct {
	cfg    Config
	tokens [][]string
	built  map[Representation]*dtm.Matrix
}

func newMatrices(cfg Config, tokens [][]string) *matrices {
	return &matrices{cfg: cfg, tokens: tokens, built: make(map[Representation]*dtm.Matrix)}
}

func (ms *matrices) get(rep Representation) (*dtm.Matrix, error) {
	if m, ok := ms.built[rep]; ok {
		return m, nil
	}

	var (
		m   *dtm.Matrix
		err error
	)
	switch rep {
	case BagOfWords:
		m, err = dtm.NewBuilder(dtm.Unigrams{}, ms.cfg.BagOfWordsTrim).Build(ms.tokens)
	case TFIDF:
		var counts *dtm.Matrix
		counts, err = ms.get(BagOfWords)
		if err == nil {
			m = dtm.TFIDF(counts)
		}
	case Bigram:
		m, err = dtm.NewBuilder(dtm.NGrams{N: 2, Separator: text.DefaultSeparator}, ms.cfg.BigramTrim).Build(ms.tokens)
	default:
		err = fmt.Errorf("%w: unknown representation %q", ErrInvalidConfig, rep)
	}
	if err != nil {
		return nil, err
	}

	ms.built[rep] = m
	return m, nil
}

func pick(labels, idx []int) []int {
	out := make([]int, len(idx))
	for i, j := range idx {
		out[i] = labels[j]
	}
	return out
}

// Matrix builds the feature matrix of one representation over docs, with
// the encoded labels and class set. It runs no evaluation.
func (r *Runner) Matrix(docs []corpus.Document, rep Representation) (*dtm.Matrix, []int, corpus.Classes, error) {
	if !rep.valid() {
		return nil, nil, corpus.Classes{}, fmt.Errorf("%w: unknown representation %q", ErrInvalidConfig, rep)
	}
	classes, err := corpus.Validate(docs)
	if err != nil {
		return nil, nil, corpus.Classes{}, err
	}
	labels, err := classes.Encode(corpus.Labels(docs))
	if err != nil {
		return nil, nil, corpus.Classes{}, err
	}

	tokens, _ := r.tokenize(docs)
	m, err := newMatrices(r.Config, tokens).get(rep)
	if err != nil {
		return nil, nil, corpus.Classes{}, fmt.Errorf("%s: %w", rep, err)
	}
	return m, labels, classes, nil
}
