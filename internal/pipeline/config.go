package pipeline

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/fractal-lba/nbeval/internal/bayes"
	"github.com/fractal-lba/nbeval/internal/dtm"
)

// Representation names a feature space built from the token sequences.
type Representation string

const (
	BagOfWords Representation = "bow"
	TFIDF      Representation = "tfidf"
	Bigram     Representation = "bigram"
)

// Representations lists every supported feature space in report order.
var Representations = []Representation{BagOfWords, TFIDF, Bigram}

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("pipeline: invalid config")

// Config controls one evaluation run.
type Config struct {
	StopWords bool `json:"stop_words"`
	Stemming  bool `json:"stemming"`

	// BagOfWords trimming also applies to TFIDF, which reweights the same counts.
	BagOfWordsTrim dtm.TrimPolicy `json:"bow_trim"`
	BigramTrim     dtm.TrimPolicy `json:"bigram_trim"`

	TrainFraction float64 `json:"train_fraction"`
	Folds         int     `json:"folds"`
	Alpha         float64 `json:"alpha"`
	Seed          int64   `json:"seed"`

	// Positive is the label scored as the positive class. Empty selects the
	// lexicographically larger label.
	Positive string `json:"positive,omitempty"`

	Representations []Representation `json:"representations"`
	TopTerms        int              `json:"top_terms"`

	// Jobs bounds concurrent folds. It never changes results.
	Jobs int `json:"-"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		StopWords:       true,
		Stemming:        true,
		BagOfWordsTrim:  dtm.TrimPolicy{MinTermFreq: 5, MinDocFreq: 1},
		BigramTrim:      dtm.TrimPolicy{MinTermFreq: 2, MinDocFreq: 1},
		TrainFraction:   0.5,
		Folds:           10,
		Alpha:           bayes.DefaultAlpha,
		Seed:            42,
		Representations: append([]Representation(nil), Representations...),
		TopTerms:        10,
		Jobs:            runtime.GOMAXPROCS(0),
	}
}

// Validate checks ranges that would otherwise fail deep inside a run.
func (c Config) Validate() error {
	if !(c.TrainFraction > 0 && c.TrainFraction < 1) {
		return fmt.Errorf("%w: train fraction %v not in (0, 1)", ErrInvalidConfig, c.TrainFraction)
	}
	if c.Folds < 2 {
		return fmt.Errorf("%w: folds %d < 2", ErrInvalidConfig, c.Folds)
	}
	if !(c.Alpha > 0) || math.IsInf(c.Alpha, 1) {
		return fmt.Errorf("%w: alpha %v must be positive and finite", ErrInvalidConfig, c.Alpha)
	}
	for _, p := range []dtm.TrimPolicy{c.BagOfWordsTrim, c.BigramTrim} {
		if p.MinTermFreq < 0 || p.MinDocFreq < 0 {
			return fmt.Errorf("%w: negative trim threshold", ErrInvalidConfig)
		}
	}
	if c.TopTerms < 0 {
		return fmt.Errorf("%w: top terms %d < 0", ErrInvalidConfig, c.TopTerms)
	}
	if len(c.Representations) == 0 {
		return fmt.Errorf("%w: no representations", ErrInvalidConfig)
	}
	seen := make(map[Representation]bool)
	for _, r := range c.Representations {
		if !r.valid() {
			return fmt.Errorf("%w: unknown representation %q", ErrInvalidConfig, r)
		}
		if seen[r] {
			return fmt.Errorf("%w: duplicate representation %q", ErrInvalidConfig, r)
		}
		seen[r] = true
	}
	return nil
}

func (r Representation) valid() bool {
	for _, known := range Representations {
		if r == known {
			return true
		}
	}
	return false
}

// Params returns the settings that affect results, for fingerprinting.
func (c Config) Params() map[string]any {
	reps := make([]any, len(c.Representations))
	for i, r := range c.Representations {
		reps[i] = string(r)
	}
	return map[string]any{
		"stop_words":           c.StopWords,
		"stemming":             c.Stemming,
		"bow_min_term_freq":    c.BagOfWordsTrim.MinTermFreq,
		"bow_min_doc_freq":     c.BagOfWordsTrim.MinDocFreq,
		"bigram_min_term_freq": c.BigramTrim.MinTermFreq,
		"bigram_min_doc_freq":  c.BigramTrim.MinDocFreq,
		"train_fraction":       c.TrainFraction,
		"folds":                c.Folds,
		"alpha":                c.Alpha,
		"seed":                 c.Seed,
		"positive":             c.Positive,
		"representations":      reps,
		"top_terms":            c.TopTerms,
	}
}
