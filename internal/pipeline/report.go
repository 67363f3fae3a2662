package pipeline

import (
	"time"

	"github.com/fractal-lba/nbeval/internal/corpus"
	"github.com/fractal-lba/nbeval/internal/cv"
	"github.com/fractal-lba/nbeval/internal/dtm"
	"github.com/fractal-lba/nbeval/internal/eval"
)

// Report is the JSON-encodable outcome of one run.
type Report struct {
	RunID       string          `json:"run_id"`
	Fingerprint string          `json:"fingerprint"`
	CreatedAt   time.Time       `json:"created_at"`
	Documents   int             `json:"documents"`
	Classes     corpus.Classes  `json:"classes"`
	ClassCounts [2]int          `json:"class_counts"`
	Positive    string          `json:"positive"`
	Config      Config          `json:"config"`
	Results     []Result        `json:"results"`
	TokenCache  *TokenCacheInfo `json:"token_cache,omitempty"`
}

// Result holds everything measured for one representation.
type Result struct {
	Representation Representation `json:"representation"`
	VocabularySize int            `json:"vocabulary_size"`
	NonZero        int            `json:"non_zero"`
	EmptyRows      int            `json:"empty_rows"`

	Holdout         Holdout    `json:"holdout"`
	CrossValidation *cv.Result `json:"cross_validation"`

	// TopTerms maps each class label to its heaviest terms.
	TopTerms map[string][]dtm.TermWeight `json:"top_terms,omitempty"`
}

// Holdout is the single stratified train/test evaluation. Baseline is the
// accuracy of always predicting the training majority class.
type Holdout struct {
	cv.FoldResult
	Baseline eval.Score `json:"baseline_accuracy"`
}

// TokenCacheInfo reports tokenizer cache activity during the run.
type TokenCacheInfo struct {
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// Result returns the result for representation r, or nil.
func (rep *Report) Result(r Representation) *Result {
	for i := range rep.Results {
		if rep.Results[i].Representation == r {
			return &rep.Results[i]
		}
	}
	return nil
}
