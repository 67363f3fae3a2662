// Package bayes implements a two-class multinomial Naive Bayes classifier
// with additive smoothing, computed in log space.
package bayes

import (
	"errors"
	"fmt"
	"math"

	"github.com/fractal-lba/nbeval/internal/dtm"
)

// DefaultAlpha is Laplace smoothing.
const DefaultAlpha = 1.0

var (
	// ErrVocabularyMismatch is returned when Predict gets a matrix whose columns
	// differ from the fit-time vocabulary. Callers re-align with dtm.Realign.
	ErrVocabularyMismatch = errors.New("bayes: matrix columns do not match fit-time vocabulary")
	// ErrInvalidSmoothing is returned for a non-positive or non-finite alpha.
	ErrInvalidSmoothing = errors.New("bayes: smoothing constant must be positive and finite")
	// ErrLabelCount is returned when labels and rows disagree or no rows are given.
	ErrLabelCount = errors.New("bayes: label count does not match matrix rows")
)

// Model is a fitted classifier. It is immutable; Predict does not modify it.
type Model struct {
	vocab     *dtm.Vocabulary
	alpha     float64
	classDocs [2]int
	logPrior  [2]float64
	// logLikelihood[c][j] = log P(term j | class c)
	logLikelihood [2][]float64
}

// Prediction is the outcome for one row. Scores are unnormalized log posteriors.
type Prediction struct {
	Label  int
	Scores [2]float64
}

// Fit estimates class priors and smoothed term likelihoods from the rows of m.
// labels[i] is 0 or 1 for row i.
//
// A class with no training rows gets a log prior of -Inf, so it is never
// predicted; the model is still usable.
func Fit(m *dtm.Matrix, labels []int, alpha float64) (*Model, error) {
	if !(alpha > 0) || math.IsInf(alpha, 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSmoothing, alpha)
	}
	if len(labels) != m.Rows() || m.Rows() == 0 {
		return nil, fmt.Errorf("%w: %d labels, %d rows", ErrLabelCount, len(labels), m.Rows())
	}

	v := m.Cols()
	model := &Model{
		vocab: m.Vocabulary(),
		alpha: alpha,
	}

	var termCounts [2][]float64
	var totals [2]float64
	for c := range termCounts {
		termCounts[c] = make([]float64, v)
	}

	for i, label := range labels {
		if label != 0 && label != 1 {
			return nil, fmt.Errorf("bayes: label %d at row %d is not a class index", label, i)
		}
		model.classDocs[label]++
		for _, cell := range m.Row(i) {
			termCounts[label][cell.Col] += cell.Value
			totals[label] += cell.Value
		}
	}

	n := float64(len(labels))
	for c := 0; c < 2; c++ {
		model.logPrior[c] = math.Log(float64(model.classDocs[c]) / n)

		logDenom := math.Log(totals[c] + alpha*float64(v))
		model.logLikelihood[c] = make([]float64, v)
		for j := 0; j < v; j++ {
			model.logLikelihood[c][j] = math.Log(termCounts[c][j]+alpha) - logDenom
		}
	}

	return model, nil
}

// Predict scores every row of m. The label with the higher log posterior wins;
// ties go to class 0.
func (model *Model) Predict(m *dtm.Matrix) ([]Prediction, error) {
	if !model.vocab.Equal(m.Vocabulary()) {
		return nil, fmt.Errorf("%w: fit %d columns, got %d", ErrVocabularyMismatch, model.vocab.Len(), m.Cols())
	}

	preds := make([]Prediction, m.Rows())
	for i := range preds {
		var scores [2]float64
		for c := 0; c < 2; c++ {
			s := model.logPrior[c]
			for _, cell := range m.Row(i) {
				s += cell.Value * model.logLikelihood[c][cell.Col]
			}
			scores[c] = s
		}

		label := 0
		if scores[1] > scores[0] {
			label = 1
		}
		preds[i] = Prediction{Label: label, Scores: scores}
	}
	return preds, nil
}

// Posterior normalizes prediction scores into class probabilities.
func Posterior(p Prediction) [2]float64 {
	hi := math.Max(p.Scores[0], p.Scores[1])
	if math.IsInf(hi, -1) {
		return [2]float64{0.5, 0.5}
	}
	e0 := math.Exp(p.Scores[0] - hi)
	e1 := math.Exp(p.Scores[1] - hi)
	return [2]float64{e0 / (e0 + e1), e1 / (e0 + e1)}
}

// Labels extracts the predicted labels.
func Labels(preds []Prediction) []int {
	out := make([]int, len(preds))
	for i, p := range preds {
		out[i] = p.Label
	}
	return out
}

// Vocabulary returns the fit-time vocabulary.
func (model *Model) Vocabulary() *dtm.Vocabulary { return model.vocab }

// Alpha returns the smoothing constant.
func (model *Model) Alpha() float64 { return model.alpha }

// ClassDocs returns the number of training rows per class.
func (model *Model) ClassDocs() [2]int { return model.classDocs }

// Degenerate reports whether a class was absent from the training rows.
func (model *Model) Degenerate() bool {
	return model.classDocs[0] == 0 || model.classDocs[1] == 0
}

// LogPrior returns log P(class).
func (model *Model) LogPrior(class int) float64 { return model.logPrior[class] }

// LogLikelihood returns log P(term j | class).
func (model *Model) LogLikelihood(class, j int) float64 { return model.logLikelihood[class][j] }

// Likelihood returns P(term j | class).
func (model *Model) Likelihood(class, j int) float64 {
	return math.Exp(model.logLikelihood[class][j])
}
