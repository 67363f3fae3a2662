package eval

import (
	"errors"
	"fmt"
	"math"
)

// ErrLengthMismatch is returned when predicted and actual labels differ in length.
var ErrLengthMismatch = errors.New("eval: predicted and actual lengths differ")

// NewConfusionMatrix tallies predictions against ground truth. Labels are
// class indices; positive names the class counted as positive.
func NewConfusionMatrix(predicted, actual []int, positive int) (ConfusionMatrix, error) {
	if len(predicted) != len(actual) {
		return ConfusionMatrix{}, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(predicted), len(actual))
	}
	if positive != 0 && positive != 1 {
		return ConfusionMatrix{}, fmt.Errorf("eval: positive class %d is not a class index", positive)
	}

	cm := ConfusionMatrix{Positive: positive}
	for i, p := range predicted {
		predPos := p == positive
		actPos := actual[i] == positive

		switch {
		case predPos && actPos:
			cm.TruePositives++
		case predPos && !actPos:
			cm.FalsePositives++
		case !predPos && actPos:
			cm.FalseNegatives++
		default:
			cm.TrueNegatives++
		}
	}
	return cm, nil
}

// Total returns the number of evaluated documents.
func (cm ConfusionMatrix) Total() int {
	return cm.TruePositives + cm.FalsePositives + cm.FalseNegatives + cm.TrueNegatives
}

// Table returns counts indexed by [predicted class][actual class].
func (cm ConfusionMatrix) Table() [2][2]int {
	pos, neg := cm.Positive, 1-cm.Positive
	var t [2][2]int
	t[pos][pos] = cm.TruePositives
	t[pos][neg] = cm.FalsePositives
	t[neg][pos] = cm.FalseNegatives
	t[neg][neg] = cm.TrueNegatives
	return t
}

// Metrics derives accuracy, precision, recall and F1.
//
// Precision is undefined with no positive predictions, recall with no
// actual positives, accuracy with an empty matrix. F1 is undefined when
// either input is undefined or both are zero.
func (cm ConfusionMatrix) Metrics() Metrics {
	m := Metrics{
		Accuracy:  ratio(cm.TruePositives+cm.TrueNegatives, cm.Total()),
		Precision: ratio(cm.TruePositives, cm.TruePositives+cm.FalsePositives),
		Recall:    ratio(cm.TruePositives, cm.TruePositives+cm.FalseNegatives),
		F1:        Undefined(),
	}

	if m.Precision.Defined() && m.Recall.Defined() {
		p, r := float64(m.Precision), float64(m.Recall)
		if p+r > 0 {
			m.F1 = Score(2 * p * r / (p + r))
		}
	}
	return m
}

// Evaluate builds the confusion matrix and its metrics in one step.
func Evaluate(predicted, actual []int, positive int) (ConfusionMatrix, Metrics, error) {
	cm, err := NewConfusionMatrix(predicted, actual, positive)
	if err != nil {
		return ConfusionMatrix{}, Metrics{}, err
	}
	return cm, cm.Metrics(), nil
}

// MajorityBaseline is the accuracy on test of always predicting the most
// frequent training class (class 0 on a tie).
func MajorityBaseline(train, test []int) Score {
	var counts [2]int
	for _, l := range train {
		counts[l]++
	}
	majority := 0
	if counts[1] > counts[0] {
		majority = 1
	}

	correct := 0
	for _, l := range test {
		if l == majority {
			correct++
		}
	}
	return ratio(correct, len(test))
}

// Summarize aggregates scores. StdDev is the sample standard deviation and is
// undefined with fewer than two defined values.
func Summarize(values []Score) Summary {
	var defined []float64
	for _, v := range values {
		if v.Defined() {
			defined = append(defined, float64(v))
		}
	}

	s := Summary{
		Mean:      Undefined(),
		StdDev:    Undefined(),
		Min:       Undefined(),
		Max:       Undefined(),
		Defined:   len(defined),
		Undefined: len(values) - len(defined),
	}
	if len(defined) == 0 {
		return s
	}

	s.Mean = Score(mean(defined))
	lo, hi := defined[0], defined[0]
	for _, v := range defined[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	s.Min, s.Max = Score(lo), Score(hi)
	if len(defined) > 1 {
		s.StdDev = Score(math.Sqrt(variance(defined)))
	}
	return s
}

// mean computes arithmetic mean.
func mean(data []float64) float64 {
	sum := 0.0
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

// variance computes sample variance.
func variance(data []float64) float64 {
	m := mean(data)
	sumSq := 0.0
	for _, v := range data {
		diff := v - m
		sumSq += diff * diff
	}
	return sumSq / float64(len(data)-1)
}
