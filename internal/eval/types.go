// Package eval computes confusion matrices and classification metrics for
// binary predictions. Undefined ratios are NaN Scores, never zero.
package eval

import (
	"encoding/json"
	"fmt"
	"math"
)

// Score is a metric value in [0, 1], or NaN when its denominator is zero.
type Score float64

// Undefined returns the undefined Score.
func Undefined() Score {
	return Score(math.NaN())
}

// Defined reports whether s holds a value.
func (s Score) Defined() bool {
	return !math.IsNaN(float64(s))
}

// Float returns s as a float64 (NaN when undefined).
func (s Score) Float() float64 {
	return float64(s)
}

// String formats s with four decimals, or "undefined".
func (s Score) String() string {
	if !s.Defined() {
		return "undefined"
	}
	return fmt.Sprintf("%.4f", float64(s))
}

// MarshalJSON encodes undefined scores as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.Defined() {
		return []byte("null"), nil
	}
	return json.Marshal(float64(s))
}

// UnmarshalJSON decodes null as undefined.
func (s *Score) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = Undefined()
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*s = Score(f)
	return nil
}

// ratio returns num/den, undefined when den is zero.
func ratio(num, den int) Score {
	if den == 0 {
		return Undefined()
	}
	return Score(float64(num) / float64(den))
}

// ConfusionMatrix counts (predicted, actual) outcomes relative to the
// positive class.
type ConfusionMatrix struct {
	Positive       int `json:"positive"`
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	FalseNegatives int `json:"false_negatives"`
	TrueNegatives  int `json:"true_negatives"`
}

// Metrics are the derived scores of a confusion matrix.
type Metrics struct {
	Accuracy  Score `json:"accuracy"`  // (TP + TN) / total
	Precision Score `json:"precision"` // TP / (TP + FP)
	Recall    Score `json:"recall"`    // TP / (TP + FN)
	F1        Score `json:"f1"`        // 2PR / (P + R)
}

// Summary aggregates one metric across folds. Mean, StdDev, Min and Max
// are taken over defined values only; Undefined counts the rest.
type Summary struct {
	Mean      Score `json:"mean"`
	StdDev    Score `json:"std_dev"`
	Min       Score `json:"min"`
	Max       Score `json:"max"`
	Defined   int   `json:"defined"`
	Undefined int   `json:"undefined"`
}
