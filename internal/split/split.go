// Package split partitions document indices into stratified train/test sets.
//
// All randomness comes from the seed argument; the same labels, seed and
// parameters always produce the same partition.
package split

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

var (
	// ErrInvalidFraction is returned for a train fraction outside (0, 1).
	ErrInvalidFraction = errors.New("split: train fraction must be in (0, 1)")
	// ErrInvalidFolds is returned when k is below 2 or above the document count.
	ErrInvalidFolds = errors.New("split: fold count out of range")
	// ErrEmptyPartition is returned when a holdout split would leave no
	// training documents.
	ErrEmptyPartition = errors.New("split: holdout training set is empty")
)

// Holdout is a single train/test partition. Both sets are sorted.
type Holdout struct {
	Train []int `json:"train"`
	Test  []int `json:"test"`
}

// Fold is one cross-validation round: Test is the held-out group and Train
// the union of the others. Both sets are sorted.
type Fold struct {
	Index int   `json:"index"`
	Train []int `json:"train"`
	Test  []int `json:"test"`
}

// byClass returns the shuffled document indices of each class.
func byClass(labels []int, rng *rand.Rand) [2][]int {
	var groups [2][]int
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	for c := range groups {
		g := groups[c]
		rng.Shuffle(len(g), func(i, j int) { g[i], g[j] = g[j], g[i] })
	}
	return groups
}

func checkLabels(labels []int) error {
	for i, l := range labels {
		if l != 0 && l != 1 {
			return fmt.Errorf("split: label %d at %d is not a class index", l, i)
		}
	}
	return nil
}

// Stratified draws floor(trainFraction * n_c) training documents from each
// class c; the remainder forms the test set. It fails with ErrEmptyPartition
// when every class rounds down to zero training documents.
func Stratified(labels []int, trainFraction float64, seed int64) (Holdout, error) {
	if !(trainFraction > 0 && trainFraction < 1) {
		return Holdout{}, fmt.Errorf("%w: %v", ErrInvalidFraction, trainFraction)
	}
	if err := checkLabels(labels); err != nil {
		return Holdout{}, err
	}

	rng := rand.New(rand.NewSource(seed))
	groups := byClass(labels, rng)

	var h Holdout
	for _, g := range groups {
		nTrain := int(math.Floor(trainFraction * float64(len(g))))
		h.Train = append(h.Train, g[:nTrain]...)
		h.Test = append(h.Test, g[nTrain:]...)
	}
	if len(h.Train) == 0 {
		return Holdout{}, fmt.Errorf("%w: train fraction %v over class sizes %d and %d",
			ErrEmptyPartition, trainFraction, len(groups[0]), len(groups[1]))
	}
	sort.Ints(h.Train)
	sort.Ints(h.Test)
	return h, nil
}

// KFold deals each class's shuffled documents round-robin over k groups,
// continuing from where the previous class stopped, so group sizes differ by
// at most one and each group mirrors the global class ratio. Every document
// is in exactly one Test set.
func KFold(labels []int, k int, seed int64) ([]Fold, error) {
	if k < 2 || k > len(labels) {
		return nil, fmt.Errorf("%w: k=%d with %d documents", ErrInvalidFolds, k, len(labels))
	}
	if err := checkLabels(labels); err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	groups := byClass(labels, rng)

	assign := make([]int, len(labels))
	pos := 0
	for _, g := range groups {
		for _, idx := range g {
			assign[idx] = pos % k
			pos++
		}
	}

	folds := make([]Fold, k)
	for f := range folds {
		folds[f].Index = f
	}
	for idx, f := range assign {
		folds[f].Test = append(folds[f].Test, idx)
		for other := range folds {
			if other != f {
				folds[other].Train = append(folds[other].Train, idx)
			}
		}
	}
	return folds, nil
}
