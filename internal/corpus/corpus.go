// Package corpus holds the labeled documents fed to the pipeline and the
// binary class set they are drawn from.
package corpus

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotBinary is returned when a corpus does not contain exactly two labels.
	ErrNotBinary = errors.New("corpus: exactly two class labels required")
	// ErrUnknownLabel is returned when a label is outside the class set.
	ErrUnknownLabel = errors.New("corpus: unknown class label")
	// ErrDuplicateID is returned when two documents share an identifier.
	ErrDuplicateID = errors.New("corpus: duplicate document id")
)

// Document is a single labeled text. It is not modified after ingestion.
type Document struct {
	ID    string `json:"id"`
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Classes is the ordered pair of class labels. Index 0 is the
// lexicographically smaller label and wins prediction ties.
type Classes [2]string

// NewClasses derives the class set from a label column.
func NewClasses(labels []string) (Classes, error) {
	seen := make(map[string]bool, 2)
	for _, l := range labels {
		seen[l] = true
	}
	if len(seen) != 2 {
		return Classes{}, fmt.Errorf("%w: found %d distinct", ErrNotBinary, len(seen))
	}

	names := make([]string, 0, 2)
	for l := range seen {
		names = append(names, l)
	}
	sort.Strings(names)
	return Classes{names[0], names[1]}, nil
}

// Index returns the position of label in the class set.
func (c Classes) Index(label string) (int, bool) {
	switch label {
	case c[0]:
		return 0, true
	case c[1]:
		return 1, true
	}
	return -1, false
}

// Encode maps labels onto class indices.
func (c Classes) Encode(labels []string) ([]int, error) {
	out := make([]int, len(labels))
	for i, l := range labels {
		idx, ok := c.Index(l)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLabel, l)
		}
		out[i] = idx
	}
	return out, nil
}

// Name returns the label at index i.
func (c Classes) Name(i int) string {
	return c[i]
}

// Validate checks identifiers are unique and the corpus is strictly binary.
// It returns the class set on success.
func Validate(docs []Document) (Classes, error) {
	ids := make(map[string]bool, len(docs))
	labels := make([]string, len(docs))
	for i, d := range docs {
		if ids[d.ID] {
			return Classes{}, fmt.Errorf("%w: %q", ErrDuplicateID, d.ID)
		}
		ids[d.ID] = true
		labels[i] = d.Label
	}
	return NewClasses(labels)
}

// Labels returns the label column of docs.
func Labels(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Label
	}
	return out
}

// Counts returns the number of documents in each class.
func Counts(labels []int) [2]int {
	var counts [2]int
	for _, l := range labels {
		counts[l]++
	}
	return counts
}
