package dtm

import "sort"

// TermWeight is a term with its aggregated weight.
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// TopTerms returns the n heaviest terms of a class: column sums over the rows
// whose label equals class. Ties are ordered by term. Terms with zero weight
// are omitted.
func TopTerms(m *Matrix, labels []int, class, n int) []TermWeight {
	sums := make([]float64, m.Cols())
	for i, r := range m.rows {
		if labels[i] != class {
			continue
		}
		for _, c := range r {
			sums[c.Col] += c.Value
		}
	}

	var out []TermWeight
	for j, s := range sums {
		if s > 0 {
			out = append(out, TermWeight{Term: m.vocab.Term(j), Weight: s})
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Weight != out[b].Weight {
			return out[a].Weight > out[b].Weight
		}
		return out[a].Term < out[b].Term
	})

	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
