package dtm

import "math"

// IDF holds one inverse document frequency per vocabulary column.
type IDF []float64

// ComputeIDF derives idf = ln(N / df) from the rows of m, where N is the row
// count and df the number of rows containing the term. Columns no row
// contains get 0. A term present in every row also gets exactly 0.
func ComputeIDF(m *Matrix) IDF {
	n := float64(m.Rows())
	df := m.DocFreq()
	idf := make(IDF, len(df))
	for j, d := range df {
		if d == 0 {
			continue
		}
		idf[j] = math.Log(n / float64(d))
	}
	return idf
}

// Apply returns a matrix of the same shape with every entry multiplied by
// its column weight. Entries that become zero are not stored.
func (idf IDF) Apply(m *Matrix) *Matrix {
	rows := make([]Row, m.Rows())
	for i, r := range m.rows {
		out := make(Row, 0, len(r))
		for _, c := range r {
			if w := c.Value * idf[c.Col]; w != 0 {
				out = append(out, Cell{Col: c.Col, Value: w})
			}
		}
		rows[i] = out
	}
	return &Matrix{vocab: m.vocab, rows: rows}
}

// TFIDF reweights a raw-count matrix by term frequency times inverse
// document frequency.
func TFIDF(m *Matrix) *Matrix {
	return ComputeIDF(m).Apply(m)
}
