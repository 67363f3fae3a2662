package dtm

import "sort"

// Cell is a non-zero matrix entry.
type Cell struct {
	Col   int
	Value float64
}

// Row is a sparse matrix row, sorted by column.
type Row []Cell

// Get returns the value at col, or 0.
func (r Row) Get(col int) float64 {
	i := sort.Search(len(r), func(i int) bool { return r[i].Col >= col })
	if i < len(r) && r[i].Col == col {
		return r[i].Value
	}
	return 0
}

// Sum returns the total mass of the row.
func (r Row) Sum() float64 {
	var s float64
	for _, c := range r {
		s += c.Value
	}
	return s
}

// Matrix is a sparse document-term matrix: one row per document, one column
// per vocabulary term. Entries are non-negative counts or weights.
type Matrix struct {
	vocab *Vocabulary
	rows  []Row
}

// NewMatrix wraps rows over vocab. Rows must be sorted by column and
// reference only columns of vocab.
func NewMatrix(vocab *Vocabulary, rows []Row) *Matrix {
	return &Matrix{vocab: vocab, rows: rows}
}

// Vocabulary returns the column space of the matrix.
func (m *Matrix) Vocabulary() *Vocabulary {
	return m.vocab
}

// Rows returns the document count.
func (m *Matrix) Rows() int {
	return len(m.rows)
}

// Cols returns the vocabulary size.
func (m *Matrix) Cols() int {
	return m.vocab.Len()
}

// Row returns row i. The returned slice must not be modified.
func (m *Matrix) Row(i int) Row {
	return m.rows[i]
}

// At returns the entry at (i, j).
func (m *Matrix) At(i, j int) float64 {
	return m.rows[i].Get(j)
}

// NonZero returns the number of stored entries.
func (m *Matrix) NonZero() int {
	n := 0
	for _, r := range m.rows {
		n += len(r)
	}
	return n
}

// Subset returns the matrix restricted to the given rows, in the given order.
// Rows are shared, not copied.
func (m *Matrix) Subset(idx []int) *Matrix {
	rows := make([]Row, len(idx))
	for i, j := range idx {
		rows[i] = m.rows[j]
	}
	return &Matrix{vocab: m.vocab, rows: rows}
}

// DocFreq returns, per column, the number of rows with a non-zero entry.
func (m *Matrix) DocFreq() []int {
	df := make([]int, m.Cols())
	for _, r := range m.rows {
		for _, c := range r {
			if c.Value != 0 {
				df[c.Col]++
			}
		}
	}
	return df
}

// Dense expands the matrix to a row-major slice. Intended for small matrices and tests.
func (m *Matrix) Dense() [][]float64 {
	out := make([][]float64, len(m.rows))
	for i, r := range m.rows {
		out[i] = make([]float64, m.Cols())
		for _, c := range r {
			out[i][c.Col] = c.Value
		}
	}
	return out
}

// Realign maps m onto the columns of vocab. Terms of m missing from vocab are
// dropped; terms of vocab missing from m are zero.
func Realign(m *Matrix, vocab *Vocabulary) *Matrix {
	if m.vocab.Equal(vocab) {
		return &Matrix{vocab: vocab, rows: m.rows}
	}

	colMap := make([]int, m.Cols())
	for j := range colMap {
		colMap[j] = -1
		if k, ok := vocab.Index(m.vocab.Term(j)); ok {
			colMap[j] = k
		}
	}

	rows := make([]Row, len(m.rows))
	for i, r := range m.rows {
		out := make(Row, 0, len(r))
		for _, c := range r {
			if k := colMap[c.Col]; k >= 0 {
				out = append(out, Cell{Col: k, Value: c.Value})
			}
		}
		sort.Slice(out, func(a, b int) bool { return out[a].Col < out[b].Col })
		rows[i] = out
	}
	return &Matrix{vocab: vocab, rows: rows}
}
