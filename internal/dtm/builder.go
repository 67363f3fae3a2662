package dtm

import (
	"errors"
	"fmt"
	"sort"

	"github.com/fractal-lba/nbeval/pkg/text"
)

var (
	// ErrEmptyVocabulary is returned when trimming removes every term.
	ErrEmptyVocabulary = errors.New("dtm: vocabulary is empty after trimming")
	// ErrEmptyCorpus is returned when there are no documents to build from.
	ErrEmptyCorpus = errors.New("dtm: no documents")
)

// TermStrategy turns a token sequence into the terms counted by the builder.
type TermStrategy interface {
	Name() string
	Terms(tokens []string) []string
}

// Unigrams counts each token as a term.
type Unigrams struct{}

// Name implements TermStrategy.
func (Unigrams) Name() string { return "unigram" }

// Terms implements TermStrategy.
func (Unigrams) Terms(tokens []string) []string { return tokens }

// NGrams counts contiguous token runs of length N joined by Separator.
type NGrams struct {
	N         int
	Separator string
}

// Name implements TermStrategy.
func (g NGrams) Name() string { return fmt.Sprintf("%d-gram", g.N) }

// Terms implements TermStrategy.
func (g NGrams) Terms(tokens []string) []string {
	sep := g.Separator
	if sep == "" {
		sep = text.DefaultSeparator
	}
	return text.NGrams(tokens, g.N, sep)
}

// TrimPolicy drops terms below a corpus-wide occurrence count or document
// count. Zero thresholds keep every term.
type TrimPolicy struct {
	MinTermFreq int `json:"min_term_freq"`
	MinDocFreq  int `json:"min_doc_freq"`
}

func (p TrimPolicy) keep(tf, df int) bool {
	return tf >= p.MinTermFreq && df >= p.MinDocFreq
}

// Builder derives a vocabulary and a raw-count matrix from token sequences.
type Builder struct {
	Strategy TermStrategy
	Trim     TrimPolicy
}

// NewBuilder creates a builder. A nil strategy counts unigrams.
func NewBuilder(strategy TermStrategy, trim TrimPolicy) Builder {
	if strategy == nil {
		strategy = Unigrams{}
	}
	return Builder{Strategy: strategy, Trim: trim}
}

func (b Builder) strategy() TermStrategy {
	if b.Strategy == nil {
		return Unigrams{}
	}
	return b.Strategy
}

// Build counts terms per document, trims the vocabulary and returns the
// count matrix. Columns are ordered lexicographically by term. Every
// document gets a row, including those left with no retained terms.
func (b Builder) Build(docs [][]string) (*Matrix, error) {
	if len(docs) == 0 {
		return nil, ErrEmptyCorpus
	}

	strategy := b.strategy()
	counts := make([]map[string]int, len(docs))
	termFreq := make(map[string]int)
	docFreq := make(map[string]int)

	for i, tokens := range docs {
		c := make(map[string]int)
		for _, term := range strategy.Terms(tokens) {
			c[term]++
		}
		for term, n := range c {
			termFreq[term] += n
			docFreq[term]++
		}
		counts[i] = c
	}

	var terms []string
	for term, tf := range termFreq {
		if b.Trim.keep(tf, docFreq[term]) {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: %d candidate %s terms, min term freq %d, min doc freq %d",
			ErrEmptyVocabulary, len(termFreq), strategy.Name(), b.Trim.MinTermFreq, b.Trim.MinDocFreq)
	}
	sort.Strings(terms)

	tf := make([]int, len(terms))
	df := make([]int, len(terms))
	for i, term := range terms {
		tf[i] = termFreq[term]
		df[i] = docFreq[term]
	}
	vocab := newVocabulary(terms, tf, df)

	return &Matrix{vocab: vocab, rows: countRows(vocab, counts)}, nil
}

// Transform builds a count matrix for docs over a frozen vocabulary.
// Terms absent from vocab are ignored, never added.
func (b Builder) Transform(vocab *Vocabulary, docs [][]string) *Matrix {
	strategy := b.strategy()
	counts := make([]map[string]int, len(docs))
	for i, tokens := range docs {
		c := make(map[string]int)
		for _, term := range strategy.Terms(tokens) {
			c[term]++
		}
		counts[i] = c
	}
	return &Matrix{vocab: vocab, rows: countRows(vocab, counts)}
}

func countRows(vocab *Vocabulary, counts []map[string]int) []Row {
	rows := make([]Row, len(counts))
	for i, c := range counts {
		row := make(Row, 0, len(c))
		for term, n := range c {
			if col, ok := vocab.Index(term); ok {
				row = append(row, Cell{Col: col, Value: float64(n)})
			}
		}
		sort.Slice(row, func(a, b int) bool { return row[a].Col < row[b].Col })
		rows[i] = row
	}
	return rows
}

// NewVocabulary creates a vocabulary with the given column order and no
// frequency statistics. Terms must be distinct.
func NewVocabulary(terms []string) *Vocabulary {
	owned := make([]string, len(terms))
	copy(owned, terms)
	return newVocabulary(owned, make([]int, len(terms)), make([]int, len(terms)))
}
