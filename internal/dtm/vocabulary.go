// Package dtm builds document-term matrices over a trimmed, frozen vocabulary.
package dtm

// Vocabulary is the ordered set of retained terms. Column i of every matrix
// built over it holds term i. A Vocabulary is never modified after Build.
type Vocabulary struct {
	terms    []string
	index    map[string]int
	termFreq []int
	docFreq  []int
}

func newVocabulary(terms []string, termFreq, docFreq []int) *Vocabulary {
	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}
	return &Vocabulary{
		terms:    terms,
		index:    index,
		termFreq: termFreq,
		docFreq:  docFreq,
	}
}

// Len returns the number of terms.
func (v *Vocabulary) Len() int {
	return len(v.terms)
}

// Term returns the term at column i.
func (v *Vocabulary) Term(i int) string {
	return v.terms[i]
}

// Index returns the column of term.
func (v *Vocabulary) Index(term string) (int, bool) {
	i, ok := v.index[term]
	return i, ok
}

// Terms returns a copy of the terms in column order.
func (v *Vocabulary) Terms() []string {
	out := make([]string, len(v.terms))
	copy(out, v.terms)
	return out
}

// TermFreq returns the corpus-wide occurrence count of term i at build time.
func (v *Vocabulary) TermFreq(i int) int {
	return v.termFreq[i]
}

// DocFreq returns the number of documents containing term i at build time.
func (v *Vocabulary) DocFreq(i int) int {
	return v.docFreq[i]
}

// Equal reports whether both vocabularies assign the same terms to the same columns.
func (v *Vocabulary) Equal(o *Vocabulary) bool {
	if v == o {
		return true
	}
	if v == nil || o == nil || len(v.terms) != len(o.terms) {
		return false
	}
	for i := range v.terms {
		if v.terms[i] != o.terms[i] {
			return false
		}
	}
	return true
}
