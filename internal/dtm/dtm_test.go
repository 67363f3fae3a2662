package dtm

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func sampleDocs() [][]string {
	return [][]string{
		{"apple", "apple", "banana"},
		{"banana", "cherry"},
		{},
		{"apple", "cherry", "cherry", "date"},
	}
}

func TestBuildTrimsAndOrdersVocabulary(t *testing.T) {
	m, err := NewBuilder(Unigrams{}, TrimPolicy{MinTermFreq: 2}).Build(sampleDocs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	vocab := m.Vocabulary()
	if got := vocab.Terms(); !reflect.DeepEqual(got, []string{"apple", "banana", "cherry"}) {
		t.Errorf("terms = %v", got)
	}
	if vocab.TermFreq(0) != 3 || vocab.DocFreq(0) != 2 {
		t.Errorf("apple stats = tf %d df %d, want 3/2", vocab.TermFreq(0), vocab.DocFreq(0))
	}

	want := [][]float64{
		{2, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
		{1, 0, 2},
	}
	if got := m.Dense(); !reflect.DeepEqual(got, want) {
		t.Errorf("dense = %v, want %v", got, want)
	}
	if m.NonZero() != 6 {
		t.Errorf("NonZero = %d, want 6", m.NonZero())
	}
}

func TestBuildPreservesRowCount(t *testing.T) {
	docs := sampleDocs()
	docs = append(docs, []string{"unique"}, nil)

	m, err := NewBuilder(nil, TrimPolicy{MinTermFreq: 2}).Build(docs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if m.Rows() != len(docs) {
		t.Fatalf("rows = %d, want %d", m.Rows(), len(docs))
	}
	for _, i := range []int{2, 4, 5} {
		if len(m.Row(i)) != 0 {
			t.Errorf("row %d should be all-zero, got %v", i, m.Row(i))
		}
	}
}

func TestBuildEmptyVocabulary(t *testing.T) {
	_, err := NewBuilder(Unigrams{}, TrimPolicy{MinDocFreq: 3}).Build(sampleDocs())
	if !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("err = %v, want ErrEmptyVocabulary", err)
	}

	_, err = NewBuilder(Unigrams{}, TrimPolicy{}).Build([][]string{{}, {}})
	if !errors.Is(err, ErrEmptyVocabulary) {
		t.Errorf("all-empty docs: err = %v, want ErrEmptyVocabulary", err)
	}

	if _, err := NewBuilder(Unigrams{}, TrimPolicy{}).Build(nil); !errors.Is(err, ErrEmptyCorpus) {
		t.Errorf("err = %v, want ErrEmptyCorpus", err)
	}
}

func TestBuildBigrams(t *testing.T) {
	docs := [][]string{{"a", "b", "c"}, {"a", "b"}, {"z"}}
	m, err := NewBuilder(NGrams{N: 2}, TrimPolicy{}).Build(docs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if got := m.Vocabulary().Terms(); !reflect.DeepEqual(got, []string{"a_b", "b_c"}) {
		t.Errorf("terms = %v", got)
	}
	want := [][]float64{{1, 1}, {1, 0}, {0, 0}}
	if got := m.Dense(); !reflect.DeepEqual(got, want) {
		t.Errorf("dense = %v, want %v", got, want)
	}
}

func TestTransformIgnoresUnseenTerms(t *testing.T) {
	b := NewBuilder(Unigrams{}, TrimPolicy{MinTermFreq: 2})
	m, err := b.Build(sampleDocs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	out := b.Transform(m.Vocabulary(), [][]string{{"apple", "kiwi", "kiwi"}})
	if out.Cols() != 3 {
		t.Errorf("cols = %d, want 3", out.Cols())
	}
	if got := out.Dense()[0]; !reflect.DeepEqual(got, []float64{1, 0, 0}) {
		t.Errorf("row = %v, want [1 0 0]", got)
	}
	if _, ok := m.Vocabulary().Index("kiwi"); ok {
		t.Error("vocabulary must not grow on Transform")
	}
}

func TestRealign(t *testing.T) {
	m, err := NewBuilder(Unigrams{}, TrimPolicy{MinTermFreq: 2}).Build(sampleDocs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	target := NewVocabulary([]string{"banana", "date", "apple"})
	out := Realign(m, target)

	if out.Vocabulary() != target {
		t.Error("realigned matrix should use the target vocabulary")
	}
	want := [][]float64{
		{1, 0, 2},
		{1, 0, 0},
		{0, 0, 0},
		{0, 0, 1},
	}
	if got := out.Dense(); !reflect.DeepEqual(got, want) {
		t.Errorf("dense = %v, want %v", got, want)
	}
}

func TestVocabularyEqual(t *testing.T) {
	a := NewVocabulary([]string{"x", "y"})
	b := NewVocabulary([]string{"x", "y"})
	c := NewVocabulary([]string{"y", "x"})

	if !a.Equal(b) {
		t.Error("same terms in same order should be equal")
	}
	if a.Equal(c) {
		t.Error("different column order should not be equal")
	}
	if a.Equal(nil) {
		t.Error("nil vocabulary should not be equal")
	}
}

func TestSubset(t *testing.T) {
	m, err := NewBuilder(Unigrams{}, TrimPolicy{MinTermFreq: 2}).Build(sampleDocs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	sub := m.Subset([]int{3, 0})
	if sub.Rows() != 2 || sub.Vocabulary() != m.Vocabulary() {
		t.Fatalf("subset shape = %d rows", sub.Rows())
	}
	if sub.At(0, 2) != 2 || sub.At(1, 0) != 2 {
		t.Errorf("subset rows out of order: %v", sub.Dense())
	}
}

func TestTFIDF(t *testing.T) {
	docs := [][]string{{"x", "y"}, {"x"}, {"x", "y", "y"}}
	m, err := NewBuilder(Unigrams{}, TrimPolicy{}).Build(docs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	w := TFIDF(m)
	if w.Rows() != m.Rows() || w.Cols() != m.Cols() {
		t.Fatalf("shape changed: %dx%d -> %dx%d", m.Rows(), m.Cols(), w.Rows(), w.Cols())
	}

	idfY := math.Log(3.0 / 2.0)
	want := [][]float64{{0, idfY}, {0, 0}, {0, 2 * idfY}}
	got := w.Dense()
	for i := range want {
		for j := range want[i] {
			if math.Abs(got[i][j]-want[i][j]) > 1e-12 {
				t.Errorf("tfidf[%d][%d] = %v, want %v", i, j, got[i][j], want[i][j])
			}
			if math.IsNaN(got[i][j]) {
				t.Errorf("tfidf[%d][%d] is NaN", i, j)
			}
		}
	}
}

func TestIDFNonNegative(t *testing.T) {
	m, err := NewBuilder(Unigrams{}, TrimPolicy{}).Build(sampleDocs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	for j, v := range ComputeIDF(m) {
		if v < 0 || math.IsNaN(v) {
			t.Errorf("idf[%d] = %v", j, v)
		}
	}
}

func TestTopTerms(t *testing.T) {
	m, err := NewBuilder(Unigrams{}, TrimPolicy{MinTermFreq: 2}).Build(sampleDocs())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	labels := []int{0, 1, 0, 1}

	got := TopTerms(m, labels, 1, 2)
	want := []TermWeight{{Term: "cherry", Weight: 3}, {Term: "apple", Weight: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopTerms(class 1) = %v, want %v", got, want)
	}

	got = TopTerms(m, labels, 0, 0)
	want = []TermWeight{{Term: "apple", Weight: 2}, {Term: "banana", Weight: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TopTerms(class 0) = %v, want %v", got, want)
	}
}
