package text

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		useStopWords  bool
		useStemming   bool
		expectedWords []string
	}{
		{
			name:          "simple text",
			text:          "Hello, world!",
			expectedWords: []string{"hello", "world"},
		},
		{
			name:          "with stop words filtered",
			text:          "The quick brown fox",
			useStopWords:  true,
			expectedWords: []string{"quick", "brown", "fox"},
		},
		{
			name:          "numbers dropped",
			text:          "Scale 2 4 8 16 by 3.14",
			expectedWords: []string{"scale", "by"},
		},
		{
			name:          "alphanumeric kept",
			text:          "upgrade to v2 and base64",
			useStopWords:  true,
			expectedWords: []string{"upgrade", "v2", "base64"},
		},
		{
			name:          "punctuation only",
			text:          "... --- !!! ???",
			expectedWords: []string{},
		},
		{
			name:          "unicode text (emoji)",
			text:          "Hello 😊 world 🌍",
			expectedWords: []string{"hello", "world"},
		},
		{
			name:          "contractions are stop words",
			text:          "We don't know what they’re doing",
			useStopWords:  true,
			expectedWords: []string{"know"},
		},
		{
			name:          "full pipeline",
			text:          "The 3 quick foxes, jumping!",
			useStopWords:  true,
			useStemming:   true,
			expectedWords: []string{"quick", "fox", "jump"},
		},
		{
			name:          "compatibility forms folded",
			text:          "ﬁnance Ｗｏｒｄ",
			expectedWords: []string{"finance", "word"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenizer := NewTokenizer(tt.useStopWords, tt.useStemming, 2)
			tokens := tokenizer.Tokenize(tt.text)

			if !reflect.DeepEqual(tokens, tt.expectedWords) {
				t.Errorf("Tokenize(%q)\n  got  %q\n  want %q", tt.text, tokens, tt.expectedWords)
			}
		})
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	tokenizer := NewTokenizer(true, true, 2)
	input := "Regulators approved the merger; shareholders celebrated the approval."

	first := tokenizer.Tokenize(input)
	for i := 0; i < 10; i++ {
		if got := tokenizer.Tokenize(input); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: got %q, want %q", i, got, first)
		}
	}
}

func TestNGrams(t *testing.T) {
	tests := []struct {
		name     string
		tokens   []string
		size     int
		expected []string
	}{
		{
			name:     "bigrams",
			tokens:   []string{"quick", "brown", "fox", "jump"},
			size:     2,
			expected: []string{"quick_brown", "brown_fox", "fox_jump"},
		},
		{
			name:     "trigrams",
			tokens:   []string{"quick", "brown", "fox", "jump"},
			size:     3,
			expected: []string{"quick_brown_fox", "brown_fox_jump"},
		},
		{
			name:     "single token",
			tokens:   []string{"hello"},
			size:     2,
			expected: []string{},
		},
		{
			name:     "empty tokens",
			tokens:   []string{},
			size:     2,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenizer := NewTokenizer(false, false, tt.size)
			grams := tokenizer.NGrams(tt.tokens)

			if !reflect.DeepEqual(grams, tt.expected) {
				t.Errorf("NGrams(%q) = %q, want %q", tt.tokens, grams, tt.expected)
			}
		})
	}
}

func TestNGramsLength(t *testing.T) {
	tokens := []string{"a", "b", "c", "d", "e", "f"}
	for n := 0; n <= len(tokens); n++ {
		got := NGrams(tokens[:n], 2, "_")
		want := n - 1
		if want < 0 {
			want = 0
		}
		if len(got) != want {
			t.Errorf("len(NGrams(%d tokens)) = %d, want %d", n, len(got), want)
		}
	}
}

func TestSignatureDistinguishesConfig(t *testing.T) {
	a := NewTokenizer(true, true, 2)
	b := NewTokenizer(true, false, 2)
	c := NewTokenizer(true, true, 3)

	if a.Signature() == b.Signature() || a.Signature() == c.Signature() {
		t.Errorf("signatures should differ: %q %q %q", a.Signature(), b.Signature(), c.Signature())
	}
	if a.Signature() != NewTokenizer(true, true, 2).Signature() {
		t.Error("identical configs should share a signature")
	}
}

func TestSignatureDistinguishesStopWords(t *testing.T) {
	a := NewTokenizer(false, true, 2)
	a.StopWords = map[string]bool{"the": true, "and": true}
	b := NewTokenizer(false, true, 2)
	b.StopWords = map[string]bool{"the": true, "for": true}

	if a.Signature() == b.Signature() {
		t.Errorf("equal-size stop lists share signature %q", a.Signature())
	}

	c := NewTokenizer(false, true, 2)
	c.StopWords = map[string]bool{"and": true, "the": true}
	if a.Signature() != c.Signature() {
		t.Error("same stop words should share a signature")
	}
	if a.Signature() == NewTokenizer(false, true, 2).Signature() {
		t.Error("stop list and no stop list share a signature")
	}
}
