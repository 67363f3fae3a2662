package text

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// DefaultSeparator joins the members of an n-gram into one compound term.
const DefaultSeparator = "_"

// Tokenizer turns raw document text into normalized term sequences and
// derives n-gram term sequences from them.
type Tokenizer struct {
	StopWords map[string]bool
	Stemming  bool
	NGramSize int    // Default: 2 (bigrams)
	Separator string // Default: "_"
}

// NewTokenizer creates a new tokenizer with specified configuration
func NewTokenizer(useStopWords, useStemming bool, ngramSize int) *Tokenizer {
	var stopWords map[string]bool
	if useStopWords {
		stopWords = DefaultStopWords()
	}

	if ngramSize <= 0 {
		ngramSize = 2
	}

	return &Tokenizer{
		StopWords: stopWords,
		Stemming:  useStemming,
		NGramSize: ngramSize,
		Separator: DefaultSeparator,
	}
}

// Tokenize segments text into word-like units, drops numeric and
// punctuation-only units, lowercases, removes stop words and stems.
//
// The result never contains empty strings; it is empty (not nil) when
// nothing survives.
func (t *Tokenizer) Tokenize(text string) []string {
	tokens := []string{}
	for _, unit := range segment(norm.NFKC.String(text)) {
		if isNumeric(unit) {
			continue
		}
		word := strings.ToLower(unit)
		if t.StopWords != nil && t.StopWords[word] {
			continue
		}
		if t.Stemming {
			word = Stem(word)
		}
		if word == "" {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// NGrams joins each run of NGramSize contiguous tokens into a single term,
// preserving order. A sequence shorter than NGramSize yields no terms.
func (t *Tokenizer) NGrams(tokens []string) []string {
	n := t.NGramSize
	if n <= 0 {
		n = 2
	}
	sep := t.Separator
	if sep == "" {
		sep = DefaultSeparator
	}
	return NGrams(tokens, n, sep)
}

// Signature identifies the tokenizer configuration, for cache keys. The stop
// list contributes a digest of its sorted words.
func (t *Tokenizer) Signature() string {
	return fmt.Sprintf("stop=%s;stem=%t;n=%d;sep=%q", stopDigest(t.StopWords), t.Stemming, t.NGramSize, t.Separator)
}

func stopDigest(stopWords map[string]bool) string {
	words := make([]string, 0, len(stopWords))
	for w, on := range stopWords {
		if on {
			words = append(words, w)
		}
	}
	if len(words) == 0 {
		return "none"
	}
	sort.Strings(words)

	h := sha256.New()
	for _, w := range words {
		h.Write([]byte(w))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// NGrams returns the contiguous n-grams of tokens joined by sep.
// The result has max(0, len(tokens)-n+1) elements.
func NGrams(tokens []string, n int, sep string) []string {
	if n <= 0 || len(tokens) < n {
		return []string{}
	}

	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], sep))
	}
	return grams
}

// segment splits text into runs of letters, digits and combining marks.
// An apostrophe is kept only between two letters ("don't").
func segment(text string) []string {
	runes := []rune(text)
	var units []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			units = append(units, current.String())
			current.Reset()
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsMark(r):
			current.WriteRune(r)
		case isApostrophe(r) && i > 0 && i+1 < len(runes) &&
			unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]):
			current.WriteRune('\'')
		default:
			flush()
		}
	}
	flush()

	return units
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}

func isNumeric(unit string) bool {
	for _, r := range unit {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
