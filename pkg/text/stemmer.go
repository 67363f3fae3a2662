package text

import "strings"

// Stem reduces an English word to its Porter stem.
//
// Words shorter than three letters and words containing anything other than
// lowercase ASCII letters are returned unchanged.
func Stem(word string) string {
	if len(word) < 3 || !isLowerASCII(word) {
		return word
	}

	w := []byte(word)
	w = step1a(w)
	w = step1b(w)
	w = step1c(w)
	w = step2(w)
	w = step3(w)
	w = step4(w)
	w = step5(w)
	return string(w)
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 'a' || s[i] > 'z' {
			return false
		}
	}
	return true
}

// isConsonant reports whether w[i] is a consonant. 'y' counts as a consonant
// only at the start of a word or after a vowel.
func isConsonant(w []byte, i int) bool {
	switch w[i] {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	case 'y':
		if i == 0 {
			return true
		}
		return !isConsonant(w, i-1)
	}
	return true
}

// measure counts the VC sequences in w, the m of [C](VC)^m[V].
func measure(w []byte) int {
	n := len(w)
	i := 0
	for i < n && isConsonant(w, i) {
		i++
	}
	m := 0
	for {
		for i < n && !isConsonant(w, i) {
			i++
		}
		if i >= n {
			return m
		}
		for i < n && isConsonant(w, i) {
			i++
		}
		m++
	}
}

func hasVowel(w []byte) bool {
	for i := range w {
		if !isConsonant(w, i) {
			return true
		}
	}
	return false
}

func endsDoubleConsonant(w []byte) bool {
	n := len(w)
	return n >= 2 && w[n-1] == w[n-2] && isConsonant(w, n-1)
}

// endsCVC reports a consonant-vowel-consonant ending whose last letter is not w, x or y.
func endsCVC(w []byte) bool {
	n := len(w)
	if n < 3 {
		return false
	}
	if !isConsonant(w, n-3) || isConsonant(w, n-2) || !isConsonant(w, n-1) {
		return false
	}
	switch w[n-1] {
	case 'w', 'x', 'y':
		return false
	}
	return true
}

func hasSuffix(w []byte, suffix string) bool {
	return strings.HasSuffix(string(w), suffix)
}

func replaceSuffix(w []byte, suffix, repl string) []byte {
	out := make([]byte, 0, len(w)-len(suffix)+len(repl))
	out = append(out, w[:len(w)-len(suffix)]...)
	return append(out, repl...)
}

type rule struct {
	suffix string
	repl   string
}

// applyRules rewrites the first matching suffix when the remaining stem has a
// measure above minMeasure. Only the first match is considered.
func applyRules(w []byte, rules []rule, minMeasure int) []byte {
	for _, r := range rules {
		if !hasSuffix(w, r.suffix) {
			continue
		}
		if measure(w[:len(w)-len(r.suffix)]) > minMeasure {
			return replaceSuffix(w, r.suffix, r.repl)
		}
		return w
	}
	return w
}

func step1a(w []byte) []byte {
	switch {
	case hasSuffix(w, "sses"):
		return w[:len(w)-2]
	case hasSuffix(w, "ies"):
		return w[:len(w)-2]
	case hasSuffix(w, "ss"):
		return w
	case hasSuffix(w, "s"):
		return w[:len(w)-1]
	}
	return w
}

func step1b(w []byte) []byte {
	if hasSuffix(w, "eed") {
		if measure(w[:len(w)-3]) > 0 {
			return w[:len(w)-1]
		}
		return w
	}

	var stem []byte
	switch {
	case hasSuffix(w, "ed") && hasVowel(w[:len(w)-2]):
		stem = w[:len(w)-2]
	case hasSuffix(w, "ing") && hasVowel(w[:len(w)-3]):
		stem = w[:len(w)-3]
	default:
		return w
	}

	switch {
	case hasSuffix(stem, "at"), hasSuffix(stem, "bl"), hasSuffix(stem, "iz"):
		return append(stem, 'e')
	case endsDoubleConsonant(stem):
		switch stem[len(stem)-1] {
		case 'l', 's', 'z':
			return stem
		}
		return stem[:len(stem)-1]
	case measure(stem) == 1 && endsCVC(stem):
		return append(stem, 'e')
	}
	return stem
}

func step1c(w []byte) []byte {
	if hasSuffix(w, "y") && hasVowel(w[:len(w)-1]) {
		out := append([]byte(nil), w...)
		out[len(out)-1] = 'i'
		return out
	}
	return w
}

var step2Rules = []rule{
	{"ational", "ate"}, {"tional", "tion"}, {"enci", "ence"}, {"anci", "ance"},
	{"izer", "ize"}, {"abli", "able"}, {"alli", "al"}, {"entli", "ent"},
	{"eli", "e"}, {"ousli", "ous"}, {"ization", "ize"}, {"ation", "ate"},
	{"ator", "ate"}, {"alism", "al"}, {"iveness", "ive"}, {"fulness", "ful"},
	{"ousness", "ous"}, {"aliti", "al"}, {"iviti", "ive"}, {"biliti", "ble"},
}

var step3Rules = []rule{
	{"icate", "ic"}, {"ative", ""}, {"alize", "al"}, {"iciti", "ic"},
	{"ical", "ic"}, {"ful", ""}, {"ness", ""},
}

func step2(w []byte) []byte { return applyRules(w, step2Rules, 0) }

func step3(w []byte) []byte { return applyRules(w, step3Rules, 0) }

var step4Suffixes = []string{
	"ement", "ment", "ent", "al", "ance", "ence", "er", "ic", "able", "ible",
	"ant", "ion", "ou", "ism", "ate", "iti", "ous", "ive", "ize",
}

func step4(w []byte) []byte {
	for _, suf := range step4Suffixes {
		if !hasSuffix(w, suf) {
			continue
		}
		stem := w[:len(w)-len(suf)]
		if measure(stem) <= 1 {
			return w
		}
		if suf == "ion" {
			if len(stem) == 0 || (stem[len(stem)-1] != 's' && stem[len(stem)-1] != 't') {
				return w
			}
		}
		return stem
	}
	return w
}

func step5(w []byte) []byte {
	if hasSuffix(w, "e") {
		stem := w[:len(w)-1]
		m := measure(stem)
		if m > 1 || (m == 1 && !endsCVC(stem)) {
			w = stem
		}
	}
	if hasSuffix(w, "ll") && measure(w) > 1 {
		w = w[:len(w)-1]
	}
	return w
}
