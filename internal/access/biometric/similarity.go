package biometric

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares a transcription for comparison: NFKC, case folded,
// punctuation dropped and whitespace collapsed.
func Normalize(s string) string {
	s = cases.Fold().String(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// Similarity is a ratio in [0,1] between a transcription and the expected
// sentence: 1 - editDistance / max(len), measured in runes after
// Normalize.  Two empty strings are identical.
func Similarity(got, want string) float64 {
	a, b := Normalize(got), Normalize(want)
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}
