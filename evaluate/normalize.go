package evaluate

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares a transcript for comparison: NFC composition, lower
// case, and single spaces between words.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = cases.Lower(language.Und).String(s)
	return strings.Join(strings.Fields(s), " ")
}

// KeepOnly removes every rune of s not in alphabet, then collapses the
// whitespace left behind. A space in alphabet keeps word boundaries.
func KeepOnly(s, alphabet string) string {
	s = strings.Map(func(r rune) rune {
		if strings.ContainsRune(alphabet, r) {
			return r
		}
		if r == ' ' || r == '\t' || r == '\n' {
			return ' '
		}
		return -1
	}, s)
	if !strings.Contains(alphabet, " ") {
		return strings.ReplaceAll(s, " ", "")
	}
	return strings.Join(strings.Fields(s), " ")
}
