package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases the value and strips combining marks so that accented and
// unaccented spellings compare equal ("Cachaça" folds to "cachaca").
func Fold(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	// A fresh chain per call keeps the transformers goroutine-safe.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, value)
	if err != nil {
		folded = value
	}
	return strings.ToLower(folded)
}

// ContainsFold reports whether haystack contains needle under Fold semantics.
func ContainsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(Fold(haystack), Fold(needle))
}

// EqualFold reports whether two values are equal under Fold semantics.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}

// ContainsAnyFold reports whether haystack contains at least one of the
// needles under Fold semantics.
func ContainsAnyFold(haystack string, needles []string) bool {
	if len(needles) == 0 {
		return false
	}
	folded := Fold(haystack)
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(folded, Fold(needle)) {
			return true
		}
	}
	return false
}
