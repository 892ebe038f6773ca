// Package textnorm folds Czech text for matching and for printers without Latin-2 glyphs.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripMarks decomposes s and drops combining marks, so "Přeprava" becomes "Preprava".
func StripMarks(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Fold is StripMarks plus lower-casing and whitespace trimming.
func Fold(s string) string {
	return strings.ToLower(strings.TrimSpace(StripMarks(s)))
}

// Words splits folded text into words, dropping punctuation.
func Words(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
