package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

var foldCaser = cases.Fold()

// Normalize folds full-width ASCII and half-width katakana to their canonical
// widths and collapses runs of whitespace.
func Normalize(value string) string {
	folded := width.Fold.String(value)
	return strings.Join(strings.Fields(folded), " ")
}

// FoldKey returns a case-folded, width-normalized key for comparisons.
func FoldKey(value string) string {
	return foldCaser.String(Normalize(value))
}

// TitleCase capitalizes each word of a latin series name. Names that already
// contain upper-case letters are returned unchanged.
func TitleCase(value string) string {
	value = Normalize(value)
	if value == "" || strings.ToLower(value) != value {
		return value
	}
	return cases.Title(language.Und).String(value)
}
