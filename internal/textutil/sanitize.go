package textutil

import "strings"

// fileNameReplacer replaces characters Alist storage backends reject in a
// path segment.
var fileNameReplacer = strings.NewReplacer(
	"/", " ",
	"\\", " ",
	":", "：",
	"*", "",
	"?", "？",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName makes name safe to use as a single path segment. Path
// separators become spaces, colons and question marks become their
// full-width forms, and other unsafe characters are removed.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	cleaned := fileNameReplacer.Replace(name)
	return strings.Trim(strings.Join(strings.Fields(cleaned), " "), ". ")
}
