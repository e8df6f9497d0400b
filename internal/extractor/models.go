package extractor

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// UnknownName fills string fields of a sentinel result.
	UnknownName = "Unknown"
	// UnknownNumber fills numeric fields of a sentinel result.
	UnknownNumber = -1
)

// Language markers, in the order they are reported.
const (
	LangSimplified  = "简"
	LangTraditional = "繁"
	LangJapanese    = "日"
	LangEnglish     = "英"
)

var languageOrder = []string{LangSimplified, LangTraditional, LangJapanese, LangEnglish}

// AnimeNameResult is the outcome of series-name analysis.
type AnimeNameResult struct {
	AnimeName string `json:"anime_name"`
	Season    int    `json:"season"`
}

// UnknownAnimeName returns the sentinel for an unresolvable series name.
func UnknownAnimeName() AnimeNameResult {
	return AnimeNameResult{AnimeName: UnknownName, Season: UnknownNumber}
}

// IsUnknown reports whether r is the sentinel.
func (r AnimeNameResult) IsUnknown() bool {
	return r.AnimeName == UnknownName && r.Season == UnknownNumber
}

// ResourceTitleResult is the outcome of release-title analysis. AnimeName and
// Season are only set when a catalogue lookup resolved the series.
type ResourceTitleResult struct {
	Episode   int      `json:"episode"`
	Quality   string   `json:"quality"`
	Languages []string `json:"languages"`
	Version   int      `json:"version"`
	AnimeName string   `json:"anime_name,omitempty"`
	Season    int      `json:"season,omitempty"`
}

// UnknownResourceTitle returns the sentinel for an unresolvable title.
func UnknownResourceTitle() ResourceTitleResult {
	return ResourceTitleResult{
		Episode:   UnknownNumber,
		Quality:   UnknownName,
		Languages: []string{},
		Version:   UnknownNumber,
	}
}

// IsUnknown reports whether r is the sentinel.
func (r ResourceTitleResult) IsUnknown() bool {
	return r.Episode == UnknownNumber && r.Quality == UnknownName &&
		len(r.Languages) == 0 && r.Version == UnknownNumber
}

func (r ResourceTitleResult) String() string {
	if r.IsUnknown() {
		return UnknownName
	}
	return fmt.Sprintf("E%02d %s %s v%d", r.Episode, r.Quality, strings.Join(r.Languages, ""), r.Version)
}

// clone returns a copy whose Languages slice is not shared with the cache.
func (r ResourceTitleResult) clone() ResourceTitleResult {
	r.Languages = slices.Clone(r.Languages)
	if r.Languages == nil {
		r.Languages = []string{}
	}
	return r
}

// sortLanguages orders markers as 简, 繁, 日, 英 and drops unknown entries.
func sortLanguages(found map[string]bool) []string {
	out := make([]string, 0, len(found))
	for _, lang := range languageOrder {
		if found[lang] {
			out = append(out, lang)
		}
	}
	return out
}
