package extractor

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/moistari/rls"

	"mikanarr/internal/services"
	"mikanarr/internal/textutil"
)

// RegexBackend extracts metadata with a fixed grammar of release-title
// conventions used by anime fansub groups. Western-style scene names fall
// back to the rls parser.
type RegexBackend struct{}

// NewRegexBackend returns the regex backend.
func NewRegexBackend() *RegexBackend {
	return &RegexBackend{}
}

var _ Backend = (*RegexBackend)(nil)

var (
	seasonPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\s*第\s*([0-9]+|[一二三四五六七八九十]+)\s*[季期部]\s*$`),
		regexp.MustCompile(`(?i)\s*\b(?:Season|S)\s*([0-9]{1,2})\s*$`),
		regexp.MustCompile(`(?i)\s*([0-9]{1,2})(?:st|nd|rd|th)\s+Season\s*$`),
		regexp.MustCompile(`\s+(II|III|IV|V|VI|VII|VIII|IX|X)\s*$`),
	}

	episodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`第\s*([0-9]{1,4})\s*[话話集]`),
		regexp.MustCompile(`(?i)S[0-9]{1,2}\s*E([0-9]{1,4})`),
		regexp.MustCompile(`[\[【]\s*([0-9]{1,3})\s*(?:[vV][0-9]{1,2})?\s*(?:END|完)?\s*[\]】]`),
		regexp.MustCompile(`\s[-–—]\s*([0-9]{1,4})(?:\s*[vV][0-9]{1,2})?(?:\s*END)?(?:\s|[\[【(（]|$)`),
		regexp.MustCompile(`(?i)\b(?:EP\.?\s?|E)([0-9]{1,4})\b`),
	}

	versionPattern    = regexp.MustCompile(`[0-9\s\[]([vV])([0-9]{1,2})(?:[^0-9]|$)`)
	resolutionPattern = regexp.MustCompile(`(?i)(?:^|[^0-9])(2160|1080|720|480)[pP](?:[^a-zA-Z0-9]|$)`)
	dimensionPattern  = regexp.MustCompile(`(?i)(?:3840|1920|1280|854)\s*[x×]\s*(2160|1080|720|480)`)
	fourKPattern      = regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:4K|UHD)(?:[^a-z0-9]|$)`)
	fieldSplitPattern = regexp.MustCompile(`[\s\[\]【】()（）/|]+`)
	langOnlyPattern   = regexp.MustCompile(`^[简簡繁日英中文字幕双雙语語内內封嵌外挂掛体體&+_\-]+$`)
	latinSplitPattern = regexp.MustCompile(`[^A-Za-z0-9]+`)
	leadingTagPattern = regexp.MustCompile(`^\s*[\[【][^\]】]*[\]】]`)

	// Specials numbered between two episodes, such as "- 12.5" or "[12.5]".
	decimalEpisodePatterns = []*regexp.Regexp{
		regexp.MustCompile(`第\s*[0-9]{1,4}\.[0-9]+\s*[话話集]`),
		regexp.MustCompile(`[\[【]\s*[0-9]{1,3}\.[0-9]+\s*(?:[vV][0-9]{1,2})?\s*[\]】]`),
		regexp.MustCompile(`\s[-–—]\s*[0-9]{1,4}\.[0-9]+(?:\s*[vV][0-9]{1,2})?(?:\s|[\[【(（]|$)`),
	}
)

var chineseDigits = map[rune]int{
	'一': 1, '二': 2, '三': 3, '四': 4, '五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var romanNumerals = map[string]int{
	"II": 2, "III": 3, "IV": 4, "V": 5, "VI": 6, "VII": 7, "VIII": 8, "IX": 9, "X": 10,
}

var latinLanguages = map[string][]string{
	"chs":  {LangSimplified},
	"gb":   {LangSimplified},
	"cht":  {LangTraditional},
	"big5": {LangTraditional},
	"baha": {LangTraditional},
	"jp":   {LangJapanese},
	"jpn":  {LangJapanese},
	"eng":  {LangEnglish},
	"jpsc": {LangSimplified, LangJapanese},
	"jptc": {LangTraditional, LangJapanese},
}

// AnalyseAnimeName strips a trailing season marker from name. Names without
// a marker are season 1. It never reports NotFound.
func (b *RegexBackend) AnalyseAnimeName(_ context.Context, name string) Outcome[AnimeNameResult] {
	name = textutil.Normalize(name)
	if name == "" {
		return Failed[AnimeNameResult](services.Wrap(services.ErrValidation, "extractor", "anime name", "empty name", nil))
	}
	for _, pattern := range seasonPatterns {
		match := pattern.FindStringSubmatchIndex(name)
		if match == nil {
			continue
		}
		season, ok := parseSeasonNumber(name[match[2]:match[3]])
		stripped := strings.TrimSpace(name[:match[0]])
		if !ok || stripped == "" {
			continue
		}
		return Found(AnimeNameResult{AnimeName: stripped, Season: season})
	}
	return Found(AnimeNameResult{AnimeName: name, Season: 1})
}

// AnalyseResourceTitle parses episode, quality, languages and version.
// useLookup is ignored; the regex backend has no catalogue. A title with no
// recognizable episode number, or a decimal special episode, is NotFound.
func (b *RegexBackend) AnalyseResourceTitle(_ context.Context, title string, _ bool) Outcome[ResourceTitleResult] {
	title = textutil.Normalize(title)
	if title == "" {
		return Failed[ResourceTitleResult](services.Wrap(services.ErrValidation, "extractor", "resource title", "empty title", nil))
	}
	if isDecimalEpisode(title) {
		return NotFound[ResourceTitleResult]()
	}
	release := rls.ParseString(title)

	episode, ok := parseEpisode(title)
	if !ok && release.Episode > 0 {
		episode, ok = release.Episode, true
	}
	if !ok {
		return NotFound[ResourceTitleResult]()
	}

	quality := parseQuality(title)
	if quality == UnknownName && release.Resolution != "" {
		quality = strings.ToLower(release.Resolution)
	}

	return Found(ResourceTitleResult{
		Episode:   episode,
		Quality:   quality,
		Languages: parseLanguages(title),
		Version:   parseVersion(title),
	})
}

func parseSeasonNumber(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.Atoi(raw); err == nil {
		return n, n > 0
	}
	if n, ok := romanNumerals[strings.ToUpper(raw)]; ok {
		return n, true
	}
	return parseChineseNumber(raw)
}

// parseChineseNumber handles 一 through 九十九.
func parseChineseNumber(raw string) (int, bool) {
	runes := []rune(raw)
	switch len(runes) {
	case 1:
		if runes[0] == '十' {
			return 10, true
		}
		n, ok := chineseDigits[runes[0]]
		return n, ok
	case 2:
		if runes[0] == '十' {
			n, ok := chineseDigits[runes[1]]
			return 10 + n, ok
		}
		if runes[1] == '十' {
			n, ok := chineseDigits[runes[0]]
			return n * 10, ok
		}
	case 3:
		tens, ok1 := chineseDigits[runes[0]]
		ones, ok2 := chineseDigits[runes[2]]
		if runes[1] == '十' && ok1 && ok2 {
			return tens*10 + ones, true
		}
	}
	return 0, false
}

func parseEpisode(title string) (int, bool) {
	// Skip the fansub tag so group names such as [01Raws] are not read as
	// episode numbers.
	body := title
	if loc := leadingTagPattern.FindStringIndex(title); loc != nil {
		body = title[loc[1]:]
	}
	for _, pattern := range episodePatterns {
		match := pattern.FindStringSubmatch(body)
		if match == nil {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n, true
		}
	}
	return 0, false
}

// isDecimalEpisode reports a special such as episode 12.5. Reading it as
// episode 12 would collide with the real episode when renaming.
func isDecimalEpisode(title string) bool {
	body := title
	if loc := leadingTagPattern.FindStringIndex(title); loc != nil {
		body = title[loc[1]:]
	}
	for _, pattern := range decimalEpisodePatterns {
		if pattern.MatchString(body) {
			return true
		}
	}
	return false
}

func parseQuality(title string) string {
	if match := resolutionPattern.FindStringSubmatch(title); match != nil {
		return match[1] + "p"
	}
	if match := dimensionPattern.FindStringSubmatch(title); match != nil {
		return match[1] + "p"
	}
	if fourKPattern.MatchString(title) {
		return "2160p"
	}
	return UnknownName
}

func parseLanguages(title string) []string {
	body := title
	if loc := leadingTagPattern.FindStringIndex(title); loc != nil {
		body = title[loc[1]:]
	}
	found := map[string]bool{}
	for _, field := range fieldSplitPattern.Split(body, -1) {
		if field == "" {
			continue
		}
		if langOnlyPattern.MatchString(field) {
			for _, r := range field {
				switch r {
				case '简', '簡':
					found[LangSimplified] = true
				case '繁':
					found[LangTraditional] = true
				case '日':
					found[LangJapanese] = true
				case '英':
					found[LangEnglish] = true
				}
			}
			continue
		}
		for _, token := range latinSplitPattern.Split(field, -1) {
			for _, lang := range latinLanguages[strings.ToLower(token)] {
				found[lang] = true
			}
		}
	}
	return sortLanguages(found)
}

func parseVersion(title string) int {
	match := versionPattern.FindStringSubmatch(title)
	if match == nil {
		return 1
	}
	n, err := strconv.Atoi(match[2])
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
