package extractor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mikanarr/internal/services"
	"mikanarr/internal/services/llm"
	"mikanarr/internal/textutil"
	"mikanarr/internal/tmdb"
)

// Completer issues JSON chat completions.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// LLMBackend asks a language model to parse titles. When a TMDB searcher is
// configured and a lookup is requested, the model's series name is replaced
// by the closest TMDB match.
type LLMBackend struct {
	completer Completer
	searcher  tmdb.Searcher
}

var _ Backend = (*LLMBackend)(nil)

// NewLLMBackend builds the llm backend. searcher may be nil.
func NewLLMBackend(completer Completer, searcher tmdb.Searcher) (*LLMBackend, error) {
	if completer == nil {
		return nil, fmt.Errorf("%w: llm backend requires a completion client", services.ErrConfiguration)
	}
	return &LLMBackend{completer: completer, searcher: searcher}, nil
}

const animeNamePrompt = `You extract the series name and season number from an anime title.
Respond with JSON only: {"anime_name": string, "season": integer}.
Remove any season marker from the name. Use season 1 when none is present.`

const resourceTitlePrompt = `You parse anime release titles published by fansub groups.
Respond with JSON only:
{"anime_name": string, "season": integer, "episode": integer, "quality": string, "languages": [string], "version": integer}
- quality is one of "2160p", "1080p", "720p", "480p" or "Unknown".
- languages uses only the markers "简", "繁", "日", "英" for simplified Chinese, traditional Chinese, Japanese and English subtitles.
- version is 1 unless the title marks a revision such as "v2".
- episode is -1 when the title is a batch or has no episode number.`

type llmTitlePayload struct {
	AnimeName string   `json:"anime_name"`
	Season    int      `json:"season"`
	Episode   int      `json:"episode"`
	Quality   string   `json:"quality"`
	Languages []string `json:"languages"`
	Version   int      `json:"version"`
}

// AnalyseAnimeName asks the model for the series name and season.
func (b *LLMBackend) AnalyseAnimeName(ctx context.Context, name string) Outcome[AnimeNameResult] {
	name = textutil.Normalize(name)
	if name == "" {
		return Failed[AnimeNameResult](services.Wrap(services.ErrValidation, "extractor", "anime name", "empty name", nil))
	}
	content, err := b.completer.CompleteJSON(ctx, animeNamePrompt, name)
	if err != nil {
		if llm.IsNotFound(err) {
			return NotFound[AnimeNameResult]()
		}
		return Failed[AnimeNameResult](services.Wrap(services.ErrTransport, "extractor", "llm anime name", "completion failed", err))
	}
	var parsed AnimeNameResult
	if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
		return Failed[AnimeNameResult](services.Wrap(services.ErrApplication, "extractor", "llm anime name", "decode answer", err))
	}
	parsed.AnimeName = strings.TrimSpace(parsed.AnimeName)
	if parsed.AnimeName == "" {
		return NotFound[AnimeNameResult]()
	}
	if parsed.Season <= 0 {
		parsed.Season = 1
	}
	return Found(parsed)
}

// AnalyseResourceTitle asks the model to parse title, then optionally
// canonicalizes the series through TMDB.
func (b *LLMBackend) AnalyseResourceTitle(ctx context.Context, title string, useLookup bool) Outcome[ResourceTitleResult] {
	title = textutil.Normalize(title)
	if title == "" {
		return Failed[ResourceTitleResult](services.Wrap(services.ErrValidation, "extractor", "resource title", "empty title", nil))
	}
	content, err := b.completer.CompleteJSON(ctx, resourceTitlePrompt, title)
	if err != nil {
		if llm.IsNotFound(err) {
			return NotFound[ResourceTitleResult]()
		}
		return Failed[ResourceTitleResult](services.Wrap(services.ErrTransport, "extractor", "llm resource title", "completion failed", err))
	}
	var parsed llmTitlePayload
	if err := llm.DecodeLLMJSON(content, &parsed); err != nil {
		return Failed[ResourceTitleResult](services.Wrap(services.ErrApplication, "extractor", "llm resource title", "decode answer", err))
	}
	if parsed.Episode < 0 {
		return NotFound[ResourceTitleResult]()
	}

	result := ResourceTitleResult{
		Episode:   parsed.Episode,
		Quality:   parseQuality(parsed.Quality),
		Languages: normalizeLanguages(parsed.Languages),
		Version:   parsed.Version,
	}
	if result.Version <= 0 {
		result.Version = 1
	}

	if useLookup && b.searcher != nil && strings.TrimSpace(parsed.AnimeName) != "" {
		name, err := b.lookupSeries(ctx, parsed.AnimeName)
		switch {
		case errors.Is(err, services.ErrNotFound):
			return NotFound[ResourceTitleResult]()
		case err != nil:
			return Failed[ResourceTitleResult](services.Wrap(services.ErrTransport, "extractor", "tmdb lookup", parsed.AnimeName, err))
		}
		result.AnimeName = name
		result.Season = max(parsed.Season, 1)
	}
	return Found(result)
}

// lookupSeries returns the TMDB name that best matches query. When no
// candidate shares a term with query (a romaji query against localized names)
// the most popular result wins.
func (b *LLMBackend) lookupSeries(ctx context.Context, query string) (string, error) {
	resp, err := b.searcher.SearchTV(ctx, query)
	if err != nil {
		return "", err
	}
	best, ok := tmdb.BestMatch(resp)
	if !ok {
		return "", tmdb.ErrNotFound
	}
	bestScore := 0.0
	for _, show := range resp.Results {
		score := max(textutil.Similarity(query, show.Name), textutil.Similarity(query, show.OriginalName))
		if score > bestScore {
			best, bestScore = show, score
		}
	}
	return strings.TrimSpace(best.Name), nil
}

func normalizeLanguages(raw []string) []string {
	found := map[string]bool{}
	for _, lang := range raw {
		lang = strings.TrimSpace(lang)
		if mapped, ok := latinLanguages[strings.ToLower(lang)]; ok {
			for _, m := range mapped {
				found[m] = true
			}
			continue
		}
		found[lang] = true
	}
	return sortLanguages(found)
}
