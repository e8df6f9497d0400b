package extractor

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"testing"

	"mikanarr/internal/services/llm"
	"mikanarr/internal/tmdb"
)

type fakeCompleter struct {
	content string
	err     error
	prompts []string
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _, userPrompt string) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	return f.content, f.err
}

type fakeSearcher struct {
	resp  *tmdb.Response
	err   error
	calls int
}

func (f *fakeSearcher) SearchTV(context.Context, string) (*tmdb.Response, error) {
	f.calls++
	return f.resp, f.err
}

func TestLLMBackendParsesAnswer(t *testing.T) {
	completer := &fakeCompleter{content: "```json\n{\"anime_name\":\"Sousou no Frieren\",\"season\":1,\"episode\":5,\"quality\":\"1080P\",\"languages\":[\"繁\",\"CHS\",\"中\"],\"version\":0}\n```"}
	backend, err := NewLLMBackend(completer, nil)
	if err != nil {
		t.Fatalf("NewLLMBackend returned error: %v", err)
	}
	got, ok := backend.AnalyseResourceTitle(context.Background(), "[ANi] Frieren - 05", true).Value()
	if !ok {
		t.Fatal("expected found outcome")
	}
	if got.Episode != 5 || got.Quality != "1080p" || got.Version != 1 {
		t.Fatalf("unexpected result %+v", got)
	}
	if !slices.Equal(got.Languages, []string{LangSimplified, LangTraditional}) {
		t.Fatalf("unexpected languages %v", got.Languages)
	}
	if got.AnimeName != "" {
		t.Fatalf("expected no series name without a searcher, got %q", got.AnimeName)
	}
}

func TestLLMBackendLookupPicksClosestShow(t *testing.T) {
	completer := &fakeCompleter{content: `{"anime_name":"Sousou no Frieren","season":2,"episode":3,"quality":"1080p","languages":[],"version":1}`}
	searcher := &fakeSearcher{resp: &tmdb.Response{Results: []tmdb.Show{
		{ID: 1, Name: "Popular Other", OriginalName: "Popular Other", Popularity: 99},
		{ID: 2, Name: "葬送的芙莉莲", OriginalName: "Sousou no Frieren", Popularity: 10},
	}}}
	backend, err := NewLLMBackend(completer, searcher)
	if err != nil {
		t.Fatalf("NewLLMBackend returned error: %v", err)
	}

	got, ok := backend.AnalyseResourceTitle(context.Background(), "title", true).Value()
	if !ok {
		t.Fatal("expected found outcome")
	}
	if got.AnimeName != "葬送的芙莉莲" || got.Season != 2 {
		t.Fatalf("unexpected lookup result %+v", got)
	}

	if _, ok := backend.AnalyseResourceTitle(context.Background(), "title", false).Value(); !ok {
		t.Fatal("expected found outcome without lookup")
	}
	if searcher.calls != 1 {
		t.Fatalf("expected lookup only when requested, got %d searches", searcher.calls)
	}
}

func TestLLMBackendNotFoundMapping(t *testing.T) {
	tests := []struct {
		name      string
		completer *fakeCompleter
		searcher  *fakeSearcher
	}{
		{
			name:      "llm 404",
			completer: &fakeCompleter{err: &llm.StatusError{StatusCode: http.StatusNotFound}},
		},
		{
			name:      "tmdb miss",
			completer: &fakeCompleter{content: `{"anime_name":"Nothing","episode":1}`},
			searcher:  &fakeSearcher{err: tmdb.ErrNotFound},
		},
		{
			name:      "batch release",
			completer: &fakeCompleter{content: `{"anime_name":"Frieren","episode":-1}`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var searcher tmdb.Searcher
			if tt.searcher != nil {
				searcher = tt.searcher
			}
			backend, err := NewLLMBackend(tt.completer, searcher)
			if err != nil {
				t.Fatalf("NewLLMBackend returned error: %v", err)
			}
			if outcome := backend.AnalyseResourceTitle(context.Background(), "title", true); !outcome.IsNotFound() {
				t.Fatalf("expected not found, got %+v", outcome)
			}
		})
	}
}

func TestLLMBackendTransportFailure(t *testing.T) {
	boom := errors.New("connection reset")
	backend, err := NewLLMBackend(&fakeCompleter{err: boom}, nil)
	if err != nil {
		t.Fatalf("NewLLMBackend returned error: %v", err)
	}
	if err := backend.AnalyseResourceTitle(context.Background(), "title", false).Err(); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestNewLLMBackendRequiresCompleter(t *testing.T) {
	if _, err := NewLLMBackend(nil, nil); err == nil {
		t.Fatal("expected configuration error")
	}
}
