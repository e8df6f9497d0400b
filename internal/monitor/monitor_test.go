package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mikanarr/internal/extractor"
	"mikanarr/internal/feed"
	"mikanarr/internal/filter"
	"mikanarr/internal/logging"
	"mikanarr/internal/services"
)

type fakeSource struct {
	name    string
	entries []feed.Entry
	err     error
	lookup  bool
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Entries(context.Context) ([]feed.Entry, error) {
	return s.entries, s.err
}

func (s *fakeSource) Enrich(_ context.Context, entry feed.Entry) (feed.ResourceInfo, error) {
	if entry.Title == "enrich-fails" {
		return feed.ResourceInfo{}, errors.New("homepage unavailable")
	}
	return feed.ResourceInfo{Title: entry.Title, TorrentURL: entry.TorrentURL, Source: s.name, AnimeName: "Show", Season: -1, Episode: -1, Version: -1}, nil
}

func (s *fakeSource) Lookup() bool { return s.lookup }

type fakeSeen struct {
	titles map[string]bool
}

func (f *fakeSeen) Exists(_ context.Context, title string) (bool, error) {
	return f.titles[title], nil
}

type recordingAnalyzer struct {
	mu      sync.Mutex
	titles  []string
	lookups []bool
	fail    map[string]bool

	misconfigured bool
}

func (a *recordingAnalyzer) AnalyseAnimeName(_ context.Context, name string) (extractor.AnimeNameResult, error) {
	return extractor.AnimeNameResult{AnimeName: name, Season: 1}, nil
}

func (a *recordingAnalyzer) AnalyseResourceTitle(_ context.Context, title string, useLookup bool) (extractor.ResourceTitleResult, error) {
	a.mu.Lock()
	a.titles = append(a.titles, title)
	a.lookups = append(a.lookups, useLookup)
	a.mu.Unlock()
	if a.fail[title] {
		return extractor.ResourceTitleResult{}, errors.New("backend down")
	}
	if a.misconfigured {
		return extractor.ResourceTitleResult{}, services.Wrap(services.ErrConfiguration, "extractor", "resource title", "llm api key missing", nil)
	}
	return extractor.ResourceTitleResult{Episode: 5, Quality: "1080p", Languages: []string{"简"}, Version: 1}, nil
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]feed.ResourceInfo
}

func (s *recordingSink) Accept(_ context.Context, resources []feed.ResourceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, resources)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func entries(titles ...string) []feed.Entry {
	out := make([]feed.Entry, 0, len(titles))
	for _, title := range titles {
		out = append(out, feed.Entry{Title: title, TorrentURL: "https://example.org/" + title + ".torrent"})
	}
	return out
}

func titlesOf(resources []feed.ResourceInfo) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.Title)
	}
	return out
}

func newTestMonitor(t *testing.T, sources []feed.Source, gate filter.Gate, seen SeenChecker, analyzer Analyzer, sink Sink, opts ...Option) *Monitor {
	t.Helper()
	m, err := New(sources, gate, seen, analyzer, sink, logging.NewNop(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func mustCycle(t *testing.T, m *Monitor) []feed.ResourceInfo {
	t.Helper()
	resources, err := m.Cycle(context.Background())
	if err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	return resources
}

func TestCycleSkipsFailingSource(t *testing.T) {
	sources := []feed.Source{
		&fakeSource{name: "one", entries: entries("a1", "a2")},
		&fakeSource{name: "two", err: errors.New("connection refused")},
		&fakeSource{name: "three", entries: entries("c1")},
	}
	m := newTestMonitor(t, sources, nil, &fakeSeen{}, &recordingAnalyzer{}, &recordingSink{})

	got := titlesOf(mustCycle(t, m))
	want := []string{"a1", "a2", "c1"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v in source order, got %v", want, got)
		}
	}
	report := m.LastReport()
	if report.SourceErrors != 1 || report.Resources != 3 || report.CycleID == "" {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCycleNeverExtractsSeenOrFilteredTitles(t *testing.T) {
	gate, err := filter.New(nil, nil, []string{"合集"})
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	analyzer := &recordingAnalyzer{}
	sources := []feed.Source{&fakeSource{name: "one", entries: entries("old", "new", "[Group] Show 01-12 合集")}}
	m := newTestMonitor(t, sources, gate, &fakeSeen{titles: map[string]bool{"old": true}}, analyzer, &recordingSink{})

	got := mustCycle(t, m)
	if len(got) != 1 || got[0].Title != "new" {
		t.Fatalf("unexpected resources %v", titlesOf(got))
	}
	if len(analyzer.titles) != 1 || analyzer.titles[0] != "new" {
		t.Fatalf("extractor saw %v", analyzer.titles)
	}
	report := m.LastReport()
	if report.Seen != 1 || report.Filtered != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestCycleDropsDuplicateTitlesWithinCycle(t *testing.T) {
	sources := []feed.Source{
		&fakeSource{name: "one", entries: entries("same", "other")},
		&fakeSource{name: "two", entries: entries("same")},
	}
	analyzer := &recordingAnalyzer{}
	m := newTestMonitor(t, sources, nil, &fakeSeen{}, analyzer, &recordingSink{})

	got := mustCycle(t, m)
	if len(got) != 2 {
		t.Fatalf("expected duplicate to be dropped, got %v", titlesOf(got))
	}
	if got[0].Source != "one" {
		t.Fatalf("expected first occurrence to win, got source %q", got[0].Source)
	}
	if m.LastReport().Duplicates != 1 {
		t.Fatalf("unexpected report %+v", m.LastReport())
	}
}

func TestCycleSkipsEntriesThatFailExtraction(t *testing.T) {
	analyzer := &recordingAnalyzer{fail: map[string]bool{"bad": true}}
	sources := []feed.Source{&fakeSource{name: "one", entries: entries("good", "bad", "enrich-fails", "also-good")}}
	m := newTestMonitor(t, sources, nil, &fakeSeen{}, analyzer, &recordingSink{})

	got := titlesOf(mustCycle(t, m))
	if len(got) != 2 || got[0] != "good" || got[1] != "also-good" {
		t.Fatalf("unexpected resources %v", got)
	}
	if m.LastReport().ExtractErrors != 2 {
		t.Fatalf("unexpected report %+v", m.LastReport())
	}
}

func TestCycleAppliesExtractedMetadata(t *testing.T) {
	sources := []feed.Source{
		&fakeSource{name: "mikan", entries: entries("m1")},
		&fakeSource{name: "rss", entries: entries("r1"), lookup: true},
	}
	analyzer := &recordingAnalyzer{}
	m := newTestMonitor(t, sources, nil, &fakeSeen{}, analyzer, &recordingSink{}, WithLookup(true), WithConcurrency(1))

	got := mustCycle(t, m)
	if len(got) != 2 {
		t.Fatalf("unexpected resources %v", titlesOf(got))
	}
	first := got[0]
	if first.AnimeName != "Show" || first.Season != 1 || first.Episode != 5 || first.Quality != "1080p" || first.Version != 1 {
		t.Fatalf("metadata not applied: %+v", first)
	}
	if len(analyzer.lookups) != 2 || analyzer.lookups[0] || !analyzer.lookups[1] {
		t.Fatalf("lookup flag should follow the source, got %v", analyzer.lookups)
	}
}

func TestCycleWithoutAnalyzerKeepsSourceInfo(t *testing.T) {
	sources := []feed.Source{&fakeSource{name: "one", entries: entries("t")}}
	m := newTestMonitor(t, sources, nil, &fakeSeen{}, nil, &recordingSink{})

	got := mustCycle(t, m)
	if len(got) != 1 || got[0].Episode != -1 || got[0].AnimeName != "Show" {
		t.Fatalf("unexpected resources %+v", got)
	}
}

func TestRunDeliversBatchesAndStopsOnCancel(t *testing.T) {
	sink := &recordingSink{}
	src := &fakeSource{name: "one", entries: entries("only")}
	seen := &fakeSeen{titles: map[string]bool{}}
	m := newTestMonitor(t, []feed.Source{src}, nil, seen, &recordingAnalyzer{}, sink, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for sink.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("sink never received a batch")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(nil, nil, nil, nil, &recordingSink{}, nil); err == nil {
		t.Fatal("expected error without dedup store")
	}
	if _, err := New(nil, nil, &fakeSeen{}, nil, nil, nil); err == nil {
		t.Fatal("expected error without sink")
	}
}

func TestRunSkipsSinkWhenCycleIsEmpty(t *testing.T) {
	gate, err := filter.New(nil, nil, []string{"合集"})
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}
	sink := &recordingSink{}
	src := &fakeSource{name: "one", entries: entries("old", "[Group] Show 01-12 合集")}
	seen := &fakeSeen{titles: map[string]bool{"old": true}}
	m := newTestMonitor(t, []feed.Source{src}, gate, seen, &recordingAnalyzer{}, sink, WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := m.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if sink.count() != 0 {
		t.Fatalf("expected no submissions for empty cycles, got %d", sink.count())
	}
	if report := m.LastReport(); report.Seen != 1 || report.Filtered != 1 || report.Resources != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestNewRejectsUninitializedExtractor(t *testing.T) {
	_, err := New(nil, nil, &fakeSeen{}, (*extractor.Extractor)(nil), &recordingSink{}, nil)
	if !errors.Is(err, extractor.ErrNotInitialized) || !services.IsFatal(err) {
		t.Fatalf("expected uninitialized extractor error, got %v", err)
	}
}

func TestCycleAbortsOnConfigurationError(t *testing.T) {
	sources := []feed.Source{&fakeSource{name: "one", entries: entries("a", "b")}}
	m := newTestMonitor(t, sources, nil, &fakeSeen{}, &recordingAnalyzer{misconfigured: true}, &recordingSink{})

	got, err := m.Cycle(context.Background())
	if !services.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected no resources, got %v", titlesOf(got))
	}
}

func TestRunStopsOnConfigurationError(t *testing.T) {
	sink := &recordingSink{}
	sources := []feed.Source{&fakeSource{name: "one", entries: entries("a")}}
	// A zero Extractor has no backend and fails every call as uninitialized.
	m := newTestMonitor(t, sources, nil, &fakeSeen{}, &extractor.Extractor{}, sink, WithInterval(10*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	select {
	case err := <-done:
		if !errors.Is(err, extractor.ErrNotInitialized) {
			t.Fatalf("expected uninitialized extractor error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run kept polling after a configuration error")
	}
	if sink.count() != 0 {
		t.Fatalf("expected no submissions, got %d", sink.count())
	}
}
