package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"assistant-agent/internal/domain"
)

type fakeSearcher struct {
	results map[string][]domain.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, max int) ([]domain.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	rs := f.results[query]
	if len(rs) > max {
		rs = rs[:max]
	}
	return rs, nil
}

type fakeFetcher struct {
	pages   map[string]Page
	err     error
	fetched []string
}

func (f *fakeFetcher) Fetch(_ context.Context, pageURL string) (Page, error) {
	f.fetched = append(f.fetched, pageURL)
	if f.err != nil {
		return Page{}, f.err
	}
	p, ok := f.pages[pageURL]
	if !ok {
		return Page{}, errors.New("not found")
	}
	return p, nil
}

type fakeHistory struct {
	seen    map[string]bool
	seenErr error
	saved   []domain.SearchResult
	saveErr error
}

func (f *fakeHistory) SeenURLs(_ context.Context, _, _ string) (map[string]bool, error) {
	return f.seen, f.seenErr
}

func (f *fakeHistory) SaveSearchResults(_ context.Context, _, _ string, results []domain.SearchResult) error {
	f.saved = append(f.saved, results...)
	return f.saveErr
}

func result(url string) domain.SearchResult {
	return domain.SearchResult{
		Title:   "title " + url,
		Snippet: "snippet " + url,
		URL:     url,
		Source:  SourceDuckDuckGo,
	}
}

func resultsFor(terms []string, n int) map[string][]domain.SearchResult {
	out := map[string][]domain.SearchResult{}
	for _, term := range terms {
		for i := 0; i < n; i++ {
			out[term] = append(out[term], result(fmt.Sprintf("https://example.com/%s/%d", term, i)))
		}
	}
	return out
}

func newEngine(t *testing.T, kw Searcher, kg Searcher, fetcher Fetcher, history HistoryStore, target int) *Engine {
	t.Helper()
	e, err := NewEngine(kw, kg, fetcher, history, target)
	require.NoError(t, err)
	return e
}

func TestResearch_HappyPath(t *testing.T) {
	terms := PlanSearchTerms("tell me about quantum computing")
	kw := &fakeSearcher{results: resultsFor(terms, 2)}
	fetcher := &fakeFetcher{pages: map[string]Page{}}
	history := &fakeHistory{}

	e := newEngine(t, kw, nil, fetcher, history, 3)
	got := e.Research(context.Background(), "u1", "quantum", "tell me about quantum computing")

	require.NotEmpty(t, got)
	require.LessOrEqual(t, len(got), 3)
	// Selected results were persisted for dedupe on the next request.
	require.Equal(t, got, history.saved)
}

func TestResearch_AllBackendsFail_ReturnsEmpty(t *testing.T) {
	kw := &fakeSearcher{err: errors.New("network down")}
	fetcher := &fakeFetcher{err: errors.New("network down")}
	history := &fakeHistory{}

	e := newEngine(t, kw, nil, fetcher, history, 3)
	got := e.Research(context.Background(), "u1", "general", "anything at all")

	require.Empty(t, got)
	require.Empty(t, history.saved)
}

func TestResearch_DedupePrefersUnseen(t *testing.T) {
	terms := PlanSearchTerms("tell me about quantum computing")
	kw := &fakeSearcher{results: map[string][]domain.SearchResult{
		terms[0]: {
			result("https://seen.example/1"),
			result("https://fresh.example/1"),
			result("https://fresh.example/2"),
		},
		terms[1]: {
			result("https://fresh.example/3"),
		},
	}}
	history := &fakeHistory{seen: map[string]bool{"https://seen.example/1": true}}
	fetcher := &fakeFetcher{err: errors.New("no crawling today")}

	e := newEngine(t, kw, nil, fetcher, history, 3)
	got := e.Research(context.Background(), "u1", "quantum", "tell me about quantum computing")

	require.Len(t, got, 3)
	for _, r := range got {
		require.NotEqual(t, "https://seen.example/1", r.URL)
	}
}

func TestResearch_SeenBackfillWhenShort(t *testing.T) {
	terms := PlanSearchTerms("tell me about quantum computing")
	kw := &fakeSearcher{results: map[string][]domain.SearchResult{
		terms[0]: {
			result("https://seen.example/1"),
			result("https://fresh.example/1"),
		},
	}}
	history := &fakeHistory{seen: map[string]bool{"https://seen.example/1": true}}
	fetcher := &fakeFetcher{err: errors.New("no crawling")}

	e := newEngine(t, kw, nil, fetcher, history, 5)
	got := e.Research(context.Background(), "u1", "quantum", "tell me about quantum computing")

	// Unseen alone cannot meet the target, so the seen result pads the set.
	urls := map[string]bool{}
	for _, r := range got {
		urls[r.URL] = true
	}
	require.True(t, urls["https://fresh.example/1"])
	require.True(t, urls["https://seen.example/1"])
}

func TestResearch_KGOnlyWhenShortAndConfigured(t *testing.T) {
	terms := PlanSearchTerms("tell me about quantum computing")
	// Keyword search already produces 2x target; KG must not be called.
	kw := &fakeSearcher{results: resultsFor(terms, 10)}
	kg := &fakeSearcher{results: resultsFor(terms, 2)}
	fetcher := &fakeFetcher{err: errors.New("skip")}
	history := &fakeHistory{}

	e := newEngine(t, kw, kg, fetcher, history, 2)
	e.Research(context.Background(), "u1", "quantum", "tell me about quantum computing")
	require.Empty(t, kg.queries)

	// Starved keyword search pulls KG in.
	kw2 := &fakeSearcher{results: map[string][]domain.SearchResult{}}
	kg2 := &fakeSearcher{results: resultsFor(terms, 2)}
	e2 := newEngine(t, kw2, kg2, fetcher, history, 2)
	got := e2.Research(context.Background(), "u1", "quantum", "tell me about quantum computing")
	require.NotEmpty(t, kg2.queries)
	require.NotEmpty(t, got)
}

func TestResearch_DeepCrawlAddsWebsiteCrawlResults(t *testing.T) {
	terms := PlanSearchTerms("tell me about quantum computing")
	kw := &fakeSearcher{results: map[string][]domain.SearchResult{
		terms[0]: {result("https://a.example"), result("https://b.example")},
	}}
	// Longer than any search snippet; the crawl entry must keep all of it.
	fullText := strings.Repeat("full text of page A. ", 60)
	fetcher := &fakeFetcher{pages: map[string]Page{
		"https://a.example": {URL: "https://a.example", Title: "Page A", Text: fullText},
	}}
	history := &fakeHistory{}

	e := newEngine(t, kw, nil, fetcher, history, 10)
	got := e.Research(context.Background(), "u1", "quantum", "tell me about quantum computing")

	var crawled []domain.SearchResult
	for _, r := range got {
		if r.Source == SourceWebsiteCrawl {
			crawled = append(crawled, r)
		}
	}
	// b.example failed to fetch and is simply absent from the crawl set.
	require.Len(t, crawled, 1)
	require.Equal(t, "Page A", crawled[0].Title)
	require.Equal(t, fullText, crawled[0].Snippet)
	require.Contains(t, fetcher.fetched, "https://b.example")
}

func TestResearch_NoFollowupsWithoutInitialResults(t *testing.T) {
	kw := &fakeSearcher{results: map[string][]domain.SearchResult{}}
	fetcher := &fakeFetcher{}
	history := &fakeHistory{}

	e := newEngine(t, kw, nil, fetcher, history, 3)
	e.Research(context.Background(), "u1", "general", "obscure nonsense query")

	// Only the planned terms were searched; no follow-up templates ran.
	for _, q := range kw.queries {
		require.NotContains(t, q, "explained")
		require.NotContains(t, q, "latest research")
	}
}

func TestResearch_HistoryFailuresDegrade(t *testing.T) {
	terms := PlanSearchTerms("tell me about quantum computing")
	kw := &fakeSearcher{results: resultsFor(terms, 2)}
	fetcher := &fakeFetcher{err: errors.New("skip")}
	history := &fakeHistory{seenErr: errors.New("dynamo down"), saveErr: errors.New("dynamo down")}

	e := newEngine(t, kw, nil, fetcher, history, 3)
	got := e.Research(context.Background(), "u1", "quantum", "tell me about quantum computing")
	require.NotEmpty(t, got)
}

func TestNewEngine_Validation(t *testing.T) {
	history := &fakeHistory{}
	fetcher := &fakeFetcher{}
	kw := &fakeSearcher{}

	_, err := NewEngine(nil, nil, fetcher, history, 3)
	require.Error(t, err)
	_, err = NewEngine(kw, nil, nil, history, 3)
	require.Error(t, err)
	_, err = NewEngine(kw, nil, fetcher, nil, 3)
	require.Error(t, err)

	e, err := NewEngine(kw, nil, fetcher, history, 0)
	require.NoError(t, err)
	require.Equal(t, defaultTargetResults, e.target)
}
