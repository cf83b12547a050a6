package research

import (
	"context"
	"errors"
	"log/slog"

	"assistant-agent/internal/domain"
)

const (
	defaultTargetResults = 5

	maxInitialTerms  = 3
	maxKGTerms       = 2
	maxFollowups     = 3
	followupQueryCap = 2
	maxCrawlURLs     = 3
)

// Searcher is a keyword search backend.
type Searcher interface {
	Search(ctx context.Context, query string, max int) ([]domain.SearchResult, error)
}

// Fetcher retrieves and extracts a single page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (Page, error)
}

// HistoryStore persists surfaced results per user and topic so repeat
// searches can prefer fresh material.
type HistoryStore interface {
	SeenURLs(ctx context.Context, userID, topic string) (map[string]bool, error)
	SaveSearchResults(ctx context.Context, userID, topic string, results []domain.SearchResult) error
}

// Engine runs the three-phase research pipeline. Every dependency failure
// degrades to fewer results; Research never returns an error.
type Engine struct {
	keyword Searcher
	kg      Searcher // may be nil when no structured backend is provisioned
	crawler Fetcher
	history HistoryStore
	target  int
}

// NewEngine constructs an Engine. kg may be nil; target <= 0 selects the
// default of five results.
func NewEngine(keyword Searcher, kg Searcher, crawler Fetcher, history HistoryStore, target int) (*Engine, error) {
	if keyword == nil {
		return nil, errors.New("research: keyword searcher must not be nil")
	}
	if crawler == nil {
		return nil, errors.New("research: crawler must not be nil")
	}
	if history == nil {
		return nil, errors.New("research: history store must not be nil")
	}
	if target <= 0 {
		target = defaultTargetResults
	}
	return &Engine{keyword: keyword, kg: kg, crawler: crawler, history: history, target: target}, nil
}

// Research plans terms from message and runs initial search, deep research
// and deep crawl, then de-duplicates against (userID, topic) history. The
// selected results are persisted to history before being returned. An empty
// slice is a valid successful outcome.
func (e *Engine) Research(ctx context.Context, userID, topic, message string) []domain.SearchResult {
	terms := PlanSearchTerms(message)

	acc := newAccumulator()

	// Phase 1: initial search across planned terms.
	for i, term := range terms {
		if i >= maxInitialTerms || acc.len() >= 2*e.target {
			break
		}
		e.searchInto(ctx, acc, e.keyword, term, e.target)
	}
	if acc.len() < e.target && e.kg != nil {
		for i, term := range terms {
			if i >= maxKGTerms || acc.len() >= 2*e.target {
				break
			}
			e.searchInto(ctx, acc, e.kg, term, e.target)
		}
	}

	// Phase 2: deep research seeded by the leading term, only when the
	// initial phase surfaced anything at all.
	if acc.len() > 0 {
		for _, q := range followupQueries(message, terms[0], maxFollowups) {
			if acc.len() >= 3*e.target {
				break
			}
			e.searchInto(ctx, acc, e.keyword, q, followupQueryCap)
		}
	}

	// Phase 3: deep crawl of the top URLs for full text.
	for _, pageURL := range acc.topURLs(maxCrawlURLs) {
		page, err := e.crawler.Fetch(ctx, pageURL)
		if err != nil {
			slog.Warn("crawl failed", "url", pageURL, "err", err)
			continue
		}
		// Fetch already bounds the extracted text; the crawl entry carries
		// all of it, that is its whole value over the search snippet.
		acc.add(domain.SearchResult{
			Title:   page.Title,
			Snippet: page.Text,
			URL:     page.URL,
			Source:  SourceWebsiteCrawl,
			Query:   message,
		})
	}

	selected := e.dedupe(ctx, userID, topic, acc.results)

	if len(selected) > 0 {
		if err := e.history.SaveSearchResults(ctx, userID, topic, selected); err != nil {
			slog.Warn("search history write failed", "err", err)
		}
	}
	return selected
}

func (e *Engine) searchInto(ctx context.Context, acc *accumulator, backend Searcher, query string, limit int) {
	results, err := backend.Search(ctx, query, limit)
	if err != nil {
		slog.Warn("search backend failed", "query", query, "err", err)
		return
	}
	for _, r := range results {
		acc.add(r)
	}
}

// dedupe prefers results whose URL has not been surfaced to this user on
// this topic; seen results backfill up to the target count. The backfill
// order is whatever the accumulator holds; nothing depends on it.
func (e *Engine) dedupe(ctx context.Context, userID, topic string, results []domain.SearchResult) []domain.SearchResult {
	if len(results) == 0 {
		return nil
	}
	seen, err := e.history.SeenURLs(ctx, userID, topic)
	if err != nil {
		slog.Warn("search history read failed", "err", err)
		seen = nil
	}

	var unseen, fallback []domain.SearchResult
	for _, r := range results {
		if r.URL != "" && seen[r.URL] {
			fallback = append(fallback, r)
			continue
		}
		unseen = append(unseen, r)
	}

	selected := unseen
	if len(selected) > e.target {
		selected = selected[:e.target]
	}
	for _, r := range fallback {
		if len(selected) >= e.target {
			break
		}
		selected = append(selected, r)
	}
	return selected
}

// accumulator keeps results unique by URL across all phases. Untitled
// URL-less entries are allowed through as-is; they cannot collide.
type accumulator struct {
	results []domain.SearchResult
	byURL   map[string]bool
}

func newAccumulator() *accumulator {
	return &accumulator{byURL: map[string]bool{}}
}

func (a *accumulator) add(r domain.SearchResult) {
	if r.Title == "" && r.Snippet == "" {
		return
	}
	// Crawl entries intentionally share a URL with the search result that
	// pointed at the page; they carry the full text, not a duplicate link.
	if r.URL != "" && r.Source != SourceWebsiteCrawl {
		if a.byURL[r.URL] {
			return
		}
		a.byURL[r.URL] = true
	}
	a.results = append(a.results, r)
}

func (a *accumulator) len() int { return len(a.results) }

// topURLs returns the first max distinct crawlable URLs in accumulation
// order.
func (a *accumulator) topURLs(max int) []string {
	var urls []string
	for _, r := range a.results {
		if len(urls) >= max {
			break
		}
		if r.URL != "" && r.Source != SourceWebsiteCrawl {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
