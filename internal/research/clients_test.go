package research

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"
)

type staticParams map[string]string

func (p staticParams) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := p[name]
	if !ok {
		return "", errors.New("param not found")
	}
	return v, nil
}

func TestDuckDuckGo_InstantAnswers(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "go programming", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{
			"Heading": "Go (programming language)",
			"AbstractText": "Go is a statically typed language.",
			"AbstractURL": "https://en.wikipedia.org/wiki/Go",
			"RelatedTopics": [
				{"Text": "Goroutine - lightweight thread", "FirstURL": "https://example.com/goroutine"},
				{"Text": "", "FirstURL": "https://example.com/empty"}
			]
		}`)
	}))
	defer api.Close()

	c := NewDuckDuckGoClient(api.Client())
	c.apiBaseURL = api.URL
	c.webBaseURL = api.URL // unused: instant answers satisfy max

	results, err := c.Search(context.Background(), "go programming", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Go (programming language)", results[0].Title)
	require.Equal(t, "https://en.wikipedia.org/wiki/Go", results[0].URL)
	require.Equal(t, SourceDuckDuckGo, results[0].Source)
	require.Equal(t, "Goroutine", results[1].Title)
}

func TestDuckDuckGo_ScrapeFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// Instant answer with nothing useful.
		fmt.Fprint(w, `{"Heading":"","AbstractText":"","RelatedTopics":[]}`)
	})
	mux.HandleFunc("/html/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body>
			<a class="result__a" href="https://one.example">First Organic</a>
			<a class="other" href="https://skip.example">Not a result</a>
			<a class="result__a" href="https://two.example">Second Organic</a>
		</body></html>`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewDuckDuckGoClient(srv.Client())
	c.apiBaseURL = srv.URL
	c.webBaseURL = srv.URL

	results, err := c.Search(context.Background(), "anything", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "First Organic", results[0].Title)
	require.Equal(t, "https://one.example", results[0].URL)
	require.Equal(t, "Second Organic", results[1].Title)
}

func TestDuckDuckGo_BothPathsFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewDuckDuckGoClient(srv.Client())
	c.apiBaseURL = srv.URL
	c.webBaseURL = srv.URL

	_, err := c.Search(context.Background(), "anything", 3)
	require.Error(t, err)
}

func TestGoogleKG_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "secret-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"itemListElement":[
			{"result":{"name":"Quantum computing","description":"Computation type",
				"detailedDescription":{"articleBody":"Quantum computing uses qubits.","url":"https://en.wikipedia.org/wiki/Quantum_computing"}}},
			{"result":{"name":"","description":"nameless"}}
		]}`)
	}))
	defer srv.Close()

	c := NewGoogleKGClient(srv.Client(), staticParams{"/app/google-kg-key": "secret-key"}, "/app/google-kg-key")
	c.baseURL = srv.URL

	require.True(t, c.Configured(context.Background()))
	results, err := c.Search(context.Background(), "quantum computing", 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Quantum computing", results[0].Title)
	require.Equal(t, "Quantum computing uses qubits.", results[0].Snippet)
	require.Equal(t, SourceGoogleKG, results[0].Source)
}

func TestGoogleKG_UnconfiguredKeySkips(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("backend must not be called without a key")
	}))
	defer srv.Close()

	for _, params := range []staticParams{
		{},                                  // lookup failure
		{"/app/google-kg-key": "NOT_SET"},   // provisioned placeholder
	} {
		c := NewGoogleKGClient(srv.Client(), params, "/app/google-kg-key")
		c.baseURL = srv.URL
		require.False(t, c.Configured(context.Background()))
		results, err := c.Search(context.Background(), "anything", 5)
		require.NoError(t, err)
		require.Empty(t, results)
	}
}

func TestPageCrawler_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Test Article</title></head><body>
			<article><h1>Test Article</h1>
			<p>`+longParagraph()+`</p>
			</article>
			<a href="/relative">Relative</a>
			<a href="https://other.example/page">Other</a>
			<a href="#frag">Fragment</a>
		</body></html>`)
	}))
	defer srv.Close()

	c := NewPageCrawler(srv.Client())
	page, err := c.Fetch(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	require.Equal(t, "Test Article", page.Title)
	require.NotEmpty(t, page.Text)
	require.LessOrEqual(t, len(page.Text), maxPageText)
	require.Contains(t, page.Links, "https://other.example/page")
	require.Contains(t, page.Links, srv.URL+"/relative")
	for _, l := range page.Links {
		require.NotContains(t, l, "#frag")
	}
}

func TestCapText_RuneBoundary(t *testing.T) {
	// Three-byte runes guarantee the cap lands mid-rune.
	s := strings.Repeat("世", 700)
	capped := capText(s, maxPageText)
	require.True(t, utf8.ValidString(capped))
	require.LessOrEqual(t, len(capped), maxPageText)
	require.Equal(t, 1998, len(capped))

	require.Equal(t, "short", capText("short", maxPageText))
}

func TestPageCrawler_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewPageCrawler(srv.Client())
	_, err := c.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
}

// longParagraph exceeds the page text cap so truncation is exercised.
func longParagraph() string {
	s := "The quick brown fox jumps over the lazy dog. "
	out := ""
	for len(out) < maxPageText+500 {
		out += s
	}
	return out
}
