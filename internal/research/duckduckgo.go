package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"assistant-agent/internal/domain"
)

// SourceDuckDuckGo tags results from the free keyword backend.
const SourceDuckDuckGo = "duckduckgo"

// DuckDuckGoClient queries the DuckDuckGo instant-answer API, falling back
// to the HTML results page for organic links when instant answers are thin.
// No API key is required.
type DuckDuckGoClient struct {
	httpClient *http.Client
	apiBaseURL string
	webBaseURL string
}

// instantAnswer is the minimal instant-answer response shape.
type instantAnswer struct {
	Heading        string `json:"Heading"`
	AbstractText   string `json:"AbstractText"`
	AbstractURL    string `json:"AbstractURL"`
	AbstractSource string `json:"AbstractSource"`
	RelatedTopics  []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

// NewDuckDuckGoClient creates a client; a nil httpClient gets a 10 s default.
func NewDuckDuckGoClient(httpClient *http.Client) *DuckDuckGoClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &DuckDuckGoClient{
		httpClient: httpClient,
		apiBaseURL: "https://api.duckduckgo.com",
		webBaseURL: "https://html.duckduckgo.com",
	}
}

// Search returns up to max results for query.
func (c *DuckDuckGoClient) Search(ctx context.Context, query string, max int) ([]domain.SearchResult, error) {
	if max <= 0 {
		return nil, nil
	}
	results, err := c.instantAnswers(ctx, query, max)
	if err != nil {
		results = nil
	}
	if len(results) < max {
		organic, scrapeErr := c.scrapeResultsPage(ctx, query, max-len(results))
		if scrapeErr == nil {
			results = append(results, organic...)
		} else if err != nil {
			// Both paths failed.
			return nil, fmt.Errorf("duckduckgo: %w", errors.Join(err, scrapeErr))
		}
	}
	return results, nil
}

func (c *DuckDuckGoClient) instantAnswers(ctx context.Context, query string, max int) ([]domain.SearchResult, error) {
	u := fmt.Sprintf("%s/?q=%s&format=json&no_html=1&skip_disambig=1",
		c.apiBaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: create request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: instant answer request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: unexpected status %d", res.StatusCode)
	}

	var payload instantAnswer
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("duckduckgo: decode instant answer: %w", err)
	}

	var results []domain.SearchResult
	if payload.AbstractText != "" {
		title := payload.Heading
		if title == "" {
			title = payload.AbstractSource
		}
		results = append(results, domain.SearchResult{
			Title:   title,
			Snippet: payload.AbstractText,
			URL:     payload.AbstractURL,
			Source:  SourceDuckDuckGo,
			Query:   query,
		})
	}
	for _, topic := range payload.RelatedTopics {
		if len(results) >= max {
			break
		}
		if topic.Text == "" || topic.FirstURL == "" {
			continue
		}
		results = append(results, domain.SearchResult{
			Title:   topicTitle(topic.Text),
			Snippet: topic.Text,
			URL:     topic.FirstURL,
			Source:  SourceDuckDuckGo,
			Query:   query,
		})
	}
	return results, nil
}

// scrapeResultsPage pulls organic links off the HTML results page. Link
// anchors carry class result__a; that is the whole contract with the page.
func (c *DuckDuckGoClient) scrapeResultsPage(ctx context.Context, query string, max int) ([]domain.SearchResult, error) {
	u := fmt.Sprintf("%s/html/?q=%s", c.webBaseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: create scrape request: %w", err)
	}
	req.Header.Set("User-Agent", crawlUserAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: results page request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: results page status %d", res.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(res.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse results page: %w", err)
	}

	var results []domain.SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "result__a") {
			href := attrValue(n, "href")
			title := strings.TrimSpace(textContent(n))
			if href != "" && title != "" {
				results = append(results, domain.SearchResult{
					Title:  title,
					URL:    href,
					Source: SourceDuckDuckGo,
					Query:  query,
				})
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return results, nil
}

// topicTitle truncates a related-topic blurb into a title-sized string.
func topicTitle(text string) string {
	if idx := strings.Index(text, " - "); idx > 0 {
		return text[:idx]
	}
	if len(text) > 80 {
		return text[:80]
	}
	return text
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attrValue(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		b.WriteString(textContent(child))
	}
	return b.String()
}
