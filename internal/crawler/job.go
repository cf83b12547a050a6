// Package crawler implements the scheduled job that searches the web for a
// configured set of queries and stores crawled page text in S3, where the
// knowledge base ingests it.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/net/html"

	"assistant-agent/internal/research"
)

const (
	// maxURLsPerRun bounds one invocation; the schedule provides coverage
	// over time.
	maxURLsPerRun = 20

	// crawlPacing spaces consecutive page fetches to be polite to targets.
	crawlPacing = time.Second

	// maxStoredChars caps one stored document.
	maxStoredChars = 100_000

	keyPrefix = "web-crawled-data/"

	perQueryURLs = 5

	crawlUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// DefaultQueries seed the crawl when no SEARCH_QUERIES override is set.
var DefaultQueries = []string{"AI news", "technology updates", "programming tutorials"}

// fallbackURLs are crawled when every search comes back empty, so a run
// always produces something for the knowledge base.
var fallbackURLs = []string{
	"https://news.ycombinator.com",
	"https://www.reddit.com/r/technology",
	"https://techcrunch.com",
}

// s3API is the minimal S3 surface the job needs.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Engine is one named search backend contributing URLs to the crawl.
type Engine struct {
	Name     string
	Searcher research.Searcher
}

// Job is one configured crawl run.
type Job struct {
	engines    []Engine
	httpClient *http.Client
	store      s3API
	bucket     string
	queries    []string

	// sleep and now are swappable in tests.
	sleep func(time.Duration)
	now   func() time.Time
}

// NewJob wires a crawl job. At least one engine and a bucket are required;
// empty queries fall back to the defaults.
func NewJob(engines []Engine, httpClient *http.Client, store s3API, bucket string, queries []string) (*Job, error) {
	if len(engines) == 0 {
		return nil, errors.New("crawler: at least one search engine is required")
	}
	if store == nil {
		return nil, errors.New("crawler: object store must not be nil")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("crawler: bucket is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if len(queries) == 0 {
		queries = DefaultQueries
	}
	return &Job{
		engines:    engines,
		httpClient: httpClient,
		store:      store,
		bucket:     bucket,
		queries:    queries,
		sleep:      time.Sleep,
		now:        time.Now,
	}, nil
}

// Report summarizes one run. Per-URL failures are recorded, not fatal.
type Report struct {
	Queries   []string `json:"queries_searched"`
	Engines   []string `json:"search_engines"`
	URLsFound int      `json:"urls_found"`
	Results   []string `json:"results"`
}

// Run searches every query with every engine, then crawls the discovered
// URLs into the bucket. Search and crawl failures degrade to log lines and
// report entries; only a fully broken configuration fails the run.
func (j *Job) Run(ctx context.Context) (Report, error) {
	report := Report{Queries: j.queries}
	for _, e := range j.engines {
		report.Engines = append(report.Engines, e.Name)
	}

	var urls []string
	seen := map[string]bool{}
	for _, query := range j.queries {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		found := 0
		for _, engine := range j.engines {
			results, err := engine.Searcher.Search(ctx, query, perQueryURLs)
			if err != nil {
				slog.Warn("search failed", "engine", engine.Name, "query", query, "err", err)
				continue
			}
			for _, r := range results {
				if r.URL == "" || seen[r.URL] {
					continue
				}
				seen[r.URL] = true
				urls = append(urls, r.URL)
				found++
			}
		}
		report.Results = append(report.Results,
			fmt.Sprintf("Found %d new URLs for query: %s using %d engines", found, query, len(j.engines)))
	}

	if len(urls) == 0 {
		slog.Info("no search results, crawling fallback URLs")
		urls = append(urls, fallbackURLs...)
	}
	if len(urls) > maxURLsPerRun {
		urls = urls[:maxURLsPerRun]
	}
	report.URLsFound = len(urls)

	for i, pageURL := range urls {
		if i > 0 {
			j.sleep(crawlPacing)
		}
		outcome, err := j.crawlOne(ctx, pageURL)
		if err != nil {
			slog.Warn("crawl failed", "url", pageURL, "err", err)
			report.Results = append(report.Results, fmt.Sprintf("Error processing %s: %v", pageURL, err))
			continue
		}
		report.Results = append(report.Results, outcome)
	}
	return report, nil
}

// crawlOne fetches one page, strips it to plain text and stores it under a
// key derived from the URL.
func (j *Job) crawlOne(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", crawlUserAgent)

	res, err := j.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d", res.StatusCode)
	}

	doc, err := html.Parse(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	text := pageText(doc)
	if len(text) > maxStoredChars {
		cut := maxStoredChars
		// Never split a multi-byte rune at the cap.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "... [truncated]"
	}

	key, err := objectKey(pageURL)
	if err != nil {
		return "", err
	}
	_, err = j.store.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(j.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain"),
		Metadata: map[string]string{
			"source_url":     pageURL,
			"crawled_at":     strconv.FormatInt(j.now().Unix(), 10),
			"content_length": strconv.Itoa(len(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("store: %w", err)
	}
	return fmt.Sprintf("Successfully processed %s (%d chars)", pageURL, len(text)), nil
}

// objectKey derives a stable S3 key from a page URL, so re-crawling a page
// overwrites its previous snapshot instead of accumulating copies.
func objectKey(pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	domain := strings.TrimPrefix(parsed.Host, "www.")
	path := strings.ReplaceAll(parsed.Path, "/", "_")
	if path == "" {
		path = "index"
	}
	return keyPrefix + domain + path + ".txt", nil
}

// pageText extracts visible text, skipping script and style subtrees, with
// runs of whitespace collapsed.
func pageText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
