package research

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	// SourceWebsiteCrawl tags results produced by the deep-crawl phase.
	SourceWebsiteCrawl = "website crawl"

	crawlUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	// maxPageText bounds the extracted body so prompts stay a sane size.
	maxPageText = 2000

	maxOutboundLinks = 5
)

// Page is the extracted content of one crawled URL.
type Page struct {
	URL   string
	Title string
	Text  string
	Links []string
}

// PageCrawler fetches pages and extracts readable text plus outbound links.
type PageCrawler struct {
	httpClient *http.Client
}

// NewPageCrawler creates a crawler; a nil httpClient gets a 15 s default,
// matching the longer budget page fetches get over API calls.
func NewPageCrawler(httpClient *http.Client) *PageCrawler {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &PageCrawler{httpClient: httpClient}
}

// Fetch downloads pageURL and returns its title, a bounded plain-text body
// (readability's main content when it can find one, the whole body text
// otherwise) and up to five outbound links.
func (c *PageCrawler) Fetch(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("crawl: create request: %w", err)
	}
	req.Header.Set("User-Agent", crawlUserAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("crawl: fetch %s: %w", pageURL, err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("crawl: %s returned status %d", pageURL, res.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return Page{}, fmt.Errorf("crawl: read %s: %w", pageURL, err)
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return Page{}, fmt.Errorf("crawl: parse url: %w", err)
	}

	page := Page{URL: pageURL}

	if article, err := readability.FromReader(bytes.NewReader(body), parsed); err == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = collapseWhitespace(article.TextContent)
	}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		if page.Text == "" {
			return Page{}, fmt.Errorf("crawl: parse %s: %w", pageURL, err)
		}
		return capPage(page), nil
	}

	if page.Title == "" {
		page.Title = documentTitle(doc)
	}
	if page.Text == "" {
		page.Text = collapseWhitespace(textContent(bodyNode(doc)))
	}
	page.Links = outboundLinks(doc, parsed, maxOutboundLinks)

	return capPage(page), nil
}

func capPage(p Page) Page {
	p.Text = capText(p.Text, maxPageText)
	return p
}

// capText truncates s to at most n bytes without splitting a multi-byte
// rune.
func capText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func documentTitle(doc *html.Node) string {
	var title string
	var walk func(*html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode && n.Data == "title" {
			title = strings.TrimSpace(textContent(n))
			return true
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if walk(child) {
				return true
			}
		}
		return false
	}
	walk(doc)
	return title
}

func bodyNode(doc *html.Node) *html.Node {
	var body *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if body != nil {
			return
		}
		if n.Type == html.ElementNode && n.Data == "body" {
			body = n
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	if body == nil {
		return doc
	}
	return body
}

// outboundLinks collects up to max absolute http(s) links, resolving
// relative hrefs against base and skipping same-page fragments.
func outboundLinks(doc *html.Node, base *url.URL, max int) []string {
	var links []string
	seen := map[string]bool{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(links) >= max {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" {
			if href := attrValue(n, "href"); href != "" && !strings.HasPrefix(href, "#") {
				if resolved, err := base.Parse(href); err == nil {
					if resolved.Scheme == "http" || resolved.Scheme == "https" {
						abs := resolved.String()
						if !seen[abs] {
							seen[abs] = true
							links = append(links, abs)
						}
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return links
}
