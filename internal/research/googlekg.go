package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"assistant-agent/internal/integrations/paramstore"

	"assistant-agent/internal/domain"
)

// SourceGoogleKG tags results from the structured knowledge-graph backend.
const SourceGoogleKG = "google_kg"

// GoogleKGClient queries the Google Knowledge Graph entity search. The API
// key is resolved from the parameter store at call time; an unconfigured key
// (empty or the NOT_SET placeholder) disables the backend.
type GoogleKGClient struct {
	httpClient *http.Client
	baseURL    string
	params     paramstore.Getter
	keyParam   string
}

// kgResponse is the minimal entity-search response shape.
type kgResponse struct {
	ItemListElement []struct {
		Result struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			URL         string `json:"url"`

			DetailedDescription struct {
				ArticleBody string `json:"articleBody"`
				URL         string `json:"url"`
			} `json:"detailedDescription"`
		} `json:"result"`
	} `json:"itemListElement"`
}

// NewGoogleKGClient creates a client reading its key from keyParam.
func NewGoogleKGClient(httpClient *http.Client, params paramstore.Getter, keyParam string) *GoogleKGClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &GoogleKGClient{
		httpClient: httpClient,
		baseURL:    "https://kgsearch.googleapis.com/v1/entities:search",
		params:     params,
		keyParam:   keyParam,
	}
}

// Configured reports whether a usable API key is available right now.
func (c *GoogleKGClient) Configured(ctx context.Context) bool {
	return paramstore.GetOptionalParameter(ctx, c.params, c.keyParam) != ""
}

// Search returns up to max entity results for query. An unconfigured key
// yields zero results without error.
func (c *GoogleKGClient) Search(ctx context.Context, query string, max int) ([]domain.SearchResult, error) {
	if max <= 0 {
		return nil, nil
	}
	key := paramstore.GetOptionalParameter(ctx, c.params, c.keyParam)
	if key == "" {
		return nil, nil
	}

	if max > 10 {
		max = 10
	}
	u := fmt.Sprintf("%s?query=%s&limit=%d&key=%s",
		c.baseURL, url.QueryEscape(query), max, url.QueryEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("googlekg: create request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googlekg: request: %w", err)
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("googlekg: unexpected status %d", res.StatusCode)
	}

	var payload kgResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("googlekg: decode response: %w", err)
	}

	var results []domain.SearchResult
	for _, item := range payload.ItemListElement {
		if len(results) >= max {
			break
		}
		r := item.Result
		if r.Name == "" {
			continue
		}
		snippet := r.DetailedDescription.ArticleBody
		if snippet == "" {
			snippet = r.Description
		}
		link := r.DetailedDescription.URL
		if link == "" {
			link = r.URL
		}
		results = append(results, domain.SearchResult{
			Title:   r.Name,
			Snippet: snippet,
			URL:     link,
			Source:  SourceGoogleKG,
			Query:   query,
		})
	}
	return results, nil
}
