package domain

// SearchResult is one reference produced by the research engine and fed
// into prompt assembly.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url,omitempty"`
	Source  string `json:"source"`
	Query   string `json:"query,omitempty"`
}
