package research

import (
	"context"
	"fmt"

	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Searcher is the research collaborator contract: query in, structured
// results out. Implementations must be safe for concurrent use; the
// research-synthesis step fans out across several searchers at once.
type Searcher interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// GoogleSearcher implements Searcher on the Google Custom Search API.
type GoogleSearcher struct {
	name string
	svc  *customsearch.Service
	cx   string
}

// NewGoogleSearcher creates a named searcher bound to one search engine id.
func NewGoogleSearcher(ctx context.Context, name, apiKey, cx string) (*GoogleSearcher, error) {
	svc, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleSearcher{name: name, svc: svc, cx: cx}, nil
}

// Name returns the searcher's name, recorded on every result it produces.
func (s *GoogleSearcher) Name() string { return s.name }

// Search runs one query and maps the hits into Results.
func (s *GoogleSearcher) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 || limit > 10 {
		limit = 5
	}

	resp, err := s.svc.Cse.List().Context(ctx).Cx(s.cx).Q(query).Num(int64(limit)).Do()
	if err != nil {
		return nil, fmt.Errorf("search %q failed: %w", query, err)
	}

	results := make([]Result, 0, len(resp.Items))
	for _, item := range resp.Items {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
			Source:  s.name,
		})
	}
	return results, nil
}

// Dedup removes results with duplicate URLs, preserving first-seen order.
func Dedup(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		out = append(out, r)
	}
	return out
}
