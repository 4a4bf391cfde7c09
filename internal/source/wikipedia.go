package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WikipediaConfig configures the encyclopedia adapter.
type WikipediaConfig struct {
	BaseURL string        // wiki root, e.g. https://en.wikipedia.org
	Timeout time.Duration // per-request timeout
}

// Wikipedia answers from the REST summary of the page matching the query.
// A missing page and a disambiguation page are both soft misses: the first
// reports that nothing was found, the second lists candidate titles so the
// user can re-ask more precisely.
type Wikipedia struct {
	cfg    WikipediaConfig
	client *http.Client
	logger *slog.Logger
}

// NewWikipedia returns the adapter. Unset config fields get production
// defaults.
func NewWikipedia(cfg WikipediaConfig, logger *slog.Logger) *Wikipedia {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://en.wikipedia.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Wikipedia{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Tag implements Adapter.
func (w *Wikipedia) Tag() Tag { return TagWikipedia }

type wikiSummary struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Fetch implements Adapter.
func (w *Wikipedia) Fetch(ctx context.Context, query string) (Evidence, error) {
	title := strings.ReplaceAll(strings.TrimSpace(query), " ", "_")
	endpoint := w.cfg.BaseURL + "/api/rest_v1/page/summary/" + url.PathEscape(title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Evidence{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Evidence{
				Tag:  TagWikipedia,
				Text: "The Wikipedia request timed out; no encyclopedia entry could be retrieved.",
			}, nil
		}
		return Evidence{}, fmt.Errorf("calling wikipedia: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return Evidence{
			Tag:  TagWikipedia,
			Text: fmt.Sprintf("No Wikipedia page was found for %q.", strings.TrimSpace(query)),
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Evidence{}, fmt.Errorf("wikipedia returned status %d", resp.StatusCode)
	}

	var summary wikiSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return Evidence{}, fmt.Errorf("decoding wikipedia response: %w", err)
	}

	if summary.Type == "disambiguation" {
		return w.disambiguate(ctx, query)
	}

	citation := summary.ContentURLs.Desktop.Page
	if citation == "" {
		citation = w.cfg.BaseURL + "/wiki/" + url.PathEscape(title)
	}
	return Evidence{
		Tag:       TagWikipedia,
		Text:      fmt.Sprintf("%s: %s", summary.Title, summary.Extract),
		Citations: []string{citation},
	}, nil
}

// disambiguate lists up to five candidate titles for an ambiguous query.
func (w *Wikipedia) disambiguate(ctx context.Context, query string) (Evidence, error) {
	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"srlimit":  {"5"},
		"format":   {"json"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		w.cfg.BaseURL+"/w/api.php?"+params.Encode(), nil)
	if err != nil {
		return Evidence{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return Evidence{}, fmt.Errorf("calling wikipedia search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Evidence{}, fmt.Errorf("wikipedia search returned status %d", resp.StatusCode)
	}

	var result struct {
		Query struct {
			Search []struct {
				Title string `json:"title"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Evidence{}, fmt.Errorf("decoding wikipedia search response: %w", err)
	}

	titles := make([]string, 0, len(result.Query.Search))
	for _, item := range result.Query.Search {
		titles = append(titles, item.Title)
	}
	if len(titles) == 0 {
		return Evidence{
			Tag:  TagWikipedia,
			Text: fmt.Sprintf("The query %q is ambiguous on Wikipedia and no candidate pages were found.", query),
		}, nil
	}

	return Evidence{
		Tag: TagWikipedia,
		Text: fmt.Sprintf("The query %q matches several Wikipedia pages. Possible topics: %s.",
			query, strings.Join(titles, "; ")),
	}, nil
}
