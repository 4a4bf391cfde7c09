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

// maxDescriptionLen caps each video description in the evidence text.
const maxDescriptionLen = 200

// YouTubeConfig configures the video adapter.
type YouTubeConfig struct {
	BaseURL    string        // API root, e.g. https://www.googleapis.com
	Key        string        // Data API v3 key, required for any results
	MaxResults int           // videos per query
	Timeout    time.Duration // per-request timeout
}

// YouTube surfaces tutorial videos through the Data API v3 search endpoint.
// Without an API key the adapter reports itself unconfigured rather than
// failing the whole answer.
type YouTube struct {
	cfg    YouTubeConfig
	client *http.Client
	logger *slog.Logger
}

// NewYouTube returns the adapter. Unset config fields get production
// defaults.
func NewYouTube(cfg YouTubeConfig, logger *slog.Logger) *YouTube {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &YouTube{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

// Tag implements Adapter.
func (y *YouTube) Tag() Tag { return TagYouTube }

type ytSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"snippet"`
	} `json:"items"`
}

// Fetch implements Adapter.
func (y *YouTube) Fetch(ctx context.Context, query string) (Evidence, error) {
	if y.cfg.Key == "" {
		return Evidence{
			Tag:  TagYouTube,
			Text: "YouTube search is not configured; no video suggestions are available.",
		}, nil
	}

	params := url.Values{
		"part":       {"snippet"},
		"q":          {query},
		"type":       {"video"},
		"maxResults": {fmt.Sprint(y.cfg.MaxResults)},
		"key":        {y.cfg.Key},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		y.cfg.BaseURL+"/youtube/v3/search?"+params.Encode(), nil)
	if err != nil {
		return Evidence{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := y.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return Evidence{
				Tag:  TagYouTube,
				Text: "The YouTube request timed out; no video suggestions are available.",
			}, nil
		}
		return Evidence{}, fmt.Errorf("calling youtube: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Quota exhaustion and key rejection both come back as 403.
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return Evidence{
			Tag:  TagYouTube,
			Text: "YouTube declined the request (quota exhausted or key rejected); no video suggestions are available.",
		}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Evidence{}, fmt.Errorf("youtube returned status %d", resp.StatusCode)
	}

	var result ytSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Evidence{}, fmt.Errorf("decoding youtube response: %w", err)
	}
	if len(result.Items) == 0 {
		return Evidence{
			Tag:  TagYouTube,
			Text: "No YouTube videos were found for this query.",
		}, nil
	}

	var lines []string
	var citations []string
	for i, item := range result.Items {
		desc := item.Snippet.Description
		if runes := []rune(desc); len(runes) > maxDescriptionLen {
			desc = string(runes[:maxDescriptionLen]) + "..."
		}
		watch := "https://www.youtube.com/watch?v=" + item.ID.VideoID
		lines = append(lines, fmt.Sprintf("%d. %s\n   %s\n   %s", i+1, item.Snippet.Title, desc, watch))
		citations = append(citations, watch)
	}

	return Evidence{
		Tag:       TagYouTube,
		Text:      strings.Join(lines, "\n"),
		Citations: citations,
	}, nil
}
