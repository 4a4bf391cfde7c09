package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// StackOverflowConfig configures the Stack Exchange adapter.
type StackOverflowConfig struct {
	BaseURL string        // API root, e.g. https://api.stackexchange.com/2.3
	Site    string        // site parameter, e.g. "stackoverflow"
	Key     string        // optional API key, raises the quota
	Backoff time.Duration // wait before the single retry after a 429
	Timeout time.Duration // per-request timeout
}

// StackOverflow answers from the highest-voted answer of the most relevant
// question. Every request passes a shared one-per-second gate because the
// Stack Exchange API throttles aggressively; a 429 earns one retry of the
// whole fetch after the configured backoff.
type StackOverflow struct {
	cfg     StackOverflowConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// errThrottled marks a 429 internally so the fetch loop can decide whether a
// retry is still available.
var errThrottled = errors.New("upstream throttled")

// NewStackOverflow returns the adapter. Unset config fields get production
// defaults.
func NewStackOverflow(cfg StackOverflowConfig, logger *slog.Logger) *StackOverflow {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stackexchange.com/2.3"
	}
	if cfg.Site == "" {
		cfg.Site = "stackoverflow"
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StackOverflow{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logger,
		sleep:   sleepContext,
	}
}

// Tag implements Adapter.
func (s *StackOverflow) Tag() Tag { return TagStackOverflow }

// Fetch implements Adapter.
func (s *StackOverflow) Fetch(ctx context.Context, query string) (Evidence, error) {
	ev, err := s.fetchOnce(ctx, query)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, errThrottled) {
		return s.classifyError(err)
	}

	s.logger.Warn("stack exchange throttled, backing off", "backoff", s.cfg.Backoff)
	if err := s.sleep(ctx, s.cfg.Backoff); err != nil {
		return Evidence{}, err
	}

	ev, err = s.fetchOnce(ctx, query)
	if err == nil {
		return ev, nil
	}
	if errors.Is(err, errThrottled) {
		return Evidence{
			Tag:  TagStackOverflow,
			Text: "Stack Overflow is rate limiting requests right now; no community answer could be retrieved.",
		}, nil
	}
	return s.classifyError(err)
}

// classifyError converts expected transport failures into soft evidence.
func (s *StackOverflow) classifyError(err error) (Evidence, error) {
	if isTimeout(err) {
		return Evidence{
			Tag:  TagStackOverflow,
			Text: "The Stack Overflow request timed out; no community answer could be retrieved.",
		}, nil
	}
	return Evidence{}, err
}

type soQuestion struct {
	QuestionID int64  `json:"question_id"`
	Title      string `json:"title"`
	Link       string `json:"link"`
}

type soAnswer struct {
	Score int    `json:"score"`
	Body  string `json:"body"`
}

func (s *StackOverflow) fetchOnce(ctx context.Context, query string) (Evidence, error) {
	var search struct {
		Items []soQuestion `json:"items"`
	}
	params := url.Values{
		"order": {"desc"},
		"sort":  {"relevance"},
		"q":     {query},
		"site":  {s.cfg.Site},
	}
	if err := s.get(ctx, "/search/advanced", params, &search); err != nil {
		return Evidence{}, err
	}
	if len(search.Items) == 0 {
		return Evidence{
			Tag:  TagStackOverflow,
			Text: "No relevant Stack Overflow questions were found for this query.",
		}, nil
	}

	question := search.Items[0]

	var answers struct {
		Items []soAnswer `json:"items"`
	}
	params = url.Values{
		"order":  {"desc"},
		"sort":   {"votes"},
		"site":   {s.cfg.Site},
		"filter": {"withbody"},
	}
	path := fmt.Sprintf("/questions/%d/answers", question.QuestionID)
	if err := s.get(ctx, path, params, &answers); err != nil {
		return Evidence{}, err
	}
	if len(answers.Items) == 0 {
		// The question itself is still worth citing.
		return Evidence{
			Tag:       TagStackOverflow,
			Text:      fmt.Sprintf("The Stack Overflow question %q has no answers yet.", question.Title),
			Citations: []string{question.Link},
		}, nil
	}

	best := answers.Items[0]
	for _, a := range answers.Items[1:] {
		if a.Score > best.Score {
			best = a
		}
	}

	text := fmt.Sprintf("Question: %s\nTop answer (score %d):\n%s",
		question.Title, best.Score, flattenHTML(best.Body))
	return Evidence{
		Tag:       TagStackOverflow,
		Text:      text,
		Citations: []string{question.Link},
	}, nil
}

// get performs one rate-limited API call and decodes the JSON body.
func (s *StackOverflow) get(ctx context.Context, path string, params url.Values, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	if s.cfg.Key != "" {
		params.Set("key", s.cfg.Key)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling stack exchange: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errThrottled
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("stack exchange returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding stack exchange response: %w", err)
	}
	return nil
}

// flattenHTML extracts the text content of an HTML fragment, keeping code
// blocks readable.
func flattenHTML(fragment string) string {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			sb.WriteString(n.Data)
		case n.Type == html.ElementNode && (n.Data == "p" || n.Data == "pre" || n.Data == "br" || n.Data == "li"):
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.TrimSpace(sb.String())
}

// sleepContext sleeps for d unless the context ends first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isTimeout reports whether the error chain contains a deadline or network
// timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr interface{ Timeout() bool }
	return errors.As(err, &nerr) && nerr.Timeout()
}
