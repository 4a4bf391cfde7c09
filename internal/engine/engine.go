// Package engine orchestrates a question through the full pipeline: cache
// lookup, source classification, concurrent evidence fetch, answer synthesis,
// and persistence.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/studyowl/studyowl/internal/cache"
	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/memory"
	"github.com/studyowl/studyowl/internal/source"
)

// historyK bounds how many related past queries are offered to the
// synthesis prompt.
const historyK = 3

// ErrEmptyQuery is returned when the query is blank after trimming.
var ErrEmptyQuery = errors.New("query must not be empty")

// ErrEmptyUser is returned when no user id was provided.
var ErrEmptyUser = errors.New("user id must not be empty")

// Classifier picks the sources worth consulting for a query.
type Classifier interface {
	Classify(ctx context.Context, query string) []source.Tag
}

// Result is a synthesized answer with the citations that informed it.
type Result struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations,omitempty"`
	Cached    bool     `json:"cached"`
}

// Engine answers questions. All dependencies are injected so tests can run
// the full pipeline against mocks.
type Engine struct {
	classifier    Classifier
	adapters      map[source.Tag]source.Adapter
	cache         *cache.Cache
	queries       *memory.QueryLog
	generator     llm.Generator
	sourceTimeout time.Duration
	logger        *slog.Logger
}

// Params collects the engine's dependencies.
type Params struct {
	Classifier    Classifier
	Adapters      []source.Adapter
	Cache         *cache.Cache
	Queries       *memory.QueryLog
	Generator     llm.Generator
	SourceTimeout time.Duration
	Logger        *slog.Logger
}

// New assembles the engine.
func New(p Params) *Engine {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.SourceTimeout <= 0 {
		p.SourceTimeout = 10 * time.Second
	}

	adapters := make(map[source.Tag]source.Adapter, len(p.Adapters))
	for _, a := range p.Adapters {
		adapters[a.Tag()] = a
	}

	return &Engine{
		classifier:    p.Classifier,
		adapters:      adapters,
		cache:         p.Cache,
		queries:       p.Queries,
		generator:     p.Generator,
		sourceTimeout: p.SourceTimeout,
		logger:        p.Logger,
	}
}

// Answer runs the query through the pipeline and returns the synthesized
// answer. A cache hit short-circuits before any source is consulted.
func (e *Engine) Answer(ctx context.Context, userID, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}
	if strings.TrimSpace(userID) == "" {
		return Result{}, ErrEmptyUser
	}

	start := time.Now()
	logger := e.logger.With("user_id", userID)

	if rec, ok, err := e.cache.Lookup(ctx, userID, query); err != nil {
		// A broken cache must not take down the pipeline.
		logger.Warn("cache lookup failed", "error", err)
	} else if ok {
		logger.Info("answered from cache", "elapsed", time.Since(start))
		return Result{Answer: rec.Answer, Cached: true}, nil
	}

	tags := e.classifier.Classify(ctx, query)
	logger.Debug("classified query", "sources", tags)

	evidence := e.fetchAll(ctx, logger, tags, query)
	contextText, citations := mergeEvidence(evidence)

	history, err := e.queries.Similar(ctx, userID, query, historyK)
	if err != nil {
		// History enriches the prompt but is not required for an answer.
		logger.Warn("query history lookup failed", "error", err)
		history = nil
	}

	reply, err := e.generator.Generate(ctx, synthesisPrompt(query, contextText, history))
	if err != nil {
		return Result{}, fmt.Errorf("synthesizing answer: %w", err)
	}
	answer := strings.TrimSpace(llm.StripReasoning(reply))

	if _, err := e.queries.Record(ctx, userID, query); err != nil {
		return Result{}, fmt.Errorf("recording query: %w", err)
	}
	if _, err := e.cache.Store(ctx, userID, query, answer); err != nil {
		return Result{}, fmt.Errorf("caching answer: %w", err)
	}

	logger.Info("answered query", "sources", len(tags), "citations", len(citations), "elapsed", time.Since(start))
	return Result{Answer: answer, Citations: citations}, nil
}

// fetchAll consults the requested sources concurrently. Each fetch gets its
// own timeout, and a failing source never cancels its siblings: the failure
// is demoted to explanatory evidence instead.
func (e *Engine) fetchAll(ctx context.Context, logger *slog.Logger, tags []source.Tag, query string) map[source.Tag]source.Evidence {
	results := make([]source.Evidence, len(tags))
	g, gctx := errgroup.WithContext(ctx)

	for i, tag := range tags {
		adapter, ok := e.adapters[tag]
		if !ok {
			logger.Warn("no adapter for source", "source", tag)
			continue
		}
		g.Go(func() error {
			fetchCtx, cancel := context.WithTimeout(gctx, e.sourceTimeout)
			defer cancel()

			ev, err := adapter.Fetch(fetchCtx, query)
			if err != nil {
				logger.Warn("source fetch failed", "source", tag, "error", err)
				ev = source.Evidence{
					Tag:  tag,
					Text: fmt.Sprintf("%s is currently unavailable.", tag.Label()),
				}
			}
			results[i] = ev
			return nil
		})
	}
	_ = g.Wait()

	out := make(map[source.Tag]source.Evidence, len(tags))
	for _, ev := range results {
		if ev.Tag != "" {
			out[ev.Tag] = ev
		}
	}
	return out
}

// mergeEvidence assembles the evidence sections in the fixed source order,
// so the synthesis context does not depend on fetch completion order.
// Citations are deduplicated keeping first occurrence.
func mergeEvidence(evidence map[source.Tag]source.Evidence) (string, []string) {
	var sections []string
	var citations []string
	seen := make(map[string]bool)

	for _, tag := range source.AllTags() {
		ev, ok := evidence[tag]
		if !ok || strings.TrimSpace(ev.Text) == "" {
			continue
		}
		sections = append(sections, fmt.Sprintf("### %s\n%s", tag.Label(), ev.Text))
		for _, c := range ev.Citations {
			if c == "" || seen[c] {
				continue
			}
			seen[c] = true
			citations = append(citations, c)
		}
	}
	return strings.Join(sections, "\n\n"), citations
}

// synthesisPrompt builds the final generation prompt from the merged
// evidence and the user's related past questions.
func synthesisPrompt(query, contextText string, history []memory.QueryRecord) string {
	var sb strings.Builder
	sb.WriteString("You are a patient programming tutor. Answer the student's question using the evidence below. ")
	sb.WriteString("Prefer the evidence over your own knowledge, admit when the evidence does not cover the question, and include short code examples where they help.\n\n")

	if contextText != "" {
		sb.WriteString("Evidence:\n")
		sb.WriteString(contextText)
		sb.WriteString("\n\n")
	} else {
		sb.WriteString("No evidence was retrieved; say so and answer from general knowledge, clearly marked as such.\n\n")
	}

	if len(history) > 0 {
		sb.WriteString("The student previously asked:\n")
		for _, h := range history {
			sb.WriteString("- ")
			sb.WriteString(h.Query)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Question: ")
	sb.WriteString(query)
	sb.WriteString("\nAnswer:")
	return sb.String()
}
