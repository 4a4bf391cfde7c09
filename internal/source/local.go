package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyowl/studyowl/internal/kb"
	"github.com/studyowl/studyowl/internal/llm"
)

// Local serves evidence from the on-disk knowledge base.
type Local struct {
	store    *kb.Store
	embedder llm.Embedder
	topK     int
	logger   *slog.Logger
}

// NewLocal returns an adapter over the given knowledge base.
func NewLocal(store *kb.Store, embedder llm.Embedder, topK int, logger *slog.Logger) *Local {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = 3
	}
	return &Local{store: store, embedder: embedder, topK: topK, logger: logger}
}

// Tag implements Adapter.
func (l *Local) Tag() Tag { return TagLocalKB }

// Fetch embeds the query and returns the nearest documents. An empty or
// unbuilt knowledge base is a soft miss, not an error.
func (l *Local) Fetch(ctx context.Context, query string) (Evidence, error) {
	if l.store.Size() == 0 {
		return Evidence{Tag: TagLocalKB, Text: "No local study material has been indexed yet."}, nil
	}

	vec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return Evidence{}, fmt.Errorf("embedding query: %w", err)
	}

	results, err := l.store.Search(vec, l.topK)
	if err != nil {
		return Evidence{}, fmt.Errorf("searching knowledge base: %w", err)
	}
	if len(results) == 0 {
		return Evidence{Tag: TagLocalKB, Text: "No local study material matched this question."}, nil
	}

	var sections []string
	var citations []string
	seen := make(map[string]bool)
	for _, r := range results {
		sections = append(sections, r.Record.Text())
		if src := strings.TrimSpace(r.Record.Source); src != "" && !seen[src] {
			seen[src] = true
			citations = append(citations, src)
		}
	}

	l.logger.Debug("local knowledge base matched", "documents", len(results))
	return Evidence{
		Tag:       TagLocalKB,
		Text:      strings.Join(sections, "\n\n"),
		Citations: citations,
	}, nil
}
