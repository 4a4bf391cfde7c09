// Package classifier decides which evidence sources are worth consulting for
// a query. It asks a small model and parses the reply defensively: anything
// unparseable degrades to the local knowledge base alone, never to an error.
package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/source"
)

const promptTemplate = `You are a routing assistant for a study helper.
Given a student's question, pick every source worth consulting from this list:

- LocalKB: curated study material with explanations and code examples
- StackOverflow: community answers to concrete programming problems and errors
- Wikipedia: encyclopedia articles on concepts, history, and terminology
- YouTube: video tutorials and walkthroughs

Reply with ONLY the source names, comma separated, nothing else.

Question: %s
Sources:`

// Classifier routes queries to sources.
type Classifier struct {
	generator llm.Generator
	model     string
	logger    *slog.Logger
}

// New returns a classifier that asks the given model. An empty model name
// uses the generator's default.
func New(generator llm.Generator, model string, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{generator: generator, model: model, logger: logger}
}

// Classify returns the sources to consult for the query, deduplicated and in
// canonical order. It never returns an error: a failed or unparseable model
// call falls back to the local knowledge base.
func (c *Classifier) Classify(ctx context.Context, query string) []source.Tag {
	prompt := fmt.Sprintf(promptTemplate, query)

	var reply string
	var err error
	if c.model != "" {
		reply, err = c.generator.GenerateWith(ctx, c.model, prompt)
	} else {
		reply, err = c.generator.Generate(ctx, prompt)
	}
	if err != nil {
		c.logger.Warn("source classification failed, using local knowledge base", "error", err)
		return []source.Tag{source.TagLocalKB}
	}

	tags := Parse(reply)
	if len(tags) == 0 {
		c.logger.Warn("source classification unparseable, using local knowledge base", "reply", reply)
		return []source.Tag{source.TagLocalKB}
	}
	return tags
}

// Parse extracts source tags from a model reply. Matching is insensitive to
// case, whitespace, and underscores, and accepts the older source spellings
// still produced by some fine-tuned models ("FAISS DB", "StackOverFlow").
// Results are deduplicated and returned in canonical order.
func Parse(reply string) []source.Tag {
	reply = llm.StripReasoning(reply)

	picked := make(map[source.Tag]bool)
	for _, field := range strings.FieldsFunc(reply, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	}) {
		if tag, ok := canonicalize(field); ok {
			picked[tag] = true
		}
	}

	var out []source.Tag
	for _, tag := range source.AllTags() {
		if picked[tag] {
			out = append(out, tag)
		}
	}
	return out
}

func canonicalize(token string) (source.Tag, bool) {
	key := strings.ToLower(token)
	for _, drop := range []string{" ", "\t", "_", "-", "."} {
		key = strings.ReplaceAll(key, drop, "")
	}

	switch key {
	case "localkb", "faissdb", "localknowledgebase":
		return source.TagLocalKB, true
	case "stackoverflow":
		return source.TagStackOverflow, true
	case "wikipedia":
		return source.TagWikipedia, true
	case "youtube":
		return source.TagYouTube, true
	default:
		return "", false
	}
}
