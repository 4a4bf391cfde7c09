// Package kb holds the curated knowledge base: documents embedded offline by
// the index command and served read-only at answer time.
package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/vecstore"
)

// File names of the knowledge-base pair inside the data directory.
const (
	IndexFile = "knowledge.index"
	MetaFile  = "knowledge.json"
)

// Document is one curated knowledge-base entry. Documents are created at
// index-build time and never mutated or deleted; identity is the position in
// the vector index.
type Document struct {
	Topic       string `json:"topic"`
	Explanation string `json:"explanation"`
	Example     string `json:"example"`
	Source      string `json:"source"`
}

// Text renders the document the way it was embedded, so query and document
// vectors live in the same space.
func (d Document) Text() string {
	return fmt.Sprintf("Topic: %s\nExplanation: %s\nExample: %s", d.Topic, d.Explanation, d.Example)
}

// Store is the read-only knowledge base backing the local adapter.
type Store struct {
	pair   *vecstore.Pair[Document]
	logger *slog.Logger
}

// Open loads the knowledge-base pair from dir. A knowledge base that has
// never been built opens empty; searches then return no results rather than
// failing.
func Open(dir string, dim int, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pair, err := vecstore.OpenPair[Document](
		filepath.Join(dir, IndexFile),
		filepath.Join(dir, MetaFile),
		dim, vecstore.Cosine, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}

	logger.Debug("opened knowledge base", "documents", pair.Size())
	return &Store{pair: pair, logger: logger}, nil
}

// Search returns the k nearest documents to the query vector.
func (s *Store) Search(vec []float32, k int) ([]vecstore.Result[Document], error) {
	results, err := s.pair.Search(vec, k)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge base: %w", err)
	}
	return results, nil
}

// Size returns the number of indexed documents.
func (s *Store) Size() int { return s.pair.Size() }

// Build embeds every document of a curated JSON dataset and writes a fresh
// knowledge-base pair into dir, replacing any previous build. This is the
// offline step behind `studyowl index`.
func Build(ctx context.Context, embedder llm.Embedder, datasetPath, dir string, dim int, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(datasetPath) // #nosec G304 -- operator-supplied path
	if err != nil {
		return 0, fmt.Errorf("reading dataset: %w", err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return 0, fmt.Errorf("decoding dataset: %w", err)
	}
	if len(docs) == 0 {
		return 0, fmt.Errorf("dataset %s contains no documents", datasetPath)
	}

	index, err := vecstore.NewIndex(dim, vecstore.Cosine)
	if err != nil {
		return 0, err
	}
	meta := vecstore.NewMetadata[Document]()

	for i, doc := range docs {
		vec, err := embedder.Embed(ctx, doc.Text())
		if err != nil {
			return 0, fmt.Errorf("embedding document %d (%q): %w", i, doc.Topic, err)
		}
		if _, err := index.Add(vec); err != nil {
			return 0, fmt.Errorf("indexing document %d (%q): %w", i, doc.Topic, err)
		}
		meta.Append(doc)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, fmt.Errorf("creating data directory: %w", err)
	}
	if err := meta.Persist(filepath.Join(dir, MetaFile)); err != nil {
		return 0, err
	}
	if err := index.Persist(filepath.Join(dir, IndexFile)); err != nil {
		return 0, err
	}

	logger.Info("built knowledge base", "documents", len(docs), "dir", dir)
	return len(docs), nil
}
