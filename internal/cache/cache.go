// Package cache stores synthesized answers keyed by query embedding, so a
// repeated question is served without touching any upstream source.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/memory"
	"github.com/studyowl/studyowl/internal/vecstore"
)

// File names of the cache pair inside the data directory.
const (
	IndexFile = "responses.index"
	MetaFile  = "responses.json"
)

// shortlistSize bounds the nearest-neighbor scan used by Store's duplicate
// check.
const shortlistSize = 8

// ResponseRecord is one cached answer.
type ResponseRecord struct {
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache is a semantic answer cache over an embedded query space. A lookup
// hits only when the nearest cached query is within the distance threshold
// AND its text matches the incoming query after normalization; embeddings
// alone are too coarse to distinguish "what is X" from "what is not X".
type Cache struct {
	pair      *vecstore.Pair[ResponseRecord]
	embedder  llm.Embedder
	threshold float32
	logger    *slog.Logger
	now       func() time.Time

	// Serializes Store's check-then-append.
	mu sync.Mutex
}

// Open loads the cache pair from dir, creating an empty cache on first use.
func Open(dir string, dim int, threshold float32, embedder llm.Embedder, logger *slog.Logger) (*Cache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pair, err := vecstore.OpenPair[ResponseRecord](
		filepath.Join(dir, IndexFile),
		filepath.Join(dir, MetaFile),
		dim, vecstore.Cosine, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("opening response cache: %w", err)
	}

	return &Cache{
		pair:      pair,
		embedder:  embedder,
		threshold: threshold,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Lookup returns the user's cached answer for the query, if any. The bool
// reports whether the cache hit. Records are keyed per (user, query), so one
// user's answer is never served to another.
func (c *Cache) Lookup(ctx context.Context, userID, query string) (ResponseRecord, bool, error) {
	if c.pair.Size() == 0 {
		return ResponseRecord{}, false, nil
	}

	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return ResponseRecord{}, false, fmt.Errorf("embedding query: %w", err)
	}

	results, err := c.pair.Search(vec, shortlistSize)
	if err != nil {
		return ResponseRecord{}, false, fmt.Errorf("searching response cache: %w", err)
	}

	key := memory.Normalize(query)
	for _, r := range results {
		// Results arrive in ascending distance; past the threshold nothing
		// further can hit.
		if r.Distance > c.threshold {
			break
		}
		if r.Record.UserID != userID || memory.Normalize(r.Record.Query) != key {
			continue
		}
		c.logger.Debug("cache hit", "user_id", userID, "distance", r.Distance)
		return r.Record, true, nil
	}
	return ResponseRecord{}, false, nil
}

// Store caches the answer for (userID, query). Storing the same user and
// normalized query twice keeps the first entry and is not an error; the
// bool reports whether a new record was written.
func (c *Cache) Store(ctx context.Context, userID, query, answer string) (bool, error) {
	vec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return false, fmt.Errorf("embedding query: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := memory.Normalize(query)
	results, err := c.pair.Search(vec, shortlistSize)
	if err != nil {
		return false, fmt.Errorf("searching response cache: %w", err)
	}
	for _, r := range results {
		if r.Record.UserID == userID && memory.Normalize(r.Record.Query) == key {
			return false, nil
		}
	}

	rec := ResponseRecord{
		UserID:    userID,
		Query:     strings.TrimSpace(query),
		Answer:    answer,
		Timestamp: c.now().UTC(),
	}
	if _, err := c.pair.Append(vec, rec); err != nil {
		return false, fmt.Errorf("appending response record: %w", err)
	}
	return true, nil
}

// Size returns the number of cached answers.
func (c *Cache) Size() int { return c.pair.Size() }
