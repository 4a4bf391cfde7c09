// Package memory keeps the append-only log of past user queries, used to
// surface related history during synthesis.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/vecstore"
)

// File names of the query-log pair inside the data directory.
const (
	IndexFile = "queries.index"
	MetaFile  = "queries.json"
)

// shortlistSize bounds the nearest-neighbor scan used for duplicate
// detection and history lookups.
const shortlistSize = 8

// QueryRecord is one logged question.
type QueryRecord struct {
	UserID    string    `json:"user_id"`
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
}

// Normalize maps a query to its duplicate-detection key: surrounding
// whitespace dropped, case folded.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// QueryLog records questions per user, at most once per normalized text.
type QueryLog struct {
	pair     *vecstore.Pair[QueryRecord]
	embedder llm.Embedder
	logger   *slog.Logger
	now      func() time.Time

	// Serializes the check-then-append in Record so concurrent duplicates
	// cannot both pass the existence check.
	mu sync.Mutex
}

// Open loads the query log pair from dir, creating an empty log on first use.
func Open(dir string, dim int, embedder llm.Embedder, logger *slog.Logger) (*QueryLog, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pair, err := vecstore.OpenPair[QueryRecord](
		filepath.Join(dir, IndexFile),
		filepath.Join(dir, MetaFile),
		dim, vecstore.Cosine, logger,
	)
	if err != nil {
		return nil, fmt.Errorf("opening query log: %w", err)
	}

	return &QueryLog{pair: pair, embedder: embedder, logger: logger, now: time.Now}, nil
}

// Record logs the query for the user unless an equivalent query (same user,
// same normalized text) is already present. It reports whether a new record
// was written.
func (l *QueryLog) Record(ctx context.Context, userID, query string) (bool, error) {
	vec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return false, fmt.Errorf("embedding query: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := Normalize(query)
	results, err := l.pair.Search(vec, shortlistSize)
	if err != nil {
		return false, fmt.Errorf("searching query log: %w", err)
	}
	for _, r := range results {
		if r.Record.UserID == userID && Normalize(r.Record.Query) == key {
			l.logger.Debug("query already logged", "user_id", userID)
			return false, nil
		}
	}

	rec := QueryRecord{UserID: userID, Query: strings.TrimSpace(query), Timestamp: l.now().UTC()}
	if _, err := l.pair.Append(vec, rec); err != nil {
		return false, fmt.Errorf("appending query record: %w", err)
	}
	return true, nil
}

// Similar returns up to k of the user's past queries nearest to the given
// one, excluding the query itself. A missing or empty log yields no results.
func (l *QueryLog) Similar(ctx context.Context, userID, query string, k int) ([]QueryRecord, error) {
	if l.pair.Size() == 0 {
		return nil, nil
	}

	vec, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	results, err := l.pair.Search(vec, shortlistSize)
	if err != nil {
		return nil, fmt.Errorf("searching query log: %w", err)
	}

	key := Normalize(query)
	var out []QueryRecord
	for _, r := range results {
		if r.Record.UserID != userID || Normalize(r.Record.Query) == key {
			continue
		}
		out = append(out, r.Record)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Size returns the number of logged queries across all users.
func (l *QueryLog) Size() int { return l.pair.Size() }
