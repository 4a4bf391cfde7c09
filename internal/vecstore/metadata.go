package vecstore

import (
	"encoding/json"
	"fmt"
	"os"
)

// Metadata is an ordered, append-only sequence of records position-aligned
// with an Index. It is persisted as a single JSON array rewritten in full on
// every mutating operation.
//
// Metadata is not safe for concurrent use on its own; Pair provides the
// locking discipline.
type Metadata[T any] struct {
	records []T
}

// NewMetadata creates an empty metadata store.
func NewMetadata[T any]() *Metadata[T] {
	return &Metadata[T]{}
}

// Append adds a record and returns its position.
func (m *Metadata[T]) Append(rec T) int {
	m.records = append(m.records, rec)
	return len(m.records) - 1
}

// Get returns the record at the given position.
func (m *Metadata[T]) Get(pos int) (T, error) {
	var zero T
	if pos < 0 || pos >= len(m.records) {
		return zero, fmt.Errorf("%w: position %d of %d", ErrNotFound, pos, len(m.records))
	}
	return m.records[pos], nil
}

// All returns a copy of the record sequence in insertion order.
func (m *Metadata[T]) All() []T {
	out := make([]T, len(m.records))
	copy(out, m.records)
	return out
}

// Len returns the number of records.
func (m *Metadata[T]) Len() int { return len(m.records) }

// Persist rewrites the metadata file atomically (temp file + rename).
func (m *Metadata[T]) Persist(path string) error {
	data, err := json.MarshalIndent(m.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing metadata temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing metadata file: %w", err)
	}
	return nil
}

// LoadMetadata reads a metadata file previously written by Persist. Callers
// must check for the file's existence first; a missing path is an error here.
func LoadMetadata[T any](path string) (*Metadata[T], error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("reading metadata file: %w", err)
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &Metadata[T]{records: records}, nil
}
