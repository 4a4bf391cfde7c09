package vecstore

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// Result is a search hit joined with its metadata record.
type Result[T any] struct {
	Position int
	Distance float32
	Record   T
}

// Pair keeps an Index and a Metadata store position-aligned: every append
// touches both in the same critical section and flushes both to disk before
// returning. Reads take a shared lock, so lookups proceed concurrently with
// each other but never overlap a writer.
//
// A flock on the index path guards the files against concurrent writers in
// other processes.
type Pair[T any] struct {
	mu        sync.RWMutex
	index     *Index
	meta      *Metadata[T]
	indexPath string
	metaPath  string
	fileLock  *flock.Flock
	logger    *slog.Logger
}

// OpenPair loads an existing pair from disk or constructs an empty one when
// neither file exists. A pair with exactly one file present, or with an
// index size different from the metadata count, is rejected as misaligned
// durable state.
func OpenPair[T any](indexPath, metaPath string, dim int, metric Metric, logger *slog.Logger) (*Pair[T], error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := os.MkdirAll(filepath.Dir(indexPath), 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	_, indexErr := os.Stat(indexPath)
	_, metaErr := os.Stat(metaPath)
	indexExists := indexErr == nil
	metaExists := metaErr == nil

	p := &Pair[T]{
		indexPath: indexPath,
		metaPath:  metaPath,
		fileLock:  flock.New(indexPath + ".lock"),
		logger:    logger,
	}

	switch {
	case indexExists && metaExists:
		ix, err := LoadIndex(indexPath)
		if err != nil {
			return nil, err
		}
		md, err := LoadMetadata[T](metaPath)
		if err != nil {
			return nil, err
		}
		if ix.Size() != md.Len() {
			return nil, fmt.Errorf("misaligned store: index has %d vectors, metadata has %d records (%s)",
				ix.Size(), md.Len(), indexPath)
		}
		if ix.Dimension() != dim {
			return nil, fmt.Errorf("%w: index on disk has dimension %d, configured %d",
				ErrDimensionMismatch, ix.Dimension(), dim)
		}
		p.index = ix
		p.meta = md
		logger.Debug("loaded store pair", "index", indexPath, "records", md.Len())

	case !indexExists && !metaExists:
		ix, err := NewIndex(dim, metric)
		if err != nil {
			return nil, err
		}
		p.index = ix
		p.meta = NewMetadata[T]()
		logger.Debug("created empty store pair", "index", indexPath)

	default:
		return nil, fmt.Errorf("misaligned store: only one of %s, %s exists", indexPath, metaPath)
	}

	return p, nil
}

// Append adds a vector and its record in one logical transaction and
// persists both files before returning. Appends are serialized; a failure
// to persist is returned to the caller with the in-memory pair still
// aligned (both sides appended).
func (p *Pair[T]) Append(vec []float32, rec T) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, err := p.index.Add(vec)
	if err != nil {
		return 0, err
	}
	if mpos := p.meta.Append(rec); mpos != pos {
		// Cannot happen while the invariant holds; fail loudly if it ever breaks.
		return 0, fmt.Errorf("misaligned store: index position %d, metadata position %d", pos, mpos)
	}

	if err := p.persistLocked(); err != nil {
		return 0, err
	}
	return pos, nil
}

// persistLocked flushes both files under the cross-process lock.
// Metadata is written first so a crash between the two renames can only
// leave metadata ahead of the index, which OpenPair detects on restart.
func (p *Pair[T]) persistLocked() error {
	if err := p.fileLock.Lock(); err != nil {
		return fmt.Errorf("locking store files: %w", err)
	}
	defer func() {
		if err := p.fileLock.Unlock(); err != nil {
			p.logger.Warn("unlocking store files", "error", err)
		}
	}()

	if err := p.meta.Persist(p.metaPath); err != nil {
		return err
	}
	if err := p.index.Persist(p.indexPath); err != nil {
		return err
	}
	return nil
}

// Search returns up to k results ordered by ascending distance, each joined
// with its metadata record.
func (p *Pair[T]) Search(vec []float32, k int) ([]Result[T], error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	hits, err := p.index.Search(vec, k)
	if err != nil {
		return nil, err
	}

	results := make([]Result[T], 0, len(hits))
	for _, h := range hits {
		rec, err := p.meta.Get(h.Position)
		if err != nil {
			return nil, err
		}
		results = append(results, Result[T]{Position: h.Position, Distance: h.Distance, Record: rec})
	}
	return results, nil
}

// Get returns the record at the given position.
func (p *Pair[T]) Get(pos int) (T, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.Get(pos)
}

// All returns a copy of all records in insertion order.
func (p *Pair[T]) All() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meta.All()
}

// Size returns the number of stored vector/record pairs.
func (p *Pair[T]) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.index.Size()
}

// Dimension returns the vector dimension of the underlying index.
func (p *Pair[T]) Dimension() int {
	return p.index.Dimension()
}
