// Package vecstore implements the persistence layer for embeddings: a flat
// exact nearest-neighbor index, an ordered metadata record store, and a Pair
// that keeps the two position-aligned on disk.
//
// Index files are binary blobs, metadata files are single JSON arrays; both
// are rewritten in full through a temp-file-and-rename so a crash mid-write
// never corrupts the previous durable state.
package vecstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
)

var (
	// ErrDimensionMismatch indicates a vector with the wrong dimensionality
	// for the index it was offered to. This is a programmer or configuration
	// error and is fatal at the call site.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNotFound indicates a metadata position that does not exist.
	ErrNotFound = errors.New("record not found")
)

// Metric selects the distance function of an Index.
type Metric uint8

const (
	// Cosine distance (1 - dot product) over L2-normalized vectors.
	// With normalized inputs the distance lies in [0, 2]; identical texts
	// embed to distance ~0. This is the metric every index built by this
	// repository uses, matching the normalized inner-product knowledge base.
	Cosine Metric = iota

	// L2 is squared Euclidean distance, kept for indexes built without
	// normalization.
	L2
)

func (m Metric) String() string {
	switch m {
	case Cosine:
		return "cosine"
	case L2:
		return "l2"
	default:
		return fmt.Sprintf("metric(%d)", uint8(m))
	}
}

// Hit is a single search result: a position into the paired metadata store
// and the distance from the query vector.
type Hit struct {
	Position int
	Distance float32
}

// Index is a flat exact nearest-neighbor index over fixed-dimension
// float32 vectors. Vectors are append-only; positions are stable for the
// lifetime of the index and across Persist/Load round trips.
//
// Index is not safe for concurrent use on its own; Pair provides the
// locking discipline.
type Index struct {
	dim     int
	metric  Metric
	vectors []float32 // flattened, len = dim * count
}

// NewIndex creates an empty index for vectors of the given dimension.
func NewIndex(dim int, metric Metric) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dim)
	}
	return &Index{dim: dim, metric: metric}, nil
}

// Dimension returns the configured vector dimension.
func (ix *Index) Dimension() int { return ix.dim }

// Metric returns the distance function of the index.
func (ix *Index) Metric() Metric { return ix.metric }

// Size returns the number of stored vectors.
func (ix *Index) Size() int {
	if ix.dim == 0 {
		return 0
	}
	return len(ix.vectors) / ix.dim
}

// Add appends a vector and returns its position.
func (ix *Index) Add(vec []float32) (int, error) {
	if len(vec) != ix.dim {
		return 0, fmt.Errorf("%w: got %d, index dimension %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	pos := ix.Size()
	ix.vectors = append(ix.vectors, vec...)
	return pos, nil
}

// Search returns up to k hits ordered by ascending distance, ties broken by
// insertion order (lower position first). An empty index returns an empty
// result, never an error.
func (ix *Index) Search(vec []float32, k int) ([]Hit, error) {
	if len(vec) != ix.dim {
		return nil, fmt.Errorf("%w: got %d, index dimension %d", ErrDimensionMismatch, len(vec), ix.dim)
	}
	n := ix.Size()
	if n == 0 || k <= 0 {
		return []Hit{}, nil
	}

	hits := make([]Hit, n)
	for i := 0; i < n; i++ {
		row := ix.vectors[i*ix.dim : (i+1)*ix.dim]
		hits[i] = Hit{Position: i, Distance: ix.distance(row, vec)}
	}
	// SliceStable keeps equal distances in insertion order.
	sort.SliceStable(hits, func(a, b int) bool {
		return hits[a].Distance < hits[b].Distance
	})

	if k > n {
		k = n
	}
	return hits[:k], nil
}

func (ix *Index) distance(a, b []float32) float32 {
	switch ix.metric {
	case L2:
		var sum float32
		for i := range a {
			d := a[i] - b[i]
			sum += d * d
		}
		return sum
	default: // Cosine
		var dot float32
		for i := range a {
			dot += a[i] * b[i]
		}
		return 1 - dot
	}
}

// Index file layout (little-endian):
//
//	[4]byte magic "SOVI" | uint8 version | uint8 metric | uint16 reserved |
//	uint32 dimension | uint32 count | count*dimension*float32
const (
	indexMagic   = "SOVI"
	indexVersion = 1
)

type indexHeader struct {
	Magic    [4]byte
	Version  uint8
	Metric   uint8
	Reserved uint16
	Dim      uint32
	Count    uint32
}

// Persist writes the index to path atomically (temp file + rename).
func (ix *Index) Persist(path string) error {
	hdr := indexHeader{
		Version: indexVersion,
		Metric:  uint8(ix.metric),
		Dim:     uint32(ix.dim),     // #nosec G115 -- dim validated positive and small
		Count:   uint32(ix.Size()),  // #nosec G115 -- append-only counter
	}
	copy(hdr.Magic[:], indexMagic)

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating index temp file: %w", err)
	}

	if err := binary.Write(f, binary.LittleEndian, hdr); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing index header: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, ix.vectors); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("writing index vectors: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("closing index file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing index file: %w", err)
	}
	return nil
}

// LoadIndex reads an index previously written by Persist. Callers must check
// for the file's existence first; a missing path is an error here.
func LoadIndex(path string) (*Index, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("opening index file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var hdr indexHeader
	if err := binary.Read(f, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("reading index header: %w", err)
	}
	if string(hdr.Magic[:]) != indexMagic {
		return nil, fmt.Errorf("not an index file: bad magic %q", hdr.Magic)
	}
	if hdr.Version != indexVersion {
		return nil, fmt.Errorf("unsupported index version %d", hdr.Version)
	}
	if hdr.Dim == 0 || hdr.Dim > math.MaxInt32 {
		return nil, fmt.Errorf("corrupt index header: dimension %d", hdr.Dim)
	}

	// Cross-check the declared count against the actual file size before
	// allocating, so a truncated or corrupt header cannot demand gigabytes.
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stating index file: %w", err)
	}
	wantData := int64(hdr.Dim) * int64(hdr.Count) * 4
	if gotData := info.Size() - int64(binary.Size(hdr)); gotData != wantData {
		return nil, fmt.Errorf("corrupt index file: header declares %d vectors of dimension %d (%d data bytes), file has %d",
			hdr.Count, hdr.Dim, wantData, gotData)
	}

	ix := &Index{
		dim:     int(hdr.Dim),
		metric:  Metric(hdr.Metric),
		vectors: make([]float32, int(hdr.Dim)*int(hdr.Count)),
	}
	if err := binary.Read(f, binary.LittleEndian, &ix.vectors); err != nil {
		return nil, fmt.Errorf("reading index vectors: %w", err)
	}
	return ix, nil
}
