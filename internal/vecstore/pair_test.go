package vecstore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/studyowl/internal/log"
)

func pairPaths(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "store.index"), filepath.Join(dir, "store.json")
}

func TestOpenPairEmpty(t *testing.T) {
	indexPath, metaPath := pairPaths(t)

	p, err := OpenPair[testRecord](indexPath, metaPath, 2, Cosine, log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, p.Size())

	results, err := p.Search([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestPairAppendSearchRoundTrip(t *testing.T) {
	indexPath, metaPath := pairPaths(t)
	logger := log.NewNop()

	p, err := OpenPair[testRecord](indexPath, metaPath, 2, Cosine, logger)
	require.NoError(t, err)

	records := []testRecord{
		{Query: "slices", Answer: "views over arrays"},
		{Query: "maps", Answer: "hash tables"},
		{Query: "channels", Answer: "typed conduits"},
	}
	vectors := [][]float32{
		{1, 0},
		{0, 1},
		{0.7071, 0.7071},
	}
	for i := range records {
		pos, err := p.Append(vectors[i], records[i])
		require.NoError(t, err)
		assert.Equal(t, i, pos)
	}

	// Reopen from disk: alignment and content must survive the restart.
	reopened, err := OpenPair[testRecord](indexPath, metaPath, 2, Cosine, logger)
	require.NoError(t, err)
	require.Equal(t, 3, reopened.Size())

	for i, want := range records {
		got, err := reopened.Get(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	results, err := reopened.Search([]float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "slices", results[0].Record.Query)
	assert.Equal(t, 0, results[0].Position)
}

func TestOpenPairRejectsHalfPair(t *testing.T) {
	indexPath, metaPath := pairPaths(t)
	logger := log.NewNop()

	p, err := OpenPair[testRecord](indexPath, metaPath, 2, Cosine, logger)
	require.NoError(t, err)
	_, err = p.Append([]float32{1, 0}, testRecord{Query: "q"})
	require.NoError(t, err)

	// Delete the metadata half and reopen.
	require.NoError(t, os.Remove(metaPath))
	_, err = OpenPair[testRecord](indexPath, metaPath, 2, Cosine, logger)
	assert.ErrorContains(t, err, "misaligned store")
}

func TestOpenPairRejectsCountMismatch(t *testing.T) {
	indexPath, metaPath := pairPaths(t)
	logger := log.NewNop()

	ix, err := NewIndex(2, Cosine)
	require.NoError(t, err)
	_, err = ix.Add([]float32{1, 0})
	require.NoError(t, err)
	_, err = ix.Add([]float32{0, 1})
	require.NoError(t, err)
	require.NoError(t, ix.Persist(indexPath))

	md := NewMetadata[testRecord]()
	md.Append(testRecord{Query: "only one"})
	require.NoError(t, md.Persist(metaPath))

	_, err = OpenPair[testRecord](indexPath, metaPath, 2, Cosine, logger)
	assert.ErrorContains(t, err, "misaligned store")
}

func TestOpenPairRejectsDimensionChange(t *testing.T) {
	indexPath, metaPath := pairPaths(t)
	logger := log.NewNop()

	p, err := OpenPair[testRecord](indexPath, metaPath, 2, Cosine, logger)
	require.NoError(t, err)
	_, err = p.Append([]float32{1, 0}, testRecord{Query: "q"})
	require.NoError(t, err)

	_, err = OpenPair[testRecord](indexPath, metaPath, 3, Cosine, logger)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPairConcurrentAppendsStayAligned(t *testing.T) {
	indexPath, metaPath := pairPaths(t)

	p, err := OpenPair[testRecord](indexPath, metaPath, 2, Cosine, log.NewNop())
	require.NoError(t, err)

	const writers = 8
	const perWriter = 5

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, err := p.Append([]float32{1, 0}, testRecord{Query: fmt.Sprintf("w%d-%d", w, i)})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, p.Size())
	assert.Len(t, p.All(), writers*perWriter)
}
