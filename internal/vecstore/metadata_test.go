package vecstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Query  string `json:"query"`
	Answer string `json:"answer"`
}

func TestMetadataAppendGet(t *testing.T) {
	md := NewMetadata[testRecord]()

	pos := md.Append(testRecord{Query: "q1", Answer: "a1"})
	assert.Equal(t, 0, pos)
	pos = md.Append(testRecord{Query: "q2", Answer: "a2"})
	assert.Equal(t, 1, pos)

	rec, err := md.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "q1", rec.Query)

	rec, err = md.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "a2", rec.Answer)
}

func TestMetadataGetOutOfRange(t *testing.T) {
	md := NewMetadata[testRecord]()
	md.Append(testRecord{Query: "q"})

	_, err := md.Get(1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = md.Get(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMetadataAllIsACopy(t *testing.T) {
	md := NewMetadata[testRecord]()
	md.Append(testRecord{Query: "original"})

	all := md.All()
	all[0].Query = "mutated"

	rec, err := md.Get(0)
	require.NoError(t, err)
	assert.Equal(t, "original", rec.Query)
}

func TestMetadataPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")

	md := NewMetadata[testRecord]()
	md.Append(testRecord{Query: "how do slices work", Answer: "they are views"})
	md.Append(testRecord{Query: "what is a channel", Answer: "a typed conduit"})
	require.NoError(t, md.Persist(path))

	loaded, err := LoadMetadata[testRecord](path)
	require.NoError(t, err)
	assert.Equal(t, md.All(), loaded.All())
}

func TestMetadataPersistOverwritesWholeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")

	md := NewMetadata[testRecord]()
	md.Append(testRecord{Query: "q1"})
	require.NoError(t, md.Persist(path))
	md.Append(testRecord{Query: "q2"})
	require.NoError(t, md.Persist(path))

	loaded, err := LoadMetadata[testRecord](path)
	require.NoError(t, err)
	assert.Equal(t, 2, loaded.Len())

	// No stray temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMetadataRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadMetadata[testRecord](path)
	assert.ErrorContains(t, err, "decoding metadata")
}
