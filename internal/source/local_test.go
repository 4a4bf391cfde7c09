package source

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/studyowl/internal/kb"
	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/log"
)

func buildTestKB(t *testing.T, embedder llm.Embedder, docs []kb.Document) *kb.Store {
	t.Helper()
	dir := t.TempDir()

	data, err := json.Marshal(docs)
	require.NoError(t, err)
	dataset := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(dataset, data, 0o600))

	_, err = kb.Build(context.Background(), embedder, dataset, dir, 8, log.NewNop())
	require.NoError(t, err)

	store, err := kb.Open(dir, 8, log.NewNop())
	require.NoError(t, err)
	return store
}

func TestLocalFetch(t *testing.T) {
	embedder := &llm.MockEmbedder{Dim: 8}
	store := buildTestKB(t, embedder, []kb.Document{
		{Topic: "list comprehension", Explanation: "concise list building", Example: "[x for x in xs]", Source: "docs.python.org/tutorial"},
		{Topic: "decorators", Explanation: "wrap callables", Example: "@wraps", Source: "peps.python.org/pep-0318"},
	})

	adapter := NewLocal(store, embedder, 2, log.NewNop())
	assert.Equal(t, TagLocalKB, adapter.Tag())

	ev, err := adapter.Fetch(context.Background(), "Topic: list comprehension\nExplanation: concise list building\nExample: [x for x in xs]")
	require.NoError(t, err)
	assert.Equal(t, TagLocalKB, ev.Tag)
	assert.Contains(t, ev.Text, "list comprehension")
	assert.Contains(t, ev.Citations, "docs.python.org/tutorial")
}

func TestLocalFetchEmptyStore(t *testing.T) {
	embedder := &llm.MockEmbedder{Dim: 8}
	store, err := kb.Open(t.TempDir(), 8, log.NewNop())
	require.NoError(t, err)

	adapter := NewLocal(store, embedder, 3, log.NewNop())
	ev, err := adapter.Fetch(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, ev.Text, "No local study material")
	assert.Empty(t, ev.Citations)
	// Nothing to search, so nothing is embedded.
	assert.Empty(t, embedder.Calls())
}

func TestLocalFetchDedupesCitations(t *testing.T) {
	embedder := &llm.MockEmbedder{Dim: 8}
	store := buildTestKB(t, embedder, []kb.Document{
		{Topic: "a", Explanation: "x", Example: "y", Source: "docs.python.org"},
		{Topic: "b", Explanation: "x", Example: "y", Source: "docs.python.org"},
	})

	adapter := NewLocal(store, embedder, 2, log.NewNop())
	ev, err := adapter.Fetch(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"docs.python.org"}, ev.Citations)
}
