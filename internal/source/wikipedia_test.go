package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyowl/studyowl/internal/log"
)

func TestWikipediaFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest_v1/page/summary/Recursion", r.URL.Path)
		fmt.Fprint(w, `{
			"type": "standard",
			"title": "Recursion",
			"extract": "Recursion occurs when a thing is defined in terms of itself.",
			"content_urls": {"desktop": {"page": "https://en.wikipedia.org/wiki/Recursion"}}
		}`)
	}))
	defer server.Close()

	adapter := NewWikipedia(WikipediaConfig{BaseURL: server.URL}, log.NewNop())
	assert.Equal(t, TagWikipedia, adapter.Tag())

	ev, err := adapter.Fetch(context.Background(), "Recursion")
	require.NoError(t, err)
	assert.Contains(t, ev.Text, "Recursion occurs when a thing is defined in terms of itself.")
	assert.Equal(t, []string{"https://en.wikipedia.org/wiki/Recursion"}, ev.Citations)
}

func TestWikipediaSpacesBecomeUnderscores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/rest_v1/page/summary/Dynamic_programming", r.URL.Path)
		fmt.Fprint(w, `{"type":"standard","title":"Dynamic programming","extract":"An optimization method."}`)
	}))
	defer server.Close()

	adapter := NewWikipedia(WikipediaConfig{BaseURL: server.URL}, log.NewNop())
	ev, err := adapter.Fetch(context.Background(), "  Dynamic programming  ")
	require.NoError(t, err)
	assert.Contains(t, ev.Text, "An optimization method.")
	// No content_urls in the response, so the citation is constructed.
	assert.Equal(t, []string{server.URL + "/wiki/Dynamic_programming"}, ev.Citations)
}

func TestWikipediaMissingPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewWikipedia(WikipediaConfig{BaseURL: server.URL}, log.NewNop())
	ev, err := adapter.Fetch(context.Background(), "xyzzy plugh")
	require.NoError(t, err)
	assert.Contains(t, ev.Text, "No Wikipedia page was found")
	assert.Empty(t, ev.Citations)
}

func TestWikipediaDisambiguation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/rest_v1/page/summary/Mercury":
			fmt.Fprint(w, `{"type":"disambiguation","title":"Mercury","extract":"Mercury may refer to:"}`)
		case "/w/api.php":
			assert.Equal(t, "Mercury", r.URL.Query().Get("srsearch"))
			assert.Equal(t, "5", r.URL.Query().Get("srlimit"))
			fmt.Fprint(w, `{"query":{"search":[
				{"title":"Mercury (planet)"},
				{"title":"Mercury (element)"},
				{"title":"Mercury (mythology)"}
			]}}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	adapter := NewWikipedia(WikipediaConfig{BaseURL: server.URL}, log.NewNop())
	ev, err := adapter.Fetch(context.Background(), "Mercury")
	require.NoError(t, err)
	assert.Contains(t, ev.Text, "matches several Wikipedia pages")
	assert.Contains(t, ev.Text, "Mercury (planet)")
	assert.Contains(t, ev.Text, "Mercury (element)")
	assert.Empty(t, ev.Citations)
}

func TestWikipediaTimeoutIsSoftFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		fmt.Fprint(w, `{"type":"standard"}`)
	}))
	defer server.Close()

	adapter := NewWikipedia(WikipediaConfig{BaseURL: server.URL, Timeout: 50 * time.Millisecond}, log.NewNop())
	ev, err := adapter.Fetch(context.Background(), "anything")
	require.NoError(t, err)
	assert.Contains(t, ev.Text, "timed out")
}
