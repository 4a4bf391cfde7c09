package classifier

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/studyowl/studyowl/internal/llm"
	"github.com/studyowl/studyowl/internal/log"
	"github.com/studyowl/studyowl/internal/source"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  []source.Tag
	}{
		{
			"canonical names",
			"LocalKB, StackOverflow",
			[]source.Tag{source.TagLocalKB, source.TagStackOverflow},
		},
		{
			"legacy spellings",
			"FAISS DB, StackOverFlow",
			[]source.Tag{source.TagLocalKB, source.TagStackOverflow},
		},
		{
			"all four shuffled come back in canonical order",
			"YouTube, Wikipedia, StackOverflow, LocalKB",
			[]source.Tag{source.TagLocalKB, source.TagStackOverflow, source.TagWikipedia, source.TagYouTube},
		},
		{
			"duplicates collapse",
			"Wikipedia, wikipedia, WIKIPEDIA",
			[]source.Tag{source.TagWikipedia},
		},
		{
			"newline separated with noise tokens",
			"LocalKB\nYouTube\nGoogle",
			[]source.Tag{source.TagLocalKB, source.TagYouTube},
		},
		{
			"underscores and stray spaces",
			" local_kb , you tube ",
			[]source.Tag{source.TagLocalKB, source.TagYouTube},
		},
		{
			"reasoning block stripped",
			"<think>the question is conceptual</think>Wikipedia",
			[]source.Tag{source.TagWikipedia},
		},
		{"empty reply", "", nil},
		{"garbage only", "I cannot answer that.", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.reply))
		})
	}
}

func TestClassify(t *testing.T) {
	gen := &llm.MockGenerator{Response: "StackOverflow, LocalKB"}
	c := New(gen, "", log.NewNop())

	got := c.Classify(context.Background(), "why does my list comprehension raise NameError?")
	assert.Equal(t, []source.Tag{source.TagLocalKB, source.TagStackOverflow}, got)
	assert.True(t, strings.Contains(gen.Prompts()[0], "why does my list comprehension raise NameError?"))
}

func TestClassifyUsesConfiguredModel(t *testing.T) {
	var usedModel string
	gen := &llm.MockGenerator{Respond: func(model, _ string) (string, error) {
		usedModel = model
		return "Wikipedia", nil
	}}

	c := New(gen, "routing-model", log.NewNop())
	got := c.Classify(context.Background(), "what is recursion?")
	assert.Equal(t, []source.Tag{source.TagWikipedia}, got)
	assert.Equal(t, "routing-model", usedModel)
}

func TestClassifyFallsBackOnError(t *testing.T) {
	gen := &llm.MockGenerator{Err: errors.New("model unavailable")}
	c := New(gen, "", log.NewNop())

	got := c.Classify(context.Background(), "anything")
	assert.Equal(t, []source.Tag{source.TagLocalKB}, got)
}

func TestClassifyFallsBackOnGarbage(t *testing.T) {
	gen := &llm.MockGenerator{Response: "certainly! here are my thoughts"}
	c := New(gen, "", log.NewNop())

	got := c.Classify(context.Background(), "anything")
	assert.Equal(t, []source.Tag{source.TagLocalKB}, got)
}
