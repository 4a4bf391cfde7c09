// Package source defines the evidence sources consulted when answering a
// question, and an adapter per upstream.
//
// Adapters degrade softly: expected upstream conditions such as rate limits,
// timeouts, missing credentials, or empty result sets come back as Evidence
// whose Text explains the situation, not as errors. An error from Fetch means
// something genuinely unexpected happened.
package source

import "context"

// Tag identifies an evidence source.
type Tag string

const (
	TagLocalKB       Tag = "local_kb"
	TagStackOverflow Tag = "stackoverflow"
	TagWikipedia     Tag = "wikipedia"
	TagYouTube       Tag = "youtube"
)

// AllTags lists every source in the order evidence sections appear in the
// synthesis prompt. The order is fixed so assembled context is deterministic
// regardless of fetch completion order.
func AllTags() []Tag {
	return []Tag{TagLocalKB, TagStackOverflow, TagWikipedia, TagYouTube}
}

// Label returns the human-readable section heading for the tag.
func (t Tag) Label() string {
	switch t {
	case TagLocalKB:
		return "Local knowledge base"
	case TagStackOverflow:
		return "Stack Overflow"
	case TagWikipedia:
		return "Wikipedia"
	case TagYouTube:
		return "YouTube"
	default:
		return string(t)
	}
}

// Evidence is what one source contributed for a query.
type Evidence struct {
	Tag       Tag
	Text      string
	Citations []string
}

// Adapter fetches evidence for a query from one upstream.
type Adapter interface {
	Tag() Tag
	Fetch(ctx context.Context, query string) (Evidence, error)
}
