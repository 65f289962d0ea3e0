package news

import (
	"net/url"
	"strings"
	"time"

	"github.com/deusflow/newsbot/internal/media"
)

// Candidate is one discovered article eligible for scoring and
// publication. Link uniquely identifies it across a run; Domain is a
// pure function of Link used only for diversity bookkeeping. Score is
// set once during scoring and immutable afterwards.
type Candidate struct {
	SourceFeed  string
	Link        string
	Title       string
	Body        string
	PublishedAt time.Time
	Media       *media.Attachment
	Score       float64
	Domain      string

	// Summary carries the generated text once the publication gate has
	// produced it; it is the only field written after selection.
	Summary string
}

// DomainOf returns the normalized registrable host for a link:
// lowercased, www. stripped. Unparseable links map to "unknown" so
// they still take part in diversity bookkeeping deterministically.
func DomainOf(link string) string {
	if link == "" {
		return "unknown"
	}
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	return host
}
