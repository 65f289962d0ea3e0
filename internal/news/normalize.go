package news

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/deusflow/newsbot/internal/feed"
	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/media"
	"github.com/deusflow/newsbot/internal/metrics"
)

// FullTextFetcher retrieves the main article text for a URL. It is the
// external scraping collaborator; failures are expected and simply
// leave the candidate with its inline body.
type FullTextFetcher interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Normalizer turns raw feed items into canonical candidates: resolves
// the body (with a lazy full-text fetch under the length threshold),
// applies the recency window, deduplicates by link and by near-equal
// title, and attaches resolved media.
type Normalizer struct {
	FullText   FullTextFetcher
	MinBodyLen int
	Lookback   time.Duration
	Pace       time.Duration

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func (n *Normalizer) now() time.Time {
	if n.Now != nil {
		return n.Now()
	}
	return time.Now()
}

// Normalize processes items in discovery order. Duplicate links reduce
// to the first-seen entry, which keeps the output deterministic for a
// fixed input sequence.
func (n *Normalizer) Normalize(ctx context.Context, items []feed.Item) []Candidate {
	seenLinks := map[string]struct{}{}
	seenTitles := map[string]struct{}{}
	var out []Candidate

	for _, item := range items {
		if item.Link == "" || strings.TrimSpace(item.Title) == "" {
			continue
		}

		if _, dup := seenLinks[item.Link]; dup {
			metrics.Global.IncrementDuplicatesFiltered()
			continue
		}
		seenLinks[item.Link] = struct{}{}

		titleKey := makeTitleKey(item.Title)
		if _, dup := seenTitles[titleKey]; dup {
			logger.Debug("near-duplicate title skipped", "title", item.Title)
			metrics.Global.IncrementDuplicatesFiltered()
			continue
		}
		seenTitles[titleKey] = struct{}{}

		if !n.withinWindow(item.Published) {
			continue
		}

		body := n.resolveBody(ctx, item)
		// Length thresholds count runes, not bytes: Danish text must not
		// over-count on æ/ø/å.
		if utf8.RuneCountInString(body) < n.MinBodyLen {
			logger.Debug("content too short, candidate dropped", "link", item.Link, "length", utf8.RuneCountInString(body))
			continue
		}

		out = append(out, Candidate{
			SourceFeed:  item.SourceFeed,
			Link:        item.Link,
			Title:       strings.TrimSpace(item.Title),
			Body:        body,
			PublishedAt: *item.Published,
			Media:       media.Resolve(item),
			Domain:      DomainOf(item.Link),
		})
		metrics.Global.IncrementCandidatesAccepted()
	}

	return out
}

// withinWindow rejects items with a missing timestamp, items older
// than the lookback window, and items dated in the future.
func (n *Normalizer) withinWindow(published *time.Time) bool {
	if published == nil {
		return false
	}
	now := n.now()
	if published.After(now) {
		return false
	}
	return now.Sub(*published) <= n.Lookback
}

// resolveBody prefers the inline full-content field; under the length
// threshold it tries the full-text collaborator once. The fetch result
// is used only when it actually improves on the inline body.
func (n *Normalizer) resolveBody(ctx context.Context, item feed.Item) string {
	body := strings.TrimSpace(item.Content)
	if body == "" {
		body = strings.TrimSpace(item.Description)
	}
	body = stripTags(body)

	if utf8.RuneCountInString(body) >= n.MinBodyLen || n.FullText == nil {
		return body
	}

	if n.Pace > 0 {
		select {
		case <-ctx.Done():
			return body
		case <-time.After(n.Pace):
		}
	}

	full, err := n.FullText.Extract(ctx, item.Link)
	if err != nil {
		logger.Debug("full-text fetch failed", "link", item.Link, "error", err)
		return body
	}
	full = strings.TrimSpace(full)
	if utf8.RuneCountInString(full) > utf8.RuneCountInString(body) {
		return full
	}
	return body
}

// makeTitleKey builds a lenient dedupe key from the first significant
// title words, so the same story syndicated with cosmetic title
// differences is only considered once.
func makeTitleKey(title string) string {
	const maxWords = 6

	var b []rune
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			b = append(b, r)
		} else {
			b = append(b, ' ')
		}
	}

	words := strings.Fields(string(b))
	var significant []string
	for _, w := range words {
		if len(significant) >= maxWords {
			break
		}
		if len(w) <= 2 {
			continue
		}
		significant = append(significant, w)
	}
	if len(significant) == 0 {
		significant = words
	}

	h := sha1.New()
	h.Write([]byte(strings.Join(significant, "_")))
	return hex.EncodeToString(h.Sum(nil))
}

// stripTags removes markup from inline feed content before the length
// check, so a tag-heavy description does not pass as real text.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(strings.Join(strings.Fields(b.String()), " "))
}
