package feed

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/newsbot/internal/config"
	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/metrics"
	"github.com/deusflow/newsbot/internal/retry"
)

// MediaRef is a structured media reference attached to a feed entry
// (enclosure or media:content element).
type MediaRef struct {
	URL  string
	Type string // declared MIME type, may be empty
}

// Item is one raw feed entry, decoupled from the gofeed types so the
// rest of the pipeline never touches parser internals.
type Item struct {
	SourceFeed  string
	Title       string
	Link        string
	GUID        string
	Description string
	Content     string
	Published   *time.Time

	Enclosures    []MediaRef
	MediaContents []MediaRef
	ImageURL      string // item image or media:thumbnail fallback
}

// Fetcher downloads and parses the configured feeds.
type Fetcher struct {
	parser  *gofeed.Parser
	timeout time.Duration
	pace    time.Duration
}

func NewFetcher(timeout, pace time.Duration) *Fetcher {
	return &Fetcher{
		parser:  gofeed.NewParser(),
		timeout: timeout,
		pace:    pace,
	}
}

// FetchAll downloads every configured feed. An unreachable feed is
// logged and contributes zero items; it never fails the run.
func (f *Fetcher) FetchAll(ctx context.Context, sources []config.FeedSource) []Item {
	var all []Item
	successCount := 0

	for i, src := range sources {
		items, err := f.fetchOne(ctx, src)
		if err != nil {
			logger.Warn("feed fetch failed", "feed", src.Name, "url", src.URL, "error", err)
			continue
		}
		all = append(all, items...)
		successCount++
		logger.Info("feed loaded", "feed", src.Name, "items", len(items))

		// Pace between upstream calls.
		if f.pace > 0 && i < len(sources)-1 {
			select {
			case <-ctx.Done():
				return all
			case <-time.After(f.pace):
			}
		}
	}

	metrics.Global.AddFeedsFetched(successCount)
	metrics.Global.AddItemsSeen(len(all))
	logger.Info("feeds processed", "ok", successCount, "total", len(sources), "items", len(all))
	return all
}

func (f *Fetcher) fetchOne(ctx context.Context, src config.FeedSource) ([]Item, error) {
	var parsed *gofeed.Feed

	err := retry.WithRetry(ctx, retry.Config{MaxAttempts: 2, Delay: 2 * time.Second}, func() error {
		fctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()

		var perr error
		parsed, perr = f.parser.ParseURLWithContext(src.URL, fctx)
		return perr
	})
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		items = append(items, convertItem(src.Name, it))
	}
	return items, nil
}

func convertItem(sourceFeed string, it *gofeed.Item) Item {
	item := Item{
		SourceFeed:  sourceFeed,
		Title:       it.Title,
		Link:        it.Link,
		GUID:        it.GUID,
		Description: it.Description,
		Content:     it.Content,
		Published:   it.PublishedParsed,
	}
	if item.Published == nil {
		item.Published = it.UpdatedParsed
	}

	for _, enc := range it.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		item.Enclosures = append(item.Enclosures, MediaRef{URL: enc.URL, Type: enc.Type})
	}

	if media, ok := it.Extensions["media"]; ok {
		for _, ext := range media["content"] {
			u := ext.Attrs["url"]
			if u == "" {
				continue
			}
			item.MediaContents = append(item.MediaContents, MediaRef{URL: u, Type: ext.Attrs["type"]})
		}
		if item.ImageURL == "" {
			for _, ext := range media["thumbnail"] {
				if u := ext.Attrs["url"]; u != "" {
					item.ImageURL = u
					break
				}
			}
		}
	}

	if it.Image != nil && it.Image.URL != "" {
		item.ImageURL = it.Image.URL
	}

	return item
}
