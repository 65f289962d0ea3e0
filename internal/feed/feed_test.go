package feed

import (
	"os"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/deusflow/newsbot/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func TestConvertItemBasicFields(t *testing.T) {
	published := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	raw := &gofeed.Item{
		Title:           "En overskrift",
		Link:            "https://a.dk/1",
		GUID:            "guid-1",
		Description:     "Kort beskrivelse",
		Content:         "Fuldt indhold",
		PublishedParsed: &published,
	}

	item := convertItem("dr", raw)
	if item.SourceFeed != "dr" {
		t.Errorf("SourceFeed = %q", item.SourceFeed)
	}
	if item.Title != "En overskrift" || item.Link != "https://a.dk/1" {
		t.Errorf("item = %+v", item)
	}
	if item.Published == nil || !item.Published.Equal(published) {
		t.Errorf("Published = %v", item.Published)
	}
}

func TestConvertItemFallsBackToUpdated(t *testing.T) {
	updated := time.Date(2026, 8, 28, 11, 0, 0, 0, time.UTC)
	raw := &gofeed.Item{
		Title:         "Uden published",
		Link:          "https://a.dk/2",
		UpdatedParsed: &updated,
	}

	item := convertItem("dr", raw)
	if item.Published == nil || !item.Published.Equal(updated) {
		t.Errorf("Published = %v, want the updated timestamp", item.Published)
	}
}

func TestConvertItemEnclosures(t *testing.T) {
	raw := &gofeed.Item{
		Title: "Med enclosure",
		Link:  "https://a.dk/3",
		Enclosures: []*gofeed.Enclosure{
			{URL: "https://a.dk/klip.mp4", Type: "video/mp4"},
			nil,
			{URL: "", Type: "image/jpeg"},
		},
	}

	item := convertItem("dr", raw)
	if len(item.Enclosures) != 1 {
		t.Fatalf("Enclosures = %v, want 1 (nil and empty skipped)", item.Enclosures)
	}
	if item.Enclosures[0].URL != "https://a.dk/klip.mp4" || item.Enclosures[0].Type != "video/mp4" {
		t.Errorf("Enclosures[0] = %+v", item.Enclosures[0])
	}
}

func TestConvertItemMediaExtensions(t *testing.T) {
	raw := &gofeed.Item{
		Title: "Med media extensions",
		Link:  "https://a.dk/4",
		Extensions: ext.Extensions{
			"media": {
				"content": []ext.Extension{
					{Attrs: map[string]string{"url": "https://a.dk/stream.mp4", "type": "video/mp4"}},
					{Attrs: map[string]string{"url": ""}},
				},
				"thumbnail": []ext.Extension{
					{Attrs: map[string]string{"url": "https://a.dk/thumb.jpg"}},
				},
			},
		},
	}

	item := convertItem("dr", raw)
	if len(item.MediaContents) != 1 {
		t.Fatalf("MediaContents = %v, want 1", item.MediaContents)
	}
	if item.MediaContents[0].Type != "video/mp4" {
		t.Errorf("MediaContents[0] = %+v", item.MediaContents[0])
	}
	if item.ImageURL != "https://a.dk/thumb.jpg" {
		t.Errorf("ImageURL = %q, want the thumbnail", item.ImageURL)
	}
}

func TestConvertItemImageWinsOverThumbnail(t *testing.T) {
	raw := &gofeed.Item{
		Title: "Med item image",
		Link:  "https://a.dk/5",
		Image: &gofeed.Image{URL: "https://a.dk/hoved.jpg"},
		Extensions: ext.Extensions{
			"media": {
				"thumbnail": []ext.Extension{
					{Attrs: map[string]string{"url": "https://a.dk/thumb.jpg"}},
				},
			},
		},
	}

	item := convertItem("dr", raw)
	if item.ImageURL != "https://a.dk/hoved.jpg" {
		t.Errorf("ImageURL = %q, want the item image", item.ImageURL)
	}
}
