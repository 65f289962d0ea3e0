package media

import (
	"path"
	"regexp"
	"strings"

	"github.com/deusflow/newsbot/internal/feed"
)

// Kind classifies a resolved attachment.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Attachment is a validated media reference carried by a candidate.
type Attachment struct {
	Kind Kind
	URL  string
}

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

var videoExts = map[string]bool{
	".mp4": true, ".webm": true, ".mov": true, ".m4v": true,
}

var (
	videoTagRe    = regexp.MustCompile(`(?is)<video[^>]*\bsrc=["']([^"']+)["']`)
	videoSourceRe = regexp.MustCompile(`(?is)<video[^>]*>.*?<source[^>]*\bsrc=["']([^"']+)["']`)
	videoLinkRe   = regexp.MustCompile(`(?i)https?://[^\s"'<>]+\.(?:mp4|webm|mov|m4v)(?:\?[^\s"'<>]*)?`)
	imgTagRe      = regexp.MustCompile(`(?is)<img[^>]*\bsrc=["']([^"']+)["']`)
)

// Resolve extracts at most one attachment from a raw feed item.
// Resolution order: enclosure MIME prefix, media:content reference,
// embedded markup patterns, thumbnail fallback. The extracted URL then
// has to classify as image or video; anything unclassifiable is
// dropped rather than risked against the posting API.
func Resolve(item feed.Item) *Attachment {
	// 1. Explicit enclosure with a recognized MIME prefix.
	for _, enc := range item.Enclosures {
		if strings.HasPrefix(enc.Type, "video/") {
			return validated(enc.URL, KindVideo)
		}
		if strings.HasPrefix(enc.Type, "image/") {
			return validated(enc.URL, KindImage)
		}
	}

	// 2. Structured media:content reference. Use the declared type if
	// present, else infer from the URL extension.
	for _, mc := range item.MediaContents {
		switch {
		case strings.HasPrefix(mc.Type, "video/"):
			return validated(mc.URL, KindVideo)
		case strings.HasPrefix(mc.Type, "image/"):
			return validated(mc.URL, KindImage)
		case mc.Type == "":
			if kind, ok := Classify(mc.URL); ok {
				return &Attachment{Kind: kind, URL: mc.URL}
			}
		}
	}

	// 3. Embedded markup in the richest text field.
	if att := fromMarkup(richestText(item)); att != nil {
		return att
	}

	// 4. Thumbnail/image fallback.
	if item.ImageURL != "" {
		return validated(item.ImageURL, KindImage)
	}

	return nil
}

func richestText(item feed.Item) string {
	if len(item.Content) >= len(item.Description) {
		return item.Content
	}
	return item.Description
}

func fromMarkup(markup string) *Attachment {
	if markup == "" {
		return nil
	}
	if m := videoTagRe.FindStringSubmatch(markup); m != nil {
		if att := validated(m[1], KindVideo); att != nil {
			return att
		}
	}
	if m := videoSourceRe.FindStringSubmatch(markup); m != nil {
		if att := validated(m[1], KindVideo); att != nil {
			return att
		}
	}
	if m := videoLinkRe.FindString(markup); m != "" {
		if att := validated(m, KindVideo); att != nil {
			return att
		}
	}
	if m := imgTagRe.FindStringSubmatch(markup); m != nil {
		if att := validated(m[1], KindImage); att != nil {
			return att
		}
	}
	return nil
}

// validated re-classifies the URL and keeps the hint only when it does
// not contradict the extension. Classify-or-drop: a URL that neither
// the extension nor the path heuristics can place yields no media.
func validated(rawURL string, hint Kind) *Attachment {
	if rawURL == "" {
		return nil
	}
	if kind, ok := Classify(rawURL); ok {
		return &Attachment{Kind: kind, URL: rawURL}
	}
	if byPathKeyword(rawURL) == hint {
		return &Attachment{Kind: hint, URL: rawURL}
	}
	return nil
}

// Classify determines the media kind from the URL extension, query
// string stripped.
func Classify(rawURL string) (Kind, bool) {
	ext := strings.ToLower(path.Ext(stripQuery(rawURL)))
	switch {
	case imageExts[ext]:
		return KindImage, true
	case videoExts[ext]:
		return KindVideo, true
	}
	return "", false
}

// byPathKeyword is the best-effort fallback when the URL has no usable
// extension.
func byPathKeyword(rawURL string) Kind {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.Contains(lower, "/video/") || strings.Contains(lower, "/videos/"):
		return KindVideo
	case strings.Contains(lower, "/images/") || strings.Contains(lower, "/img/") || strings.Contains(lower, "/photo"):
		return KindImage
	}
	return ""
}

func stripQuery(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}
