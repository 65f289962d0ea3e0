package media

import (
	"testing"

	"github.com/deusflow/newsbot/internal/feed"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		url      string
		wantKind Kind
		wantOK   bool
	}{
		{"https://cdn.dr.dk/billede.jpg", KindImage, true},
		{"https://cdn.dr.dk/billede.PNG", KindImage, true},
		{"https://cdn.dr.dk/klip.mp4", KindVideo, true},
		{"https://cdn.dr.dk/klip.webm?quality=hd", KindVideo, true},
		{"https://cdn.dr.dk/billede.jpg?w=800#frag", KindImage, true},
		{"https://cdn.dr.dk/dokument.pdf", "", false},
		{"https://cdn.dr.dk/artikel", "", false},
	}

	for _, tt := range tests {
		kind, ok := Classify(tt.url)
		if kind != tt.wantKind || ok != tt.wantOK {
			t.Errorf("Classify(%q) = (%q, %v), want (%q, %v)", tt.url, kind, ok, tt.wantKind, tt.wantOK)
		}
	}
}

func TestResolveEnclosureWins(t *testing.T) {
	item := feed.Item{
		Enclosures: []feed.MediaRef{{URL: "https://x.dk/klip.mp4", Type: "video/mp4"}},
		ImageURL:   "https://x.dk/thumb.jpg",
	}

	att := Resolve(item)
	if att == nil {
		t.Fatal("Resolve returned nil")
	}
	if att.Kind != KindVideo || att.URL != "https://x.dk/klip.mp4" {
		t.Errorf("Resolve = %+v, want enclosure video", att)
	}
}

func TestResolveMediaContentDeclaredType(t *testing.T) {
	item := feed.Item{
		MediaContents: []feed.MediaRef{{URL: "https://x.dk/video/stream", Type: "video/mp4"}},
	}

	att := Resolve(item)
	if att == nil {
		t.Fatal("Resolve returned nil")
	}
	// No usable extension, but the /video/ path backs up the declared type.
	if att.Kind != KindVideo {
		t.Errorf("Kind = %q, want video", att.Kind)
	}
}

func TestResolveMediaContentInferredFromExtension(t *testing.T) {
	item := feed.Item{
		MediaContents: []feed.MediaRef{{URL: "https://x.dk/foto.webp"}},
	}

	att := Resolve(item)
	if att == nil || att.Kind != KindImage {
		t.Fatalf("Resolve = %+v, want image from extension", att)
	}
}

func TestResolveVideoFromMarkup(t *testing.T) {
	item := feed.Item{
		Content: `<p>Se klippet:</p><video src="https://x.dk/klip.mp4" controls></video>`,
	}

	att := Resolve(item)
	if att == nil || att.Kind != KindVideo || att.URL != "https://x.dk/klip.mp4" {
		t.Fatalf("Resolve = %+v, want markup video", att)
	}
}

func TestResolveVideoSourceTag(t *testing.T) {
	item := feed.Item{
		Content: `<video controls><source src="https://x.dk/klip.webm" type="video/webm"></video>`,
	}

	att := Resolve(item)
	if att == nil || att.Kind != KindVideo {
		t.Fatalf("Resolve = %+v, want video from source tag", att)
	}
}

func TestResolveImgTagFromMarkup(t *testing.T) {
	item := feed.Item{
		Description: `<img src="https://x.dk/billede.jpg" alt=""> og noget tekst`,
	}

	att := Resolve(item)
	if att == nil || att.Kind != KindImage || att.URL != "https://x.dk/billede.jpg" {
		t.Fatalf("Resolve = %+v, want markup image", att)
	}
}

func TestResolveThumbnailFallback(t *testing.T) {
	item := feed.Item{
		Description: "ren tekst uden medier",
		ImageURL:    "https://x.dk/thumb.png",
	}

	att := Resolve(item)
	if att == nil || att.Kind != KindImage || att.URL != "https://x.dk/thumb.png" {
		t.Fatalf("Resolve = %+v, want thumbnail image", att)
	}
}

func TestResolveUnclassifiableDropped(t *testing.T) {
	tests := []struct {
		name string
		item feed.Item
	}{
		{"no media at all", feed.Item{Description: "bare tekst"}},
		{"unsupported extension", feed.Item{ImageURL: "https://x.dk/fil.svg"}},
		{"extensionless without path hint", feed.Item{
			Enclosures: []feed.MediaRef{{URL: "https://x.dk/stream", Type: "video/mp4"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if att := Resolve(tt.item); att != nil {
				t.Errorf("Resolve = %+v, want nil (classify-or-drop)", att)
			}
		})
	}
}

func TestValidatedRejectsContradictingHint(t *testing.T) {
	// Declared as video, extension says image: the extension wins.
	att := validated("https://x.dk/billede.jpg", KindVideo)
	if att == nil || att.Kind != KindImage {
		t.Fatalf("validated = %+v, want image by extension", att)
	}
}
