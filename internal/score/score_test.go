package score

import (
	"os"
	"testing"

	"github.com/deusflow/newsbot/internal/config"
	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/media"
	"github.com/deusflow/newsbot/internal/news"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

func testScorer() *Scorer {
	return &Scorer{
		Keywords: config.Keywords{
			Priority: []string{"breaking", "valg"},
			Economic: []string{"inflation"},
			General:  []string{"danmark"},
			Exclude:  []string{"sponsoreret"},
		},
		PriorityWeight: 3,
		EconomicWeight: 0.5,
		GeneralWeight:  1,
		VideoBonus:     5,
		ImageBonus:     3,
	}
}

func TestScoreKeywordClasses(t *testing.T) {
	s := testScorer()

	tests := []struct {
		name  string
		title string
		body  string
		want  float64
	}{
		{"priority only", "Breaking nyhed", "noget tekst", 3},
		{"economic only", "Om inflation", "tal og grafer", 0.5},
		{"general only", "Vejret i Danmark", "mere tekst", 1},
		{"all classes", "Breaking: inflation i Danmark", "tekst", 4.5},
		{"no match", "Helt andet emne", "ingenting", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := s.Score(news.Candidate{Title: tt.title, Body: tt.body})
			if !ok {
				t.Fatalf("Score() reported ineligible for %q", tt.title)
			}
			if got != tt.want {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreKeywordCountsOnce(t *testing.T) {
	s := testScorer()

	got, _ := s.Score(news.Candidate{
		Title: "Breaking breaking breaking",
		Body:  "breaking igen og igen",
	})
	if got != 3 {
		t.Errorf("repeated keyword scored %v, want 3 (class weight once)", got)
	}
}

func TestScoreCaseInsensitive(t *testing.T) {
	s := testScorer()

	got, _ := s.Score(news.Candidate{Title: "BREAKING", Body: ""})
	if got != 3 {
		t.Errorf("uppercase keyword scored %v, want 3", got)
	}
}

func TestScoreExcludeKeyword(t *testing.T) {
	s := testScorer()

	_, ok := s.Score(news.Candidate{
		Title: "Breaking nyhed",
		Body:  "Dette er sponsoreret indhold",
	})
	if ok {
		t.Error("candidate with exclude keyword should be ineligible")
	}
}

func TestScoreMediaBonusOrdering(t *testing.T) {
	s := testScorer()
	base := news.Candidate{Title: "valg i danmark", Body: ""}

	none, _ := s.Score(base)

	withImage := base
	withImage.Media = &media.Attachment{Kind: media.KindImage, URL: "https://x.dk/a.jpg"}
	image, _ := s.Score(withImage)

	withVideo := base
	withVideo.Media = &media.Attachment{Kind: media.KindVideo, URL: "https://x.dk/a.mp4"}
	video, _ := s.Score(withVideo)

	if !(video > image && image > none) {
		t.Errorf("media bonus ordering broken: video=%v image=%v none=%v", video, image, none)
	}
	if video-none != s.VideoBonus {
		t.Errorf("video bonus = %v, want %v", video-none, s.VideoBonus)
	}
	if image-none != s.ImageBonus {
		t.Errorf("image bonus = %v, want %v", image-none, s.ImageBonus)
	}
}

func TestScoreAllDropsExcludedKeepsOrder(t *testing.T) {
	s := testScorer()

	in := []news.Candidate{
		{Link: "a", Title: "valg", Body: ""},
		{Link: "b", Title: "sponsoreret valg", Body: ""},
		{Link: "c", Title: "danmark", Body: ""},
	}

	out := s.ScoreAll(in)
	if len(out) != 2 {
		t.Fatalf("ScoreAll returned %d candidates, want 2", len(out))
	}
	if out[0].Link != "a" || out[1].Link != "c" {
		t.Errorf("discovery order not preserved: got [%s %s]", out[0].Link, out[1].Link)
	}
	if out[0].Score != 3 || out[1].Score != 1 {
		t.Errorf("scores = [%v %v], want [3 1]", out[0].Score, out[1].Score)
	}
}
