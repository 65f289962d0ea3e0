package score

import (
	"strings"

	"github.com/deusflow/newsbot/internal/config"
	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/media"
	"github.com/deusflow/newsbot/internal/news"
)

// Scorer assigns relevance scores from weighted keyword classes plus a
// media-kind bonus. It is a ranking heuristic, not a classifier: ties
// are expected and broken downstream by the selector.
type Scorer struct {
	Keywords config.Keywords

	PriorityWeight float64
	EconomicWeight float64
	GeneralWeight  float64
	VideoBonus     float64
	ImageBonus     float64
}

func NewScorer(cfg *config.Config) *Scorer {
	return &Scorer{
		Keywords:       cfg.Keywords,
		PriorityWeight: cfg.PriorityWeight,
		EconomicWeight: cfg.EconomicWeight,
		GeneralWeight:  cfg.GeneralWeight,
		VideoBonus:     cfg.VideoBonus,
		ImageBonus:     cfg.ImageBonus,
	}
}

// Score computes the candidate's score. The second return value is
// false when an exclude keyword matched and the candidate is
// ineligible.
func (s *Scorer) Score(c news.Candidate) (float64, bool) {
	text := strings.ToLower(c.Title + " " + c.Body)

	if containsAny(text, s.Keywords.Exclude) {
		return 0, false
	}

	var total float64
	// A phrase contributes its class weight once, regardless of how
	// often it occurs.
	for _, kw := range s.Keywords.Priority {
		if containsKeyword(text, kw) {
			total += s.PriorityWeight
		}
	}
	for _, kw := range s.Keywords.Economic {
		if containsKeyword(text, kw) {
			total += s.EconomicWeight
		}
	}
	for _, kw := range s.Keywords.General {
		if containsKeyword(text, kw) {
			total += s.GeneralWeight
		}
	}

	if c.Media != nil {
		switch c.Media.Kind {
		case media.KindVideo:
			total += s.VideoBonus
		case media.KindImage:
			total += s.ImageBonus
		}
	}

	return total, true
}

// ScoreAll scores every candidate, drops excluded ones, and returns
// the survivors in their original discovery order with Score set.
func (s *Scorer) ScoreAll(cands []news.Candidate) []news.Candidate {
	out := make([]news.Candidate, 0, len(cands))
	for _, c := range cands {
		sc, ok := s.Score(c)
		if !ok {
			logger.Debug("candidate excluded by keyword", "link", c.Link)
			continue
		}
		c.Score = sc
		out = append(out, c)
	}
	return out
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if containsKeyword(text, k) {
			return true
		}
	}
	return false
}

func containsKeyword(text, keyword string) bool {
	k := strings.ToLower(strings.TrimSpace(keyword))
	if k == "" {
		return false
	}
	return strings.Contains(text, k)
}
