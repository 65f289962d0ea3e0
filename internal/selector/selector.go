// Package selector re-ranks scored candidates into the trial queue,
// balancing relevance against source-domain diversity. Given the same
// candidates and history snapshot it always produces the same order.
package selector

import (
	"math"
	"sort"

	"github.com/deusflow/newsbot/internal/config"
	"github.com/deusflow/newsbot/internal/history"
	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/media"
	"github.com/deusflow/newsbot/internal/news"
)

type Selector struct {
	opts config.Selection
}

func New(opts config.Selection) *Selector {
	if opts.TrialQueueSize <= 0 {
		opts.TrialQueueSize = 8
	}
	return &Selector{opts: opts}
}

// Select produces the ordered trial queue for the publication gate.
func (s *Selector) Select(cands []news.Candidate, hist []history.Record) []news.Candidate {
	if len(cands) == 0 {
		return nil
	}

	ranked := s.rank(cands, hist)

	var queue []news.Candidate
	switch s.opts.Mode {
	case "balanced":
		queue = s.balanced(ranked, hist)
	case "round-robin":
		queue = roundRobin(ranked)
	case "strict-rotation":
		opts := s.opts
		opts.NoConsecutiveDomain = true
		queue = applyHardFilters(ranked, hist, opts)
	default: // linear
		queue = applyHardFilters(ranked, hist, s.opts)
	}

	if len(queue) > s.opts.TrialQueueSize {
		queue = queue[:s.opts.TrialQueueSize]
	}
	return queue
}

// rank orders candidates by (diversity-adjusted) score descending,
// ties broken by media kind priority, then by discovery order. The
// stored Score is never mutated; the penalty only affects ordering.
func (s *Selector) rank(cands []news.Candidate, hist []history.Record) []news.Candidate {
	type entry struct {
		cand news.Candidate
		adj  float64
	}

	window := history.Recent(hist, s.opts.PenaltyWindow)
	entries := make([]entry, len(cands))
	for i, c := range cands {
		adj := c.Score
		if s.opts.DiversityPenalty {
			n := history.RecentDomainCount(window, c.Domain, s.opts.PenaltyWindow)
			adj -= math.Log(1+float64(n)) * s.opts.PenaltyWeight
		}
		entries[i] = entry{cand: c, adj: adj}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].adj != entries[j].adj {
			return entries[i].adj > entries[j].adj
		}
		return mediaPriority(entries[i].cand) > mediaPriority(entries[j].cand)
	})

	out := make([]news.Candidate, len(entries))
	for i, e := range entries {
		out[i] = e.cand
	}
	return out
}

// rule is one anti-dominance constraint: keep reports whether the
// candidate survives it.
type rule struct {
	name string
	keep func(news.Candidate) bool
}

// applyHardFilters applies the enabled anti-dominance rules in
// precedence order. If the full rule set would eliminate every
// candidate, rules are relaxed in reverse precedence until at least
// one candidate remains; if everything is relaxed and the set is still
// empty, the unfiltered ranked list is used.
func applyHardFilters(ranked []news.Candidate, hist []history.Record, opts config.Selection) []news.Candidate {
	rules := buildRules(hist, opts)

	for len(rules) > 0 {
		filtered := filter(ranked, rules)
		if len(filtered) > 0 {
			return filtered
		}
		dropped := rules[len(rules)-1]
		rules = rules[:len(rules)-1]
		logger.Debug("anti-dominance rule relaxed", "rule", dropped.name)
	}
	return ranked
}

func buildRules(hist []history.Record, opts config.Selection) []rule {
	var rules []rule
	last, hasLast := history.Last(hist)

	if opts.NoConsecutiveDomain && hasLast {
		rules = append(rules, rule{
			name: "no-consecutive-domain",
			keep: func(c news.Candidate) bool { return c.Domain != last.Domain },
		})
	}

	if opts.NoConsecutiveFeed && hasLast {
		rules = append(rules, rule{
			name: "no-consecutive-feed",
			keep: func(c news.Candidate) bool { return c.SourceFeed != last.Feed },
		})
	}

	if opts.MinDistinctDomains > 0 && opts.DistinctWindow > 0 {
		window := history.Recent(hist, opts.DistinctWindow)
		seen := make(map[string]struct{}, len(window))
		for _, r := range window {
			seen[r.Domain] = struct{}{}
		}
		// Only constrains while the recent window lacks variety.
		if len(window) > 0 && len(seen) < opts.MinDistinctDomains {
			rules = append(rules, rule{
				name: "distinct-domain-window",
				keep: func(c news.Candidate) bool {
					_, present := seen[c.Domain]
					return !present
				},
			})
		}
	}

	if opts.MaxDomainShare > 0 && opts.ShareWindow > 0 {
		window := history.Recent(hist, opts.ShareWindow)
		if n := len(window); n > 0 {
			rules = append(rules, rule{
				name: "max-domain-share",
				keep: func(c news.Candidate) bool {
					count := history.RecentDomainCount(window, c.Domain, len(window))
					return float64(count)/float64(n) <= opts.MaxDomainShare
				},
			})
		}
	}

	return rules
}

func filter(cands []news.Candidate, rules []rule) []news.Candidate {
	var out []news.Candidate
	for _, c := range cands {
		ok := true
		for _, r := range rules {
			if !r.keep(c) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, c)
		}
	}
	return out
}

// balanced reduces to the best-ranked candidate per domain, restricts
// to the domains with the lowest cumulative publish count, and keeps
// the rank order within that reduced set.
func (s *Selector) balanced(ranked []news.Candidate, hist []history.Record) []news.Candidate {
	var best []news.Candidate
	seen := map[string]struct{}{}
	for _, c := range ranked {
		if _, ok := seen[c.Domain]; ok {
			continue
		}
		seen[c.Domain] = struct{}{}
		best = append(best, c)
	}

	counts := history.DomainCounts(hist)
	min := -1
	for _, c := range best {
		if n := counts[c.Domain]; min < 0 || n < min {
			min = n
		}
	}

	var out []news.Candidate
	for _, c := range best {
		if counts[c.Domain] == min {
			out = append(out, c)
		}
	}
	return out
}

// roundRobin interleaves feeds, best-ranked candidate first within
// each feed, feeds ordered by their best candidate.
func roundRobin(ranked []news.Candidate) []news.Candidate {
	var feedOrder []string
	byFeed := map[string][]news.Candidate{}
	for _, c := range ranked {
		if _, ok := byFeed[c.SourceFeed]; !ok {
			feedOrder = append(feedOrder, c.SourceFeed)
		}
		byFeed[c.SourceFeed] = append(byFeed[c.SourceFeed], c)
	}

	var out []news.Candidate
	for i := 0; len(out) < len(ranked); i++ {
		for _, f := range feedOrder {
			if i < len(byFeed[f]) {
				out = append(out, byFeed[f][i])
			}
		}
	}
	return out
}

func mediaPriority(c news.Candidate) int {
	if c.Media == nil {
		return 0
	}
	switch c.Media.Kind {
	case media.KindVideo:
		return 2
	case media.KindImage:
		return 1
	}
	return 0
}
