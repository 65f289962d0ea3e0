// Package pipeline orchestrates one publishing run: fetch → normalize
// → score → select → publish. The publication gate walks the trial
// queue and commits at most one candidate per run; the run controller
// retries whole attempts a bounded number of times.
package pipeline

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/deusflow/newsbot/internal/config"
	"github.com/deusflow/newsbot/internal/feed"
	"github.com/deusflow/newsbot/internal/history"
	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/media"
	"github.com/deusflow/newsbot/internal/metrics"
	"github.com/deusflow/newsbot/internal/news"
	"github.com/deusflow/newsbot/internal/score"
	"github.com/deusflow/newsbot/internal/selector"
	"github.com/deusflow/newsbot/internal/summarizer"
)

// Fetcher is the feed retrieval collaborator.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []config.FeedSource) []feed.Item
}

// Summarizer is the generative summarization collaborator. It makes no
// length guarantee; the gate enforces the band.
type Summarizer interface {
	Summarize(ctx context.Context, title, body string, band summarizer.Band) (string, error)
}

// Publisher posts one text with an optional attachment and returns a
// platform message identifier.
type Publisher interface {
	Publish(ctx context.Context, text string, att *media.Attachment) (string, error)
}

// Outcome classifies one candidate trial.
type Outcome string

const (
	OutcomePublished       Outcome = "published"
	OutcomeAlreadyPosted   Outcome = "skipped-already-posted"
	OutcomeContentTooShort Outcome = "content-too-short"
	OutcomeSummaryFailed   Outcome = "summary-failed"
	OutcomePostFailed      Outcome = "post-failed"
)

// Trial is the per-candidate record of one gate pass.
type Trial struct {
	Candidate news.Candidate
	Outcome   Outcome
	MessageID string
	Err       error
}

// Result is the outcome of a run.
type Result struct {
	Published bool
	Link      string
	MessageID string
	Attempts  int
	Trials    []Trial
}

type Pipeline struct {
	cfg        *config.Config
	fetcher    Fetcher
	normalizer *news.Normalizer
	scorer     *score.Scorer
	selector   *selector.Selector
	store      history.Store
	summarizer Summarizer
	publisher  Publisher

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

func New(cfg *config.Config, fetcher Fetcher, normalizer *news.Normalizer, scorer *score.Scorer, sel *selector.Selector, store history.Store, summ Summarizer, pub Publisher) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		fetcher:    fetcher,
		normalizer: normalizer,
		scorer:     scorer,
		selector:   sel,
		store:      store,
		summarizer: summ,
		publisher:  pub,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Run performs up to cfg.RunAttempts complete pipeline attempts with a
// fixed backoff between them. Exhausting the budget with zero
// publications is a reported result, not an error; errors are reserved
// for cancellation.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := p.now()
	defer func() {
		metrics.Global.RecordRunDuration(time.Since(start))
		metrics.Global.SetLastRun()
	}()

	// History is read once at run start. An unreadable store weakens
	// exactly-once to this process's memory; publishing still proceeds.
	if err := p.store.Load(); err != nil {
		logger.Error("history load failed, continuing with in-memory history", "error", err)
		metrics.Global.SetError("history load: " + err.Error())
	}

	result := &Result{}
	for attempt := 1; attempt <= p.cfg.RunAttempts; attempt++ {
		logger.Info("pipeline attempt", "attempt", attempt, "max", p.cfg.RunAttempts)

		result = p.runOnce(ctx)
		result.Attempts = attempt
		if result.Published {
			return result, nil
		}
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		if attempt < p.cfg.RunAttempts {
			logger.Info("nothing published, backing off", "delay", p.cfg.RunRetryDelay)
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(p.cfg.RunRetryDelay):
			}
		}
	}

	logger.Warn("run finished without publishing", "attempts", p.cfg.RunAttempts)
	metrics.Global.SetError("run finished without publishing")
	return result, nil
}

func (p *Pipeline) runOnce(ctx context.Context) *Result {
	logger.Debug("stage", "state", "fetching")
	items := p.fetcher.FetchAll(ctx, p.cfg.Feeds)

	logger.Debug("stage", "state", "normalizing")
	cands := p.normalizer.Normalize(ctx, items)

	logger.Debug("stage", "state", "scoring")
	scored := p.scorer.ScoreAll(cands)

	logger.Debug("stage", "state", "selecting")
	queue := p.selector.Select(scored, p.store.Records())
	logger.Info("trial queue built", "candidates", len(scored), "queued", len(queue))

	logger.Debug("stage", "state", "publishing")
	result := p.publishFirst(ctx, queue)
	logger.Debug("stage", "state", "done")
	return result
}

// publishFirst is the publication gate: it walks the trial queue in
// order and commits the first candidate that survives every step.
func (p *Pipeline) publishFirst(ctx context.Context, queue []news.Candidate) *Result {
	result := &Result{}

	for i, c := range queue {
		if i > 0 && p.cfg.PaceDelay > 0 {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(p.cfg.PaceDelay):
			}
		}

		trial := p.trial(ctx, c)
		result.Trials = append(result.Trials, trial)
		logger.Info("candidate trial", "link", c.Link, "outcome", trial.Outcome, "error", trial.Err)

		if trial.Outcome != OutcomePublished {
			continue
		}

		rec := history.Record{
			Link:        c.Link,
			Feed:        c.SourceFeed,
			Domain:      c.Domain,
			PublishedAt: p.now(),
		}
		if err := p.store.Append(rec); err != nil {
			// Best-effort weakening of exactly-once: the publish stands,
			// a future run may not know about it.
			logger.Error("history persist failed, duplicate risk on future runs", "link", c.Link, "error", err)
		}

		result.Published = true
		result.Link = c.Link
		result.MessageID = trial.MessageID
		return result
	}

	return result
}

func (p *Pipeline) trial(ctx context.Context, c news.Candidate) Trial {
	// Exactly-once: the durable history wins over everything else.
	if p.store.Contains(c.Link) {
		return Trial{Candidate: c, Outcome: OutcomeAlreadyPosted}
	}

	// Body may have been lazily fetched; re-confirm the threshold.
	if utf8.RuneCountInString(c.Body) < p.cfg.MinBodyLength {
		return Trial{Candidate: c, Outcome: OutcomeContentTooShort}
	}

	summary, err := p.summarizeInBand(ctx, c)
	if err != nil {
		return Trial{Candidate: c, Outcome: OutcomeSummaryFailed, Err: err}
	}
	c.Summary = summary

	id, err := p.publisher.Publish(ctx, summary, c.Media)
	if err != nil {
		return Trial{Candidate: c, Outcome: OutcomePostFailed, Err: err}
	}

	return Trial{Candidate: c, Outcome: OutcomePublished, MessageID: id}
}

// summarizeInBand requests summaries until one lands in the length
// band or the retry budget runs out. Under-length output triggers a
// regeneration; over-length output is deterministically truncated with
// an ellipsis (truncate wins over regenerate, so the final length
// never exceeds the band maximum).
func (p *Pipeline) summarizeInBand(ctx context.Context, c news.Candidate) (string, error) {
	band := summarizer.Band{Min: p.cfg.SummaryMinLen, Max: p.cfg.SummaryMaxLen}
	var lastErr error

	for attempt := 1; attempt <= p.cfg.SummaryRetries; attempt++ {
		text, err := p.summarizer.Summarize(ctx, c.Title, c.Body, band)
		if err != nil {
			lastErr = err
			continue
		}

		n := utf8.RuneCountInString(text)
		switch {
		case n > band.Max:
			return truncateWithEllipsis(text, band.Max), nil
		case n >= band.Min:
			return text, nil
		}

		logger.Debug("summary under band minimum, regenerating",
			"link", c.Link, "length", n, "attempt", attempt)
		lastErr = fmt.Errorf("summary length %d below band minimum %d", n, band.Min)
	}

	return "", fmt.Errorf("no summary within band after %d attempts: %w", p.cfg.SummaryRetries, lastErr)
}

// truncateWithEllipsis cuts on a rune boundary, preferring the last
// word break, and appends an ellipsis. The result never exceeds max
// runes.
func truncateWithEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	cut := runes[:max-1]
	for i := len(cut) - 1; i > max/2; i-- {
		if cut[i] == ' ' {
			cut = cut[:i]
			break
		}
	}
	return string(cut) + "…"
}
