// Package summarizer drives the generative summarization collaborator.
// Gemini is the primary backend with OpenAI as fallback; the caller
// (the publication gate) enforces the length band, this package only
// requests it and bounds the input size.
package summarizer

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/deusflow/newsbot/internal/logger"
	"github.com/deusflow/newsbot/internal/metrics"
	"github.com/deusflow/newsbot/internal/ratelimit"
)

// Band is the acceptable [Min, Max] character range for a summary.
type Band struct {
	Min int
	Max int
}

const maxInputRunes = 6000

type backend interface {
	generate(ctx context.Context, prompt string) (string, error)
	name() string
}

// Client fans a summarize request out to the first available backend.
type Client struct {
	backends []backend
	budget   *ratelimit.Budget
}

// New builds a client from the configured API keys. At least one key
// must be present.
func New(ctx context.Context, geminiKey, openaiKey string, budget *ratelimit.Budget) (*Client, error) {
	var backends []backend
	if geminiKey != "" {
		g, err := newGeminiBackend(ctx, geminiKey)
		if err != nil {
			return nil, fmt.Errorf("create gemini backend: %w", err)
		}
		backends = append(backends, g)
	}
	if openaiKey != "" {
		backends = append(backends, newOpenAIBackend(openaiKey))
	}
	if len(backends) == 0 {
		return nil, fmt.Errorf("no summarizer backend configured")
	}
	return &Client{backends: backends, budget: budget}, nil
}

// Summarize generates one summary attempt for the article. The result
// is whatever the generator produced, whitespace-collapsed; length
// repair belongs to the caller.
func (c *Client) Summarize(ctx context.Context, title, body string, band Band) (string, error) {
	if err := c.budget.Use(); err != nil {
		return "", err
	}

	prompt := buildPrompt(title, truncateInput(body), band)

	var lastErr error
	for _, b := range c.backends {
		text, err := b.generate(ctx, prompt)
		if err != nil {
			logger.Warn("summarizer backend failed", "backend", b.name(), "error", err)
			lastErr = err
			continue
		}
		text = strings.TrimSpace(strings.Join(strings.Fields(text), " "))
		if text == "" {
			lastErr = fmt.Errorf("%s returned empty summary", b.name())
			continue
		}
		metrics.Global.IncrementSummariesGenerated()
		return text, nil
	}

	metrics.Global.IncrementSummariesFailed()
	return "", fmt.Errorf("all summarizer backends failed: %w", lastErr)
}

func (c *Client) Close() {
	for _, b := range c.backends {
		if closer, ok := b.(interface{ close() }); ok {
			closer.close()
		}
	}
}

func buildPrompt(title, body string, band Band) string {
	return fmt.Sprintf(`Summarize the following news article in one plain-text paragraph.

Requirements:
- Between %d and %d characters.
- Same language as the article.
- No introduction like "This article is about". No hashtags, no quotes around the text, no markdown.
- Keep proper names of people, brands and organizations unchanged.

Title: %s

Article:
%s`, band.Min, band.Max, title, body)
}

// truncateInput bounds the prompt size, cutting on a rune boundary and
// preferring a sentence end.
func truncateInput(content string) string {
	content = strings.ReplaceAll(content, "\r", "")
	content = strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(content) <= maxInputRunes {
		return content
	}

	runes := []rune(content)
	trimmed := string(runes[:maxInputRunes])
	if idx := strings.LastIndex(trimmed, ". "); idx > 1200 {
		trimmed = trimmed[:idx+1]
	}
	return trimmed
}
