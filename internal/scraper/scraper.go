// Package scraper is the full-text fetch collaborator: given an
// article URL it extracts the main body text, stripping scripts, ads
// and other non-content elements. Site-specific selector strategies
// are an ordered table, so new sources are configuration, not code
// paths; a readability pass is the last resort.
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/deusflow/newsbot/internal/cache"
	"github.com/deusflow/newsbot/internal/logger"
)

// Strategy maps a URL substring to the goquery selectors tried for
// pages of that site, in order.
type Strategy struct {
	Pattern   string
	Selectors []string
}

var defaultStrategies = []Strategy{
	{Pattern: "dr.dk", Selectors: []string{".dre-article-body p", ".article-body p", "article p"}},
	{Pattern: "ekstrabladet.dk", Selectors: []string{".article-body p", ".article-content p", ".body-text p"}},
	{Pattern: "tv2.dk", Selectors: []string{".article-body p", ".article-text p", "article p"}},
	{Pattern: "bt.dk", Selectors: []string{".article-body p", ".content p", "article p"}},
}

var genericSelectors = []string{
	"article p",
	".article p",
	".content p",
	".post-content p",
	".entry-content p",
	"main p",
	"#content p",
}

const (
	maxBodyBytes  = 2 << 20
	minExtracted  = 300
	maxExtracted  = 6000
	cacheTTL      = time.Hour
	junkSelectors = "script, style, noscript, figure, figcaption, aside, nav, footer, form, iframe"
)

var junkIndicators = []string{
	"cookie", "gdpr", "reklame", "annonce", "læs mere", "læs også",
	"klik her", "følg os", "del artikel", "tilmeld dig", "abonnement",
}

type Scraper struct {
	client     *http.Client
	strategies []Strategy
	cache      *cache.Cache
}

func New(timeout time.Duration) *Scraper {
	return &Scraper{
		client:     &http.Client{Timeout: timeout},
		strategies: defaultStrategies,
		cache:      cache.New(),
	}
}

// Extract returns the main article text for the URL, cached across
// whole-run retries.
func (s *Scraper) Extract(ctx context.Context, pageURL string) (string, error) {
	if text, ok := s.cache.Get(pageURL); ok {
		logger.Debug("scrape cache hit", "url", pageURL)
		return text, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "newsbot/1.0 (+article fetch)")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("load page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}

	content := s.extractWithSelectors(body, pageURL)
	if len(content) < minExtracted {
		if fallback := readabilityFallback(body, pageURL); len(fallback) > len(content) {
			content = fallback
		}
	}
	if content == "" {
		return "", fmt.Errorf("no content extracted from %s", pageURL)
	}

	s.cache.Set(pageURL, content, cacheTTL)
	return content, nil
}

func (s *Scraper) extractWithSelectors(body []byte, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}
	doc.Find(junkSelectors).Remove()

	for _, selector := range s.selectorsFor(pageURL) {
		var paragraphs []string
		doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
			text := strings.TrimSpace(sel.Text())
			if len(text) > 20 {
				paragraphs = append(paragraphs, text)
			}
		})
		if len(paragraphs) >= 2 {
			return cleanContent(strings.Join(paragraphs, "\n\n"))
		}
	}
	return ""
}

func (s *Scraper) selectorsFor(pageURL string) []string {
	for _, strat := range s.strategies {
		if strings.Contains(pageURL, strat.Pattern) {
			return append(append([]string{}, strat.Selectors...), genericSelectors...)
		}
	}
	return genericSelectors
}

func readabilityFallback(body []byte, pageURL string) string {
	u, err := nurl.Parse(pageURL)
	if err != nil {
		return ""
	}
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		logger.Debug("readability fallback failed", "url", pageURL, "error", err)
		return ""
	}
	return cleanContent(article.TextContent)
}

// cleanContent normalizes whitespace, drops boilerplate lines, and
// bounds the result while keeping whole paragraphs.
func cleanContent(content string) string {
	var paragraphs []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < 30 {
			continue
		}
		if isJunkLine(line) {
			continue
		}
		paragraphs = append(paragraphs, strings.Join(strings.Fields(line), " "))
	}

	var out []string
	total := 0
	for _, p := range paragraphs {
		if total+len(p) > maxExtracted && len(out) > 0 {
			break
		}
		out = append(out, p)
		total += len(p) + 2
	}
	return strings.TrimSpace(strings.Join(out, "\n\n"))
}

func isJunkLine(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range junkIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}
