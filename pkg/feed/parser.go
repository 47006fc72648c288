// Package feed collects and ranks fresh items from RSS/Atom sources.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

// maxEntriesPerFeed caps how many entries one source contributes per run
const maxEntriesPerFeed = 15

// Parser fetches RSS/Atom feeds and converts entries into items
type Parser struct {
	client    *http.Client
	userAgent string
	sanitize  *bluemonday.Policy
}

// NewParser creates a feed parser
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
		sanitize:  bluemonday.StrictPolicy(),
	}
}

// Parse fetches one feed and returns its entries as items. Entries without a
// title or link are dropped, summaries are stripped of HTML, and at most
// maxEntriesPerFeed entries are taken.
func (p *Parser) Parse(ctx context.Context, feedURL string) ([]domain.Item, error) {
	body, err := p.fetch(ctx, feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	source := sourceName(feedURL, feed.Title)

	entries := feed.Items
	if len(entries) > maxEntriesPerFeed {
		entries = entries[:maxEntriesPerFeed]
	}

	items := make([]domain.Item, 0, len(entries))
	for _, entry := range entries {
		title := strings.TrimSpace(entry.Title)
		if title == "" || entry.Link == "" {
			continue
		}

		var published time.Time
		if entry.PublishedParsed != nil {
			published = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = *entry.UpdatedParsed
		}

		items = append(items, domain.Item{
			ID:        domain.Fingerprint(title, entry.Link),
			Title:     title,
			Source:    source,
			Link:      entry.Link,
			Summary:   strings.TrimSpace(p.sanitize.Sanitize(entry.Description)),
			Published: published,
			Category:  domain.CategoryAINews,
		})
	}
	return items, nil
}

// sourceName prefers the feed's own title, falling back to the URL host
func sourceName(feedURL, feedTitle string) string {
	if t := strings.TrimSpace(feedTitle); t != "" {
		if len([]rune(t)) > 30 {
			return string([]rune(t)[:30])
		}
		return t
	}
	u, err := url.Parse(feedURL)
	if err != nil || u.Host == "" {
		return "RSS"
	}
	host := strings.TrimPrefix(u.Host, "www.")
	if i := strings.Index(host, "."); i > 0 {
		host = host[:i]
	}
	if host == "" {
		return "RSS"
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

func (p *Parser) fetch(ctx context.Context, feedURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)
	addBrowserHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
