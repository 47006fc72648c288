package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/trendbrief/trendbrief/pkg/domain"
	"github.com/trendbrief/trendbrief/pkg/history"
	"github.com/trendbrief/trendbrief/pkg/quota"
	"github.com/trendbrief/trendbrief/pkg/score"
)

// defaultTopN is how many curated items a collection run keeps
const defaultTopN = 8

// AggregatorParams configures an aggregator
type AggregatorParams struct {
	Feeds          []string
	Parser         *Parser
	Limiter        *quota.Limiter
	History        *history.History
	Scorer         *score.Scorer
	MaxAge         time.Duration // freshness window, default 24h
	TopN           int           // curated list size, default 8
	FetchesPerHour int           // rate limit for collection runs
	Now            func() time.Time
}

// Aggregator runs the full collection pipeline: fetch, dedupe, score, rank
type Aggregator struct {
	AggregatorParams
}

// NewAggregator creates an aggregator, filling in defaults
func NewAggregator(params AggregatorParams) *Aggregator {
	if params.MaxAge == 0 {
		params.MaxAge = 24 * time.Hour
	}
	if params.TopN == 0 {
		params.TopN = defaultTopN
	}
	if params.Scorer == nil {
		params.Scorer = score.New()
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Aggregator{AggregatorParams: params}
}

// Collect gathers items from all feeds and returns the curated top of the
// ranking. Rate limited per hour: a gated run returns an empty list without
// touching the network. One failing feed never aborts the run. The curated
// titles are recorded in history so later runs skip them.
func (a *Aggregator) Collect(ctx context.Context) ([]domain.Item, error) {
	if !a.Limiter.CanFetchNews(a.FetchesPerHour) {
		lgr.Printf("[WARN] news fetch rate limit hit, skipping collection")
		return nil, nil
	}

	var all []domain.Item
	seen := map[string]struct{}{}

	for _, feedURL := range a.Feeds {
		items, err := a.Parser.Parse(ctx, feedURL)
		if err != nil {
			lgr.Printf("[ERROR] failed to fetch feed %s: %v", feedURL, err)
			continue
		}
		fresh := 0
		for _, item := range items {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			if !a.isFresh(item.Published) {
				continue
			}
			all = append(all, item)
			fresh++
		}
		if len(items) > 0 {
			lgr.Printf("[INFO] collected %d items from %s (%d fresh)", len(items), items[0].Source, fresh)
		}
	}

	a.Limiter.RecordNewsFetch()

	kept := all[:0]
	for _, item := range all {
		if a.History.IsDuplicate(item.Title) {
			continue
		}
		kept = append(kept, item)
	}
	lgr.Printf("[INFO] after deduplication: %d items (from %d)", len(kept), len(all))

	a.Scorer.Rank(kept)

	if len(kept) > a.TopN {
		kept = kept[:a.TopN]
	}

	titles := make([]string, 0, len(kept))
	for _, item := range kept {
		titles = append(titles, item.Title)
	}
	if err := a.History.RecordTitles(titles); err != nil {
		lgr.Printf("[WARN] failed to save history: %v", err)
	}

	lgr.Printf("[INFO] final curated list: %d items", len(kept))
	return kept, nil
}

// Digest runs a collection and renders it as a readable text summary
func (a *Aggregator) Digest(ctx context.Context) (string, error) {
	items, err := a.Collect(ctx)
	if err != nil {
		return "", fmt.Errorf("collect news: %w", err)
	}
	if len(items) == 0 {
		return "📭 No fresh news found today.", nil
	}

	lines := []string{
		"📰 **AI NEWS DIGEST**",
		"Generated: " + a.Now().Format("2006-01-02 15:04"),
		strings.Repeat("-", 40),
	}
	for i, item := range items {
		emoji := "🔥"
		if item.Category == domain.CategoryAINews {
			emoji = "🤖"
		}
		lines = append(lines, fmt.Sprintf("%d. %s **%s**", i+1, emoji, item.Title))
		lines = append(lines, fmt.Sprintf("   Source: %s | Score: %.0f", item.Source, item.Score))
	}
	return strings.Join(lines, "\n"), nil
}

// isFresh keeps items inside the freshness window, undated items pass since
// staleness cannot be verified
func (a *Aggregator) isFresh(published time.Time) bool {
	if published.IsZero() {
		return true
	}
	return published.After(a.Now().Add(-a.MaxAge))
}
