// Package score ranks collected items by recency, topical relevance and
// engagement potential.
package score

import (
	"sort"
	"strings"
	"time"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

// aiKeywords boost the relevance component, one match is worth 10 points
var aiKeywords = []string{
	"ai", "gpt", "claude", "gemini", "llm", "chatgpt", "openai",
	"anthropic", "deepseek", "midjourney", "runway", "sora",
	"automation", "agent", "model", "neural", "machine learning",
}

// engagement signals add fixed points when the title shows them
var engagementSignals = []struct {
	match  func(title, lower string) bool
	points float64
}{
	{func(title, _ string) bool { return strings.Contains(title, "?") }, 10},
	{func(title, _ string) bool { return strings.ContainsAny(title, "0123456789") }, 5},
	{func(_, lower string) bool { return strings.Contains(lower, "new") || strings.Contains(lower, "launch") }, 10},
	{func(_, lower string) bool { return strings.Contains(lower, "free") }, 5},
	{func(_, lower string) bool { return strings.Contains(lower, "vs") || strings.Contains(lower, "better") }, 5},
}

// Scorer computes item scores relative to an injectable clock
type Scorer struct {
	now func() time.Time
}

// New creates a scorer using the wall clock
func New() *Scorer { return &Scorer{now: time.Now} }

// NewWithClock creates a scorer with a fixed time source, for tests
func NewWithClock(now func() time.Time) *Scorer { return &Scorer{now: now} }

// Score rates an item 0 to 100. Three components: recency (up to 40 points,
// losing 2 per hour of age, 20 for unknown dates), relevance (10 per keyword
// match up to 30) and engagement potential (question marks, digits,
// launch and comparison words, up to 35 but the total stays capped at 100).
func (s *Scorer) Score(item domain.Item) float64 {
	score := s.recency(item.Published)

	lower := strings.ToLower(item.Title)

	matches := 0
	for _, kw := range aiKeywords {
		if strings.Contains(lower, kw) {
			matches++
		}
	}
	relevance := float64(matches) * 10
	if relevance > 30 {
		relevance = 30
	}
	score += relevance

	for _, sig := range engagementSignals {
		if sig.match(item.Title, lower) {
			score += sig.points
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Rank scores every item in place and sorts the slice best-first,
// preserving arrival order among equal scores
func (s *Scorer) Rank(items []domain.Item) {
	for i := range items {
		items[i].Score = s.Score(items[i])
	}
	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
}

func (s *Scorer) recency(published time.Time) float64 {
	if published.IsZero() {
		return 20
	}
	hoursOld := s.now().Sub(published).Hours()
	r := 40 - hoursOld*2
	if r < 0 {
		r = 0
	}
	if r > 40 {
		r = 40
	}
	return r
}
