package score

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

func fixedScorer(t *testing.T) (*Scorer, time.Time) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewWithClock(func() time.Time { return now }), now
}

func TestScorer_Recency(t *testing.T) {
	s, now := fixedScorer(t)

	tbl := []struct {
		name      string
		published time.Time
		want      float64
	}{
		{"just published", now, 40},
		{"five hours old", now.Add(-5 * time.Hour), 30},
		{"twenty hours old", now.Add(-20 * time.Hour), 0},
		{"ancient", now.Add(-30 * 24 * time.Hour), 0},
		{"unknown date", time.Time{}, 20},
		{"future date clamped", now.Add(3 * time.Hour), 40},
	}

	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			// neutral title contributes nothing beyond recency
			got := s.Score(domain.Item{Title: "quiet morning", Published: tt.published})
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestScorer_Relevance(t *testing.T) {
	s, _ := fixedScorer(t)

	// zero recency so only relevance and engagement count
	old := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	one := s.Score(domain.Item{Title: "gpt rumors", Published: old})
	assert.InDelta(t, 10, one, 0.001)

	// four keyword hits capped at 30
	many := s.Score(domain.Item{Title: "claude gemini deepseek sora", Published: old})
	assert.InDelta(t, 30, many, 0.001)
}

func TestScorer_Engagement(t *testing.T) {
	s, _ := fixedScorer(t)
	old := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	tbl := []struct {
		name  string
		title string
		want  float64
	}{
		{"question", "is this worth it?", 10},
		{"digits", "7 habits", 5},
		{"launch word", "big launch today", 10},
		{"free", "a free lunch", 5},
		{"comparison", "x vs y", 5},
		{"stacked signals", "10 free tips: x vs y, which is better?", 25},
	}
	for _, tt := range tbl {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Score(domain.Item{Title: tt.title, Published: old})
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestScorer_CapAt100(t *testing.T) {
	s, now := fixedScorer(t)
	item := domain.Item{
		Title:     "NEW free AI agent launch: GPT vs Claude, 10 models better?",
		Published: now,
	}
	assert.InDelta(t, 100, s.Score(item), 0.001)
}

func TestScorer_EmptyTitle(t *testing.T) {
	s, now := fixedScorer(t)
	got := s.Score(domain.Item{Published: now})
	assert.InDelta(t, 40, got, 0.001)
}

func TestScorer_Rank(t *testing.T) {
	s, now := fixedScorer(t)
	items := []domain.Item{
		{Title: "quiet morning", Published: now.Add(-10 * time.Hour)}, // 20
		{Title: "new AI agent launch?", Published: now},               // high
		{Title: "quiet evening", Published: now.Add(-5 * time.Hour)},  // 30
	}
	s.Rank(items)

	assert.Equal(t, "new AI agent launch?", items[0].Title)
	assert.Equal(t, "quiet evening", items[1].Title)
	assert.Equal(t, "quiet morning", items[2].Title)
	for _, it := range items {
		assert.GreaterOrEqual(t, it.Score, 0.0)
		assert.LessOrEqual(t, it.Score, 100.0)
	}
}

func TestScorer_RankStable(t *testing.T) {
	s, _ := fixedScorer(t)
	old := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	items := []domain.Item{
		{Title: "first quiet", Published: old},
		{Title: "second quiet", Published: old},
	}
	s.Rank(items)
	assert.Equal(t, "first quiet", items[0].Title)
	assert.Equal(t, "second quiet", items[1].Title)
}
