package domain

import (
	"crypto/md5" //nolint:gosec // fingerprinting only, not security
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// item categories driving the presentation branch
const (
	CategoryAINews    = "ai_news"
	CategoryTrending  = "trending"
	CategoryResearch  = "ai_research"
	CategoryQuestions = "daily_questions"
)

// Item is the canonical record moving through the pipeline after a raw
// discovery or feed entry has been normalized.
type Item struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Link      string    `json:"link,omitempty"`
	Summary   string    `json:"summary"`
	Published time.Time `json:"published,omitempty"`
	Score     float64   `json:"score"`
	Category  string    `json:"category"`

	// ContentBlocks, when set, overrides summary-based rendering entirely
	ContentBlocks []Block `json:"content_blocks,omitempty"`
}

// Fingerprint builds a stable item ID from title and link. The ID is unique
// within a run; cross-run dedup works on normalized titles, not IDs.
func Fingerprint(title, link string) string {
	if title == "" && link == "" {
		return fmt.Sprintf("idea_%d_%s", time.Now().Unix(), uuid.NewString()[:8])
	}
	sum := md5.Sum([]byte(strings.ToLower(title + link))) //nolint:gosec // not used for security
	return hex.EncodeToString(sum[:])[:12]
}

// DisplayScore rescales the internal 0-100 score to the 1-10 range used by
// delivery destinations, clamped to that range.
func (i *Item) DisplayScore() float64 {
	s := i.Score / 10
	if s < 1 {
		return 1
	}
	if s > 10 {
		return 10
	}
	return s
}
