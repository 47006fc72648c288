// Package history remembers recently delivered titles to suppress repeats
// across runs. Titles are compared case-insensitively on a fixed-length
// prefix: trailing variation (punctuation, emoji) from LLM-generated titles
// is absorbed cheaply, at the accepted risk of collisions on long shared
// prefixes.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-pkgz/lgr"
)

// prefixLen is the number of runes of a normalized title used for matching
const prefixLen = 50

// DefaultCap is the number of recent titles kept between runs
const DefaultCap = 100

// History holds the rolling list of recently seen title fingerprints
type History struct {
	path   string
	cap    int
	titles []string
}

// New loads title history from path; absent or corrupted files start empty.
// A cap of 0 uses DefaultCap.
func New(path string, capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCap
	}
	h := &History{path: path, cap: capacity}
	h.load()
	return h
}

func (h *History) load() {
	data, err := os.ReadFile(h.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, &h.titles); err != nil {
		lgr.Printf("[WARN] corrupted history file %s, starting fresh: %v", h.path, err)
		h.titles = nil
	}
}

// normalize folds case and truncates to the matching prefix
func normalize(title string) string {
	runes := []rune(strings.ToLower(title))
	if len(runes) > prefixLen {
		runes = runes[:prefixLen]
	}
	return string(runes)
}

// IsDuplicate reports whether a title was seen in the recent window
func (h *History) IsDuplicate(title string) bool {
	needle := normalize(title)
	for _, t := range h.titles {
		if t == needle {
			return true
		}
	}
	return false
}

// RecordTitles appends normalized titles and truncates to the newest cap
// entries, evicting oldest first.
func (h *History) RecordTitles(titles []string) error {
	for _, t := range titles {
		if t == "" {
			continue
		}
		h.titles = append(h.titles, normalize(t))
	}
	if len(h.titles) > h.cap {
		h.titles = h.titles[len(h.titles)-h.cap:]
	}
	if err := h.save(); err != nil {
		return fmt.Errorf("record titles: %w", err)
	}
	return nil
}

// RecentTitles returns up to n of the most recent titles joined for prompt
// exclusion lists, or "None" when history is empty.
func (h *History) RecentTitles(n int) string {
	if len(h.titles) == 0 {
		return "None"
	}
	start := len(h.titles) - n
	if start < 0 {
		start = 0
	}
	return strings.Join(h.titles[start:], ", ")
}

// Len returns the number of stored titles
func (h *History) Len() int { return len(h.titles) }

func (h *History) save() error {
	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(h.titles, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(h.path, data, 0o600); err != nil {
		return fmt.Errorf("write history file: %w", err)
	}
	return nil
}
