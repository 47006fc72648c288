package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pkgz/lgr"
)

// window key formats, one per counter scope
const (
	dayKeyFormat  = "2006-01-02"
	hourKeyFormat = "2006-01-02 15"
)

// Limiter implements fixed-window call counters persisted between runs.
// It is not safe for concurrent use; the file read-modify-write is not
// atomic and the system assumes a single instance at a time.
type Limiter struct {
	path  string
	now   func() time.Time
	usage usageState
}

type usageState struct {
	ScriptsToday    int    `json:"scripts_today"`
	ScriptsDate     string `json:"scripts_date"`
	NewsFetchesHour int    `json:"news_fetches_this_hour"`
	NewsFetchHour   string `json:"news_fetch_hour"`
	LastUpdated     string `json:"last_updated,omitempty"`
}

// NewLimiter loads usage state from path, resetting to empty defaults if the
// file is absent or corrupted.
func NewLimiter(path string) *Limiter {
	l := &Limiter{path: path, now: time.Now}
	l.load()
	return l
}

func (l *Limiter) load() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		l.usage = l.emptyState()
		return
	}
	if err := json.Unmarshal(data, &l.usage); err != nil {
		lgr.Printf("[WARN] corrupted usage file %s, resetting: %v", l.path, err)
		l.usage = l.emptyState()
	}
}

func (l *Limiter) emptyState() usageState {
	return usageState{
		ScriptsDate:   l.now().Format(dayKeyFormat),
		NewsFetchHour: l.now().Format(hourKeyFormat),
	}
}

// resetIfNeeded zeroes any counter whose window key no longer matches the
// current period, then persists. Runs before every check and increment.
func (l *Limiter) resetIfNeeded() {
	today := l.now().Format(dayKeyFormat)
	hour := l.now().Format(hourKeyFormat)

	if l.usage.ScriptsDate != today {
		lgr.Printf("[INFO] new day %s, resetting daily script counter", today)
		l.usage.ScriptsToday = 0
		l.usage.ScriptsDate = today
	}
	if l.usage.NewsFetchHour != hour {
		lgr.Printf("[DEBUG] new hour %s, resetting hourly news counter", hour)
		l.usage.NewsFetchesHour = 0
		l.usage.NewsFetchHour = hour
	}

	l.usage.LastUpdated = l.now().Format(time.RFC3339)
	if err := l.save(); err != nil {
		lgr.Printf("[WARN] failed to persist usage state: %v", err)
	}
}

// CanGenerateScript reports whether the daily script limit allows another run
func (l *Limiter) CanGenerateScript(maxPerDay int) bool {
	l.resetIfNeeded()
	if l.usage.ScriptsToday >= maxPerDay {
		lgr.Printf("[WARN] daily script limit reached (%d), blocking generation", maxPerDay)
		return false
	}
	return true
}

// RecordScriptGeneration counts one generated script
func (l *Limiter) RecordScriptGeneration() {
	l.resetIfNeeded()
	l.usage.ScriptsToday++
	if err := l.save(); err != nil {
		lgr.Printf("[WARN] failed to persist script count: %v", err)
	}
	lgr.Printf("[INFO] script generated, daily count: %d", l.usage.ScriptsToday)
}

// CanFetchNews reports whether the hourly fetch limit allows another fetch
func (l *Limiter) CanFetchNews(maxPerHour int) bool {
	l.resetIfNeeded()
	if l.usage.NewsFetchesHour >= maxPerHour {
		lgr.Printf("[WARN] hourly news fetch limit reached (%d), blocking fetch", maxPerHour)
		return false
	}
	return true
}

// RecordNewsFetch counts one news fetch
func (l *Limiter) RecordNewsFetch() {
	l.resetIfNeeded()
	l.usage.NewsFetchesHour++
	if err := l.save(); err != nil {
		lgr.Printf("[WARN] failed to persist fetch count: %v", err)
	}
	lgr.Printf("[DEBUG] news fetched, hourly count: %d", l.usage.NewsFetchesHour)
}

func (l *Limiter) save() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(l.usage, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal usage state: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o600); err != nil {
		return fmt.Errorf("write usage file: %w", err)
	}
	return nil
}
