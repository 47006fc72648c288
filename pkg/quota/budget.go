// Package quota tracks API spend and call counts against rolling time
// windows. State lives in flat JSON files and every mutation is persisted
// immediately, so a crash loses at most the in-flight operation. The two
// scopes (spend-based monthly budget, count-based call limits) keep fully
// independent state files.
package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pkgz/lgr"
)

// Budget tracks cumulative monthly spend against a fixed ceiling
type Budget struct {
	path  string
	limit float64
	now   func() time.Time
	data  budgetState
}

type budgetState struct {
	CurrentMonth  string  `json:"current_month"`
	TotalSpend    float64 `json:"total_spend"`
	RunsThisMonth int     `json:"runs_this_month"`
	LastUpdated   string  `json:"last_updated,omitempty"`
}

// NewBudget loads budget state from path, resetting to empty defaults if the
// file is absent or corrupted.
func NewBudget(path string, limit float64) *Budget {
	b := &Budget{path: path, limit: limit, now: time.Now}
	b.load()
	return b
}

func (b *Budget) load() {
	data, err := os.ReadFile(b.path)
	if err != nil {
		b.data = b.emptyState()
		return
	}
	if err := json.Unmarshal(data, &b.data); err != nil {
		lgr.Printf("[WARN] corrupted budget file %s, resetting: %v", b.path, err)
		b.data = b.emptyState()
	}
}

func (b *Budget) emptyState() budgetState {
	return budgetState{CurrentMonth: b.now().Format("2006-01")}
}

// CheckBudget reports whether monthly spend is still below the ceiling,
// resetting counters first if the month has rolled over.
func (b *Budget) CheckBudget() bool {
	month := b.now().Format("2006-01")
	if b.data.CurrentMonth != month {
		lgr.Printf("[INFO] new month %s, resetting budget counters", month)
		b.data.CurrentMonth = month
		b.data.TotalSpend = 0
		b.data.RunsThisMonth = 0
		if err := b.save(); err != nil {
			lgr.Printf("[WARN] failed to persist budget reset: %v", err)
		}
	}
	return b.data.TotalSpend < b.limit
}

// RecordSpending adds to cumulative spend, bumps the run counter and persists
func (b *Budget) RecordSpending(amount float64) error {
	b.data.TotalSpend += amount
	b.data.RunsThisMonth++
	b.data.LastUpdated = b.now().Format(time.RFC3339)
	if err := b.save(); err != nil {
		return fmt.Errorf("record spending: %w", err)
	}
	return nil
}

// Spent returns the cumulative spend for the current month
func (b *Budget) Spent() float64 { return b.data.TotalSpend }

// Status returns a human-readable budget summary
func (b *Budget) Status() string {
	return fmt.Sprintf("Budget: $%.3f / $%.2f (Remaining: $%.2f)",
		b.data.TotalSpend, b.limit, b.limit-b.data.TotalSpend)
}

func (b *Budget) save() error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(b.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal budget state: %w", err)
	}
	if err := os.WriteFile(b.path, data, 0o600); err != nil {
		return fmt.Errorf("write budget file: %w", err)
	}
	return nil
}
