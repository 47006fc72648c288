// Package delivery pushes normalized items to one of several destination
// backends: a document database, a chat webhook or a spreadsheet.
package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

// Sink is one delivery destination. Deliver sends each item independently
// and reports how many made it, a per-item failure is logged and skipped
// rather than aborting the batch.
type Sink interface {
	Deliver(ctx context.Context, items []domain.Item) (int, error)
}

// ResearchSink is the optional deep-dive surface of a sink: delivery with
// per-item research text keyed by item ID. Sinks without a research
// presentation fall back to plain Deliver.
type ResearchSink interface {
	DeliverWithResearch(ctx context.Context, items []domain.Item, research map[string]string) (int, error)
}

// Options selects and configures the destination backend
type Options struct {
	Method string // notion, discord or sheets

	NotionToken    string
	NotionDatabase string

	DiscordWebhook string

	SheetsID    string
	SheetsToken string

	Timeout time.Duration
}

// New creates the sink for the configured method
func New(opts Options) (Sink, error) {
	switch opts.Method {
	case "notion":
		return NewNotion(NotionConfig{
			Token:      opts.NotionToken,
			DatabaseID: opts.NotionDatabase,
			Timeout:    opts.Timeout,
		}), nil
	case "discord":
		return NewDiscord(DiscordConfig{WebhookURL: opts.DiscordWebhook, Timeout: opts.Timeout}), nil
	case "sheets":
		return NewSheets(SheetsConfig{
			SpreadsheetID: opts.SheetsID,
			Token:         opts.SheetsToken,
			Timeout:       opts.Timeout,
		}), nil
	default:
		return nil, fmt.Errorf("unknown delivery method %q", opts.Method)
	}
}
