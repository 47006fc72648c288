package scriptgen

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-pkgz/lgr"

	"github.com/trendbrief/trendbrief/pkg/delivery"
	"github.com/trendbrief/trendbrief/pkg/domain"
)

// ApprovalStore is the review surface humans approve items on. The
// spreadsheet sink implements it.
type ApprovalStore interface {
	CheckApprovals(ctx context.Context) ([]delivery.Approval, error)
	MarkProcessing(ctx context.Context, row int) error
	MarkComplete(ctx context.Context, row, scriptRow int) error
	WriteScript(ctx context.Context, item domain.Item, script string) (int, error)
	LogUsage(ctx context.Context, action, details string)
}

// ProcessApprovals scans for human-approved items and writes a script for
// each one. Rows are marked processing first so an overlapping run skips
// them. A failure on one row is logged and the rest still run, except the
// daily quota which stops the whole scan.
func ProcessApprovals(ctx context.Context, store ApprovalStore, writer *Writer) (int, error) {
	approved, err := store.CheckApprovals(ctx)
	if err != nil {
		return 0, fmt.Errorf("check approvals: %w", err)
	}
	if len(approved) == 0 {
		lgr.Printf("[INFO] no approved items waiting")
		return 0, nil
	}
	lgr.Printf("[INFO] processing %d approved items", len(approved))

	processed := 0
	for _, approval := range approved {
		if err := store.MarkProcessing(ctx, approval.Row); err != nil {
			lgr.Printf("[WARN] failed to mark row %d processing, skipping: %v", approval.Row, err)
			continue
		}

		script, err := writer.Generate(ctx, approval.Item)
		if errors.Is(err, ErrLimitReached) {
			lgr.Printf("[WARN] daily script limit reached, stopping approval scan")
			store.LogUsage(ctx, "LIMIT", "daily script quota exhausted")
			return processed, nil
		}
		if err != nil {
			lgr.Printf("[WARN] script generation failed for row %d: %v", approval.Row, err)
			store.LogUsage(ctx, "ERROR", fmt.Sprintf("row %d: %v", approval.Row, err))
			continue
		}

		scriptRow, err := store.WriteScript(ctx, approval.Item, script)
		if err != nil {
			lgr.Printf("[WARN] failed to store script for row %d: %v", approval.Row, err)
			store.LogUsage(ctx, "ERROR", fmt.Sprintf("row %d: %v", approval.Row, err))
			continue
		}

		if err := store.MarkComplete(ctx, approval.Row, scriptRow); err != nil {
			lgr.Printf("[WARN] failed to mark row %d complete: %v", approval.Row, err)
		}
		store.LogUsage(ctx, "GENERATE", fmt.Sprintf("script for %q at row %d", approval.Item.Title, scriptRow))
		processed++
	}

	lgr.Printf("[INFO] generated %d scripts", processed)
	return processed, nil
}
