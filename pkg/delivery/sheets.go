package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

const sheetsBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// tab names inside the spreadsheet
const (
	newsTab    = "Daily News"
	scriptsTab = "Scripts"
	usageTab   = "Usage Log"
)

// SheetsConfig holds spreadsheet settings. Token is an OAuth bearer token
// for a service account with edit access to the spreadsheet.
type SheetsConfig struct {
	SpreadsheetID string
	Token         string
	BaseURL       string // defaults to the public API, overridable in tests
	Timeout       time.Duration
}

// Sheets delivers items into a review spreadsheet and reads human approval
// decisions back out of it
type Sheets struct {
	cfg    SheetsConfig
	client *http.Client
	now    func() time.Time
}

// Approval is one human-approved row awaiting script generation
type Approval struct {
	Row  int // 1-based spreadsheet row
	Item domain.Item
}

// NewSheets creates a spreadsheet sink
func NewSheets(cfg SheetsConfig) *Sheets {
	if cfg.BaseURL == "" {
		cfg.BaseURL = sheetsBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Sheets{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, now: time.Now}
}

// Deliver replaces the news tab contents with the given items. Columns:
// ID, Category, Title, Source, Why It Matters, Link, Approve?, Status.
// The approval column always starts FALSE, automation never sets it.
func (s *Sheets) Deliver(ctx context.Context, items []domain.Item) (int, error) {
	lgr.Printf("[INFO] delivering %d items to spreadsheet", len(items))

	if err := s.clearRange(ctx, newsTab+"!A2:Z100"); err != nil {
		return 0, fmt.Errorf("clear news tab: %w", err)
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		kind := "🔥 Trending"
		if item.Category == domain.CategoryAINews || item.Category == domain.CategoryResearch {
			kind = "🤖 AI"
		}
		summary := "No summary"
		if item.Summary != "" {
			summary = firstRunes(item.Summary, 150)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", i+1), kind, item.Title, item.Source, summary, item.Link, "FALSE", "Pending",
		})
	}

	if len(rows) > 0 {
		writeRange := fmt.Sprintf("%s!A2:H%d", newsTab, len(rows)+1)
		if err := s.updateValues(ctx, writeRange, rows); err != nil {
			return 0, fmt.Errorf("write news rows: %w", err)
		}
	}

	stamp := "Updated: " + s.now().Format("2006-01-02 15:04")
	if err := s.updateValues(ctx, newsTab+"!J1", [][]string{{stamp}}); err != nil {
		lgr.Printf("[WARN] failed to write update timestamp: %v", err)
	}

	lgr.Printf("[INFO] updated news tab with %d rows", len(rows))
	return len(rows), nil
}

// CheckApprovals scans the news tab for rows a human marked approved that
// have not been processed yet
func (s *Sheets) CheckApprovals(ctx context.Context) ([]Approval, error) {
	values, err := s.getValues(ctx, newsTab+"!A1:H")
	if err != nil {
		return nil, fmt.Errorf("read news tab: %w", err)
	}
	if len(values) <= 1 {
		lgr.Printf("[INFO] no news items found in spreadsheet")
		return nil, nil
	}

	var approved []Approval
	for i, row := range values[1:] {
		if len(row) < 8 {
			continue
		}
		isApproved := strings.EqualFold(strings.TrimSpace(row[6]), "TRUE")
		isPending := strings.EqualFold(strings.TrimSpace(row[7]), "pending")
		if !isApproved || !isPending {
			continue
		}
		rowIndex := i + 2 // 1-based, past the header
		approved = append(approved, Approval{
			Row: rowIndex,
			Item: domain.Item{
				ID:       row[0],
				Category: row[1],
				Title:    row[2],
				Source:   row[3],
				Summary:  row[4],
				Link:     row[5],
			},
		})
		lgr.Printf("[INFO] found approved item at row %d: %s", rowIndex, firstRunes(row[2], 50))
	}
	return approved, nil
}

// MarkProcessing flags a row so overlapping runs do not pick it up twice
func (s *Sheets) MarkProcessing(ctx context.Context, row int) error {
	return s.updateValues(ctx, fmt.Sprintf("%s!H%d", newsTab, row), [][]string{{"Processing..."}})
}

// MarkComplete points the status cell at the generated script's row
func (s *Sheets) MarkComplete(ctx context.Context, row, scriptRow int) error {
	status := fmt.Sprintf("✅ Done (Row %d)", scriptRow)
	return s.updateValues(ctx, fmt.Sprintf("%s!H%d", newsTab, row), [][]string{{status}})
}

// WriteScript appends a generated script to the scripts tab and returns the
// row it landed on
func (s *Sheets) WriteScript(ctx context.Context, item domain.Item, script string) (int, error) {
	row := []string{
		s.now().Format("2006-01-02 15:04"),
		item.Title,
		item.Source,
		script,
		fmt.Sprintf("%d", len(script)),
		fmt.Sprintf("%d", len(strings.Fields(script))),
	}
	rowIndex, err := s.appendValues(ctx, scriptsTab+"!A1", [][]string{row})
	if err != nil {
		return 0, fmt.Errorf("append script: %w", err)
	}
	lgr.Printf("[INFO] script written to row %d", rowIndex)
	return rowIndex, nil
}

// LogUsage appends an audit record, failures are logged and swallowed
func (s *Sheets) LogUsage(ctx context.Context, action, details string) {
	row := []string{s.now().Format(time.RFC3339), action, firstRunes(details, 500)}
	if _, err := s.appendValues(ctx, usageTab+"!A1", [][]string{row}); err != nil {
		lgr.Printf("[WARN] failed to log usage: %v", err)
	}
}

func (s *Sheets) clearRange(ctx context.Context, rng string) error {
	endpoint := fmt.Sprintf("%s/%s/values/%s:clear", s.cfg.BaseURL, s.cfg.SpreadsheetID, url.PathEscape(rng))
	return s.request(ctx, http.MethodPost, endpoint, map[string]any{}, nil)
}

func (s *Sheets) updateValues(ctx context.Context, rng string, values [][]string) error {
	endpoint := fmt.Sprintf("%s/%s/values/%s?valueInputOption=RAW",
		s.cfg.BaseURL, s.cfg.SpreadsheetID, url.PathEscape(rng))
	payload := map[string]any{"range": rng, "majorDimension": "ROWS", "values": values}
	return s.request(ctx, http.MethodPut, endpoint, payload, nil)
}

var updatedRowRe = regexp.MustCompile(`![A-Z]+(\d+)`)

// appendValues appends rows and returns the 1-based row index of the
// appended range, parsed out of the API's updatedRange response
func (s *Sheets) appendValues(ctx context.Context, rng string, values [][]string) (int, error) {
	endpoint := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=RAW",
		s.cfg.BaseURL, s.cfg.SpreadsheetID, url.PathEscape(rng))
	payload := map[string]any{"majorDimension": "ROWS", "values": values}

	var resp struct {
		Updates struct {
			UpdatedRange string `json:"updatedRange"`
		} `json:"updates"`
	}
	if err := s.request(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		return 0, err
	}

	m := updatedRowRe.FindStringSubmatch(resp.Updates.UpdatedRange)
	if m == nil {
		return 0, fmt.Errorf("unexpected updatedRange %q", resp.Updates.UpdatedRange)
	}
	var rowIndex int
	fmt.Sscanf(m[1], "%d", &rowIndex)
	return rowIndex, nil
}

func (s *Sheets) getValues(ctx context.Context, rng string) ([][]string, error) {
	endpoint := fmt.Sprintf("%s/%s/values/%s", s.cfg.BaseURL, s.cfg.SpreadsheetID, url.PathEscape(rng))

	var resp struct {
		Values [][]string `json:"values"`
	}
	if err := s.request(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *Sheets) request(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sheets request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sheets api error %d: %s", resp.StatusCode, firstRunes(string(raw), 200))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
