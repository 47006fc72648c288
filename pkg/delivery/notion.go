package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"

	"github.com/trendbrief/trendbrief/pkg/blocks"
	"github.com/trendbrief/trendbrief/pkg/domain"
)

const (
	notionBaseURL    = "https://api.notion.com/v1"
	notionAPIVersion = "2022-06-28"
	maxTitleLen      = 90
	maxSelectLen     = 30
)

// approveProperty is never set by automation, a human flips it in the UI.
// The exclusion holds even when the destination schema defines the field.
const approveProperty = "Approve?"

// NotionConfig holds document database settings
type NotionConfig struct {
	Token      string
	DatabaseID string
	BaseURL    string // defaults to the public API, overridable in tests
	Timeout    time.Duration
}

// Notion delivers items as pages of a Notion database
type Notion struct {
	cfg     NotionConfig
	client  *http.Client
	builder *blocks.Builder

	schema    map[string]string // property name to property type, from discovery
	titleProp string
}

// NewNotion creates a document database sink
func NewNotion(cfg NotionConfig) *Notion {
	if cfg.BaseURL == "" {
		cfg.BaseURL = notionBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Notion{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		builder: blocks.NewBuilder(),
	}
}

// Deliver creates one page per item. The destination schema is discovered
// first so that only properties the database actually defines are populated.
// Per-item failures are logged and skipped.
func (n *Notion) Deliver(ctx context.Context, items []domain.Item) (int, error) {
	lgr.Printf("[INFO] delivering %d items to notion database", len(items))

	if err := n.discoverSchema(ctx); err != nil {
		return 0, fmt.Errorf("notion connection check failed: %w", err)
	}

	delivered := 0
	for i, item := range items {
		lgr.Printf("[DEBUG] [%d/%d] creating page: %s", i+1, len(items), firstRunes(item.Title, 40))
		if err := n.createPage(ctx, item); err != nil {
			lgr.Printf("[WARN] failed to add %q, skipping: %v", firstRunes(item.Title, 50), err)
			continue
		}
		delivered++
	}

	lgr.Printf("[INFO] delivered %d/%d items to notion", delivered, len(items))
	return delivered, nil
}

// DeliverWithResearch is Deliver with per-item research appendices keyed by item ID
func (n *Notion) DeliverWithResearch(ctx context.Context, items []domain.Item, research map[string]string) (int, error) {
	if err := n.discoverSchema(ctx); err != nil {
		return 0, fmt.Errorf("notion connection check failed: %w", err)
	}
	delivered := 0
	for _, item := range items {
		if err := n.createPageWithResearch(ctx, item, research[item.ID]); err != nil {
			lgr.Printf("[WARN] failed to add %q, skipping: %v", firstRunes(item.Title, 50), err)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// discoverSchema fetches the database and caches its property map
func (n *Notion) discoverSchema(ctx context.Context) error {
	var db struct {
		Title []struct {
			PlainText string `json:"plain_text"`
		} `json:"title"`
		Properties map[string]struct {
			Type string `json:"type"`
		} `json:"properties"`
	}
	if err := n.request(ctx, http.MethodGet, "databases/"+n.cfg.DatabaseID, nil, &db); err != nil {
		return err
	}

	dbTitle := "Unnamed"
	if len(db.Title) > 0 {
		dbTitle = db.Title[0].PlainText
	}

	n.schema = make(map[string]string, len(db.Properties))
	n.titleProp = "Title"
	for name, prop := range db.Properties {
		n.schema[name] = prop.Type
		if prop.Type == "title" {
			n.titleProp = name
		}
	}
	lgr.Printf("[INFO] connected to notion database %q, %d properties", dbTitle, len(n.schema))
	return nil
}

func (n *Notion) createPage(ctx context.Context, item domain.Item) error {
	return n.createPageWithResearch(ctx, item, "")
}

func (n *Notion) createPageWithResearch(ctx context.Context, item domain.Item, research string) error {
	payload := map[string]any{
		"parent":     map[string]any{"database_id": n.cfg.DatabaseID},
		"properties": n.buildProperties(item),
		"children":   renderBlocks(n.builder.Build(item, research)),
	}

	retrier := repeater.NewBackoff(2, time.Second, repeater.WithMaxDelay(5*time.Second))
	return retrier.Do(ctx, func() error {
		return n.request(ctx, http.MethodPost, "pages", payload, nil)
	})
}

// buildProperties maps item fields onto the discovered schema. Only the title
// is mandatory, every other property is filled in only when the database
// defines it. The approval flag is excluded unconditionally.
func (n *Notion) buildProperties(item domain.Item) map[string]any {
	props := map[string]any{
		n.titleProp: map[string]any{
			"title": []any{map[string]any{"text": map[string]any{"content": firstRunes(item.Title, maxTitleLen)}}},
		},
	}

	if name, ok := n.lookupProp("Source"); ok && item.Source != "" {
		props[name] = map[string]any{"select": map[string]any{"name": firstRunes(item.Source, maxSelectLen)}}
	}
	if name, ok := n.lookupProp("Link"); ok && item.Link != "" {
		props[name] = map[string]any{"url": item.Link}
	}
	if name, ok := n.lookupProp("Score"); ok && n.schema[name] == "number" {
		props[name] = map[string]any{"number": item.DisplayScore()}
	}
	if name, ok := n.lookupProp("Status"); ok {
		switch n.schema[name] {
		case "status":
			props[name] = map[string]any{"status": map[string]any{"name": "New"}}
		case "select":
			props[name] = map[string]any{"select": map[string]any{"name": "New"}}
		}
	}
	if name, ok := n.lookupProp("Category"); ok {
		category := "Trending"
		if item.Category == domain.CategoryAINews || item.Category == domain.CategoryResearch {
			category = "AI"
		}
		switch n.schema[name] {
		case "select":
			props[name] = map[string]any{"select": map[string]any{"name": category}}
		case "multi_select":
			props[name] = map[string]any{"multi_select": []any{map[string]any{"name": category}}}
		}
	}

	delete(props, n.actualName(approveProperty))
	return props
}

// lookupProp finds a schema property by name ignoring case and surrounding
// whitespace, and never matches the approval flag
func (n *Notion) lookupProp(name string) (string, bool) {
	actual := n.actualName(name)
	if actual == "" || canonical(actual) == canonical(approveProperty) {
		return "", false
	}
	return actual, true
}

func (n *Notion) actualName(name string) string {
	want := canonical(name)
	for schemaName := range n.schema {
		if canonical(schemaName) == want {
			return schemaName
		}
	}
	return ""
}

func canonical(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// request performs one API call, decoding the response into out when given.
// Error responses carry a human hint for the common misconfigurations.
func (n *Notion) request(ctx context.Context, method, endpoint string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.cfg.BaseURL+"/"+endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Notion-Version", notionAPIVersion)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notion request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = json.Unmarshal(raw, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = firstRunes(string(raw), 200)
		}
		return fmt.Errorf("notion api error %d: %s (%s)", resp.StatusCode, msg, statusHint(resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// statusHint maps common failure codes to actionable advice
func statusHint(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "check that the database has the required properties"
	case http.StatusUnauthorized:
		return "check the integration token"
	case http.StatusNotFound:
		return "check the database id and that the database is shared with the integration"
	default:
		return "unexpected response"
	}
}

// renderBlocks converts the internal block tree into the wire format
func renderBlocks(tree []domain.Block) []any {
	out := make([]any, 0, len(tree))
	for _, b := range tree {
		out = append(out, renderBlock(b))
	}
	return out
}

func renderBlock(b domain.Block) map[string]any {
	inner := map[string]any{}
	if b.Type != domain.BlockDivider {
		runs := make([]any, 0, len(b.Text))
		for _, rt := range b.Text {
			run := map[string]any{"type": "text", "text": textPayload(rt)}
			if rt.Bold || rt.Italic {
				run["annotations"] = map[string]any{"bold": rt.Bold, "italic": rt.Italic}
			}
			runs = append(runs, run)
		}
		inner["rich_text"] = runs
	}
	return map[string]any{"object": "block", "type": string(b.Type), string(b.Type): inner}
}

func textPayload(rt domain.RichText) map[string]any {
	payload := map[string]any{"content": rt.Content}
	if rt.Link != "" {
		payload["link"] = map[string]any{"url": rt.Link}
	}
	return payload
}

// firstRunes truncates a string to at most n runes
func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
