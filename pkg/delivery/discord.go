package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

// maxEmbedsPerMessage is the webhook API limit on embeds in a single message
const maxEmbedsPerMessage = 10

// embed colors per category
const (
	colorAI       = 0x00ff00
	colorTrending = 0xff6600
	colorResearch = 0x9b59b6
)

// DiscordConfig holds chat webhook settings
type DiscordConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// Discord delivers items as rich embeds through a channel webhook
type Discord struct {
	cfg    DiscordConfig
	client *http.Client
	now    func() time.Time
}

// NewDiscord creates a chat webhook sink
func NewDiscord(cfg DiscordConfig) *Discord {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Discord{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}, now: time.Now}
}

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color"`
	Fields      []discordField `json:"fields,omitempty"`
	URL         string         `json:"url,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Timestamp   string         `json:"timestamp,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordMessage struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

// Deliver posts a dated header message followed by one embed per item,
// batched to the per-message embed limit. A failed batch is logged and
// skipped, later batches still go out.
func (d *Discord) Deliver(ctx context.Context, items []domain.Item) (int, error) {
	lgr.Printf("[INFO] delivering %d items to discord", len(items))

	header := fmt.Sprintf("# 📰 AI News Ideas - %s\n*%d fresh ideas for today*\n",
		d.now().Format("January 2, 2006"), len(items))
	if err := d.send(ctx, discordMessage{Content: header}); err != nil {
		return 0, fmt.Errorf("discord header failed: %w", err)
	}

	delivered := 0
	for start := 0; start < len(items); start += maxEmbedsPerMessage {
		end := start + maxEmbedsPerMessage
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		embeds := make([]discordEmbed, 0, len(batch))
		for i, item := range batch {
			embeds = append(embeds, d.embed(start+i+1, item))
		}
		if err := d.send(ctx, discordMessage{Embeds: embeds}); err != nil {
			lgr.Printf("[WARN] discord batch of %d failed, skipping: %v", len(batch), err)
			continue
		}
		delivered += len(batch)
	}

	lgr.Printf("[INFO] delivered %d/%d items to discord", delivered, len(items))
	return delivered, nil
}

// DeliverWithResearch posts the regular batches, then one standalone
// research report per researched item. A failed report is logged and does
// not affect the delivered count.
func (d *Discord) DeliverWithResearch(ctx context.Context, items []domain.Item, research map[string]string) (int, error) {
	delivered, err := d.Deliver(ctx, items)
	if err != nil {
		return delivered, err
	}
	for _, item := range items {
		text := research[item.ID]
		if text == "" {
			continue
		}
		if err := d.SendResearch(ctx, item.Title, text); err != nil {
			lgr.Printf("[WARN] research report for %q failed: %v", firstRunes(item.Title, 50), err)
		}
	}
	return delivered, nil
}

// SendResearch posts a standalone research report embed
func (d *Discord) SendResearch(ctx context.Context, topic, research string) error {
	embed := discordEmbed{
		Title:       "🔬 Research: " + firstRunes(topic, 100),
		Description: firstRunes(research, 2000),
		Color:       colorResearch,
		Timestamp:   d.now().UTC().Format(time.RFC3339),
	}
	return d.send(ctx, discordMessage{Embeds: []discordEmbed{embed}})
}

func (d *Discord) embed(idx int, item domain.Item) discordEmbed {
	color := colorTrending
	kind := "🔥 Trending"
	if item.Category == domain.CategoryAINews || item.Category == domain.CategoryResearch {
		color = colorAI
		kind = "🤖 AI"
	}

	description := "No summary"
	if item.Summary != "" {
		description = firstRunes(item.Summary, 200)
	}

	return discordEmbed{
		Title:       fmt.Sprintf("%d. %s", idx, firstRunes(item.Title, 100)),
		Description: description,
		Color:       color,
		Fields: []discordField{
			{Name: "Source", Value: item.Source, Inline: true},
			{Name: "Score", Value: fmt.Sprintf("%.0f/100", item.Score), Inline: true},
			{Name: "Type", Value: kind, Inline: true},
		},
		URL:       item.Link,
		Footer:    &discordFooter{Text: "ID: " + item.ID},
		Timestamp: d.now().UTC().Format(time.RFC3339),
	}
}

func (d *Discord) send(ctx context.Context, msg discordMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, firstRunes(string(raw), 200))
	}
	return nil
}
