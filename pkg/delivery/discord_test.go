package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

func TestDiscord_Deliver(t *testing.T) {
	var messages []discordMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg discordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		messages = append(messages, msg)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	d := NewDiscord(DiscordConfig{WebhookURL: ts.URL})
	d.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }

	items := []domain.Item{
		{ID: "a1", Title: "AI item", Category: domain.CategoryAINews, Source: "HN", Score: 80, Summary: "sum", Link: "https://x/1"},
		{ID: "a2", Title: "Hot item", Category: domain.CategoryTrending, Source: "Reddit", Score: 60},
	}
	count, err := d.Deliver(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// header message plus one embed batch
	require.Len(t, messages, 2)
	assert.Contains(t, messages[0].Content, "June 1, 2025")
	assert.Contains(t, messages[0].Content, "2 fresh ideas")

	embeds := messages[1].Embeds
	require.Len(t, embeds, 2)
	assert.Equal(t, "1. AI item", embeds[0].Title)
	assert.Equal(t, colorAI, embeds[0].Color)
	assert.Equal(t, "sum", embeds[0].Description)
	assert.Equal(t, "ID: a1", embeds[0].Footer.Text)

	assert.Equal(t, "2. Hot item", embeds[1].Title)
	assert.Equal(t, colorTrending, embeds[1].Color)
	assert.Equal(t, "No summary", embeds[1].Description)

	require.Len(t, embeds[0].Fields, 3)
	assert.Equal(t, "80/100", embeds[0].Fields[1].Value)
}

func TestDiscord_BatchesOverEmbedLimit(t *testing.T) {
	var batches [][]discordEmbed
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg discordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		if len(msg.Embeds) > 0 {
			batches = append(batches, msg.Embeds)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	d := NewDiscord(DiscordConfig{WebhookURL: ts.URL})

	items := make([]domain.Item, 11)
	for i := range items {
		items[i] = domain.Item{ID: fmt.Sprintf("i%d", i), Title: fmt.Sprintf("item %d", i)}
	}
	count, err := d.Deliver(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 11, count)

	require.Len(t, batches, 2)
	assert.Len(t, batches[0], 10)
	assert.Len(t, batches[1], 1)
	assert.Equal(t, "11. item 10", batches[1][0].Title)
}

func TestDiscord_HeaderFailureAborts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	d := NewDiscord(DiscordConfig{WebhookURL: ts.URL})
	count, err := d.Deliver(context.Background(), []domain.Item{{Title: "x"}})
	assert.Equal(t, 0, count)
	assert.Error(t, err)
}

func TestDiscord_FailedBatchSkipped(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// header ok, first embed batch fails, second succeeds
		if calls == 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	d := NewDiscord(DiscordConfig{WebhookURL: ts.URL})

	items := make([]domain.Item, 15)
	for i := range items {
		items[i] = domain.Item{Title: fmt.Sprintf("item %d", i)}
	}
	count, err := d.Deliver(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 5, count, "only the second batch of five landed")
}

func TestDiscord_SendResearch(t *testing.T) {
	var msg discordMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	d := NewDiscord(DiscordConfig{WebhookURL: ts.URL})
	err := d.SendResearch(context.Background(), "Agent swarms", "long analysis")
	require.NoError(t, err)

	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "🔬 Research: Agent swarms", msg.Embeds[0].Title)
	assert.Equal(t, colorResearch, msg.Embeds[0].Color)
}

func TestDiscord_DeliverWithResearch(t *testing.T) {
	var messages []discordMessage
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg discordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		messages = append(messages, msg)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	d := NewDiscord(DiscordConfig{WebhookURL: ts.URL})
	d.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }

	items := []domain.Item{
		{ID: "a1", Title: "Researched idea", Source: "HN", Score: 80},
		{ID: "a2", Title: "Plain idea", Source: "Reddit", Score: 60},
	}
	count, err := d.DeliverWithResearch(context.Background(), items, map[string]string{
		"a1": "the deep analysis",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// header, one embed batch, then one research report for the single
	// researched item
	require.Len(t, messages, 3)
	report := messages[2].Embeds
	require.Len(t, report, 1)
	assert.Equal(t, "🔬 Research: Researched idea", report[0].Title)
	assert.Equal(t, "the deep analysis", report[0].Description)
}
