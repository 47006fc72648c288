package scriptgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendbrief/trendbrief/pkg/domain"
	"github.com/trendbrief/trendbrief/pkg/quota"
)

type fakeExtractor struct {
	text string
	err  error
	urls []string
}

func (f *fakeExtractor) Extract(_ context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

func scriptServer(t *testing.T, capture *[]string) *httptest.Server {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		for _, m := range req.Messages {
			*capture = append(*capture, m.Content)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "**HOOK (0-3s)**\n[Face Cam]\n\"You wake up.\""}}],
			"usage": {"prompt_tokens": 200, "completion_tokens": 100}
		}`)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func newTestWriter(t *testing.T, endpoint string, perDay int, extractor ContextProvider) *Writer {
	limiter := quota.NewLimiter(filepath.Join(t.TempDir(), "usage.json"))
	return NewWriter(Config{
		Endpoint:      endpoint,
		APIKey:        "k",
		Model:         "sonar",
		ScriptsPerDay: perDay,
	}, limiter, extractor)
}

func TestWriter_Generate(t *testing.T) {
	var prompts []string
	ts := scriptServer(t, &prompts)
	ex := &fakeExtractor{text: "the article body"}
	w := newTestWriter(t, ts.URL, 3, ex)

	item := domain.Item{Title: "New agent tool", Source: "HN", Summary: "does things", Link: "https://x/article"}
	script, err := w.Generate(context.Background(), item)
	require.NoError(t, err)
	assert.Contains(t, script, "You wake up.")

	assert.Equal(t, []string{"https://x/article"}, ex.urls)

	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[0], "VIEWER AS HERO")
	assert.Contains(t, prompts[1], "New agent tool")
	assert.Contains(t, prompts[1], "the article body")
}

func TestWriter_DailyLimit(t *testing.T) {
	var prompts []string
	ts := scriptServer(t, &prompts)
	w := newTestWriter(t, ts.URL, 2, nil)

	item := domain.Item{Title: "t"}
	for i := 0; i < 2; i++ {
		_, err := w.Generate(context.Background(), item)
		require.NoError(t, err)
	}

	_, err := w.Generate(context.Background(), item)
	assert.ErrorIs(t, err, ErrLimitReached)
}

func TestWriter_ExtractionFailureDegrades(t *testing.T) {
	var prompts []string
	ts := scriptServer(t, &prompts)
	ex := &fakeExtractor{err: fmt.Errorf("timeout")}
	w := newTestWriter(t, ts.URL, 3, ex)

	_, err := w.Generate(context.Background(), domain.Item{Title: "t", Link: "https://x"})
	require.NoError(t, err)
	assert.Contains(t, prompts[1], "No additional context available.")
}

func TestWriter_NoLinkSkipsExtraction(t *testing.T) {
	var prompts []string
	ts := scriptServer(t, &prompts)
	ex := &fakeExtractor{text: "unused"}
	w := newTestWriter(t, ts.URL, 3, ex)

	_, err := w.Generate(context.Background(), domain.Item{Title: "t"})
	require.NoError(t, err)
	assert.Empty(t, ex.urls)
}

func TestWriter_APIFailureDoesNotBurnQuota(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error": {"message": "bad request"}}`)
	}))
	defer ts.Close()

	w := newTestWriter(t, ts.URL, 1, nil)
	_, err := w.Generate(context.Background(), domain.Item{Title: "t"})
	require.Error(t, err)

	// the failed attempt did not consume the daily slot
	assert.True(t, w.limiter.CanGenerateScript(1))
}
