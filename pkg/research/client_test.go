package research

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Query(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "[{\"title\": \"found\"}]"}}],
			"usage": {"prompt_tokens": 100, "completion_tokens": 50}
		}`)
	}))
	defer ts.Close()

	client := NewClient(Config{
		Endpoint:     ts.URL,
		APIKey:       "test-key",
		Model:        "sonar",
		CostPerToken: 0.000001,
	})

	res, err := client.Query(context.Background(), "find trends", 2000)
	require.NoError(t, err)
	assert.Equal(t, `[{"title": "found"}]`, res.Content)
	assert.Equal(t, 150, res.Tokens)
	assert.InDelta(t, 0.00015, res.Cost, 1e-9)
}

func TestClient_SessionCostAccumulates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "[]"}}],
			"usage": {"prompt_tokens": 500, "completion_tokens": 500}
		}`)
	}))
	defer ts.Close()

	client := NewClient(Config{Endpoint: ts.URL, APIKey: "k", Model: "sonar", CostPerToken: 0.00001})

	for i := 0; i < 3; i++ {
		_, err := client.Query(context.Background(), "q", 100)
		require.NoError(t, err)
	}
	assert.InDelta(t, 0.03, client.SessionCost(), 1e-9)
	assert.Equal(t, 3, client.QueryCount())
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"error": {"message": "upstream blew up", "type": "server_error"}}`)
			return
		}
		fmt.Fprint(w, `{
			"choices": [{"message": {"role": "assistant", "content": "recovered"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 10}
		}`)
	}))
	defer ts.Close()

	client := NewClient(Config{Endpoint: ts.URL, APIKey: "k", Model: "sonar"})

	res, err := client.Query(context.Background(), "q", 100)
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Content)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_AuthErrorNotRetried(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
	}))
	defer ts.Close()

	client := NewClient(Config{Endpoint: ts.URL, APIKey: "bad", Model: "sonar"})

	start := time.Now()
	_, err := client.Query(context.Background(), "q", 100)
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "auth failures must not be retried")
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, client.QueryCount())
}

func TestClient_EmptyChoices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [], "usage": {"prompt_tokens": 5, "completion_tokens": 0}}`)
	}))
	defer ts.Close()

	client := NewClient(Config{Endpoint: ts.URL, APIKey: "k", Model: "sonar"})

	_, err := client.Query(context.Background(), "q", 100)
	assert.ErrorContains(t, err, "no choices")
}
