package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

// notionMock fakes the document API: schema discovery plus page creation
type notionMock struct {
	t          *testing.T
	properties map[string]string // name -> type
	pages      []map[string]any
	failTitles map[string]int // title substring -> status code to return
}

func (m *notionMock) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(m.t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(m.t, notionAPIVersion, r.Header.Get("Notion-Version"))

		switch {
		case r.Method == http.MethodGet:
			props := map[string]any{}
			for name, typ := range m.properties {
				props[name] = map[string]any{"type": typ}
			}
			resp := map[string]any{
				"title":      []map[string]any{{"plain_text": "Ideas"}},
				"properties": props,
			}
			_ = json.NewEncoder(w).Encode(resp)

		case r.Method == http.MethodPost && r.URL.Path == "/pages":
			var page map[string]any
			require.NoError(m.t, json.NewDecoder(r.Body).Decode(&page))
			for substr, code := range m.failTitles {
				if pageTitle(page) == substr {
					w.WriteHeader(code)
					_ = json.NewEncoder(w).Encode(map[string]any{"message": "boom"})
					return
				}
			}
			m.pages = append(m.pages, page)
			_ = json.NewEncoder(w).Encode(map[string]any{"id": "page-id"})

		default:
			m.t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
}

func pageTitle(page map[string]any) string {
	props, _ := page["properties"].(map[string]any)
	for _, v := range props {
		prop, ok := v.(map[string]any)
		if !ok {
			continue
		}
		arr, ok := prop["title"].([]any)
		if !ok || len(arr) == 0 {
			continue
		}
		text := arr[0].(map[string]any)["text"].(map[string]any)
		return text["content"].(string)
	}
	return ""
}

func newTestNotion(t *testing.T, mock *notionMock) *Notion {
	ts := httptest.NewServer(mock.handler())
	t.Cleanup(ts.Close)
	return NewNotion(NotionConfig{Token: "test-token", DatabaseID: "db1", BaseURL: ts.URL})
}

func TestNotion_Deliver(t *testing.T) {
	mock := &notionMock{t: t, properties: map[string]string{
		"Name": "title", "Source": "select", "Link": "url", "Score": "number", "Status": "select",
	}}
	n := newTestNotion(t, mock)

	items := []domain.Item{
		{ID: "a1", Title: "First idea", Source: "Reddit", Link: "https://r.it/1", Summary: "s1", Score: 80},
		{ID: "a2", Title: "Second idea", Source: "X", Summary: "s2", Score: 50},
	}
	count, err := n.Deliver(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, mock.pages, 2)

	props := mock.pages[0]["properties"].(map[string]any)
	assert.Contains(t, props, "Name", "title goes to the discovered title property")
	assert.Contains(t, props, "Source")
	assert.Contains(t, props, "Link")
	assert.Contains(t, props, "Status")

	score := props["Score"].(map[string]any)["number"].(float64)
	assert.Equal(t, 8.0, score, "score rescaled from 0-100 to 1-10")

	// second item has no link, property omitted
	props2 := mock.pages[1]["properties"].(map[string]any)
	assert.NotContains(t, props2, "Link")
}

func TestNotion_SchemaSubset(t *testing.T) {
	// database defines only the title, optional fields are skipped silently
	mock := &notionMock{t: t, properties: map[string]string{"Title": "title"}}
	n := newTestNotion(t, mock)

	count, err := n.Deliver(context.Background(), []domain.Item{
		{ID: "a1", Title: "Minimal", Source: "Reddit", Link: "https://x", Score: 90},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	props := mock.pages[0]["properties"].(map[string]any)
	assert.Len(t, props, 1)
	assert.Contains(t, props, "Title")
}

func TestNotion_CaseInsensitivePropertyMatch(t *testing.T) {
	mock := &notionMock{t: t, properties: map[string]string{"Name": "title", " source ": "select", "SCORE": "number"}}
	n := newTestNotion(t, mock)

	count, err := n.Deliver(context.Background(), []domain.Item{
		{ID: "a1", Title: "t", Source: "Reddit", Score: 100},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	props := mock.pages[0]["properties"].(map[string]any)
	assert.Contains(t, props, " source ", "schema spelling wins")
	assert.Contains(t, props, "SCORE")
}

func TestNotion_ApprovalNeverSet(t *testing.T) {
	mock := &notionMock{t: t, properties: map[string]string{
		"Name": "title", "Approve?": "checkbox", "approve?": "checkbox",
	}}
	n := newTestNotion(t, mock)

	count, err := n.Deliver(context.Background(), []domain.Item{{ID: "a1", Title: "t"}})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	props := mock.pages[0]["properties"].(map[string]any)
	assert.NotContains(t, props, "Approve?")
	assert.NotContains(t, props, "approve?")
}

func TestNotion_PartialFailureSkips(t *testing.T) {
	mock := &notionMock{
		t:          t,
		properties: map[string]string{"Name": "title"},
		failTitles: map[string]int{"bad item": http.StatusBadRequest},
	}
	n := newTestNotion(t, mock)

	items := []domain.Item{
		{ID: "a1", Title: "good item"},
		{ID: "a2", Title: "bad item"},
		{ID: "a3", Title: "another good"},
	}
	count, err := n.Deliver(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, mock.pages, 2)
}

func TestNotion_ConnectionFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "not found"})
	}))
	defer ts.Close()

	n := NewNotion(NotionConfig{Token: "test-token", DatabaseID: "missing", BaseURL: ts.URL})
	count, err := n.Deliver(context.Background(), []domain.Item{{Title: "x"}})
	assert.Equal(t, 0, count)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shared with the integration")
}

func TestStatusHint(t *testing.T) {
	assert.Contains(t, statusHint(400), "required properties")
	assert.Contains(t, statusHint(401), "token")
	assert.Contains(t, statusHint(404), "database id")
	assert.Contains(t, statusHint(500), "unexpected")
}

func TestRenderBlock(t *testing.T) {
	b := renderBlock(domain.Block{Type: domain.BlockParagraph, Text: []domain.RichText{
		{Content: "🔗 "},
		{Content: "View Discussion", Link: "https://x"},
	}})
	assert.Equal(t, "block", b["object"])
	assert.Equal(t, "paragraph", b["type"])
	runs := b["paragraph"].(map[string]any)["rich_text"].([]any)
	require.Len(t, runs, 2)
	link := runs[1].(map[string]any)["text"].(map[string]any)["link"].(map[string]any)
	assert.Equal(t, "https://x", link["url"])

	div := renderBlock(domain.Divider())
	assert.NotContains(t, div["divider"], "rich_text")
}

func TestNotion_DeliverWithResearch(t *testing.T) {
	mock := &notionMock{t: t, properties: map[string]string{"Name": "title"}}
	n := newTestNotion(t, mock)

	items := []domain.Item{
		{ID: "a1", Title: "Researched idea", Source: "Reddit", Summary: "s1", Score: 80},
		{ID: "a2", Title: "Plain idea", Source: "X", Summary: "s2", Score: 50},
	}
	count, err := n.DeliverWithResearch(context.Background(), items, map[string]string{
		"a1": "CORE FACTS: the deep analysis",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, mock.pages, 2)

	first, err := json.Marshal(mock.pages[0])
	require.NoError(t, err)
	assert.Contains(t, string(first), "🔬 Deep Research")
	assert.Contains(t, string(first), "CORE FACTS: the deep analysis")

	second, err := json.Marshal(mock.pages[1])
	require.NoError(t, err)
	assert.NotContains(t, string(second), "Deep Research", "no appendix without a report")
}
