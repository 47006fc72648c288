// Package content pulls readable article text out of web pages, used to give
// the script writer source material beyond the feed summary.
package content

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/markusmobius/go-trafilatura"
)

// maxContentRunes caps extracted text, scripts only need the lead of the
// article and prompts have token budgets
const maxContentRunes = 8000

// Extractor fetches a page and extracts its main text with trafilatura
type Extractor struct {
	client *http.Client
}

// NewExtractor creates a content extractor
func NewExtractor(timeout time.Duration) *Extractor {
	return &Extractor{client: &http.Client{Timeout: timeout}}
}

// Extract retrieves the main article text from the given URL
func (e *Extractor) Extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid URL: %s", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; trendbrief/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d for URL %s", resp.StatusCode, pageURL)
	}

	opts := trafilatura.Options{
		EnableFallback:  true,
		ExcludeComments: true,
		Deduplicate:     true,
		OriginalURL:     parsed,
	}
	result, err := trafilatura.Extract(resp.Body, opts)
	if err != nil {
		return "", fmt.Errorf("extract content from %s: %w", pageURL, err)
	}
	if result == nil || result.ContentText == "" {
		return "", fmt.Errorf("no text content extracted from %s", pageURL)
	}

	text := strings.TrimSpace(result.ContentText)
	if runes := []rune(text); len(runes) > maxContentRunes {
		text = string(runes[:maxContentRunes])
	}
	return text, nil
}
