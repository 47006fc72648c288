// Package research issues templated natural-language queries to a
// search-augmented completion API and turns the free-text answers into
// normalized items.
package research

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/sashabaranov/go-openai"
)

// systemMsg pins the model to bare JSON output and fresh results
const systemMsg = "You are a content researcher. Return ONLY valid JSON arrays. " +
	"No markdown, no explanations, just the JSON. Only report items from the last 24 hours."

// errPermanent marks a non-retryable failure, stopping the backoff retrier
var errPermanent = errors.New("permanent request failure")

// Config holds research API settings
type Config struct {
	Endpoint     string
	APIKey       string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	CostPerToken float64
}

// Result is one answer from the research API
type Result struct {
	Content string
	Tokens  int
	Cost    float64
}

// Client queries the research API and tracks session cost
type Client struct {
	client      *openai.Client
	cfg         Config
	sessionCost float64
	queryCount  int
}

// NewClient creates a research client against an OpenAI-compatible endpoint
func NewClient(cfg Config) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{client: openai.NewClientWithConfig(clientConfig), cfg: cfg}
}

// Query runs one research prompt. Transient failures (timeout, connection
// error, 5xx) are retried twice with exponential backoff; anything else fails
// the call immediately. Callers treat an error as "no results this pass".
func (c *Client) Query(ctx context.Context, prompt string, maxTokens int) (*Result, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		Temperature: float32(c.cfg.Temperature),
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMsg},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var resp openai.ChatCompletionResponse
	retrier := repeater.NewBackoff(3, 2*time.Second, repeater.WithMaxDelay(10*time.Second))
	err := retrier.Do(ctx, func() error {
		r, err := c.client.CreateChatCompletion(ctx, req)
		if err != nil {
			if isTransient(err) {
				lgr.Printf("[DEBUG] transient research API failure, will retry: %v", err)
				return err
			}
			return fmt.Errorf("%w: %v", errPermanent, err)
		}
		resp = r
		return nil
	}, errPermanent)
	if err != nil {
		return nil, fmt.Errorf("research query failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in research response")
	}

	tokens := resp.Usage.PromptTokens + resp.Usage.CompletionTokens
	cost := float64(tokens) * c.cfg.CostPerToken
	c.sessionCost += cost
	c.queryCount++

	return &Result{
		Content: resp.Choices[0].Message.Content,
		Tokens:  tokens,
		Cost:    cost,
	}, nil
}

// SessionCost returns the accumulated cost of all queries in this session
func (c *Client) SessionCost() float64 { return c.sessionCost }

// QueryCount returns the number of completed queries in this session
func (c *Client) QueryCount() int { return c.queryCount }

// isTransient classifies retryable failures: timeouts, connection errors and
// server-side 5xx. All other errors are programming or auth problems and must
// surface immediately instead of being masked as transient.
func isTransient(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode >= 500
	}
	// go-openai wraps transport errors in url.Error text
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "Client.Timeout")
}
