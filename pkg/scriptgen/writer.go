// Package scriptgen turns approved items into short-form video scripts.
package scriptgen

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/repeater/v2"
	"github.com/sashabaranov/go-openai"

	"github.com/trendbrief/trendbrief/pkg/domain"
	"github.com/trendbrief/trendbrief/pkg/quota"
)

// systemPrompt frames every script around the viewer as protagonist. The
// constraints are deliberate: second person only, short sentences, simple
// editing cues, a fixed five-beat structure.
const systemPrompt = `You are an expert short-form video scriptwriter specializing in HIGH-RETENTION content for Instagram Reels.

## YOUR CORE PHILOSOPHY: "VIEWER AS HERO"
The viewer is NOT a spectator. They are the PROTAGONIST of a micro-story.
Every script must make them feel like they just discovered a superpower.

## STRICT CONSTRAINTS (NEVER VIOLATE):

### 1. PERSPECTIVE
- ALWAYS use "You" (Second Person)
- NEVER say "I found this" or "People are saying" or "There's this new thing"
- Frame EVERY sentence from the viewer's POV: "You wake up. You realize. You now have..."

### 2. LENGTH
- Target: 30-40 seconds when spoken
- Maximum: 60 seconds
- Word count: 70-100 words MAXIMUM
- Each sentence: 8 words or fewer

### 3. READING LEVEL
- 6th grade reading level
- No jargon without immediate analogy
- Use concrete, sensory words over abstract terms

### 4. EDITING CUES (KEEP SIMPLE!)
- ONLY use these cues:
  - [Face Cam] - You talking to camera
  - [Cut] - Simple jump cut
  - [Screen: X] - Show X on screen (screenshot/recording)
  - [Text: X] - Text overlay with X
  - [Zoom] - Simple zoom in
- NEVER suggest: 3D animations, complex graphics, green screen, motion graphics

### 5. STRUCTURE (The Hero's Micro-Journey)
1. **Hook (0-3s)**: The Inciting Incident - put them IN the scene
2. **Gap (3-10s)**: The Struggle - show what they're missing
3. **Bridge (10-25s)**: The Weapon - the news/tool as their solution
4. **Payoff (25-30s)**: The Victory - immediate value, make them feel powerful
5. **CTA (30s+)**: Join the Guild - low friction community call

### 6. EMOTIONAL TONE
- Empowering, not preachy
- Excited, but not fake hype
- Like a smart friend sharing a secret

## OUTPUT FORMAT:
Provide the script with one **SECTION (timing)** header, an editing cue and the exact words to say per beat, followed by a stats footer (word count, estimated duration, reading level).

REMEMBER: The viewer should feel like a HERO who just found a SECRET WEAPON, not a student being lectured.`

const userPromptTemplate = `Generate a HIGH-RETENTION Instagram Reel script for this topic:

## TOPIC
**Headline:** %s
**Source:** %s
**Summary:** %s

## RESEARCH CONTEXT
%s

## YOUR TASK
Write a 30-40 second script that makes the viewer feel like a HERO who just discovered this as their new SECRET WEAPON.

Remember:
- Use "You" throughout
- Keep sentences under 8 words
- Only simple editing cues ([Face Cam], [Cut], [Screen: X], [Text: X], [Zoom])
- Make them feel POWERFUL, not lectured

Generate the script now.`

// ErrLimitReached reports the daily script quota is exhausted
var ErrLimitReached = errors.New("daily script limit reached")

// ContextProvider fetches supporting article text for a topic link
type ContextProvider interface {
	Extract(ctx context.Context, url string) (string, error)
}

// Config holds script generation settings
type Config struct {
	Endpoint      string
	APIKey        string
	Model         string
	MaxTokens     int
	Timeout       time.Duration
	ScriptsPerDay int
}

// Writer generates scripts through an OpenAI-compatible completion API,
// gated by the daily script quota
type Writer struct {
	client    *openai.Client
	cfg       Config
	limiter   *quota.Limiter
	extractor ContextProvider
}

// NewWriter creates a script writer. The extractor is optional, without one
// scripts are written from the item summary alone.
func NewWriter(cfg Config, limiter *quota.Limiter, extractor ContextProvider) *Writer {
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Writer{
		client:    openai.NewClientWithConfig(clientConfig),
		cfg:       cfg,
		limiter:   limiter,
		extractor: extractor,
	}
}

// Generate writes a script for one item. The daily quota is checked before
// any network call and recorded only after a successful generation.
func (w *Writer) Generate(ctx context.Context, item domain.Item) (string, error) {
	if !w.limiter.CanGenerateScript(w.cfg.ScriptsPerDay) {
		return "", ErrLimitReached
	}

	supporting := w.researchContext(ctx, item)
	prompt := fmt.Sprintf(userPromptTemplate, item.Title, item.Source, item.Summary, supporting)

	req := openai.ChatCompletionRequest{
		Model:     w.cfg.Model,
		MaxTokens: w.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	var resp openai.ChatCompletionResponse
	retrier := repeater.NewBackoff(2, 2*time.Second, repeater.WithMaxDelay(10*time.Second))
	err := retrier.Do(ctx, func() error {
		r, err := w.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("script generation failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in script response")
	}

	lgr.Printf("[INFO] script tokens used - input: %d, output: %d",
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	w.limiter.RecordScriptGeneration()

	script := resp.Choices[0].Message.Content
	lgr.Printf("[INFO] script generated (%d chars) for %q", len(script), firstRunes(item.Title, 50))
	return script, nil
}

// researchContext pulls the source article text, failures degrade to a
// scripts-from-summary run rather than blocking generation
func (w *Writer) researchContext(ctx context.Context, item domain.Item) string {
	if w.extractor == nil || item.Link == "" {
		return "No additional context available."
	}
	lgr.Printf("[INFO] researching context for %q", firstRunes(item.Title, 50))
	text, err := w.extractor.Extract(ctx, item.Link)
	if err != nil {
		lgr.Printf("[WARN] context extraction failed, writing from summary only: %v", err)
		return "No additional context available."
	}
	return text
}

func firstRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
