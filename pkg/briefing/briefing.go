// Package briefing orchestrates a research-and-deliver run: budget gate,
// focused research passes, normalization, question consolidation, delivery.
package briefing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/trendbrief/trendbrief/pkg/delivery"
	"github.com/trendbrief/trendbrief/pkg/domain"
	"github.com/trendbrief/trendbrief/pkg/history"
	"github.com/trendbrief/trendbrief/pkg/quota"
	"github.com/trendbrief/trendbrief/pkg/research"
)

// passMaxTokens bounds one research pass response
const passMaxTokens = 2000

// deepDiveMaxTokens bounds one per-topic deep research response
const deepDiveMaxTokens = 2500

// digestScore pins the consolidated questions page near the top of any
// score-ordered view
const digestScore = 95

// ErrBudgetExhausted reports the monthly spend ceiling was hit before the
// run started. A deliberate early exit, not a failure.
var ErrBudgetExhausted = errors.New("monthly budget limit reached")

// Researcher issues one research prompt, the search-LLM client implements it
type Researcher interface {
	Query(ctx context.Context, prompt string, maxTokens int) (*research.Result, error)
}

// Params configures a briefing run
type Params struct {
	Budget     *quota.Budget
	History    *history.History
	Researcher Researcher
	Sink       delivery.Sink
	Passes     []research.Pass
	DeepDives  int // deep-research the first N regular discoveries, 0 disables
	Now        func() time.Time
}

// Briefing runs the twice-daily research briefing
type Briefing struct {
	Params
}

// New creates a briefing runner, defaulting to the standard three passes
func New(params Params) *Briefing {
	if len(params.Passes) == 0 {
		params.Passes = research.DefaultPasses
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	return &Briefing{Params: params}
}

// Run executes one full briefing: every research pass in order, question
// items consolidated into a single digest page, one delivery call, history
// updated with every raw title so the next run excludes them. A failed pass
// contributes nothing and the run continues.
func (b *Briefing) Run(ctx context.Context) error {
	now := b.Now()
	lgr.Printf("[INFO] briefing run started at %s", now.Format("2006-01-02 15:04"))
	lgr.Printf("[INFO] %s", b.Budget.Status())

	if !b.Budget.CheckBudget() {
		lgr.Printf("[WARN] %s", ErrBudgetExhausted)
		return ErrBudgetExhausted
	}

	var raws []map[string]any
	for _, pass := range b.Passes {
		raws = append(raws, b.researchPass(ctx, pass, now)...)
	}
	if len(raws) == 0 {
		lgr.Printf("[INFO] no new ideas, all findings were too old or duplicates")
		return nil
	}

	// the exclusion list in the prompt is advisory, history is the hard gate
	fresh := raws[:0]
	for _, raw := range raws {
		if t := research.RawTitle(raw); t != "" && b.History.IsDuplicate(t) {
			lgr.Printf("[DEBUG] already delivered, skipping %q", t)
			continue
		}
		fresh = append(fresh, raw)
	}
	raws = fresh
	if len(raws) == 0 {
		lgr.Printf("[INFO] no new ideas, all findings were duplicates")
		return nil
	}

	var items []domain.Item
	var regulars, questions []map[string]any
	for _, raw := range raws {
		if research.IsQuestion(raw) {
			questions = append(questions, raw)
			continue
		}
		regulars = append(regulars, raw)
		items = append(items, research.Normalize(raw, now))
	}

	reports := b.deepDive(ctx, items, regulars)

	if len(questions) > 0 {
		lgr.Printf("[INFO] consolidating %d questions into one digest page", len(questions))
		items = append(items, b.questionDigest(questions, now))
	}

	lgr.Printf("[INFO] delivering %d ideas", len(items))
	delivered, err := b.deliver(ctx, items, reports)
	if err != nil {
		return fmt.Errorf("briefing delivery failed: %w", err)
	}

	if delivered > 0 {
		titles := make([]string, 0, len(raws))
		for _, raw := range raws {
			if t := research.RawTitle(raw); t != "" {
				titles = append(titles, t)
			}
		}
		if err := b.History.RecordTitles(titles); err != nil {
			lgr.Printf("[WARN] failed to update history: %v", err)
		}
	}

	lgr.Printf("[INFO] briefing complete, %d/%d delivered", delivered, len(items))
	return nil
}

// deliver pushes items through the sink, attaching deep-research reports
// when the sink has a research surface.
func (b *Briefing) deliver(ctx context.Context, items []domain.Item, reports map[string]string) (int, error) {
	if rs, ok := b.Sink.(delivery.ResearchSink); ok && len(reports) > 0 {
		return rs.DeliverWithResearch(ctx, items, reports)
	}
	return b.Sink.Deliver(ctx, items)
}

// deepDive researches the first deepDives regular discoveries in depth,
// returning report text keyed by item ID. items[i] is the normalized form
// of raws[i]. A failed query drops that report only, the run continues.
func (b *Briefing) deepDive(ctx context.Context, items []domain.Item, raws []map[string]any) map[string]string {
	n := b.DeepDives
	if n <= 0 {
		return nil
	}
	if n > len(raws) {
		n = len(raws)
	}
	lgr.Printf("[INFO] deep researching top %d of %d discoveries", n, len(raws))

	reports := make(map[string]string, n)
	for i := 0; i < n; i++ {
		topic := research.RawTitle(raws[i])
		prompt := research.BuildDeepDivePrompt(topic, research.RawSource(raws[i]), research.RawReason(raws[i]))
		result, err := b.Researcher.Query(ctx, prompt, deepDiveMaxTokens)
		if err != nil {
			lgr.Printf("[WARN] deep research for %q failed: %v", topic, err)
			continue
		}
		if err := b.Budget.RecordSpending(result.Cost); err != nil {
			lgr.Printf("[WARN] failed to persist spend: %v", err)
		}
		reports[items[i].ID] = result.Content
	}
	return reports
}

// researchPass runs one focused query. Failures and unparsable output count
// as zero results for the pass. Spend is recorded per pass, not per run.
func (b *Briefing) researchPass(ctx context.Context, pass research.Pass, now time.Time) []map[string]any {
	lgr.Printf("[INFO] researching: %s", pass.Name)

	prompt := research.BuildPrompt(pass, now, b.History.RecentTitles(25))
	result, err := b.Researcher.Query(ctx, prompt, passMaxTokens)
	if err != nil {
		lgr.Printf("[WARN] research pass %s failed: %v", pass.Name, err)
		return nil
	}
	if err := b.Budget.RecordSpending(result.Cost); err != nil {
		lgr.Printf("[WARN] failed to persist spend: %v", err)
	}

	items := research.ExtractJSONArray(result.Content)
	lgr.Printf("[INFO] found %d ideas in %s ($%.4f)", len(items), pass.Name, result.Cost)
	return items
}

// questionDigest folds all question records into a single item whose page
// layout is pre-built: grouped by platform with one headed section each.
func (b *Briefing) questionDigest(questions []map[string]any, now time.Time) domain.Item {
	type group struct {
		platform string
		entries  []map[string]any
	}
	var groups []group
	index := map[string]int{}
	for _, q := range questions {
		platform := "Other"
		if f := strings.Fields(research.RawSource(q)); len(f) > 0 {
			platform = f[0]
		}
		i, ok := index[platform]
		if !ok {
			i = len(groups)
			index[platform] = i
			groups = append(groups, group{platform: platform})
		}
		groups[i].entries = append(groups[i].entries, q)
	}

	blocks := []domain.Block{
		domain.Heading(1, "🔥 Top Community Debates (Daily Digest)"),
		{Type: domain.BlockParagraph, Text: []domain.RichText{{
			Content: fmt.Sprintf("%d trending discussions found across Reddit, X, and HackerNews.", len(questions)),
			Italic:  true,
		}}},
		domain.Divider(),
	}

	var summaryLines []string
	for _, g := range groups {
		blocks = append(blocks, domain.Heading(2, platformEmoji(g.platform)+" "+g.platform))
		for _, q := range g.entries {
			title := strings.TrimSpace(strings.ReplaceAll(research.RawTitle(q), "❓", ""))
			blocks = append(blocks, domain.Block{
				Type: domain.BlockParagraph,
				Text: []domain.RichText{{Content: title, Bold: true}},
			})
			if desc, ok := q["description"].(string); ok && desc != "" {
				blocks = append(blocks, domain.Quote(desc))
			}
			if link, ok := q["source_url"].(string); ok && link != "" {
				blocks = append(blocks, domain.Block{
					Type: domain.BlockParagraph,
					Text: []domain.RichText{{Content: "🔗 "}, {Content: "View Discussion", Link: link}},
				})
			}
			summaryLines = append(summaryLines, "• "+title)
		}
		blocks = append(blocks, domain.Divider())
	}

	return domain.Item{
		ID:            "questions_" + now.Format("20060102_1504"),
		Title:         fmt.Sprintf("❓ Daily Community Digest: %d Burning Questions", len(questions)),
		Source:        "Multi-Platform",
		Summary:       strings.Join(summaryLines, "\n"),
		Published:     now,
		Score:         digestScore,
		Category:      domain.CategoryQuestions,
		ContentBlocks: blocks,
	}
}

func platformEmoji(platform string) string {
	switch {
	case strings.Contains(platform, "Reddit"):
		return "🔴"
	case strings.Contains(platform, "X"), strings.Contains(platform, "Twitter"):
		return "⚫"
	default:
		return "🔵"
	}
}
