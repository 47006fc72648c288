package research

import (
	"fmt"
	"strings"
	"time"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

// Raw discovery records are schema-less: field names vary by which research
// pass produced them. Each known producer shape gets an explicit adapter that
// declares the keys it reads and the defaults it applies, instead of ad hoc
// key probing at use sites.
type adapter struct {
	name    string
	matches func(raw map[string]any) bool
	convert func(raw map[string]any, now time.Time) domain.Item
}

var adapters = []adapter{
	{
		// full briefing shape produced by the researcher prompt
		name:    "briefing",
		matches: func(raw map[string]any) bool { return firstString(raw, "title") != "" },
		convert: convertBriefing,
	},
	{
		// reddit trend shape: topic/subreddit/upvotes
		name:    "reddit",
		matches: func(raw map[string]any) bool { return firstString(raw, "topic") != "" },
		convert: convertReddit,
	},
	{
		// quora shape: question/engagement
		name:    "quora",
		matches: func(raw map[string]any) bool { return firstString(raw, "question") != "" },
		convert: convertQuora,
	},
	{
		// twitter shape: content/author
		name:    "twitter",
		matches: func(raw map[string]any) bool { return firstString(raw, "content") != "" },
		convert: convertTwitter,
	},
}

// Normalize maps a raw discovery record into the canonical item shape,
// falling back to fixed defaults for missing fields. It never fails: records
// no adapter claims get the generic treatment with "Unknown" placeholders.
func Normalize(raw map[string]any, now time.Time) domain.Item {
	for _, a := range adapters {
		if a.matches(raw) {
			return a.convert(raw, now)
		}
	}
	return domain.Item{
		ID:        domain.Fingerprint("", ""),
		Title:     "Unknown",
		Source:    "Research",
		Category:  domain.CategoryResearch,
		Published: now,
	}
}

// IsQuestion reports whether a raw record belongs to the question category,
// diverting it into the consolidated daily digest.
func IsQuestion(raw map[string]any) bool {
	return strings.Contains(stringField(raw, "category", ""), "Question")
}

// RawTitle extracts the best-effort title text of any known shape, used for
// history recording.
func RawTitle(raw map[string]any) string {
	return firstString(raw, "title", "topic", "question", "content")
}

// RawReason extracts why a record is trending, feeding the deep-dive prompt
func RawReason(raw map[string]any) string {
	return firstString(raw, "why_it_matters", "why_trending", "why_hot", "why_viral", "description")
}

// RawSource extracts the reported origin of a record
func RawSource(raw map[string]any) string {
	return firstString(raw, "source_name", "subreddit", "author")
}

// convertBriefing reads: category, title, source_name, source_url,
// posted_time, description, why_it_matters, how_to_build.
// Defaults: source "Research", freshness "Recently".
func convertBriefing(raw map[string]any, now time.Time) domain.Item {
	title := stringField(raw, "title", "Untitled")
	link := stringField(raw, "source_url", "")
	category := stringField(raw, "category", "")

	summary := fmt.Sprintf("%s %s\n%s %s\n\n%s %s\n\n%s %s",
		domain.MarkerFreshness, stringField(raw, "posted_time", "Recently"),
		domain.MarkerWhyMatters, stringField(raw, "why_it_matters", ""),
		domain.MarkerHowToBuild, stringField(raw, "how_to_build", "See source"),
		domain.MarkerDescription, stringField(raw, "description", ""))

	return domain.Item{
		ID:        domain.Fingerprint(title, link),
		Title:     categoryEmoji(category) + " " + title,
		Source:    stringField(raw, "source_name", "Research"),
		Link:      link,
		Summary:   summary,
		Published: now,
		Category:  domain.CategoryResearch,
	}
}

// convertReddit reads: topic, subreddit, upvotes, why_hot
func convertReddit(raw map[string]any, now time.Time) domain.Item {
	title := stringField(raw, "topic", "Untitled")
	source := stringField(raw, "subreddit", "Reddit")
	summary := fmt.Sprintf("%s %s\n\n%s %s",
		domain.MarkerWhyMatters, stringField(raw, "why_hot", ""),
		domain.MarkerDescription, fmt.Sprintf("%s on %s", stringField(raw, "upvotes", "popular"), source))
	return domain.Item{
		ID:        domain.Fingerprint(title, ""),
		Title:     "🔥 " + title,
		Source:    source,
		Summary:   summary,
		Published: now,
		Category:  domain.CategoryTrending,
	}
}

// convertQuora reads: question, engagement, main_insight, debate
func convertQuora(raw map[string]any, now time.Time) domain.Item {
	title := stringField(raw, "question", "Untitled")
	summary := fmt.Sprintf("%s %s\n\n%s %s",
		domain.MarkerWhyMatters, firstString(raw, "main_insight", "debate"),
		domain.MarkerDescription, stringField(raw, "engagement", "popular"))
	return domain.Item{
		ID:        domain.Fingerprint(title, ""),
		Title:     "💡 " + title,
		Source:    "Quora",
		Summary:   summary,
		Published: now,
		Category:  domain.CategoryTrending,
	}
}

// convertTwitter reads: content, author, engagement, why_viral
func convertTwitter(raw map[string]any, now time.Time) domain.Item {
	title := stringField(raw, "content", "Untitled")
	author := stringField(raw, "author", "")
	source := "X/Twitter"
	if author != "" {
		source = "X/Twitter - " + author
	}
	summary := fmt.Sprintf("%s %s\n\n%s %s",
		domain.MarkerWhyMatters, stringField(raw, "why_viral", ""),
		domain.MarkerDescription, stringField(raw, "engagement", "viral"))
	return domain.Item{
		ID:        domain.Fingerprint(title, ""),
		Title:     "🔥 " + title,
		Source:    source,
		Summary:   summary,
		Published: now,
		Category:  domain.CategoryTrending,
	}
}

// categoryEmoji prefixes titles the way the briefing presents categories
func categoryEmoji(category string) string {
	c := strings.ToLower(category)
	switch {
	case strings.Contains(c, "agent"):
		return "🤖"
	case strings.Contains(c, "build"), strings.Contains(c, "auto"):
		return "🛠️"
	case strings.Contains(c, "market"), strings.Contains(c, "trend"):
		return "🔥"
	default:
		return "💡"
	}
}
