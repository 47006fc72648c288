package research

import (
	"fmt"
	"time"
)

// Pass is one templated query against the research API with a fixed topical
// focus. Passes are data so deployments can tune them without code changes.
type Pass struct {
	Name  string
	Focus string
}

// DefaultPasses are the three focused research passes of a briefing run
var DefaultPasses = []Pass{
	{
		Name: "dev-and-automation",
		Focus: `1. AI Development: New open-source models (HuggingFace), fine-tuning tricks, new libraries.
2. Automation Building: New integration patterns, agentic workflows, no-code hacks.`,
	},
	{
		Name: "agents-and-trends",
		Focus: `3. Agentic Trends: New autonomous frameworks, agent benchmarks.
4. Viral Topics: What is the top debate on X/Reddit/HackerNews RIGHT NOW?`,
	},
	{
		Name: "community-questions",
		Focus: `5. Top Questions: What are the TOP 10 burning questions on Reddit, Quora, and X today?
SCOPE: AI Agents, Automation, Tech Entrepreneurship, and Viral Debates.
Focus on: "X vs Y" comparisons, "How to fix" debugging, and "What is the best tool for..."`,
	},
}

const researcherTemplate = `You are an AI trends researcher. Date: %s. %s briefing.

MANDATE: Discover 3-5 high-signal, "underground" updates from the LAST 24 HOURS.
PRIORITY SOURCES: Reddit (r/LocalLLaMA, r/AutoGPT), HackerNews, X (Twitter) Dev Community, GitHub Trending.

FOCUS AREAS (Must match these exactly):
%s

CRITICAL RULES:
1. **NOVELTY**: No mainstream news (like "Google did X"). Find the TOOLS and TECHNIQUES developers are talking about.
2. **FRESHNESS**: Must be posted < 24 hours ago. Include the approx time (e.g., "4 hours ago").
3. **EXCLUSION**: Ignore these: %s

OUTPUT FORMAT (JSON ONLY):
[
  {
    "category": "Category Name",
    "title": "Short, punchy title (No clickbait)",
    "source_name": "Source (e.g., 'Reddit', 'X')",
    "source_url": "Direct Link",
    "posted_time": "e.g., '6 hours ago'",
    "description": "What is it?",
    "why_it_matters": "Why is this important?",
    "how_to_build": "Technical implementation tip",
    "virality_score": 9
  }
]
`

const deepDiveTemplate = `You are researching a trending AI topic for content creation. Research this topic DEEPLY:

**TOPIC:** %s
**SOURCE:** %s
**WHY IT'S TRENDING:** %s

---

Provide COMPREHENSIVE research including:

## 1. CORE FACTS
- What exactly is this about? (specific names, dates, versions)
- Who is involved? (companies, people, researchers)

## 2. KEY STATISTICS & NUMBERS
- Benchmarks, user counts, growth rates, funding amounts?
- Comparison numbers (X%% better than Y)?

## 3. THE CONTROVERSY/DEBATE
- What are people arguing about? Opposing viewpoints?

## 4. COMMUNITY REACTIONS
- What are Reddit and X experts saying? Common praises and criticisms?

## 5. CONTENT ANGLES (For short-form video)
- 3 attention-grabbing hooks
- The "viewer transformation" - what can viewers DO with this info?

## 6. SOURCES USED

Be SPECIFIC. Include REAL numbers, REAL usernames, REAL quotes when possible.
This research should be complete enough that someone could create content WITHOUT additional research.`

// BuildDeepDivePrompt renders the per-topic deep research prompt
func BuildDeepDivePrompt(topic, source, reason string) string {
	if source == "" {
		source = "Research"
	}
	return fmt.Sprintf(deepDiveTemplate, topic, source, reason)
}

// BuildPrompt renders the researcher prompt for one pass, excluding titles
// already seen in recent history.
func BuildPrompt(pass Pass, now time.Time, previousIdeas string) string {
	timeOfDay := "Evening"
	if now.Hour() < 12 {
		timeOfDay = "Morning"
	}
	return fmt.Sprintf(researcherTemplate, now.Format("2006-01-02"), timeOfDay, pass.Focus, previousIdeas)
}
