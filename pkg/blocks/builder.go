// Package blocks renders canonical items into document block trees for
// length-limited destination APIs.
package blocks

import (
	"strings"
	"unicode/utf8"

	"github.com/trendbrief/trendbrief/pkg/domain"
)

// maxBlockLen is the per-block text ceiling of the destination API, kept a
// little under the hard 2000-char limit to leave headroom for annotations
const maxBlockLen = 1900

// DefaultResearchChunks caps the appended research section length
const DefaultResearchChunks = 5

// Builder turns items into block trees. The zero value is not usable, create
// one with NewBuilder.
type Builder struct {
	researchChunks int
}

// NewBuilder creates a builder with the default research chunk cap
func NewBuilder() *Builder { return &Builder{researchChunks: DefaultResearchChunks} }

// NewBuilderWithChunks creates a builder with a custom research chunk cap,
// zero or negative means unlimited
func NewBuilderWithChunks(n int) *Builder { return &Builder{researchChunks: n} }

// Build renders one item as a block tree. Three paths, checked in order:
// pre-built blocks on the item are returned as-is, summaries containing
// recognized section markers get one headed section per marker, and anything
// else becomes a single quote block. Research text, when given, is appended
// as its own headed section on every path.
func (b *Builder) Build(item domain.Item, research string) []domain.Block {
	var out []domain.Block

	switch {
	case len(item.ContentBlocks) > 0:
		out = append(out, item.ContentBlocks...)
	case hasMarkers(item.Summary):
		out = b.structured(item)
	default:
		out = b.fallback(item)
	}

	if research != "" {
		out = append(out, domain.Divider(), domain.Heading(3, "🔬 Deep Research"))
		chunks := chunk(research, maxBlockLen)
		if b.researchChunks > 0 && len(chunks) > b.researchChunks {
			chunks = chunks[:b.researchChunks]
		}
		for _, c := range chunks {
			out = append(out, domain.Paragraph(c))
		}
	}
	return out
}

// structured splits a marker-formatted summary into sections. Lines are
// consumed in order: a line starting with a known marker opens a new section,
// a blank line closes the current one, and anything else is buffered into the
// section body. Text before the first marker renders as a plain paragraph.
func (b *Builder) structured(item domain.Item) []domain.Block {
	var out []domain.Block

	var current *domain.SectionMarker
	var buf []string

	flush := func() {
		body := strings.TrimSpace(strings.Join(buf, "\n"))
		buf = buf[:0]
		if body == "" {
			return
		}
		if current == nil {
			out = append(out, domain.Paragraph(truncate(body, maxBlockLen)))
			return
		}
		if current.Callout {
			out = append(out, domain.Callout(current.Heading+": "+truncate(body, maxBlockLen)))
			return
		}
		out = append(out, domain.Heading(3, current.Heading))
		for _, c := range chunk(body, maxBlockLen) {
			out = append(out, domain.Paragraph(c))
		}
	}

	for _, line := range strings.Split(item.Summary, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			current = nil
			continue
		}
		if m, rest := matchMarker(trimmed); m != nil {
			flush()
			current = m
			if rest != "" {
				buf = append(buf, rest)
			}
			continue
		}
		buf = append(buf, trimmed)
	}
	flush()

	if item.Link != "" {
		out = append(out, linkBlock(item.Link))
	}
	return out
}

// fallback renders the whole summary as one quote block, truncated to the
// block ceiling
func (b *Builder) fallback(item domain.Item) []domain.Block {
	summary := item.Summary
	if summary == "" {
		summary = "No summary provided."
	}
	out := []domain.Block{domain.Quote(truncate(summary, maxBlockLen))}
	if item.Link != "" {
		out = append(out, linkBlock(item.Link))
	}
	return out
}

func linkBlock(url string) domain.Block {
	return domain.Block{Type: domain.BlockParagraph, Text: []domain.RichText{
		{Content: "🔗 "},
		{Content: "View Discussion", Link: url},
	}}
}

func hasMarkers(summary string) bool {
	for _, m := range domain.SummaryMarkers {
		if strings.Contains(summary, m.Prefix) {
			return true
		}
	}
	return false
}

func matchMarker(line string) (*domain.SectionMarker, string) {
	for i := range domain.SummaryMarkers {
		m := &domain.SummaryMarkers[i]
		if strings.HasPrefix(line, m.Prefix) {
			return m, strings.TrimSpace(strings.TrimPrefix(line, m.Prefix))
		}
	}
	return nil, ""
}

// chunk splits text into rune-safe pieces no longer than limit
func chunk(text string, limit int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		chunks = append(chunks, string(runes[:limit]))
		runes = runes[limit:]
	}
	return append(chunks, string(runes))
}

func truncate(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}
