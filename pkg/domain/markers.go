package domain

// Section markers recognized inside pre-formatted summaries. They are data,
// not code: destinations can extend the vocabulary without touching the
// block-building state machine.
const (
	MarkerFreshness   = "**🕒 Freshness:**"
	MarkerWhyMatters  = "**💡 Why it matters:**"
	MarkerHowToBuild  = "**🛠️ How to Build/Use:**"
	MarkerDescription = "**Description:**"
)

// SectionMarker describes one recognized summary section
type SectionMarker struct {
	Prefix  string // literal marker at line start
	Heading string // rendered section heading
	Callout bool   // render body as a callout instead of heading+paragraph
}

// SummaryMarkers is the ordered marker vocabulary for structured summaries
var SummaryMarkers = []SectionMarker{
	{Prefix: MarkerFreshness, Heading: "🕒 Freshness", Callout: true},
	{Prefix: MarkerWhyMatters, Heading: "💡 Why it matters"},
	{Prefix: MarkerHowToBuild, Heading: "🛠️ How to Build/Use"},
	{Prefix: MarkerDescription, Heading: "Description"},
}
