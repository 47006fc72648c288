package domain

// BlockType identifies the kind of a content block
type BlockType string

// block kinds understood by document destinations
const (
	BlockHeading1  BlockType = "heading_1"
	BlockHeading2  BlockType = "heading_2"
	BlockHeading3  BlockType = "heading_3"
	BlockParagraph BlockType = "paragraph"
	BlockQuote     BlockType = "quote"
	BlockCallout   BlockType = "callout"
	BlockDivider   BlockType = "divider"
)

// RichText is a single annotated text run inside a block
type RichText struct {
	Content string `json:"content"`
	Bold    bool   `json:"bold,omitempty"`
	Italic  bool   `json:"italic,omitempty"`
	Link    string `json:"link,omitempty"`
}

// Block is one typed unit of a document block tree
type Block struct {
	Type BlockType  `json:"type"`
	Text []RichText `json:"text,omitempty"`
}

// Heading creates a heading block of the given level (1-3)
func Heading(level int, text string) Block {
	t := BlockHeading3
	switch level {
	case 1:
		t = BlockHeading1
	case 2:
		t = BlockHeading2
	}
	return Block{Type: t, Text: []RichText{{Content: text}}}
}

// Paragraph creates a plain paragraph block
func Paragraph(text string) Block {
	return Block{Type: BlockParagraph, Text: []RichText{{Content: text}}}
}

// Quote creates a quote block
func Quote(text string) Block {
	return Block{Type: BlockQuote, Text: []RichText{{Content: text}}}
}

// Callout creates a callout block
func Callout(text string) Block {
	return Block{Type: BlockCallout, Text: []RichText{{Content: text}}}
}

// Divider creates a divider block
func Divider() Block {
	return Block{Type: BlockDivider}
}
