// Package docx parses Office Open XML word-processing documents into a typed
// model the conversion pipeline walks. Parsing is exhaustive for the parts we
// care about and permissive about everything else, real-world files are
// routinely malformed.
package docx

import "strings"

// ElementKind discriminates body-level elements. The kind is decided once at
// tree-walk time so the converter can pattern-match instead of re-inspecting
// XML tags.
type ElementKind int

const (
	ElementParagraph ElementKind = iota
	ElementTable
	ElementOther
)

// BodyElement is a tagged union of the document body content. Exactly one of
// the pointer fields matching Kind is set.
type BodyElement struct {
	Kind      ElementKind
	Paragraph *Paragraph
	Table     *Table
	Other     *Other
}

// ChangeKind classifies the tracked-change context a run was found in.
type ChangeKind int

const (
	ChangeNone ChangeKind = iota
	ChangeInsertion
	ChangeDeletion
	ChangeMoveFrom
	ChangeMoveTo
)

// Included reports whether text carried by a run with this change context
// belongs in accepted output. Deletions and move sources are dropped.
func (c ChangeKind) Included() bool {
	return c != ChangeDeletion && c != ChangeMoveFrom
}

// RunFormatting holds per-run character formatting flags.
type RunFormatting struct {
	Bold        bool
	Italic      bool
	Underline   bool
	Strike      bool
	Superscript bool
	Subscript   bool
	SmallCaps   bool
	StyleName   string
}

// InlineImage is an image anchored inside a run, with its bytes already
// resolved through the relationship part.
type InlineImage struct {
	Filename string
	Alt      string
	Data     []byte
}

// Run is the smallest styled unit of paragraph text.
type Run struct {
	Text          string
	Fmt           RunFormatting
	Change        ChangeKind
	HyperlinkHref string
	CommentIDs    []string
	FootnoteID    string
	EndnoteID     string
	Images        []InlineImage
	PageBreak     bool
}

// Paragraph carries resolved style identity and the ordered run list.
type Paragraph struct {
	StyleID   string
	StyleName string
	// Numbered is set when the paragraph carries a numbering property,
	// Ordered distinguishes decimal-like formats from bullets.
	Numbered bool
	Ordered  bool
	Runs     []Run
}

// Text returns the accepted plain text of the paragraph, tracked deletions
// and move sources excluded.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		if !r.Change.Included() {
			continue
		}
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Cell is one table cell, a sequence of paragraphs.
type Cell struct {
	Paragraphs []*Paragraph
}

// Table is a rectangular grid of cells.
type Table struct {
	Rows [][]Cell
}

// Other is a body element the converter has no structural mapping for
// (textboxes, shapes, equations, structured document tags). Any paragraph
// content found inside is preserved for best-effort rendering.
type Other struct {
	Subtype    string
	Paragraphs []*Paragraph
}

// Document is the parsed source tree plus the auxiliary parts resolved
// against it. It is read-only input to the conversion pass.
type Document struct {
	Body      []BodyElement
	Footnotes map[string]string
	Endnotes  map[string]string
	Comments  map[string]string
	Media     map[string][]byte
	Core      CoreProperties
}

// CoreProperties is the subset of OPC core metadata used for fallback book
// metadata when the configuration leaves fields empty.
type CoreProperties struct {
	Title       string
	Creator     string
	Description string
	Subject     string
	Language    string
	Created     string
}
