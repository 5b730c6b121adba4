// Package content implements the structural transform from the parsed source
// document to semantic HTML chapter sections.
package content

import (
	"errors"
	"html"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"d2e/docx"
	"d2e/stylemap"
)

// Result is what one conversion pass produces: ordered chapter sections, the
// extracted image files and the CSS contributed by the style map.
type Result struct {
	Sections   []string
	ImagePaths []string
	CSS        string
	Notes      *FootnoteList
}

// Converter drives the block-level transform. All counters and buffers are
// owned by one instance, conversions never share state.
type Converter struct {
	doc          *docx.Document
	styles       *stylemap.Map
	notes        *FootnoteList
	images       *ImageStore
	builder      *ChapterBuilder
	keepComments bool
	log          *zap.Logger
}

func NewConverter(doc *docx.Document, styles *stylemap.Map, images *ImageStore, keepComments bool, log *zap.Logger) *Converter {
	return &Converter{
		doc:          doc,
		styles:       styles,
		notes:        NewFootnoteList(),
		images:       images,
		builder:      NewChapterBuilder(),
		keepComments: keepComments,
		log:          log.Named("content"),
	}
}

// Convert walks the document body in order and produces chapter sections.
// Element-local failures degrade to placeholders, an empty document degrades
// to a single placeholder section, the transform itself does not fail.
func (c *Converter) Convert() *Result {
	for _, el := range c.doc.Body {
		switch el.Kind {
		case docx.ElementParagraph:
			c.processParagraph(el.Paragraph)
		case docx.ElementTable:
			c.builder.FlushList()
			block, err := c.convertTable(el.Table)
			if err != nil {
				if re, ok := asRecoverable(err); ok {
					c.log.Warn("Table conversion degraded to placeholder", zap.Error(re))
					block = "<p><em>[Table content - processing error...]</em></p>"
				}
			}
			c.builder.AppendBlock(block)
		case docx.ElementOther:
			c.builder.FlushList()
			block, err := c.convertOther(el.Other)
			if err != nil {
				if re, ok := asRecoverable(err); ok {
					c.log.Warn("Complex element degraded to placeholder",
						zap.String("subtype", el.Other.Subtype), zap.Error(re))
					block = `<div class="complex-element" data-type="` + html.EscapeString(el.Other.Subtype) + `"><p><em>[Unsupported content]</em></p></div>`
				}
			}
			c.builder.AppendBlock(block)
		}
	}

	sections := c.builder.Sections()
	if len(sections) == 0 {
		c.log.Warn("Document produced no content, emitting placeholder section")
		sections = []string{"<p><em>[Document contains no convertible content]</em></p>"}
	}

	return &Result{
		Sections:   sections,
		ImagePaths: c.images.Paths(),
		CSS:        c.styles.CSS(),
		Notes:      c.notes,
	}
}

var imageOnlyRe = regexp.MustCompile(`^<img\s[^>]*/>$`)

func (c *Converter) processParagraph(p *docx.Paragraph) {
	content := c.paragraphHTML(p)

	lower := strings.ToLower(p.StyleName)
	isCaption := strings.Contains(lower, "caption")
	isList := p.Numbered || strings.Contains(lower, "list") ||
		strings.Contains(lower, "bullet") || strings.Contains(lower, "number")

	tagSpec, ok := c.styles.ParagraphTag(p.StyleName)
	if !ok {
		// style fallback contract: anything unmapped is a plain paragraph
		tagSpec = "p"
	}
	name, attrs := stylemap.SplitTagSpec(tagSpec)

	// a held image meets its caption here
	if c.builder.PendingImage() && isCaption {
		c.builder.AttachCaption(content)
		return
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		// empty paragraphs carry no information
		return
	}

	// an image-only paragraph waits for a possible caption
	if !isCaption && imageOnlyRe.MatchString(trimmed) {
		c.builder.HoldImage(trimmed)
		return
	}

	switch {
	case name == "h1":
		c.builder.FlushList()
		c.builder.FlushSection()
		c.builder.AppendBlock("<h1" + attrs + ">" + content + "</h1>")
	case name == "h2" || name == "h3" || name == "h4" || name == "h5" || name == "h6":
		c.builder.FlushList()
		c.builder.AppendBlock("<" + name + attrs + ">" + content + "</" + name + ">")
	case name == "li" || isList:
		ordered := p.Numbered && p.Ordered
		if !p.Numbered {
			// style-only list detection, the name decides
			ordered = strings.Contains(lower, "number")
		}
		c.builder.AppendListItem(content, ordered)
	case name == "blockquote":
		c.builder.AppendBlock("<blockquote" + attrs + "><p>" + content + "</p></blockquote>")
	default:
		c.builder.AppendBlock("<" + name + attrs + ">" + content + "</" + name + ">")
	}
}

// paragraphHTML assembles the inline HTML of one paragraph: formatted runs,
// merged hyperlinks, note references, comment markers, extracted images and
// pagebreak sentinels.
func (c *Converter) paragraphHTML(p *docx.Paragraph) string {
	var (
		sb       strings.Builder
		href     string
		linkText strings.Builder
	)

	closeLink := func() {
		if href == "" {
			return
		}
		sb.WriteString(`<a href="` + html.EscapeString(href) + `">` + linkText.String() + `</a>`)
		href = ""
		linkText.Reset()
	}

	for _, run := range p.Runs {
		if !run.Change.Included() {
			// rejected changes are dropped entirely, references included
			continue
		}

		if run.HyperlinkHref != href {
			closeLink()
			href = run.HyperlinkHref
		}
		out := &sb
		if href != "" {
			out = &linkText
		}

		out.WriteString(FormatRun(run.Text, run.Fmt, c.styles))

		if run.FootnoteID != "" {
			n, first := c.notes.Allocate("fn", run.FootnoteID, c.doc.Footnotes[run.FootnoteID])
			out.WriteString(refAnchor(n.Index))
			if first {
				c.builder.AddFootnote(n)
			}
		}
		if run.EndnoteID != "" {
			n, first := c.notes.Allocate("en", run.EndnoteID, c.doc.Endnotes[run.EndnoteID])
			out.WriteString(refAnchor(n.Index))
			if first {
				c.builder.AddFootnote(n)
			}
		}

		if c.keepComments {
			for _, id := range run.CommentIDs {
				out.WriteString(commentMarker(c.doc.Comments[id]))
			}
		}

		for _, img := range run.Images {
			src, err := c.images.Add(img)
			if err != nil {
				c.log.Warn("Unable to extract image, dropping reference",
					zap.String("filename", img.Filename), zap.Error(err))
				continue
			}
			out.WriteString(imgTag(src, img.Alt))
		}

		if run.PageBreak {
			out.WriteString(Pagebreak)
		}
	}
	closeLink()
	return sb.String()
}

// convertTable renders a table from row and cell paragraphs. Each cell's
// paragraphs become inner paragraph elements, an empty cell still renders one
// empty paragraph so the grid stays rectangular.
func (c *Converter) convertTable(t *docx.Table) (string, error) {
	if t == nil || len(t.Rows) == 0 {
		return "", recoverable("table", errors.New("table has no rows"))
	}

	var sb strings.Builder
	sb.WriteString("<table>\n")
	for _, row := range t.Rows {
		sb.WriteString("<tr>")
		for _, cell := range row {
			sb.WriteString("<td>")
			if len(cell.Paragraphs) == 0 {
				sb.WriteString("<p></p>")
			}
			for _, p := range cell.Paragraphs {
				sb.WriteString("<p>" + c.paragraphHTML(p) + "</p>")
			}
			sb.WriteString("</td>")
		}
		sb.WriteString("</tr>\n")
	}
	sb.WriteString("</table>")
	return sb.String(), nil
}

// convertOther dispatches structurally unmapped elements to their type
// specific fallback rendering.
func (c *Converter) convertOther(o *docx.Other) (string, error) {
	if o == nil {
		return "", recoverable("element", errors.New("empty element"))
	}

	switch o.Subtype {
	case "textbox":
		if len(o.Paragraphs) == 0 {
			return "", recoverable("textbox", errors.New("no extractable content"))
		}
		var sb strings.Builder
		sb.WriteString(`<aside class="textbox">`)
		for _, p := range o.Paragraphs {
			sb.WriteString("<p>" + c.paragraphHTML(p) + "</p>")
		}
		sb.WriteString("</aside>")
		return sb.String(), nil
	case "equation":
		if len(o.Paragraphs) == 0 {
			return "", recoverable("equation", errors.New("no extractable content"))
		}
		return `<p><code class="equation">` + html.EscapeString(o.Paragraphs[0].Text()) + `</code></p>`, nil
	default:
		return "", recoverable(o.Subtype, errors.New("no converter for element type"))
	}
}
