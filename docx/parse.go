package docx

import (
	"path"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"
)

// Tree walk over the main document part. We match local tag names only,
// producers do not agree on namespace prefixes.

type parser struct {
	rels      map[string]string
	styles    map[string]string
	numbering map[string]bool
	media     map[string][]byte
	log       *zap.Logger
}

func (p *parser) parseBody(doc *etree.Document) []BodyElement {
	body := childElement(doc.Root(), "body")
	if body == nil {
		p.log.Warn("Main document part has no body element")
		return nil
	}

	var elements []BodyElement
	for _, child := range body.ChildElements() {
		switch child.Tag {
		case "p":
			if sub := complexSubtype(child); sub != "" {
				elements = append(elements, BodyElement{Kind: ElementOther, Other: p.parseOther(child, sub)})
				continue
			}
			elements = append(elements, BodyElement{Kind: ElementParagraph, Paragraph: p.parseParagraph(child)})
		case "tbl":
			elements = append(elements, BodyElement{Kind: ElementTable, Table: p.parseTable(child)})
		case "sdt":
			elements = append(elements, p.parseSdt(child)...)
		case "sectPr", "bookmarkStart", "bookmarkEnd", "proofErr":
			// layout and annotation noise
		default:
			p.log.Debug("Unexpected body element, keeping as unstructured content", zap.String("tag", child.Tag))
			elements = append(elements, BodyElement{Kind: ElementOther, Other: p.parseOther(child, child.Tag)})
		}
	}
	return elements
}

// parseSdt unwraps a structured document tag, its content block holds
// ordinary body elements.
func (p *parser) parseSdt(el *etree.Element) []BodyElement {
	content := childElement(el, "sdtContent")
	if content == nil {
		return []BodyElement{{Kind: ElementOther, Other: p.parseOther(el, "sdt")}}
	}
	var elements []BodyElement
	for _, child := range content.ChildElements() {
		switch child.Tag {
		case "p":
			elements = append(elements, BodyElement{Kind: ElementParagraph, Paragraph: p.parseParagraph(child)})
		case "tbl":
			elements = append(elements, BodyElement{Kind: ElementTable, Table: p.parseTable(child)})
		case "sdt":
			elements = append(elements, p.parseSdt(child)...)
		}
	}
	return elements
}

func (p *parser) parseParagraph(el *etree.Element) *Paragraph {
	para := &Paragraph{}
	if pPr := childElement(el, "pPr"); pPr != nil {
		if st := childElement(pPr, "pStyle"); st != nil {
			para.StyleID = attrValue(st, "val")
			para.StyleName = p.styles[para.StyleID]
			if para.StyleName == "" {
				para.StyleName = para.StyleID
			}
		}
		if numPr := childElement(pPr, "numPr"); numPr != nil {
			para.Numbered = true
			para.Ordered = true
			if numID := childElement(numPr, "numId"); numID != nil {
				if v, ok := p.numbering[attrValue(numID, "val")]; ok {
					para.Ordered = v
				}
			}
		}
	}
	p.parseRunContainer(el, para, ChangeNone, "")
	return para
}

// parseRunContainer walks run-level content, threading the tracked-change
// context and the enclosing hyperlink target down to individual runs.
func (p *parser) parseRunContainer(el *etree.Element, para *Paragraph, change ChangeKind, href string) {
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "r":
			para.Runs = append(para.Runs, p.parseRun(child, change, href))
		case "hyperlink":
			target := href
			if rid := attrValue(child, "id"); rid != "" {
				target = p.rels[rid]
			} else if anchor := attrValue(child, "anchor"); anchor != "" {
				target = "#" + anchor
			}
			p.parseRunContainer(child, para, change, target)
		case "ins":
			p.parseRunContainer(child, para, ChangeInsertion, href)
		case "del":
			p.parseRunContainer(child, para, ChangeDeletion, href)
		case "moveFrom":
			p.parseRunContainer(child, para, ChangeMoveFrom, href)
		case "moveTo":
			p.parseRunContainer(child, para, ChangeMoveTo, href)
		case "smartTag", "fldSimple":
			p.parseRunContainer(child, para, change, href)
		case "sdt":
			if content := childElement(child, "sdtContent"); content != nil {
				p.parseRunContainer(content, para, change, href)
			}
		case "pPr", "bookmarkStart", "bookmarkEnd", "proofErr",
			"commentRangeStart", "commentRangeEnd", "moveFromRangeStart",
			"moveFromRangeEnd", "moveToRangeStart", "moveToRangeEnd":
			// markers without own run content
		}
	}
}

func (p *parser) parseRun(el *etree.Element, change ChangeKind, href string) Run {
	run := Run{Change: change, HyperlinkHref: href}
	if rPr := childElement(el, "rPr"); rPr != nil {
		run.Fmt = p.parseRunFormatting(rPr)
	}
	for _, child := range el.ChildElements() {
		switch child.Tag {
		case "t", "delText":
			run.Text += child.Text()
		case "tab":
			run.Text += "\t"
		case "br":
			if attrValue(child, "type") == "page" {
				run.PageBreak = true
			} else {
				run.Text += "\n"
			}
		case "footnoteReference":
			run.FootnoteID = attrValue(child, "id")
		case "endnoteReference":
			run.EndnoteID = attrValue(child, "id")
		case "commentReference":
			run.CommentIDs = append(run.CommentIDs, attrValue(child, "id"))
		case "drawing", "pict", "object":
			if img, ok := p.parseImage(child); ok {
				run.Images = append(run.Images, img)
			}
		case "lastRenderedPageBreak":
			// layout hint, not a manual break
		}
	}
	return run
}

func (p *parser) parseRunFormatting(rPr *etree.Element) RunFormatting {
	f := RunFormatting{
		Bold:      toggleOn(rPr, "b"),
		Italic:    toggleOn(rPr, "i"),
		Strike:    toggleOn(rPr, "strike"),
		SmallCaps: toggleOn(rPr, "smallCaps"),
	}
	if u := childElement(rPr, "u"); u != nil && attrValue(u, "val") != "none" {
		f.Underline = true
	}
	if va := childElement(rPr, "vertAlign"); va != nil {
		switch attrValue(va, "val") {
		case "superscript":
			f.Superscript = true
		case "subscript":
			f.Subscript = true
		}
	}
	if rs := childElement(rPr, "rStyle"); rs != nil {
		id := attrValue(rs, "val")
		f.StyleName = p.styles[id]
		if f.StyleName == "" {
			f.StyleName = id
		}
	}
	return f
}

// parseImage resolves a drawing or legacy pict to embedded media bytes and
// the accessibility text attached to it.
func (p *parser) parseImage(el *etree.Element) (InlineImage, bool) {
	var img InlineImage

	if docPr := findDescendant(el, "docPr"); docPr != nil {
		img.Alt = attrValue(docPr, "descr")
		if img.Alt == "" {
			img.Alt = attrValue(docPr, "title")
		}
	}

	var rid string
	if blip := findDescendant(el, "blip"); blip != nil {
		rid = attrValue(blip, "embed")
		if rid == "" {
			rid = attrValue(blip, "link")
		}
	} else if data := findDescendant(el, "imagedata"); data != nil {
		rid = attrValue(data, "id")
		if img.Alt == "" {
			img.Alt = attrValue(data, "title")
		}
	}
	if rid == "" {
		return img, false
	}

	target, ok := p.rels[rid]
	if !ok {
		p.log.Warn("Image relationship not found", zap.String("rid", rid))
		return img, false
	}
	name, data, ok := p.lookupMedia(path.Base(target))
	if !ok {
		p.log.Warn("Embedded media not found", zap.String("target", target))
		return img, false
	}
	img.Filename = name
	img.Data = data
	return img, true
}

// lookupMedia finds media by base name, tolerating the extension we may have
// sniffed onto extensionless package entries.
func (p *parser) lookupMedia(base string) (string, []byte, bool) {
	if data, ok := p.media[base]; ok {
		return base, data, true
	}
	for name, data := range p.media {
		if strings.TrimSuffix(name, path.Ext(name)) == base {
			return name, data, true
		}
	}
	return "", nil, false
}

func (p *parser) parseTable(el *etree.Element) *Table {
	tbl := &Table{}
	for _, tr := range el.ChildElements() {
		if tr.Tag != "tr" {
			continue
		}
		var row []Cell
		for _, tc := range tr.ChildElements() {
			if tc.Tag != "tc" {
				continue
			}
			var cell Cell
			for _, content := range tc.ChildElements() {
				if content.Tag == "p" {
					cell.Paragraphs = append(cell.Paragraphs, p.parseParagraph(content))
				}
			}
			row = append(row, cell)
		}
		if len(row) > 0 {
			tbl.Rows = append(tbl.Rows, row)
		}
	}
	return tbl
}

// parseOther keeps whatever paragraph content a structurally unmapped element
// carries so the converter can degrade it instead of dropping it.
func (p *parser) parseOther(el *etree.Element, subtype string) *Other {
	other := &Other{Subtype: subtype}
	switch subtype {
	case "textbox":
		if content := findDescendant(el, "txbxContent"); content != nil {
			for _, child := range content.ChildElements() {
				if child.Tag == "p" {
					other.Paragraphs = append(other.Paragraphs, p.parseParagraph(child))
				}
			}
		}
	case "equation":
		if text := mathText(el); text != "" {
			other.Paragraphs = append(other.Paragraphs, &Paragraph{Runs: []Run{{Text: text}}})
		}
	default:
		var collect func(e *etree.Element)
		collect = func(e *etree.Element) {
			for _, child := range e.ChildElements() {
				if child.Tag == "p" {
					other.Paragraphs = append(other.Paragraphs, p.parseParagraph(child))
					continue
				}
				collect(child)
			}
		}
		collect(el)
	}
	return other
}

// complexSubtype classifies paragraphs whose payload has no direct block
// mapping. Textboxes and equations are handled as Other elements wholesale.
func complexSubtype(el *etree.Element) string {
	if findDescendant(el, "txbxContent") != nil {
		return "textbox"
	}
	if findDescendant(el, "oMath") != nil || findDescendant(el, "oMathPara") != nil {
		return "equation"
	}
	return ""
}

// mathText flattens equation runs into plain text, the best a reflowable
// format can do without MathML support.
func mathText(el *etree.Element) string {
	var sb strings.Builder
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			if child.Tag == "t" {
				sb.WriteString(child.Text())
				continue
			}
			walk(child)
		}
	}
	walk(el)
	return strings.TrimSpace(sb.String())
}

// toggleOn handles OOXML toggle properties where presence means on unless an
// explicit false value is given.
func toggleOn(rPr *etree.Element, tag string) bool {
	el := childElement(rPr, tag)
	if el == nil {
		return false
	}
	switch strings.ToLower(attrValue(el, "val")) {
	case "false", "0", "none", "off":
		return false
	}
	return true
}

// findDescendant returns the first descendant with the given local tag name,
// depth first.
func findDescendant(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
		if found := findDescendant(child, tag); found != nil {
			return found
		}
	}
	return nil
}
