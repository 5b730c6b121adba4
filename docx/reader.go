package docx

import (
	"archive/zip"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"
	"github.com/h2non/filetype"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const (
	partDocument  = "word/document.xml"
	partDocRels   = "word/_rels/document.xml.rels"
	partStyles    = "word/styles.xml"
	partNumbering = "word/numbering.xml"
	partFootnotes = "word/footnotes.xml"
	partEndnotes  = "word/endnotes.xml"
	partComments  = "word/comments.xml"
	partCoreProps = "docProps/core.xml"
	mediaPrefix   = "word/media/"
)

type reader struct {
	zr  *zip.ReadCloser
	log *zap.Logger
}

// Parse reads a DOCX package from disk and returns the typed document model.
// Only a completely unreadable package is an error, individual malformed or
// absent optional parts degrade with a warning.
func Parse(fname string, log *zap.Logger) (*Document, error) {
	zr, err := zip.OpenReader(fname)
	if err != nil {
		return nil, fmt.Errorf("unable to open source package '%s': %w", fname, err)
	}
	defer zr.Close()

	r := &reader{zr: zr, log: log.Named("docx")}

	docXML, err := r.readPart(partDocument)
	if err != nil {
		return nil, fmt.Errorf("unable to read main document part: %w", err)
	}

	doc := &Document{
		Footnotes: map[string]string{},
		Endnotes:  map[string]string{},
		Comments:  map[string]string{},
		Media:     map[string][]byte{},
	}

	rels := r.parseRelationships()
	styles := r.parseStyles()
	numbering := r.parseNumbering()
	r.parseMedia(doc)
	r.parseNotes(partFootnotes, "footnote", doc.Footnotes)
	r.parseNotes(partEndnotes, "endnote", doc.Endnotes)
	r.parseComments(doc)
	r.parseCoreProperties(doc)

	p := &parser{
		rels:      rels,
		styles:    styles,
		numbering: numbering,
		media:     doc.Media,
		log:       r.log,
	}
	doc.Body = p.parseBody(docXML)
	return doc, nil
}

// readPart loads a single XML part into an etree document. Parsing is
// permissive, DOCX producers are wildly inconsistent.
func (r *reader) readPart(name string) (*etree.Document, error) {
	var file *zip.File
	for _, f := range r.zr.File {
		if f.Name == name {
			file = f
			break
		}
	}
	if file == nil {
		return nil, fmt.Errorf("part '%s' not found", name)
	}

	rc, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open part '%s': %w", name, err)
	}
	defer rc.Close()

	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{
		CharsetReader: charset.NewReaderLabel,
		Permissive:    true,
	}
	if _, err := doc.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("unable to parse part '%s': %w", name, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("part '%s' has no root element", name)
	}
	return doc, nil
}

// parseRelationships maps relationship ids to their targets (media file names
// for internal targets, urls for external ones).
func (r *reader) parseRelationships() map[string]string {
	rels := map[string]string{}

	doc, err := r.readPart(partDocRels)
	if err != nil {
		r.log.Warn("Document has no usable relationships part", zap.Error(err))
		return rels
	}
	for _, rel := range doc.Root().ChildElements() {
		if rel.Tag != "Relationship" {
			continue
		}
		id := attrValue(rel, "Id")
		target := attrValue(rel, "Target")
		if id == "" || target == "" {
			continue
		}
		if attrValue(rel, "TargetMode") == "External" {
			rels[id] = target
			continue
		}
		// internal targets are relative to the word/ directory
		rels[id] = path.Clean(strings.TrimPrefix(target, "/"))
	}
	return rels
}

// parseStyles maps style ids to human readable style names.
func (r *reader) parseStyles() map[string]string {
	styles := map[string]string{}

	doc, err := r.readPart(partStyles)
	if err != nil {
		r.log.Debug("Document has no styles part", zap.Error(err))
		return styles
	}
	for _, st := range doc.Root().ChildElements() {
		if st.Tag != "style" {
			continue
		}
		id := attrValue(st, "styleId")
		if id == "" {
			continue
		}
		if name := childElement(st, "name"); name != nil {
			styles[id] = attrValue(name, "val")
		}
	}
	return styles
}

// parseNumbering resolves numbering ids to list ordering: true for decimal
// and friends, false for bullets. Resolution goes numId -> abstractNumId ->
// first level numFmt, which is as deep as list detection needs.
func (r *reader) parseNumbering() map[string]bool {
	ordered := map[string]bool{}

	doc, err := r.readPart(partNumbering)
	if err != nil {
		r.log.Debug("Document has no numbering part", zap.Error(err))
		return ordered
	}

	abstractOrdered := map[string]bool{}
	for _, el := range doc.Root().ChildElements() {
		switch el.Tag {
		case "abstractNum":
			id := attrValue(el, "abstractNumId")
			if lvl := childElement(el, "lvl"); lvl != nil {
				if numFmt := childElement(lvl, "numFmt"); numFmt != nil {
					abstractOrdered[id] = attrValue(numFmt, "val") != "bullet"
				}
			}
		case "num":
			id := attrValue(el, "numId")
			if ref := childElement(el, "abstractNumId"); ref != nil {
				if v, ok := abstractOrdered[attrValue(ref, "val")]; ok {
					ordered[id] = v
				}
			}
		}
	}
	return ordered
}

// parseMedia extracts embedded media bytes keyed by file name. Files without
// a recognizable extension get one sniffed from content.
func (r *reader) parseMedia(doc *Document) {
	for _, f := range r.zr.File {
		if !strings.HasPrefix(f.Name, mediaPrefix) || strings.HasSuffix(f.Name, "/") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			r.log.Warn("Unable to open embedded media", zap.String("name", f.Name), zap.Error(err))
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			r.log.Warn("Unable to read embedded media", zap.String("name", f.Name), zap.Error(err))
			continue
		}

		name := path.Base(f.Name)
		if path.Ext(name) == "" {
			if t, err := filetype.Match(data); err == nil && t.Extension != "" {
				name += "." + t.Extension
			}
		}
		doc.Media[name] = data
	}
}

// parseNotes fills the id to plain text map for footnotes or endnotes,
// skipping structural separator entries.
func (r *reader) parseNotes(part, tag string, out map[string]string) {
	doc, err := r.readPart(part)
	if err != nil {
		r.log.Debug("Document note part absent", zap.String("part", part))
		return
	}
	for _, note := range doc.Root().ChildElements() {
		if note.Tag != tag {
			continue
		}
		switch attrValue(note, "type") {
		case "separator", "continuationSeparator", "continuationNotice":
			continue
		}
		id := attrValue(note, "id")
		if id == "" {
			continue
		}
		out[id] = strings.TrimSpace(noteText(note))
	}
}

func (r *reader) parseComments(doc *Document) {
	part, err := r.readPart(partComments)
	if err != nil {
		r.log.Debug("Document has no comments part")
		return
	}
	for _, c := range part.Root().ChildElements() {
		if c.Tag != "comment" {
			continue
		}
		id := attrValue(c, "id")
		if id == "" {
			continue
		}
		doc.Comments[id] = strings.TrimSpace(noteText(c))
	}
}

func (r *reader) parseCoreProperties(doc *Document) {
	part, err := r.readPart(partCoreProps)
	if err != nil {
		r.log.Debug("Document has no core properties part")
		return
	}
	for _, el := range part.Root().ChildElements() {
		text := strings.TrimSpace(el.Text())
		switch el.Tag {
		case "title":
			doc.Core.Title = text
		case "creator":
			doc.Core.Creator = text
		case "description":
			doc.Core.Description = text
		case "subject":
			doc.Core.Subject = text
		case "language":
			doc.Core.Language = text
		case "created":
			doc.Core.Created = text
		}
	}
}

// noteText collects the visible run text of a note or comment body, accepted
// tracked changes included.
func noteText(el *etree.Element) string {
	var sb strings.Builder
	var walk func(e *etree.Element, dropped bool)
	walk = func(e *etree.Element, dropped bool) {
		for _, child := range e.ChildElements() {
			switch child.Tag {
			case "del", "moveFrom":
				walk(child, true)
			case "t", "delText":
				if !dropped && child.Tag == "t" {
					sb.WriteString(child.Text())
				}
			case "p":
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				walk(child, dropped)
			default:
				walk(child, dropped)
			}
		}
	}
	walk(el, false)
	return sb.String()
}

// attrValue returns the attribute value by local name regardless of the
// namespace prefix the producer used.
func attrValue(el *etree.Element, key string) string {
	for _, a := range el.Attr {
		if a.Key == key {
			return a.Value
		}
	}
	return ""
}

// childElement returns the first direct child with the given local tag name.
func childElement(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}
