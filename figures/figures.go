// Package figures numbers images and tables across the whole book and wraps
// them into figure elements with inferred captions. Unlike the splitter this
// stage works on a parsed DOM, position and sibling context matter here.
package figures

import (
	"bytes"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"d2e/content/text"
)

const maxInferredCaptionLen = 200

var figureCaptionPrefixes = []string{"figure", "fig.", "image"}
var tableCaptionPrefixes = []string{"table", "tab."}

// Entry is one numbered figure or table, kept for the list pages.
type Entry struct {
	Number    int
	ID        string
	Caption   string
	ChapterID string
}

// Href returns the cross-chapter link target of the entry.
func (e Entry) Href() string {
	return e.ChapterID + ".xhtml#" + e.ID
}

// Registry owns the book-wide figure and table counters. Counters grow
// monotonically across chapters and never reset, one conversion owns one
// registry.
type Registry struct {
	figureLabel   string
	tableLabel    string
	inferCaptions bool
	sentences     *text.Splitter

	figNum  int
	tblNum  int
	figures []Entry
	tables  []Entry

	log *zap.Logger
}

func NewRegistry(figureLabel, tableLabel string, inferCaptions bool, sentences *text.Splitter, log *zap.Logger) *Registry {
	return &Registry{
		figureLabel:   figureLabel,
		tableLabel:    tableLabel,
		inferCaptions: inferCaptions,
		sentences:     sentences,
		log:           log.Named("figures"),
	}
}

// Figures lists numbered figures in encounter order.
func (r *Registry) Figures() []Entry { return append([]Entry{}, r.figures...) }

// Tables lists numbered tables in encounter order.
func (r *Registry) Tables() []Entry { return append([]Entry{}, r.tables...) }

// ProcessChunk wraps every bare image and table of one chapter, assigning the
// next global numbers. A chunk that cannot be parsed is returned unchanged,
// numbering failures never break the build.
func (r *Registry) ProcessChunk(chapterID, chunk string) string {
	doc, err := html.Parse(strings.NewReader(chunk))
	if err != nil {
		r.log.Warn("Unable to parse chapter for figure processing, leaving it as is",
			zap.String("chapter", chapterID), zap.Error(err))
		return chunk
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return chunk
	}

	for _, img := range collect(body, atom.Img) {
		r.wrapImage(chapterID, img)
	}
	for _, tbl := range collect(body, atom.Table) {
		r.wrapTable(chapterID, tbl)
	}

	var buf bytes.Buffer
	for n := body.FirstChild; n != nil; n = n.NextSibling {
		if err := html.Render(&buf, n); err != nil {
			r.log.Warn("Unable to serialize processed chapter, leaving it as is",
				zap.String("chapter", chapterID), zap.Error(err))
			return chunk
		}
	}
	return buf.String()
}

func (r *Registry) wrapImage(chapterID string, img *html.Node) {
	if insideFigure(img) {
		return
	}

	r.figNum++
	id := fmt.Sprintf("figure-%d", r.figNum)

	caption := strings.TrimSpace(attr(img, "title"))
	if caption == "" {
		caption = strings.TrimSpace(attr(img, "alt"))
	}
	if caption == "" {
		if sib := r.captionSibling(img, figureCaptionPrefixes); sib != nil {
			caption = r.firstSentence(nodeText(sib))
			sib.Parent.RemoveChild(sib)
		}
	}
	synthesized := false
	if caption == "" && r.inferCaptions {
		caption = fmt.Sprintf("%s %d", r.figureLabel, r.figNum)
		synthesized = true
	}

	fig := wrapInFigure(img, id)
	if caption != "" {
		appendCaption(fig, caption)
	}

	listed := caption
	if listed == "" || synthesized {
		listed = fmt.Sprintf("%s %d", r.figureLabel, r.figNum)
	}
	r.figures = append(r.figures, Entry{Number: r.figNum, ID: id, Caption: listed, ChapterID: chapterID})
}

func (r *Registry) wrapTable(chapterID string, tbl *html.Node) {
	if insideFigure(tbl) {
		return
	}

	r.tblNum++
	id := fmt.Sprintf("table-%d", r.tblNum)

	var caption string
	if el := findElement(tbl, atom.Caption); el != nil {
		caption = strings.TrimSpace(nodeText(el))
		el.Parent.RemoveChild(el)
	}
	if caption == "" {
		if sib := precedingCaption(tbl, tableCaptionPrefixes); sib != nil {
			caption = r.firstSentence(nodeText(sib))
			sib.Parent.RemoveChild(sib)
		}
	}
	synthesized := false
	if caption == "" && r.inferCaptions {
		caption = fmt.Sprintf("%s %d", r.tableLabel, r.tblNum)
		synthesized = true
	}

	fig := wrapInFigure(tbl, id)
	if caption != "" {
		appendCaption(fig, caption)
	}

	listed := caption
	if listed == "" || synthesized {
		listed = fmt.Sprintf("%s %d", r.tableLabel, r.tblNum)
	}
	r.tables = append(r.tables, Entry{Number: r.tblNum, ID: id, Caption: listed, ChapterID: chapterID})
}

// captionSibling looks for a caption-like element next to the image: an
// element carrying a caption class, or a short em/i/p starting with one of
// the known prefixes. The image's own block wrapper is looked through.
func (r *Registry) captionSibling(img *html.Node, prefixes []string) *html.Node {
	candidates := []*html.Node{nextElement(img)}
	if p := img.Parent; p != nil && p.DataAtom == atom.P && onlyChild(p, img) {
		candidates = append(candidates, nextElement(p))
	}

	for _, c := range candidates {
		if c == nil {
			continue
		}
		if strings.Contains(attr(c, "class"), "caption") {
			return c
		}
		if c.DataAtom == atom.Em || c.DataAtom == atom.I || c.DataAtom == atom.P {
			if isCaptionText(nodeText(c), prefixes) {
				return c
			}
		}
	}
	return nil
}

func precedingCaption(tbl *html.Node, prefixes []string) *html.Node {
	prev := prevElement(tbl)
	if prev == nil || prev.DataAtom != atom.P {
		return nil
	}
	if strings.Contains(attr(prev, "class"), "caption") || isCaptionText(nodeText(prev), prefixes) {
		return prev
	}
	return nil
}

func isCaptionText(text string, prefixes []string) bool {
	text = strings.TrimSpace(text)
	if text == "" || len(text) >= maxInferredCaptionLen {
		return false
	}
	lower := strings.ToLower(text)
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// firstSentence trims an inferred caption to its first sentence when a
// sentence tokenizer is available.
func (r *Registry) firstSentence(s string) string {
	s = strings.TrimSpace(s)
	if r.sentences == nil {
		return s
	}
	if first := strings.TrimSpace(r.sentences.First(s)); first != "" {
		return first
	}
	return s
}

// wrapInFigure replaces the node with a figure carrying the given id and
// moves the node inside. A paragraph holding nothing but the node is replaced
// whole so the figure does not end up nested in a p.
func wrapInFigure(n *html.Node, id string) *html.Node {
	target := n
	if p := n.Parent; p != nil && p.DataAtom == atom.P && onlyChild(p, n) {
		target = p
	}

	fig := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Figure,
		Data:     "figure",
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	target.Parent.InsertBefore(fig, target)
	target.Parent.RemoveChild(target)
	if target != n {
		target.RemoveChild(n)
	}
	fig.AppendChild(n)
	return fig
}

func appendCaption(fig *html.Node, caption string) {
	fc := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Figcaption,
		Data:     "figcaption",
	}
	fc.AppendChild(&html.Node{Type: html.TextNode, Data: caption})
	fig.AppendChild(fc)
}

func insideFigure(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == atom.Figure {
			return true
		}
	}
	return false
}

func onlyChild(parent, n *html.Node) bool {
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c == n {
			continue
		}
		if c.Type == html.ElementNode {
			return false
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			return false
		}
	}
	return true
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func prevElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

func collect(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}
