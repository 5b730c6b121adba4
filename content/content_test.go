package content

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"d2e/docx"
	"d2e/stylemap"
)

func newTestConverter(t *testing.T, doc *docx.Document) *Converter {
	t.Helper()
	log := zaptest.NewLogger(t)
	images, err := NewImageStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("NewImageStore() error: %v", err)
	}
	styles := stylemap.New()
	if err := styles.MergeJSON([]byte(`{
		"paragraph_styles": {
			"heading 1": "h1",
			"heading 2": "h2",
			"Quote": "blockquote",
			"Caption": "figcaption",
			"List Paragraph": "li"
		}
	}`)); err != nil {
		t.Fatal(err)
	}
	return NewConverter(doc, styles, images, true, log)
}

func para(style string, runs ...docx.Run) docx.BodyElement {
	return docx.BodyElement{Kind: docx.ElementParagraph, Paragraph: &docx.Paragraph{StyleName: style, Runs: runs}}
}

func textRun(s string) docx.Run {
	return docx.Run{Text: s}
}

func TestConvert_TrackedChangeFiltering(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("",
			docx.Run{Text: "kept "},
			docx.Run{Text: "inserted ", Change: docx.ChangeInsertion},
			docx.Run{Text: "deleted ", Change: docx.ChangeDeletion},
			docx.Run{Text: "moved-away ", Change: docx.ChangeMoveFrom},
			docx.Run{Text: "moved-here", Change: docx.ChangeMoveTo},
		),
	}}

	res := newTestConverter(t, doc).Convert()
	out := strings.Join(res.Sections, "\n")

	for _, want := range []string{"kept", "inserted", "moved-here"} {
		if !strings.Contains(out, want) {
			t.Errorf("accepted text %q missing from output", want)
		}
	}
	for _, banned := range []string{"deleted", "moved-away"} {
		if strings.Contains(out, banned) {
			t.Errorf("rejected text %q leaked into output", banned)
		}
	}
}

func TestConvert_StyleFallback(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("Totally Unknown Style", textRun("some text")),
	}}

	res := newTestConverter(t, doc).Convert()
	if !strings.Contains(res.Sections[0], "<p>some text</p>") {
		t.Errorf("unmapped style must fall back to <p>, got %q", res.Sections[0])
	}
}

func TestConvert_MonotonicFootnoteIndices(t *testing.T) {
	doc := &docx.Document{
		Footnotes: map[string]string{"10": "note ten", "11": "note eleven"},
		Endnotes:  map[string]string{"5": "endnote five"},
		Body: []docx.BodyElement{
			para("heading 1", textRun("Chapter 1")),
			para("", docx.Run{Text: "a", FootnoteID: "10"}),
			para("heading 1", textRun("Chapter 2")),
			para("", docx.Run{Text: "b", FootnoteID: "11"}),
			para("", docx.Run{Text: "c", EndnoteID: "5"}),
			para("", docx.Run{Text: "d", FootnoteID: "10"}), // repeat keeps first index
		},
	}

	res := newTestConverter(t, doc).Convert()
	out := strings.Join(res.Sections, "\n")

	for n := 1; n <= 3; n++ {
		if !strings.Contains(out, fmt.Sprintf(`href="#fn%d"`, n)) {
			t.Errorf("missing reference to note %d", n)
		}
		if !strings.Contains(out, fmt.Sprintf(`<li id="fn%d">`, n)) {
			t.Errorf("missing list entry for note %d", n)
		}
	}
	if strings.Contains(out, "#fn4") {
		t.Error("repeated note id must not allocate a new index")
	}
	if res.Notes.Count() != 3 {
		t.Errorf("Notes.Count() = %d, want 3", res.Notes.Count())
	}

	// the repeated reference points back at index 1
	if n := strings.Count(out, `href="#fn1"`); n != 2 {
		t.Errorf("repeated id reference count = %d, want 2", n)
	}
}

func TestConvert_FootnotesStayWithTheirChapter(t *testing.T) {
	doc := &docx.Document{
		Footnotes: map[string]string{"1": "only note"},
		Body: []docx.BodyElement{
			para("heading 1", textRun("One")),
			para("", docx.Run{Text: "text", FootnoteID: "1"}),
			para("heading 1", textRun("Two")),
			para("", textRun("no notes here")),
		},
	}

	res := newTestConverter(t, doc).Convert()
	if len(res.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(res.Sections))
	}
	if !strings.Contains(res.Sections[0], `<section class="footnotes">`) {
		t.Error("chapter 1 should carry its footnotes section")
	}
	if strings.Contains(res.Sections[1], "footnotes") {
		t.Error("chapter 2 has no notes and no footnotes section")
	}
}

func TestConvert_HyperlinkMerging(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("",
			docx.Run{Text: "see "},
			docx.Run{Text: "the ", HyperlinkHref: "https://example.com/"},
			docx.Run{Text: "site", HyperlinkHref: "https://example.com/", Fmt: docx.RunFormatting{Bold: true}},
			docx.Run{Text: " now"},
		),
	}}

	res := newTestConverter(t, doc).Convert()
	out := res.Sections[0]

	want := `<a href="https://example.com/">the <strong>site</strong></a>`
	if !strings.Contains(out, want) {
		t.Errorf("merged hyperlink missing:\n got %q\nwant %q", out, want)
	}
	if strings.Count(out, "<a href=") != 1 {
		t.Errorf("contiguous same-target runs must merge into one anchor: %q", out)
	}
}

func TestConvert_CommentMarkers(t *testing.T) {
	doc := &docx.Document{
		Comments: map[string]string{"1": "check this", "2": ""},
		Body: []docx.BodyElement{
			para("", docx.Run{Text: "flagged", CommentIDs: []string{"1"}}),
			para("", docx.Run{Text: "bare", CommentIDs: []string{"2"}}),
		},
	}

	res := newTestConverter(t, doc).Convert()
	out := strings.Join(res.Sections, "\n")

	if !strings.Contains(out, `<span class="comment" title="check this">&#128172;</span>`) {
		t.Errorf("comment marker with title missing: %q", out)
	}
	// absent comment text still yields a bare marker
	if !strings.Contains(out, `<span class="comment">&#128172;</span>`) {
		t.Errorf("bare comment marker missing: %q", out)
	}
}

func TestConvert_CommentsDropped(t *testing.T) {
	doc := &docx.Document{
		Comments: map[string]string{"1": "internal"},
		Body: []docx.BodyElement{
			para("", docx.Run{Text: "text", CommentIDs: []string{"1"}}),
		},
	}

	log := zaptest.NewLogger(t)
	images, err := NewImageStore(t.TempDir(), log)
	if err != nil {
		t.Fatal(err)
	}
	res := NewConverter(doc, stylemap.New(), images, false, log).Convert()
	if strings.Contains(strings.Join(res.Sections, ""), "comment") {
		t.Error("comments must be dropped when disabled")
	}
}

func TestConvert_ImageCaptionPairing(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("", docx.Run{Images: []docx.InlineImage{{Filename: "x.png", Data: []byte{1}}}}),
		para("Caption", textRun("A sunset.")),
	}}

	res := newTestConverter(t, doc).Convert()
	out := res.Sections[0]

	want := `<figure><img src="images/x.png" alt="" /><figcaption>A sunset.</figcaption></figure>`
	if !strings.Contains(out, want) {
		t.Errorf("figure pairing failed:\n got %q\nwant %q", out, want)
	}
	if len(res.ImagePaths) != 1 {
		t.Errorf("ImagePaths = %v, want one extracted file", res.ImagePaths)
	}
}

func TestConvert_ImageDeduplication(t *testing.T) {
	img := docx.InlineImage{Filename: "same.png", Data: []byte{1, 2}}
	doc := &docx.Document{Body: []docx.BodyElement{
		para("", docx.Run{Text: "a", Images: []docx.InlineImage{img}}),
		para("", docx.Run{Text: "b", Images: []docx.InlineImage{img}}),
	}}

	res := newTestConverter(t, doc).Convert()
	out := strings.Join(res.Sections, "\n")

	if n := strings.Count(out, `src="images/same.png"`); n != 2 {
		t.Errorf("both references must render, got %d", n)
	}
	if len(res.ImagePaths) != 1 {
		t.Errorf("bytes must be extracted once, got %v", res.ImagePaths)
	}
}

func TestConvert_AltAlwaysPresent(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("", docx.Run{Text: "t", Images: []docx.InlineImage{{Filename: "a.png", Data: []byte{1}}}}),
		para("", docx.Run{Text: "t", Images: []docx.InlineImage{{Filename: "b.png", Data: []byte{1}, Alt: "a cat"}}}),
	}}

	res := newTestConverter(t, doc).Convert()
	out := strings.Join(res.Sections, "\n")

	if !strings.Contains(out, `<img src="images/a.png" alt="" />`) {
		t.Errorf("empty alt must still be present: %q", out)
	}
	if !strings.Contains(out, `<img src="images/b.png" alt="a cat" />`) {
		t.Errorf("alt text missing: %q", out)
	}
}

func TestConvert_PagebreakSentinel(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("", textRun("before")),
		para("", docx.Run{PageBreak: true}),
		para("", textRun("after")),
	}}

	res := newTestConverter(t, doc).Convert()
	if !strings.Contains(strings.Join(res.Sections, "\n"), Pagebreak) {
		t.Error("manual page break must emit the sentinel comment")
	}
}

func TestConvert_Table(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		{Kind: docx.ElementTable, Table: &docx.Table{Rows: [][]docx.Cell{
			{
				{Paragraphs: []*docx.Paragraph{{Runs: []docx.Run{textRun("a1")}}}},
				{}, // empty cell
			},
		}}},
	}}

	res := newTestConverter(t, doc).Convert()
	out := res.Sections[0]

	if !strings.Contains(out, "<td><p>a1</p></td>") {
		t.Errorf("cell content missing: %q", out)
	}
	if !strings.Contains(out, "<td><p></p></td>") {
		t.Errorf("empty cell must render a single empty paragraph: %q", out)
	}
}

func TestConvert_BrokenTablePlaceholder(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		{Kind: docx.ElementTable, Table: &docx.Table{}},
	}}

	res := newTestConverter(t, doc).Convert()
	if !strings.Contains(res.Sections[0], "<p><em>[Table content - processing error...]</em></p>") {
		t.Errorf("broken table must degrade to placeholder: %q", res.Sections[0])
	}
}

func TestConvert_OtherElements(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		{Kind: docx.ElementOther, Other: &docx.Other{
			Subtype:    "textbox",
			Paragraphs: []*docx.Paragraph{{Runs: []docx.Run{textRun("boxed")}}},
		}},
		{Kind: docx.ElementOther, Other: &docx.Other{
			Subtype:    "equation",
			Paragraphs: []*docx.Paragraph{{Runs: []docx.Run{textRun("E=mc^2")}}},
		}},
		{Kind: docx.ElementOther, Other: &docx.Other{Subtype: "shape"}},
	}}

	res := newTestConverter(t, doc).Convert()
	out := res.Sections[0]

	if !strings.Contains(out, `<aside class="textbox"><p>boxed</p></aside>`) {
		t.Errorf("textbox rendering missing: %q", out)
	}
	if !strings.Contains(out, `<code class="equation">E=mc^2</code>`) {
		t.Errorf("equation rendering missing: %q", out)
	}
	if !strings.Contains(out, `<div class="complex-element" data-type="shape">`) {
		t.Errorf("unconvertible element must degrade to placeholder: %q", out)
	}
}

func TestConvert_BlockquoteWrapsInnerParagraph(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("Quote", textRun("quoted words")),
	}}

	res := newTestConverter(t, doc).Convert()
	if !strings.Contains(res.Sections[0], "<blockquote><p>quoted words</p></blockquote>") {
		t.Errorf("blockquote must wrap content in an inner paragraph: %q", res.Sections[0])
	}
}

func TestConvert_H1StartsNewSection(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		para("heading 1", textRun("One")),
		para("", textRun("first chapter text")),
		para("heading 2", textRun("Sub")),
		para("heading 1", textRun("Two")),
		para("", textRun("second chapter text")),
	}}

	res := newTestConverter(t, doc).Convert()
	if len(res.Sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(res.Sections))
	}
	if !strings.HasPrefix(res.Sections[0], "<h1>One</h1>") {
		t.Errorf("section 1 = %q", res.Sections[0])
	}
	if !strings.Contains(res.Sections[0], "<h2>Sub</h2>") {
		t.Error("h2 must not start a new section")
	}
	if !strings.HasPrefix(res.Sections[1], "<h1>Two</h1>") {
		t.Errorf("section 2 = %q", res.Sections[1])
	}
}

func TestConvert_Lists(t *testing.T) {
	doc := &docx.Document{Body: []docx.BodyElement{
		{Kind: docx.ElementParagraph, Paragraph: &docx.Paragraph{
			StyleName: "List Paragraph", Numbered: true, Ordered: false,
			Runs: []docx.Run{textRun("bullet one")},
		}},
		{Kind: docx.ElementParagraph, Paragraph: &docx.Paragraph{
			StyleName: "List Paragraph", Numbered: true, Ordered: true,
			Runs: []docx.Run{textRun("number one")},
		}},
	}}

	res := newTestConverter(t, doc).Convert()
	out := res.Sections[0]

	if !strings.Contains(out, "<ul>\n<li>bullet one</li>\n</ul>") {
		t.Errorf("bullet list missing: %q", out)
	}
	if !strings.Contains(out, "<ol>\n<li>number one</li>\n</ol>") {
		t.Errorf("numbered list missing: %q", out)
	}
}

func TestConvert_EmptyDocumentPlaceholder(t *testing.T) {
	res := newTestConverter(t, &docx.Document{}).Convert()
	if len(res.Sections) != 1 {
		t.Fatalf("got %d sections, want 1", len(res.Sections))
	}
	if !strings.Contains(res.Sections[0], "[Document contains no convertible content]") {
		t.Errorf("empty document must produce placeholder section: %q", res.Sections[0])
	}
}
