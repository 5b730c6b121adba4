package docx

import (
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap/zaptest"
)

func parseXML(t *testing.T, data string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	doc.ReadSettings = etree.ReadSettings{Permissive: true}
	if err := doc.ReadFromString(data); err != nil {
		t.Fatalf("failed to parse test XML: %v", err)
	}
	return doc
}

func newTestParser(t *testing.T) *parser {
	t.Helper()
	return &parser{
		rels:      map[string]string{},
		styles:    map[string]string{},
		numbering: map[string]bool{},
		media:     map[string][]byte{},
		log:       zaptest.NewLogger(t),
	}
}

func TestParseBody_Paragraphs(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:pStyle w:val="Heading1"/></w:pPr>
      <w:r><w:t>Chapter One</w:t></w:r>
    </w:p>
    <w:p>
      <w:r><w:rPr><w:b/></w:rPr><w:t>Bold text</w:t></w:r>
      <w:r><w:t xml:space="preserve"> and plain.</w:t></w:r>
    </w:p>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	p.styles["Heading1"] = "heading 1"

	body := p.parseBody(doc)
	if len(body) != 2 {
		t.Fatalf("parseBody() returned %d elements, want 2", len(body))
	}

	first := body[0]
	if first.Kind != ElementParagraph {
		t.Fatalf("first element kind = %v, want paragraph", first.Kind)
	}
	if first.Paragraph.StyleID != "Heading1" {
		t.Errorf("StyleID = %q, want Heading1", first.Paragraph.StyleID)
	}
	if first.Paragraph.StyleName != "heading 1" {
		t.Errorf("StyleName = %q, want 'heading 1'", first.Paragraph.StyleName)
	}
	if got := first.Paragraph.Text(); got != "Chapter One" {
		t.Errorf("Text() = %q, want 'Chapter One'", got)
	}

	second := body[1].Paragraph
	if len(second.Runs) != 2 {
		t.Fatalf("second paragraph has %d runs, want 2", len(second.Runs))
	}
	if !second.Runs[0].Fmt.Bold {
		t.Error("first run should be bold")
	}
	if second.Runs[1].Fmt.Bold {
		t.Error("second run should not be bold")
	}
	if got := second.Text(); got != "Bold text and plain." {
		t.Errorf("Text() = %q, want 'Bold text and plain.'", got)
	}
}

func TestParseBody_UnknownStyleFallsBackToID(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:pPr><w:pStyle w:val="MyFancyStyle"/></w:pPr><w:r><w:t>x</w:t></w:r></w:p>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	body := p.parseBody(doc)
	if len(body) != 1 {
		t.Fatalf("parseBody() returned %d elements, want 1", len(body))
	}
	if got := body[0].Paragraph.StyleName; got != "MyFancyStyle" {
		t.Errorf("StyleName = %q, want MyFancyStyle", got)
	}
}

func TestParseBody_TrackedChanges(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:r><w:t>kept </w:t></w:r>
      <w:ins w:id="1"><w:r><w:t>added </w:t></w:r></w:ins>
      <w:del w:id="2"><w:r><w:delText>removed </w:delText></w:r></w:del>
      <w:moveFrom w:id="3"><w:r><w:t>moved away </w:t></w:r></w:moveFrom>
      <w:moveTo w:id="4"><w:r><w:t>moved here</w:t></w:r></w:moveTo>
    </w:p>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	body := p.parseBody(doc)
	para := body[0].Paragraph

	wantChanges := []ChangeKind{ChangeNone, ChangeInsertion, ChangeDeletion, ChangeMoveFrom, ChangeMoveTo}
	if len(para.Runs) != len(wantChanges) {
		t.Fatalf("paragraph has %d runs, want %d", len(para.Runs), len(wantChanges))
	}
	for i, want := range wantChanges {
		if para.Runs[i].Change != want {
			t.Errorf("run %d change = %v, want %v", i, para.Runs[i].Change, want)
		}
	}

	// deletions and move sources never reach accepted text
	if got := para.Text(); got != "kept added moved here" {
		t.Errorf("Text() = %q, want 'kept added moved here'", got)
	}
}

func TestChangeKind_Included(t *testing.T) {
	tests := []struct {
		kind     ChangeKind
		included bool
	}{
		{ChangeNone, true},
		{ChangeInsertion, true},
		{ChangeMoveTo, true},
		{ChangeDeletion, false},
		{ChangeMoveFrom, false},
	}
	for _, tt := range tests {
		if got := tt.kind.Included(); got != tt.included {
			t.Errorf("Included() for %v = %v, want %v", tt.kind, got, tt.included)
		}
	}
}

func TestParseBody_Hyperlinks(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <w:body>
    <w:p>
      <w:hyperlink r:id="rId5">
        <w:r><w:t>example </w:t></w:r>
        <w:r><w:t>site</w:t></w:r>
      </w:hyperlink>
      <w:hyperlink w:anchor="section2">
        <w:r><w:t>local</w:t></w:r>
      </w:hyperlink>
    </w:p>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	p.rels["rId5"] = "https://example.com/"

	para := p.parseBody(doc)[0].Paragraph
	if len(para.Runs) != 3 {
		t.Fatalf("paragraph has %d runs, want 3", len(para.Runs))
	}
	if para.Runs[0].HyperlinkHref != "https://example.com/" {
		t.Errorf("run 0 href = %q", para.Runs[0].HyperlinkHref)
	}
	if para.Runs[1].HyperlinkHref != "https://example.com/" {
		t.Errorf("run 1 href = %q", para.Runs[1].HyperlinkHref)
	}
	if para.Runs[2].HyperlinkHref != "#section2" {
		t.Errorf("run 2 href = %q, want #section2", para.Runs[2].HyperlinkHref)
	}
}

func TestParseRunFormatting(t *testing.T) {
	tests := []struct {
		name string
		rPr  string
		want RunFormatting
	}{
		{"bold", `<w:rPr><w:b/></w:rPr>`, RunFormatting{Bold: true}},
		{"bold off", `<w:rPr><w:b w:val="false"/></w:rPr>`, RunFormatting{}},
		{"bold zero", `<w:rPr><w:b w:val="0"/></w:rPr>`, RunFormatting{}},
		{"italic strike", `<w:rPr><w:i/><w:strike/></w:rPr>`, RunFormatting{Italic: true, Strike: true}},
		{"underline", `<w:rPr><w:u w:val="single"/></w:rPr>`, RunFormatting{Underline: true}},
		{"underline none", `<w:rPr><w:u w:val="none"/></w:rPr>`, RunFormatting{}},
		{"superscript", `<w:rPr><w:vertAlign w:val="superscript"/></w:rPr>`, RunFormatting{Superscript: true}},
		{"subscript", `<w:rPr><w:vertAlign w:val="subscript"/></w:rPr>`, RunFormatting{Subscript: true}},
		{"small caps", `<w:rPr><w:smallCaps/></w:rPr>`, RunFormatting{SmallCaps: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := parseXML(t, `<w:r xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">`+tt.rPr+`<w:t>x</w:t></w:r>`)
			p := newTestParser(t)
			got := p.parseRun(doc.Root(), ChangeNone, "")
			if got.Fmt != tt.want {
				t.Errorf("formatting = %+v, want %+v", got.Fmt, tt.want)
			}
		})
	}
}

func TestParseRun_CharacterStyle(t *testing.T) {
	doc := parseXML(t, `<w:r xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:rPr><w:rStyle w:val="CodeChar"/></w:rPr><w:t>x</w:t></w:r>`)
	p := newTestParser(t)
	p.styles["CodeChar"] = "Code Char"
	got := p.parseRun(doc.Root(), ChangeNone, "")
	if got.Fmt.StyleName != "Code Char" {
		t.Errorf("StyleName = %q, want 'Code Char'", got.Fmt.StyleName)
	}
}

func TestParseRun_PageBreakAndReferences(t *testing.T) {
	doc := parseXML(t, `<w:p xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:r><w:br w:type="page"/></w:r>
  <w:r><w:footnoteReference w:id="2"/></w:r>
  <w:r><w:endnoteReference w:id="3"/></w:r>
  <w:r><w:commentReference w:id="7"/></w:r>
</w:p>`)

	p := newTestParser(t)
	para := &Paragraph{}
	p.parseRunContainer(doc.Root(), para, ChangeNone, "")

	if len(para.Runs) != 4 {
		t.Fatalf("paragraph has %d runs, want 4", len(para.Runs))
	}
	if !para.Runs[0].PageBreak {
		t.Error("expected page break run")
	}
	if para.Runs[1].FootnoteID != "2" {
		t.Errorf("FootnoteID = %q, want 2", para.Runs[1].FootnoteID)
	}
	if para.Runs[2].EndnoteID != "3" {
		t.Errorf("EndnoteID = %q, want 3", para.Runs[2].EndnoteID)
	}
	if len(para.Runs[3].CommentIDs) != 1 || para.Runs[3].CommentIDs[0] != "7" {
		t.Errorf("CommentIDs = %v, want [7]", para.Runs[3].CommentIDs)
	}
}

func TestParseBody_Table(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:tbl>
      <w:tr>
        <w:tc><w:p><w:r><w:t>a1</w:t></w:r></w:p></w:tc>
        <w:tc><w:p><w:r><w:t>a2</w:t></w:r></w:p><w:p><w:r><w:t>a2b</w:t></w:r></w:p></w:tc>
      </w:tr>
      <w:tr>
        <w:tc><w:p><w:r><w:t>b1</w:t></w:r></w:p></w:tc>
        <w:tc><w:p/></w:tc>
      </w:tr>
    </w:tbl>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	body := p.parseBody(doc)
	if len(body) != 1 || body[0].Kind != ElementTable {
		t.Fatalf("expected single table element, got %+v", body)
	}

	tbl := body[0].Table
	if len(tbl.Rows) != 2 {
		t.Fatalf("table has %d rows, want 2", len(tbl.Rows))
	}
	if len(tbl.Rows[0]) != 2 {
		t.Fatalf("first row has %d cells, want 2", len(tbl.Rows[0]))
	}
	if got := tbl.Rows[0][1].Paragraphs[1].Text(); got != "a2b" {
		t.Errorf("cell paragraph text = %q, want a2b", got)
	}
	if len(tbl.Rows[1][1].Paragraphs) != 1 {
		t.Errorf("empty cell should still carry its single empty paragraph")
	}
}

func TestParseBody_ListDetection(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p>
      <w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="4"/></w:numPr></w:pPr>
      <w:r><w:t>bullet item</w:t></w:r>
    </w:p>
    <w:p>
      <w:pPr><w:numPr><w:ilvl w:val="0"/><w:numId w:val="5"/></w:numPr></w:pPr>
      <w:r><w:t>numbered item</w:t></w:r>
    </w:p>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	p.numbering["4"] = false
	p.numbering["5"] = true

	body := p.parseBody(doc)
	if !body[0].Paragraph.Numbered || body[0].Paragraph.Ordered {
		t.Errorf("first paragraph: Numbered=%v Ordered=%v, want numbered unordered",
			body[0].Paragraph.Numbered, body[0].Paragraph.Ordered)
	}
	if !body[1].Paragraph.Numbered || !body[1].Paragraph.Ordered {
		t.Errorf("second paragraph: Numbered=%v Ordered=%v, want numbered ordered",
			body[1].Paragraph.Numbered, body[1].Paragraph.Ordered)
	}
}

func TestParseBody_ComplexElements(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:m="http://schemas.openxmlformats.org/officeDocument/2006/math">
  <w:body>
    <w:p>
      <w:r>
        <w:drawing>
          <w:txbxContent><w:p><w:r><w:t>inside the box</w:t></w:r></w:p></w:txbxContent>
        </w:drawing>
      </w:r>
    </w:p>
    <w:p>
      <m:oMath><m:r><m:t>E=mc^2</m:t></m:r></m:oMath>
    </w:p>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	body := p.parseBody(doc)
	if len(body) != 2 {
		t.Fatalf("parseBody() returned %d elements, want 2", len(body))
	}

	if body[0].Kind != ElementOther || body[0].Other.Subtype != "textbox" {
		t.Fatalf("first element = %+v, want textbox Other", body[0])
	}
	if len(body[0].Other.Paragraphs) != 1 || body[0].Other.Paragraphs[0].Text() != "inside the box" {
		t.Errorf("textbox content not extracted: %+v", body[0].Other.Paragraphs)
	}

	if body[1].Kind != ElementOther || body[1].Other.Subtype != "equation" {
		t.Fatalf("second element = %+v, want equation Other", body[1])
	}
	if len(body[1].Other.Paragraphs) != 1 || body[1].Other.Paragraphs[0].Text() != "E=mc^2" {
		t.Errorf("equation text not extracted: %+v", body[1].Other.Paragraphs)
	}
}

func TestParseBody_Sdt(t *testing.T) {
	doc := parseXML(t, `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:sdt>
      <w:sdtContent>
        <w:p><w:r><w:t>inside sdt</w:t></w:r></w:p>
      </w:sdtContent>
    </w:sdt>
  </w:body>
</w:document>`)

	p := newTestParser(t)
	body := p.parseBody(doc)
	if len(body) != 1 || body[0].Kind != ElementParagraph {
		t.Fatalf("expected unwrapped paragraph, got %+v", body)
	}
	if got := body[0].Paragraph.Text(); got != "inside sdt" {
		t.Errorf("Text() = %q, want 'inside sdt'", got)
	}
}

func TestParseImage(t *testing.T) {
	doc := parseXML(t, `<w:drawing xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
  xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <wp:inline>
    <wp:docPr id="1" name="Picture 1" descr="A black cat"/>
    <a:blip r:embed="rId8"/>
  </wp:inline>
</w:drawing>`)

	p := newTestParser(t)
	p.rels["rId8"] = "media/image1.png"
	p.media["image1.png"] = []byte{0x89, 0x50}

	img, ok := p.parseImage(doc.Root())
	if !ok {
		t.Fatal("parseImage() failed to resolve image")
	}
	if img.Filename != "image1.png" {
		t.Errorf("Filename = %q, want image1.png", img.Filename)
	}
	if img.Alt != "A black cat" {
		t.Errorf("Alt = %q, want 'A black cat'", img.Alt)
	}
	if len(img.Data) != 2 {
		t.Errorf("Data length = %d, want 2", len(img.Data))
	}
}

func TestParseImage_MissingRelationship(t *testing.T) {
	doc := parseXML(t, `<w:drawing xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"
  xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"
  xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
  <a:blip r:embed="rId99"/>
</w:drawing>`)

	p := newTestParser(t)
	if _, ok := p.parseImage(doc.Root()); ok {
		t.Error("parseImage() should fail for unresolvable relationship")
	}
}

func TestLookupMedia_SniffedExtension(t *testing.T) {
	p := newTestParser(t)
	p.media["image3.jpg"] = []byte{1}

	// relationship target had no extension, media got one sniffed on
	name, data, ok := p.lookupMedia("image3")
	if !ok {
		t.Fatal("lookupMedia() failed")
	}
	if name != "image3.jpg" || len(data) != 1 {
		t.Errorf("lookupMedia() = %q/%d bytes", name, len(data))
	}
}

func TestNoteText(t *testing.T) {
	doc := parseXML(t, `<w:footnote xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" w:id="2">
  <w:p><w:r><w:t>First sentence.</w:t></w:r></w:p>
  <w:p><w:r><w:t>Second paragraph.</w:t></w:r><w:del><w:r><w:delText>gone</w:delText></w:r></w:del></w:p>
</w:footnote>`)

	got := noteText(doc.Root())
	want := "First sentence. Second paragraph."
	if got != want {
		t.Errorf("noteText() = %q, want %q", got, want)
	}
}
