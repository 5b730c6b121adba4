package nav

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestAssignAuto(t *testing.T) {
	chunk := `<section>
<h1>First Chapter</h1>
<p>text</p>
<h2>Alpha</h2>
<h3>Deep</h3>
<h2>Beta</h2>
</section>`

	ch := AssignAuto(1, chunk, 3)

	if ch.ID != "ch001" || ch.Title != "First Chapter" {
		t.Errorf("chapter = %q/%q", ch.ID, ch.Title)
	}
	if !strings.Contains(ch.HTML, `<h1 id="ch001">First Chapter</h1>`) {
		t.Errorf("h1 id not injected: %q", ch.HTML)
	}
	for _, want := range []string{
		`<h2 id="ch001-s01">Alpha</h2>`,
		`<h3 id="ch001-s01-s01">Deep</h3>`,
		`<h2 id="ch001-s02">Beta</h2>`,
	} {
		if !strings.Contains(ch.HTML, want) {
			t.Errorf("missing %q in %q", want, ch.HTML)
		}
	}

	wantHeadings := []Heading{
		{Title: "First Chapter", ID: "ch001", Level: 1},
		{Title: "Alpha", ID: "ch001-s01", Level: 2},
		{Title: "Deep", ID: "ch001-s01-s01", Level: 3},
		{Title: "Beta", ID: "ch001-s02", Level: 2},
	}
	if len(ch.Headings) != len(wantHeadings) {
		t.Fatalf("got %d headings, want %d: %v", len(ch.Headings), len(wantHeadings), ch.Headings)
	}
	for i, want := range wantHeadings {
		if ch.Headings[i] != want {
			t.Errorf("heading %d = %+v, want %+v", i, ch.Headings[i], want)
		}
	}
}

func TestAssignAuto_ExistingIDKept(t *testing.T) {
	ch := AssignAuto(2, `<h1 id="intro">Intro</h1>`, 3)

	if !strings.Contains(ch.HTML, `<h1 id="intro">Intro</h1>`) {
		t.Errorf("existing id must not be replaced: %q", ch.HTML)
	}
	if ch.Headings[0].ID != "intro" {
		t.Errorf("collected id = %q, want intro", ch.Headings[0].ID)
	}
}

func TestAssignAuto_DepthLimit(t *testing.T) {
	ch := AssignAuto(1, `<h1>T</h1><h2>A</h2><h3>B</h3>`, 2)

	if strings.Contains(ch.HTML, "-s01-s01") {
		t.Errorf("heading beyond depth must not get an id: %q", ch.HTML)
	}
	if len(ch.Headings) != 2 {
		t.Errorf("got %d headings, want 2 (h3 is beyond depth)", len(ch.Headings))
	}
}

func TestAssignAuto_CountersResetPerChapter(t *testing.T) {
	a := AssignAuto(1, `<h1>A</h1><h2>x</h2>`, 3)
	b := AssignAuto(2, `<h1>B</h1><h2>y</h2>`, 3)

	if a.Headings[1].ID != "ch001-s01" || b.Headings[1].ID != "ch002-s01" {
		t.Errorf("per-chapter counters: got %q and %q", a.Headings[1].ID, b.Headings[1].ID)
	}
}

func TestAssignAuto_NoHeading(t *testing.T) {
	ch := AssignAuto(3, `<p>no headings at all</p>`, 3)
	if ch.Title != "Chapter 3" {
		t.Errorf("title = %q, want generic fallback", ch.Title)
	}
	if len(ch.Headings) != 0 {
		t.Errorf("headings = %v, want none", ch.Headings)
	}
}

func TestAssignManual(t *testing.T) {
	chunks := []string{
		`<h1>Foreword</h1><p>by someone</p>`,
		`<h1>Prologue</h1><p>it begins</p>`,
		`<h1>Chapter 1</h1><p>first</p>`,
		`<p>interlude without heading</p>`,
		`<h1>Chapter 1 continued</h1><p>more</p>`,
	}
	patterns := []string{"Prologue", "Chapter 1", "Chapter 1"}

	chapters := AssignManual(chunks, patterns, 2, zaptest.NewLogger(t))

	// three declared chapters plus two unclaimed chunks
	if len(chapters) != 5 {
		t.Fatalf("got %d chapters, want 5", len(chapters))
	}
	if chapters[0].Title != "Prologue" || chapters[1].Title != "Chapter 1" {
		t.Errorf("matched titles = %q, %q", chapters[0].Title, chapters[1].Title)
	}
	// the second "Chapter 1" pattern matches the next unclaimed chunk
	if !strings.Contains(chapters[2].HTML, "Chapter 1 continued") {
		t.Errorf("duplicate pattern must claim a fresh chunk: %q", chapters[2].HTML)
	}
	// unclaimed chunks follow, auto numbered after the pattern count
	if chapters[3].Index != 4 || !strings.Contains(chapters[3].HTML, "Foreword") {
		t.Errorf("chapter 4 = %d %q", chapters[3].Index, chapters[3].HTML)
	}
	if chapters[4].Index != 5 || chapters[4].Title != "Chapter 5" {
		t.Errorf("chapter 5 = %d %q", chapters[4].Index, chapters[4].Title)
	}
}

func TestAssignManual_UnmatchedPatternPlaceholder(t *testing.T) {
	chunks := []string{
		`<h1>Prologue</h1><p>a</p>`,
		`<h1>Chapter 1</h1><p>b</p>`,
	}
	patterns := []string{"Prologue", "Chapter 1", "Epilogue"}

	chapters := AssignManual(chunks, patterns, 2, zaptest.NewLogger(t))

	// chapter count never drops below the declared pattern count
	if len(chapters) != 3 {
		t.Fatalf("got %d chapters, want 3", len(chapters))
	}
	ph := chapters[2]
	if ph.Title != "Chapter 3" {
		t.Errorf("placeholder title = %q, want Chapter 3", ph.Title)
	}
	// a placeholder never reuses content another pattern claimed
	if strings.Contains(ph.HTML, "Prologue") || strings.Contains(ph.HTML, "Chapter 1</h1>") {
		t.Errorf("placeholder reused claimed content: %q", ph.HTML)
	}
}

func TestAssignManual_RegexPattern(t *testing.T) {
	chunks := []string{`<h1>Part IV</h1><p>x</p>`}

	chapters := AssignManual(chunks, []string{`part\s+[ivx]+`}, 2, zaptest.NewLogger(t))
	if len(chapters) != 1 || !strings.Contains(chapters[0].HTML, "Part IV") {
		t.Fatalf("regex pattern did not claim the chunk: %+v", chapters)
	}
}

func TestStripTags(t *testing.T) {
	if got := StripTags(`<h1 id="x">Hello <em>world</em></h1>`); got != "Hello world" {
		t.Errorf("StripTags() = %q", got)
	}
}

func TestNavigator_SpineAndTOC(t *testing.T) {
	chapters := []Chapter{
		AssignAuto(1, `<h1>One</h1><h2>A</h2><h3>A1</h3><h2>B</h2>`, 3),
		AssignAuto(2, `<h1>Two</h1>`, 3),
	}
	n := NewNavigator(FrontMatter{Title: true, Copyright: true, ListOfFigures: true}, chapters, 3)

	spine := n.Spine()
	wantOrder := []string{"nav.xhtml", "title.xhtml", "copyright.xhtml", "lof.xhtml", "ch001.xhtml", "ch002.xhtml"}
	if len(spine) != len(wantOrder) {
		t.Fatalf("spine = %v", spine)
	}
	for i, want := range wantOrder {
		if spine[i].Filename != want {
			t.Errorf("spine[%d] = %q, want %q", i, spine[i].Filename, want)
		}
	}

	toc := n.TOC()
	if len(toc) != len(wantOrder)-1 {
		t.Fatalf("toc entries = %d, want %d", len(toc), len(wantOrder)-1)
	}
	for i, entry := range toc {
		if file, _, _ := strings.Cut(entry.Href, "#"); file != wantOrder[i+1] {
			t.Errorf("toc[%d] href = %q, spine has %q", i, entry.Href, wantOrder[i+1])
		}
	}

	one := toc[3]
	if one.Title != "One" || len(one.Children) != 2 {
		t.Fatalf("chapter entry = %+v", one)
	}
	if one.Children[0].Href != "ch001.xhtml#ch001-s01" {
		t.Errorf("sub entry href = %q", one.Children[0].Href)
	}
	if len(one.Children[0].Children) != 1 || one.Children[0].Children[0].Title != "A1" {
		t.Errorf("nested entry = %+v", one.Children[0])
	}
}

func TestNavigator_DepthOneFlattens(t *testing.T) {
	chapters := []Chapter{AssignAuto(1, `<h1>One</h1><h2>A</h2>`, 3)}
	n := NewNavigator(FrontMatter{}, chapters, 1)

	toc := n.TOC()
	if len(toc) != 1 || len(toc[0].Children) != 0 {
		t.Errorf("depth 1 must not nest: %+v", toc)
	}
}

func TestCheckConsistency(t *testing.T) {
	spine := []SpineItem{
		{ID: "nav", Filename: "nav.xhtml"},
		{ID: "a", Filename: "a.xhtml"},
		{ID: "b", Filename: "b.xhtml"},
		{ID: "c", Filename: "c.xhtml"},
	}

	t.Run("consistent", func(t *testing.T) {
		toc := []TOCEntry{
			{Href: "a.xhtml#x"}, {Href: "b.xhtml"}, {Href: "c.xhtml"},
		}
		if w := CheckConsistency(spine, toc); len(w) != 0 {
			t.Errorf("unexpected warnings: %v", w)
		}
	})

	t.Run("missing from toc", func(t *testing.T) {
		toc := []TOCEntry{{Href: "a.xhtml"}, {Href: "c.xhtml"}}
		w := CheckConsistency(spine, toc)
		if len(w) != 1 || !strings.Contains(w[0], "b.xhtml") {
			t.Errorf("warnings = %v", w)
		}
	})

	t.Run("missing from spine", func(t *testing.T) {
		toc := []TOCEntry{{Href: "a.xhtml"}, {Href: "b.xhtml"}, {Href: "c.xhtml"}, {Href: "d.xhtml"}}
		w := CheckConsistency(spine, toc)
		if len(w) != 1 || !strings.Contains(w[0], "d.xhtml") {
			t.Errorf("warnings = %v", w)
		}
	})

	t.Run("order mismatch", func(t *testing.T) {
		toc := []TOCEntry{{Href: "b.xhtml"}, {Href: "a.xhtml"}, {Href: "c.xhtml"}}
		w := CheckConsistency(spine, toc)
		if len(w) == 0 {
			t.Fatal("order deviation must be reported")
		}
		if !strings.Contains(strings.Join(w, " "), "order") {
			t.Errorf("warnings = %v", w)
		}
	})
}

func TestAssignPageAnchors(t *testing.T) {
	chapters := []Chapter{
		{ID: "ch001", HTML: `<section><p>one</p><hr class="pagebreak"/><p>two</p></section>`},
		{ID: "ch002", HTML: `<section><p>three</p><!-- PAGEBREAK --><p>four</p></section>`},
	}

	targets := AssignPageAnchors(chapters)

	if len(targets) != 2 {
		t.Fatalf("targets = %d, want 2", len(targets))
	}
	if targets[0].Href != "ch001.xhtml#page-2" || targets[0].Label != "2" {
		t.Errorf("first target = %+v", targets[0])
	}
	if targets[1].Href != "ch002.xhtml#page-3" || targets[1].Label != "3" {
		t.Errorf("second target = %+v", targets[1])
	}

	if strings.Contains(chapters[0].HTML, "<hr") || strings.Contains(chapters[1].HTML, "PAGEBREAK") {
		t.Error("markers must be replaced, not kept")
	}
	if !strings.Contains(chapters[0].HTML, `<span id="page-2" role="doc-pagebreak"`) {
		t.Errorf("anchor not injected: %s", chapters[0].HTML)
	}
}

func TestAssignPageAnchors_NoMarkers(t *testing.T) {
	chapters := []Chapter{{ID: "ch001", HTML: "<section><p>plain</p></section>"}}
	if targets := AssignPageAnchors(chapters); len(targets) != 0 {
		t.Errorf("targets = %v, want none", targets)
	}
	if chapters[0].HTML != "<section><p>plain</p></section>" {
		t.Error("markup without markers must stay untouched")
	}
}

func TestReportConsistency_Quiet(t *testing.T) {
	warnings := []string{"file a.xhtml present in spine but absent from table of contents"}

	core, logged := observer.New(zapcore.WarnLevel)
	log := zap.New(core)

	ReportConsistency(warnings, true, log)
	if logged.Len() != 0 {
		t.Errorf("quiet mode logged %d entries, want none", logged.Len())
	}

	ReportConsistency(warnings, false, log)
	if logged.Len() != 1 {
		t.Errorf("logged %d entries, want 1", logged.Len())
	}
}
