package convert

import (
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"d2e/config"
	"d2e/docx"
)

func TestBuildBook(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Document.Pages.ListOfFigures = true
	})
	log := zaptest.NewLogger(t)

	src := &source{
		Stream: "<h1>Alpha</h1>\n<p>one</p>\n" +
			`<p><img src="images/a.png" alt="a map"/></p>` + "\n" +
			"<h1>Beta</h1>\n<p>two</p>",
	}

	book, err := buildBook(src, "sample.docx", env, log)
	if err != nil {
		t.Fatalf("buildBook() error: %v", err)
	}

	if len(book.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(book.Chapters))
	}
	if book.Chapters[0].ID != "ch001" || book.Chapters[1].ID != "ch002" {
		t.Errorf("chapter ids = %q, %q", book.Chapters[0].ID, book.Chapters[1].ID)
	}
	if book.Chapters[0].Title != "Alpha" {
		t.Errorf("chapter title = %q", book.Chapters[0].Title)
	}

	if len(book.Figures) != 1 || book.Figures[0].ID != "figure-1" {
		t.Fatalf("figures = %+v, want one figure-1", book.Figures)
	}
	if !strings.Contains(book.Chapters[0].HTML, "<figure") {
		t.Error("bare image must be wrapped into a figure")
	}

	if !book.Front.ListOfFigures {
		t.Error("list of figures page must be enabled when figures exist")
	}
	if book.Front.ListOfTables {
		t.Error("list of tables page must stay off without tables")
	}

	if book.CSS == "" || !strings.Contains(book.CSS, "body") {
		t.Error("stylesheet must carry the composed theme")
	}

	// first spine entry is the nav document, chapters follow the front matter
	if book.Spine[0].ID != "nav" {
		t.Errorf("spine starts with %q", book.Spine[0].ID)
	}
	if len(book.TOC) == 0 {
		t.Error("toc must not be empty")
	}
}

func TestBuildBook_ManualChapters(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.Document.Chapters.StartMode = config.ChapterStartModeManual
		cfg.Document.Chapters.Starts = []string{"Prologue", "The End"}
		cfg.Document.Split.Mode = config.SplitModePagebreak
	})
	log := zaptest.NewLogger(t)

	src := &source{
		Stream: "<p>Prologue text</p>\n" +
			`<hr class="pagebreak"/>` + "\n" +
			"<p>middle</p>\n" +
			`<hr class="pagebreak"/>` + "\n" +
			"<p>The End arrives</p>",
	}

	book, err := buildBook(src, "sample.txt", env, log)
	if err != nil {
		t.Fatalf("buildBook() error: %v", err)
	}

	if len(book.Chapters) != 3 {
		t.Fatalf("chapters = %d, want 3", len(book.Chapters))
	}
	if book.Chapters[0].Title != "Prologue" || book.Chapters[1].Title != "The End" {
		t.Errorf("pattern chapters = %q, %q", book.Chapters[0].Title, book.Chapters[1].Title)
	}
	// the unclaimed middle chunk follows the declared patterns
	if book.Chapters[2].Index != 3 {
		t.Errorf("remaining chunk numbered %d, want 3", book.Chapters[2].Index)
	}
}

func TestBuildBook_DefaultCover(t *testing.T) {
	env := newTestEnv(t, nil)
	env.DefaultCover = []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 600 800"><rect width="600" height="800" fill="white"/></svg>`)
	log := zaptest.NewLogger(t)

	book, err := buildBook(&source{Stream: "<h1>Only</h1><p>text</p>"}, "sample.md", env, log)
	if err != nil {
		t.Fatalf("buildBook() error: %v", err)
	}
	if book.Cover == nil {
		t.Fatal("default cover must be generated")
	}
	if book.Cover.Name != "cover.jpg" {
		t.Errorf("cover name = %q", book.Cover.Name)
	}
	if book.CoverDim[0] != 600 || book.CoverDim[1] != 800 {
		t.Errorf("cover dims = %v, want 600x800", book.CoverDim)
	}
}

func TestBuildBook_PageList(t *testing.T) {
	env := newTestEnv(t, nil)
	log := zaptest.NewLogger(t)

	// heading split keeps the manual page break inside the chapter
	src := &source{
		Stream: "<h1>Alpha</h1>\n<p>one</p>\n" +
			`<hr class="pagebreak"/>` + "\n<p>two</p>\n" +
			"<h1>Beta</h1>\n<p>three</p>",
	}

	book, err := buildBook(src, "sample.md", env, log)
	if err != nil {
		t.Fatalf("buildBook() error: %v", err)
	}

	if len(book.PageList) != 1 {
		t.Fatalf("page list = %+v, want one target", book.PageList)
	}
	if book.PageList[0].Href != "ch001.xhtml#page-2" {
		t.Errorf("page target href = %q", book.PageList[0].Href)
	}
	if !strings.Contains(book.Chapters[0].HTML, `role="doc-pagebreak"`) {
		t.Error("page anchor must be injected into the chapter markup")
	}
	if strings.Contains(book.Chapters[0].HTML, "<hr") {
		t.Error("page break marker must not survive anchor assignment")
	}
}

func TestSplitStream(t *testing.T) {
	stream := "<h1>A</h1><p>a</p>\n" + `<hr class="pagebreak"/>` + "\n<p>b</p>\n<h1>C</h1><p>c</p>"

	env := func(mode config.SplitMode) *config.SplitConfig {
		return &config.SplitConfig{Mode: mode, HeadingLevel: 1, TOCDepth: 3}
	}

	if got := len(splitStream(stream, env(config.SplitModeHeading))); got != 2 {
		t.Errorf("heading chunks = %d, want 2", got)
	}
	if got := len(splitStream(stream, env(config.SplitModePagebreak))); got != 2 {
		t.Errorf("pagebreak chunks = %d, want 2", got)
	}
	if got := len(splitStream(stream, env(config.SplitModeMixed))); got != 3 {
		t.Errorf("mixed chunks = %d, want 3", got)
	}
}

func TestMergeMetadata(t *testing.T) {
	core := docx.CoreProperties{
		Title:       "Core Title",
		Creator:     "Core Author",
		Description: "Core description",
		Subject:     "history",
		Language:    "de",
		Created:     "2019-05-06T10:00:00Z",
	}

	t.Run("fills empty fields", func(t *testing.T) {
		meta := mergeMetadata(config.MetadataConfig{}, core)
		if meta.Title != "Core Title" || meta.Author != "Core Author" {
			t.Errorf("meta = %+v", meta)
		}
		if meta.Language != "de" {
			t.Errorf("language = %q", meta.Language)
		}
		if meta.Date != "2019-05-06" {
			t.Errorf("date = %q", meta.Date)
		}
		if len(meta.Subjects) != 1 || meta.Subjects[0] != "history" {
			t.Errorf("subjects = %v", meta.Subjects)
		}
	})

	t.Run("configuration wins", func(t *testing.T) {
		meta := mergeMetadata(config.MetadataConfig{Title: "Mine", Language: "en"}, core)
		if meta.Title != "Mine" || meta.Language != "en" {
			t.Errorf("meta = %+v", meta)
		}
	})

	t.Run("language defaults to en", func(t *testing.T) {
		meta := mergeMetadata(config.MetadataConfig{}, docx.CoreProperties{})
		if meta.Language != "en" {
			t.Errorf("language = %q", meta.Language)
		}
	})
}
