package content

import (
	"fmt"
	"html"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"d2e/docx"
)

// Pagebreak is the sentinel the pagebreak splitter consumes.
const Pagebreak = "<!-- PAGEBREAK -->"

// Footnote is one allocated note with its global index.
type Footnote struct {
	Index int
	Text  string
}

// FootnoteList allocates global footnote indices. Indices start at 1, grow
// monotonically across the whole document and are assigned at first
// encounter, an id referenced twice keeps its first index. Footnotes and
// endnotes share one sequence.
type FootnoteList struct {
	next    int
	indices map[string]int
	notes   []Footnote
}

func NewFootnoteList() *FootnoteList {
	return &FootnoteList{next: 1, indices: map[string]int{}}
}

// Allocate returns the note for the given id, assigning the next free index
// on first encounter, and reports whether the note is newly allocated. The
// kind keeps footnote and endnote id spaces apart.
func (fl *FootnoteList) Allocate(kind, id, text string) (Footnote, bool) {
	key := kind + ":" + id
	if idx, ok := fl.indices[key]; ok {
		return fl.notes[idx-1], false
	}
	idx := fl.next
	fl.next++
	fl.indices[key] = idx
	n := Footnote{Index: idx, Text: text}
	fl.notes = append(fl.notes, n)
	return n, true
}

// Count returns how many notes have been allocated.
func (fl *FootnoteList) Count() int {
	return fl.next - 1
}

// refAnchor emits the in-text reference mark for an allocated note.
func refAnchor(index int) string {
	return fmt.Sprintf(`<sup><a id="fnref%d" href="#fn%d">%d</a></sup>`, index, index, index)
}

// noteItem emits the list entry flushed into a chapter's footnotes section.
func noteItem(n Footnote) string {
	return fmt.Sprintf(`<li id="fn%d">%s <a href="#fnref%d">&#8617;</a></li>`, n.Index, html.EscapeString(n.Text), n.Index)
}

// commentMarker renders a document comment as a transient marker. Absent
// comment text still yields a bare marker, comments never block conversion.
func commentMarker(text string) string {
	if text == "" {
		return `<span class="comment">&#128172;</span>`
	}
	return `<span class="comment" title="` + html.EscapeString(text) + `">&#128172;</span>`
}

// ImageStore extracts embedded images into the scratch directory exactly once
// per unique file name.
type ImageStore struct {
	dir     string
	written map[string]bool
	paths   []string
	log     *zap.Logger
}

// NewImageStore prepares an image extraction target under the given scratch
// directory.
func NewImageStore(scratchDir string, log *zap.Logger) (*ImageStore, error) {
	dir := filepath.Join(scratchDir, "images")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("unable to create image scratch directory: %w", err)
	}
	return &ImageStore{dir: dir, written: map[string]bool{}, log: log}, nil
}

// Add writes the image bytes once per file name and returns the relative
// source the output markup references.
func (s *ImageStore) Add(img docx.InlineImage) (string, error) {
	src := "images/" + img.Filename
	if s.written[img.Filename] {
		return src, nil
	}
	if err := os.WriteFile(filepath.Join(s.dir, img.Filename), img.Data, 0600); err != nil {
		return "", fmt.Errorf("unable to extract image '%s': %w", img.Filename, err)
	}
	s.written[img.Filename] = true
	s.paths = append(s.paths, filepath.Join(s.dir, img.Filename))
	return src, nil
}

// Paths lists the extracted files in extraction order.
func (s *ImageStore) Paths() []string {
	return append([]string{}, s.paths...)
}

// Dir returns the directory images were extracted into.
func (s *ImageStore) Dir() string {
	return s.dir
}

// imgTag renders an inline image reference. The alt attribute is always
// present, even empty, as the accessibility baseline.
func imgTag(src, alt string) string {
	return `<img src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(alt) + `" />`
}
