package content

import "strings"

// ChapterBuilder is the explicit state machine behind block conversion. It
// buffers blocks for the chapter being accumulated, the currently open list,
// the chapter's footnotes and a pending image waiting for its caption.
// Every flush leaves the corresponding buffer empty.
type ChapterBuilder struct {
	blocks       []string
	listType     string // "", "ul" or "ol"
	listItems    []string
	footnotes    []Footnote
	pendingImage string
	sections     []string
}

func NewChapterBuilder() *ChapterBuilder {
	return &ChapterBuilder{}
}

// AppendBlock adds a finished block to the current chapter, closing the open
// list and releasing any pending image first.
func (b *ChapterBuilder) AppendBlock(html string) {
	b.FlushList()
	b.FlushPendingImage()
	b.blocks = append(b.blocks, html)
}

// AppendListItem adds an item to the open list, opening one of the requested
// type or switching types with a flush when the run changes mid-list.
func (b *ChapterBuilder) AppendListItem(html string, ordered bool) {
	b.FlushPendingImage()
	want := "ul"
	if ordered {
		want = "ol"
	}
	if b.listType != "" && b.listType != want {
		b.FlushList()
	}
	b.listType = want
	b.listItems = append(b.listItems, "<li>"+html+"</li>")
}

// FlushList closes the open list, if any, into the block buffer.
func (b *ChapterBuilder) FlushList() {
	if b.listType == "" {
		return
	}
	b.blocks = append(b.blocks, "<"+b.listType+">\n"+strings.Join(b.listItems, "\n")+"\n</"+b.listType+">")
	b.listType = ""
	b.listItems = nil
}

// HoldImage parks an image-only paragraph until the next paragraph decides
// whether it is a caption. A previously held image is released first.
func (b *ChapterBuilder) HoldImage(imgHTML string) {
	b.FlushPendingImage()
	b.pendingImage = imgHTML
}

// PendingImage reports whether an image is waiting for a caption.
func (b *ChapterBuilder) PendingImage() bool {
	return b.pendingImage != ""
}

// AttachCaption wraps the held image and the caption content into a figure.
func (b *ChapterBuilder) AttachCaption(captionHTML string) {
	if b.pendingImage == "" {
		return
	}
	img := b.pendingImage
	b.pendingImage = ""
	b.AppendBlock("<figure>" + img + "<figcaption>" + captionHTML + "</figcaption></figure>")
}

// FlushPendingImage releases a held image as a bare paragraph when no caption
// follows it.
func (b *ChapterBuilder) FlushPendingImage() {
	if b.pendingImage == "" {
		return
	}
	img := b.pendingImage
	b.pendingImage = ""
	b.blocks = append(b.blocks, "<p>"+img+"</p>")
}

// AddFootnote buffers a note for the chapter's footnotes section.
func (b *ChapterBuilder) AddFootnote(n Footnote) {
	b.footnotes = append(b.footnotes, n)
}

// FlushSection closes the accumulated chapter: open buffers are flushed, the
// chapter's footnotes are attached as an ordered list, and the result joins
// the finished section list. An empty chapter produces nothing.
func (b *ChapterBuilder) FlushSection() {
	b.FlushList()
	b.FlushPendingImage()

	if len(b.blocks) == 0 && len(b.footnotes) == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(b.blocks, "\n"))
	if len(b.footnotes) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(`<section class="footnotes">` + "\n<ol>\n")
		for _, n := range b.footnotes {
			sb.WriteString(noteItem(n))
			sb.WriteString("\n")
		}
		sb.WriteString("</ol>\n</section>")
	}

	b.sections = append(b.sections, sb.String())
	b.blocks = nil
	b.footnotes = nil
}

// Sections flushes whatever is still buffered and returns the finished
// chapter sections in order.
func (b *ChapterBuilder) Sections() []string {
	b.FlushSection()
	return b.sections
}
