package nav

// SpineItem is one document in reading order.
type SpineItem struct {
	ID       string
	Filename string
	Title    string
	// Landmark is the epub:type the item contributes to the landmarks list,
	// empty for plain content.
	Landmark string
}

// TOCEntry is one table of contents node. Top level entries mirror the spine
// order, children are a chapter's collected sub-headings.
type TOCEntry struct {
	Title    string
	Href     string
	Children []TOCEntry
}

// FrontMatter describes which generated pages precede the chapters.
type FrontMatter struct {
	Title            bool
	Copyright        bool
	Dedication       bool
	Acknowledgements bool
	ListOfFigures    bool
	ListOfTables     bool
}

// Navigator assembles spine order and the matching table of contents.
type Navigator struct {
	front    FrontMatter
	chapters []Chapter
	tocDepth int
}

func NewNavigator(front FrontMatter, chapters []Chapter, tocDepth int) *Navigator {
	if tocDepth < 1 {
		tocDepth = 1
	}
	return &Navigator{front: front, chapters: chapters, tocDepth: tocDepth}
}

// Spine returns reading order: nav, generated front matter, figure and table
// lists, then the chapters.
func (n *Navigator) Spine() []SpineItem {
	spine := []SpineItem{{ID: "nav", Filename: "nav.xhtml", Title: "Table of Contents", Landmark: "toc"}}

	if n.front.Title {
		spine = append(spine, SpineItem{ID: "title", Filename: "title.xhtml", Title: "Title Page", Landmark: "titlepage"})
	}
	if n.front.Copyright {
		spine = append(spine, SpineItem{ID: "copyright", Filename: "copyright.xhtml", Title: "Copyright", Landmark: "copyright-page"})
	}
	if n.front.Dedication {
		spine = append(spine, SpineItem{ID: "dedication", Filename: "dedication.xhtml", Title: "Dedication", Landmark: "dedication"})
	}
	if n.front.Acknowledgements {
		spine = append(spine, SpineItem{ID: "acknowledgements", Filename: "acknowledgements.xhtml", Title: "Acknowledgements", Landmark: "acknowledgments"})
	}
	if n.front.ListOfFigures {
		spine = append(spine, SpineItem{ID: "lof", Filename: "lof.xhtml", Title: "List of Figures", Landmark: "loi"})
	}
	if n.front.ListOfTables {
		spine = append(spine, SpineItem{ID: "lot", Filename: "lot.xhtml", Title: "List of Tables", Landmark: "lot"})
	}

	for i, ch := range n.chapters {
		item := SpineItem{ID: ch.ID, Filename: ch.Filename(), Title: ch.Title}
		if i == 0 {
			item.Landmark = "bodymatter"
		}
		spine = append(spine, item)
	}
	return spine
}

// TOC mirrors the spine, excluding the nav document itself. Chapter entries
// nest their sub-headings when the configured depth allows more than one
// level.
func (n *Navigator) TOC() []TOCEntry {
	var toc []TOCEntry
	for _, item := range n.Spine() {
		if item.ID == "nav" {
			continue
		}

		ch, ok := n.chapterByID(item.ID)
		if !ok {
			toc = append(toc, TOCEntry{Title: item.Title, Href: item.Filename})
			continue
		}

		entry := TOCEntry{Title: ch.Title, Href: chapterHref(ch, 1)}
		if n.tocDepth > 1 {
			entry.Children = nestHeadings(ch, subHeadings(ch), 2)
		}
		toc = append(toc, entry)
	}
	return toc
}

func (n *Navigator) chapterByID(id string) (Chapter, bool) {
	for _, ch := range n.chapters {
		if ch.ID == id {
			return ch, true
		}
	}
	return Chapter{}, false
}

func subHeadings(ch Chapter) []Heading {
	var subs []Heading
	for _, h := range ch.Headings {
		if h.Level > 1 {
			subs = append(subs, h)
		}
	}
	return subs
}

// nestHeadings groups a flat heading list into a tree, a deeper heading
// becomes a child of the latest shallower one.
func nestHeadings(ch Chapter, headings []Heading, level int) []TOCEntry {
	var out []TOCEntry
	for i := 0; i < len(headings); {
		h := headings[i]
		if h.Level < level {
			// malformed nesting, keep the entry at this level anyway
			h.Level = level
		}
		if h.Level > level {
			i++
			continue
		}

		end := i + 1
		for end < len(headings) && headings[end].Level > level {
			end++
		}
		out = append(out, TOCEntry{
			Title:    h.Title,
			Href:     ch.Filename() + "#" + h.ID,
			Children: nestHeadings(ch, headings[i+1:end], level+1),
		})
		i = end
	}
	return out
}

func chapterHref(ch Chapter, level int) string {
	if len(ch.Headings) > 0 && ch.Headings[0].Level == level {
		return ch.Filename() + "#" + ch.Headings[0].ID
	}
	return ch.Filename()
}
