package nav

import (
	"fmt"
	"regexp"

	"d2e/content"
)

// PageTarget is one entry of the page-list navigation document.
type PageTarget struct {
	Label string
	Href  string
}

// Page break markers that survive splitting: the splitter consumes them only
// in pagebreak mode, in heading mode they stay in the chapter markup.
var pageMarkerRe = regexp.MustCompile(
	`(?i)<hr[^>]*class="[^"]*pagebreak[^"]*"[^>]*/?>|` + regexp.QuoteMeta(content.Pagebreak))

// AssignPageAnchors replaces page break markers left in chapter markup with
// identified pagebreak spans and collects them for the page-list navigation.
// Numbering is continuous across chapters and starts at 2, the first marker
// ends page one. A document without markers yields no targets.
func AssignPageAnchors(chapters []Chapter) []PageTarget {
	var targets []PageTarget
	page := 1
	for i := range chapters {
		filename := chapters[i].Filename()
		chapters[i].HTML = pageMarkerRe.ReplaceAllStringFunc(chapters[i].HTML, func(string) string {
			page++
			id := fmt.Sprintf("page-%d", page)
			targets = append(targets, PageTarget{
				Label: fmt.Sprintf("%d", page),
				Href:  filename + "#" + id,
			})
			return fmt.Sprintf(`<span id=%q role="doc-pagebreak" epub:type="pagebreak" aria-label=%q/>`, id, targets[len(targets)-1].Label)
		})
	}
	return targets
}
