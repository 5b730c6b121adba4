// Package split partitions the concatenated chapter HTML into chunks. All
// strategies work on the serialized string with regular expressions, tolerant
// of fragments a strict parser would reject.
package split

import (
	"fmt"
	"regexp"
	"strings"

	"d2e/content"
)

// headingRe is indexed by heading level 1..6.
var headingRe [7]*regexp.Regexp

func init() {
	for lvl := 1; lvl <= 6; lvl++ {
		headingRe[lvl] = regexp.MustCompile(fmt.Sprintf(`(?i)<h%d[\s>]`, lvl))
	}
}

var (
	pagebreakHrRe    = regexp.MustCompile(`(?i)<hr[^>]*class="[^"]*pagebreak[^"]*"[^>]*/?>`)
	pagebreakStyleRe = regexp.MustCompile(`(?i)<[a-z][a-z0-9]*[^>]*style="[^"]*page-break-(?:before|after):\s*always[^"]*"[^>]*>(?:\s*</[a-z][a-z0-9]*>)?`)
)

// ByHeading splits on headings of the given level. Each heading stays
// attached to everything up to the next heading of the same level, content
// before the first heading forms its own chunk, and every chunk is wrapped in
// a section element. Without any heading the whole input is one chunk.
func ByHeading(html string, level int) []string {
	return wrapAll(html, byHeading(html, level))
}

// ByPagebreak splits on manual page breaks. The three break conventions, a
// pagebreak-classed hr, an inline page-break-always style and the sentinel
// comment, are normalized to one token first. Breaks never appear in output.
func ByPagebreak(html string) []string {
	return wrapAll(html, byPagebreak(html))
}

// Mixed applies a comma-separated list of strategy names (h1..h6, heading
// aliases to h1, pagebreak) as successive refinements: every strategy splits
// every fragment the previous one produced. Unrecognized names pass fragments
// through unchanged.
func Mixed(html, spec string) []string {
	fragments := []string{html}
	for _, name := range strings.Split(spec, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		var next []string
		for _, frag := range fragments {
			switch {
			case name == "pagebreak":
				next = append(next, byPagebreak(frag)...)
			case name == "heading":
				next = append(next, byHeading(frag, 1)...)
			case len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6':
				next = append(next, byHeading(frag, int(name[1]-'0'))...)
			default:
				next = append(next, frag)
			}
		}
		fragments = next
	}
	return wrapAll(html, fragments)
}

func byHeading(html string, level int) []string {
	if level < 1 || level > 6 {
		level = 1
	}
	locs := headingRe[level].FindAllStringIndex(html, -1)
	if len(locs) == 0 {
		return []string{html}
	}

	var chunks []string
	if head := html[:locs[0][0]]; strings.TrimSpace(head) != "" {
		chunks = append(chunks, head)
	}
	for i, loc := range locs {
		end := len(html)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		chunks = append(chunks, html[loc[0]:end])
	}
	return chunks
}

func byPagebreak(html string) []string {
	normalized := pagebreakHrRe.ReplaceAllString(html, content.Pagebreak)
	normalized = pagebreakStyleRe.ReplaceAllString(normalized, content.Pagebreak)

	var chunks []string
	for _, frag := range strings.Split(normalized, content.Pagebreak) {
		if strings.TrimSpace(frag) != "" {
			chunks = append(chunks, frag)
		}
	}
	return chunks
}

// wrapAll wraps every non-empty fragment in a section element. A result with
// no usable fragments degrades to the whole input as one chunk, a split never
// returns an empty list.
func wrapAll(input string, fragments []string) []string {
	var chunks []string
	for _, frag := range fragments {
		if trimmed := strings.TrimSpace(frag); trimmed != "" {
			chunks = append(chunks, "<section>\n"+trimmed+"\n</section>")
		}
	}
	if len(chunks) == 0 {
		chunks = []string{"<section>\n" + strings.TrimSpace(input) + "\n</section>"}
	}
	return chunks
}
