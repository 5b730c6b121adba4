// Package nav assigns chapter and heading ids, orders the reading spine and
// builds the table of contents.
package nav

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Heading is one collected navigation target inside a chapter.
type Heading struct {
	Title string
	ID    string
	Level int
}

// Chapter is one spine-ordered content document with its injected ids.
type Chapter struct {
	Index    int
	ID       string
	Title    string
	HTML     string
	Headings []Heading
}

// Filename returns the name the chapter is stored under in the container.
func (c Chapter) Filename() string {
	return c.ID + ".xhtml"
}

var (
	headingTagRe = regexp.MustCompile(`(?is)<h([1-6])([^>]*)>(.*?)</h[1-6]\s*>`)
	idAttrRe     = regexp.MustCompile(`(?i)\bid\s*=\s*"([^"]*)"`)
	anyTagRe     = regexp.MustCompile(`(?s)<[^>]*>`)
)

// StripTags reduces markup to its plain text for pattern matching and titles.
func StripTags(s string) string {
	return strings.TrimSpace(anyTagRe.ReplaceAllString(s, ""))
}

// AssignAuto injects ids into one chunk's headings and collects the headings
// up to tocDepth. The first h1 gets the chapter id unless it already carries
// one, deeper headings get hierarchical ids with per-level counters that
// reset within the chapter.
func AssignAuto(index int, chunk string, tocDepth int) Chapter {
	ch := Chapter{
		Index: index,
		ID:    fmt.Sprintf("ch%03d", index),
		Title: fmt.Sprintf("Chapter %d", index),
	}

	var counters [7]int
	seenH1 := false

	ch.HTML = headingTagRe.ReplaceAllStringFunc(chunk, func(m string) string {
		parts := headingTagRe.FindStringSubmatch(m)
		level := int(parts[1][0] - '0')
		attrs, inner := parts[2], parts[3]

		var id string
		if level == 1 {
			if seenH1 {
				return m
			}
			seenH1 = true
			ch.Title = StripTags(inner)
			if got := idAttrRe.FindStringSubmatch(attrs); got != nil {
				id = got[1]
			} else {
				id = ch.ID
				attrs += fmt.Sprintf(` id="%s"`, id)
			}
			ch.Headings = append(ch.Headings, Heading{Title: ch.Title, ID: id, Level: 1})
			return fmt.Sprintf("<h1%s>%s</h1>", attrs, inner)
		}

		if level > tocDepth {
			return m
		}

		counters[level]++
		for l := level + 1; l < len(counters); l++ {
			counters[l] = 0
		}
		id = ch.ID
		for l := 2; l <= level; l++ {
			id += fmt.Sprintf("-s%02d", counters[l])
		}
		if got := idAttrRe.FindStringSubmatch(attrs); got != nil {
			id = got[1]
		} else {
			attrs += fmt.Sprintf(` id="%s"`, id)
		}
		ch.Headings = append(ch.Headings, Heading{Title: StripTags(inner), ID: id, Level: level})
		return fmt.Sprintf("<h%d%s>%s</h%d>", level, attrs, inner, level)
	})

	return ch
}

// AssignManual maps user chapter-start patterns onto chunks. Every pattern
// claims the first still unclaimed chunk whose plain text matches it, first
// as a case-insensitive substring, then as a regular expression. A pattern
// with no match still yields its own placeholder chapter so the chapter count
// never drops below the declared pattern count. Chunks no pattern claimed
// follow in input order.
func AssignManual(chunks []string, patterns []string, tocDepth int, log *zap.Logger) []Chapter {
	claimed := make([]bool, len(chunks))
	chapters := make([]Chapter, 0, len(chunks)+len(patterns))

	for n, pattern := range patterns {
		idx := matchChunk(chunks, claimed, pattern)
		if idx < 0 {
			log.Warn("Chapter start pattern matched nothing, emitting placeholder chapter",
				zap.String("pattern", pattern), zap.Int("chapter", n+1))
			chapters = append(chapters, placeholderChapter(n+1))
			continue
		}
		claimed[idx] = true
		ch := AssignAuto(n+1, chunks[idx], tocDepth)
		ch.Title = pattern
		if len(ch.Headings) > 0 && ch.Headings[0].Level == 1 {
			ch.Headings[0].Title = pattern
		}
		chapters = append(chapters, ch)
	}

	next := len(patterns) + 1
	for idx, chunk := range chunks {
		if claimed[idx] {
			continue
		}
		chapters = append(chapters, AssignAuto(next, chunk, tocDepth))
		next++
	}
	return chapters
}

func matchChunk(chunks []string, claimed []bool, pattern string) int {
	lowered := strings.ToLower(pattern)
	for idx, chunk := range chunks {
		if claimed[idx] {
			continue
		}
		if strings.Contains(strings.ToLower(StripTags(chunk)), lowered) {
			return idx
		}
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return -1
	}
	for idx, chunk := range chunks {
		if claimed[idx] {
			continue
		}
		if re.MatchString(StripTags(chunk)) {
			return idx
		}
	}
	return -1
}

// placeholderChapter stands in for an unmatched pattern. It never reuses a
// chunk another pattern already claimed.
func placeholderChapter(n int) Chapter {
	id := fmt.Sprintf("ch%03d", n)
	title := fmt.Sprintf("Chapter %d", n)
	return Chapter{
		Index:    n,
		ID:       id,
		Title:    title,
		HTML:     fmt.Sprintf("<section>\n<h1 id=\"%s\">%s</h1>\n</section>", id, title),
		Headings: []Heading{{Title: title, ID: id, Level: 1}},
	}
}
