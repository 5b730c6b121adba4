package content

import (
	"html"
	"strings"

	"github.com/gosimple/slug"

	"d2e/docx"
	"d2e/stylemap"
)

// FormatRun converts a single run's text and formatting flags into inline
// HTML. Pure function of its inputs, wrapping order is fixed: bold, italic,
// underline, strike, super/subscript, small caps, then the run-style mapping
// outermost.
func FormatRun(text string, f docx.RunFormatting, styles *stylemap.Map) string {
	if text == "" {
		return ""
	}

	out := html.EscapeString(text)
	if f.Bold {
		out = "<strong>" + out + "</strong>"
	}
	if f.Italic {
		out = "<em>" + out + "</em>"
	}
	if f.Underline {
		out = "<u>" + out + "</u>"
	}
	if f.Strike {
		out = "<s>" + out + "</s>"
	}
	// mutually exclusive, superscript wins when both are claimed
	if f.Superscript {
		out = "<sup>" + out + "</sup>"
	} else if f.Subscript {
		out = "<sub>" + out + "</sub>"
	}
	if f.SmallCaps {
		out = `<span class="small-caps">` + out + `</span>`
	}
	return wrapRunStyle(out, f.StyleName, styles)
}

// wrapRunStyle applies the style-name derived mapping: an explicit style map
// entry wins, then the conventional name heuristics, then a generated
// span class for custom styles nothing knows about.
func wrapRunStyle(out, styleName string, styles *stylemap.Map) string {
	if styleName == "" {
		return out
	}

	if styles != nil {
		if tag, ok := styles.RunTag(styleName); ok {
			name, attrs := stylemap.SplitTagSpec(tag)
			return "<" + name + attrs + ">" + out + "</" + name + ">"
		}
		if _, ok := styles.Run[styleName]; ok {
			// mapped to nothing on purpose
			return out
		}
		if _, ok := styles.Character[styleName]; ok {
			return out
		}
	}

	lower := strings.ToLower(styleName)
	switch {
	case strings.Contains(lower, "code") || strings.Contains(lower, "mono"):
		return "<code>" + out + "</code>"
	case strings.Contains(lower, "emphasis") || strings.Contains(lower, "stress"):
		return "<em>" + out + "</em>"
	case strings.Contains(lower, "strong") || strings.Contains(lower, "intense"):
		return "<strong>" + out + "</strong>"
	case strings.Contains(lower, "normal") || strings.Contains(lower, "default"):
		return out
	}
	return `<span class="style-` + slug.Make(styleName) + `">` + out + `</span>`
}
