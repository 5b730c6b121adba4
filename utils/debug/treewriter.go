// Package debug holds small helpers used to render intermediate pipeline
// state into the debug report.
package debug

import (
	"fmt"
	"strings"
)

// TreeWriter accumulates an indented text rendering of a tree, two spaces per
// level.
type TreeWriter struct {
	sb strings.Builder
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{}
}

// Line appends one formatted line at the given depth.
func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.sb.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(&tw.sb, format, args...)
	tw.sb.WriteByte('\n')
}

// String returns everything written so far.
func (tw *TreeWriter) String() string {
	return tw.sb.String()
}
