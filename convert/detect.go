// Package convert orchestrates the conversion pipeline: input detection and
// loading, stream splitting, chapter assignment, figure numbering and output
// generation.
package convert

import (
	"path/filepath"
	"strings"

	"d2e/config"
)

// isSupportedSource reports whether the file extension names one of the
// supported input formats.
func isSupportedSource(path string) bool {
	_, err := config.InputFmtForExt(filepath.Ext(path))
	return err == nil
}

// isArchiveFile recognizes containers of batched sources. DOCX packages are
// zip archives too, they are excluded by extension first.
func isArchiveFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
