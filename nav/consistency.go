package nav

import (
	"strings"

	"go.uber.org/zap"
)

// CheckConsistency compares spine filenames with the files the top level ToC
// entries reference and returns a human readable warning per deviation. A
// deviation is reported, never fixed and never fatal.
func CheckConsistency(spine []SpineItem, toc []TOCEntry) []string {
	var spineFiles []string
	for _, item := range spine {
		if item.ID == "nav" {
			continue
		}
		spineFiles = append(spineFiles, item.Filename)
	}

	var tocFiles []string
	seen := map[string]bool{}
	for _, entry := range toc {
		file, _, _ := strings.Cut(entry.Href, "#")
		if file != "" && !seen[file] {
			seen[file] = true
			tocFiles = append(tocFiles, file)
		}
	}

	var warnings []string

	inToc := map[string]int{}
	for i, f := range tocFiles {
		inToc[f] = i
	}
	inSpine := map[string]int{}
	for i, f := range spineFiles {
		inSpine[f] = i
	}

	for _, f := range spineFiles {
		if _, ok := inToc[f]; !ok {
			warnings = append(warnings, "file is in the spine but not reachable from the table of contents: "+f)
		}
	}
	for _, f := range tocFiles {
		if _, ok := inSpine[f]; !ok {
			warnings = append(warnings, "table of contents references a file missing from the spine: "+f)
		}
	}

	// relative order of the shared files must agree
	prev := -1
	for _, f := range spineFiles {
		pos, ok := inToc[f]
		if !ok {
			continue
		}
		if pos < prev {
			warnings = append(warnings, "table of contents order differs from spine order at: "+f)
		}
		if pos > prev {
			prev = pos
		}
	}

	return warnings
}

// ReportConsistency logs the warnings. Quiet mode suppresses the output, the
// check itself always runs.
func ReportConsistency(warnings []string, quiet bool, log *zap.Logger) {
	if quiet {
		return
	}
	for _, w := range warnings {
		log.Warn("Navigation inconsistency", zap.String("problem", w))
	}
}
