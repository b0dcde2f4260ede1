package textutil

import (
	"regexp"
	"strings"
)

var (
	// markerLine matches document-boundary artifacts the conversion service
	// injects into exported text: lines that are nothing but underscores.
	markerLine = regexp.MustCompile(`(?m)^[ \t]*_{3,}[ \t]*$`)
	// blankRuns matches runs of three or more blank lines (four or more
	// consecutive newlines). Shorter runs are kept as-is.
	blankRuns = regexp.MustCompile(`\n{4,}`)
)

// CleanExport normalizes text returned by the remote conversion service:
// strips a leading byte-order mark and underscore marker lines, collapses
// runs of three or more blank lines down to a single blank line, and trims
// the result.
func CleanExport(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = markerLine.ReplaceAllString(s, "")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
