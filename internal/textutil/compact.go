// Package textutil holds the pure text transforms applied to extracted page
// text: export artifact cleanup, line compaction, and direction detection.
package textutil

import (
	"strings"
	"unicode/utf8"
)

const (
	// wrapThreshold approximates the column at which a rendered line wraps.
	// Measured in characters, not bytes: Arabic text is two bytes per rune.
	wrapThreshold = 80
	// lineCap is the effective line count a compacted page must fit in.
	lineCap = 40
)

// EffectiveLineCount is the actual line count plus one for every line long
// enough to visually wrap, approximating rendered height.
func EffectiveLineCount(lines []string) int {
	count := len(lines)
	for _, l := range lines {
		if utf8.RuneCountInString(l) > wrapThreshold {
			count++
		}
	}
	return count
}

// Compact densifies text until its effective line count fits the cap.
// While over the cap and more than one line remains, the adjacent pair with
// the smallest combined character count is merged with a single space. Lossy
// but deterministic; idempotent once under the cap.
func Compact(text string) string {
	lines := strings.Split(text, "\n")
	for EffectiveLineCount(lines) > lineCap && len(lines) > 1 {
		best := 0
		bestLen := utf8.RuneCountInString(lines[0]) + utf8.RuneCountInString(lines[1])
		for i := 1; i < len(lines)-1; i++ {
			l := utf8.RuneCountInString(lines[i]) + utf8.RuneCountInString(lines[i+1])
			if l < bestLen {
				best = i
				bestLen = l
			}
		}
		merged := lines[best] + " " + lines[best+1]
		lines = append(lines[:best], append([]string{merged}, lines[best+2:]...)...)
	}
	return strings.Join(lines, "\n")
}
