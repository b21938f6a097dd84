// Package strings holds small text helpers for terminal output.
package strings

import "strings"

// minOneLineLen leaves room for one character and the ellipsis.
const minOneLineLen = 4

// OneLine collapses all whitespace runs in s to single spaces and cuts the
// result to at most maxLen runes, marking a cut with "...".
func OneLine(s string, maxLen int) string {
	maxLen = max(maxLen, minOneLineLen)
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
