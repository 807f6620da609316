/*
* Utility functions for formatting output.
 */
package format

import (
	"strconv"
	"unicode/utf8"
)

// Print string with max length, truncating with ellipsis.
func Abbrev(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}

	if max <= 1 {
		return "…"
	}

	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}

// Formats a count with thousands separators, e.g. 12,345.
func Number(n int) string {
	if n < 0 {
		return "-" + Number(-n)
	}

	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}

	lead := len(s) % 3
	if lead == 0 {
		lead = 3
	}

	out := s[:lead]
	for i := lead; i < len(s); i += 3 {
		out += "," + s[i:i+3]
	}

	return out
}
