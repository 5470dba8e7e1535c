// Package util contains small helpers without domain knowledge.
package util

import "strings"

// Trunc trims the input and truncates it to at most maxRunes runes.
// It is UTF8-safe, but does not care for HTML.
func Trunc(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	var runes = 0
	for i := range s {
		if runes == maxRunes {
			return strings.TrimSpace(s[:i]) // trim spaces again
		}
		runes++
	}
	return s
}
