// Package util provides small string helpers shared by flake's packages.
package util

import "strings"

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
// It does not account for ANSI escape codes or wide characters.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return "..."
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}

// LastLines returns the final n lines of s. A trailing newline does not
// count as an extra empty line, and is preserved in the result.
func LastLines(s string, n int) string {
	if n <= 0 || s == "" {
		return ""
	}
	body := strings.TrimSuffix(s, "\n")
	suffix := s[len(body):]

	idx := len(body)
	for i := 0; i < n; i++ {
		idx = strings.LastIndexByte(body[:idx], '\n')
		if idx < 0 {
			return s
		}
	}
	return body[idx+1:] + suffix
}
