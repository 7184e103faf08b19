package stream

import (
	"strings"
	"unicode/utf8"
)

// MessageLimit is the longest chat message the thread adapter posts, in characters.
const MessageLimit = 3900

// SplitMessage splits text into parts of at most limit characters, preferring
// paragraph boundaries, then line boundaries, then a hard cut.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = MessageLimit
	}
	var parts []string
	remaining := text
	for remaining != "" {
		if utf8.RuneCountInString(remaining) <= limit {
			parts = append(parts, remaining)
			break
		}
		window := remaining[:prefixLen(remaining, limit)]

		cut := strings.LastIndex(window, "\n\n")
		if cut <= 0 {
			cut = strings.LastIndex(window, "\n")
		}
		if cut <= 0 {
			cut = len(window)
		}
		parts = append(parts, remaining[:cut])
		remaining = strings.TrimLeft(remaining[cut:], "\n")
	}
	return parts
}

// prefixLen returns the byte length of the first n runes of s.
func prefixLen(s string, n int) int {
	i := 0
	for pos := range s {
		if i == n {
			return pos
		}
		i++
	}
	return len(s)
}
