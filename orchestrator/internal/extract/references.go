package extract

import (
	"regexp"
	"strings"
)

var (
	markdownHeading = regexp.MustCompile(`^\s{0,3}#{1,6}\s+(.*?)\s*#*\s*$`)
	boldHeading     = regexp.MustCompile(`^\s*(?:\*\*|__)(.+?)(?:\*\*|__)\s*:?\s*$`)
	bareHeading     = regexp.MustCompile(`^\s*([A-Za-z][A-Za-z &/-]{0,48}):\s*$`)

	referencesTitle = regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?references?\b`)

	entryStart = regexp.MustCompile(`^\s*(?:\d+[.)]|\[\d+\]|[-*+])\s+`)
	paperID    = regexp.MustCompile("(?i)paper[_ ]?id[*_]*\\s*[:=]\\s*[*`\"']*\\s*([^\\s,;)\\]*`\"']+)")
)

type section struct {
	start, end int // line range of the body, heading excluded
}

// headingTitle returns the title of a heading line.
func headingTitle(line string) (string, bool) {
	for _, re := range []*regexp.Regexp{markdownHeading, boldHeading, bareHeading} {
		if m := re.FindStringSubmatch(line); m != nil {
			return strings.Trim(strings.TrimSpace(m[1]), "*_:"), true
		}
	}
	if strings.EqualFold(strings.TrimSpace(line), "references") {
		return "References", true
	}
	return "", false
}

// sections returns the body of every heading whose title matches, in order. A body
// runs until the next heading of any kind.
func sections(lines []string, title *regexp.Regexp) []section {
	var out []section
	open := -1
	for i, line := range lines {
		t, ok := headingTitle(line)
		if !ok {
			continue
		}
		if open >= 0 {
			out = append(out, section{start: open, end: i})
			open = -1
		}
		if title.MatchString(t) {
			open = i + 1
		}
	}
	if open >= 0 {
		out = append(out, section{start: open, end: len(lines)})
	}
	return out
}

// ReferenceIDs returns the paper ids cited in the last References section of a
// draft, in order of first appearance. Entries without a paper id are skipped.
func ReferenceIDs(text string) []string {
	lines := strings.Split(text, "\n")
	secs := sections(lines, referencesTitle)
	if len(secs) == 0 {
		return nil
	}
	last := secs[len(secs)-1]
	return idsIn(lines[last.start:last.end])
}

// idsIn groups lines into entries and takes the first paper id of each.
func idsIn(lines []string) []string {
	var (
		entries []string
		current strings.Builder
		inEntry bool
	)
	flush := func() {
		if inEntry {
			entries = append(entries, current.String())
		}
		current.Reset()
		inEntry = false
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if entryStart.MatchString(line) || !inEntry {
			flush()
			inEntry = true
		} else {
			current.WriteString(" ")
		}
		current.WriteString(strings.TrimSpace(line))
	}
	flush()

	var ids []string
	for _, entry := range entries {
		m := paperID.FindStringSubmatch(entry)
		if m == nil {
			continue
		}
		if id := strings.TrimRight(m[1], "."); id != "" {
			ids = appendUnique(ids, id)
		}
	}
	return ids
}

func appendUnique(ids []string, more ...string) []string {
	for _, id := range more {
		seen := false
		for _, have := range ids {
			if have == id {
				seen = true
				break
			}
		}
		if !seen {
			ids = append(ids, id)
		}
	}
	return ids
}
