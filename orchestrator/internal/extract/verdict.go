// Package extract parses the structured parts of agent reports: the reviewer's
// verdict and issues, and the paper ids cited in a draft's References section.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// ErrVerdictParse is returned alongside a fail-safe REVISION_NEEDED report when the
// review has no recognizable verdict.
var ErrVerdictParse = errors.New("review verdict could not be parsed")

// Severity ranks a review issue.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
)

// Issue is one itemized reviewer finding.
type Issue struct {
	Severity    Severity `json:"severity"`
	Section     string   `json:"section,omitempty"`
	Description string   `json:"description"`
}

// VerdictReport is the parsed outcome of one review.
type VerdictReport struct {
	Verdict          trace.Verdict `json:"verdict"`
	Issues           []Issue       `json:"issues"`
	MissedReferences []string      `json:"missed_references,omitempty"`
	ParseFailed      bool          `json:"parse_failed,omitempty"`
}

var (
	verdictMarker = regexp.MustCompile(`(?i)verdict[*_ ]*:`)
	verdictToken  = regexp.MustCompile(`(?i)\b(REVISION_NEEDED|PASS)\b`)

	issueLine      = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(?:\*\*|__|\[)?\s*(CRITICAL|MAJOR|MINOR)(?:\*\*|__|\])?\s*(?:[:\-–—](?:\*\*|__)?)?\s*(.*)$`)
	sectionParen   = regexp.MustCompile(`^\(([^)]+)\)\s*[:\-–—]?\s*(.*)$`)
	sectionLabeled = regexp.MustCompile(`(?i)^section\s*:\s*([^;|–—]+?)\s*[;|–—]\s*(.*)$`)
	sectionBold    = regexp.MustCompile(`^\*\*([^*]+?)\*\*\s*[:\-–—]?\s*(.*)$`)

	missedTitle = regexp.MustCompile(`(?i)^(?:\d+[.)]?\s*)?(?:missed references|missing references|coverage gaps?)\b`)
)

// Verdict extracts the verdict, issues and missed references from a review. When no
// PASS or REVISION_NEEDED token follows a VERDICT: marker the report is
// REVISION_NEEDED with a synthetic critical issue, and ErrVerdictParse is returned
// with it.
func Verdict(text string) (VerdictReport, error) {
	report := VerdictReport{
		Issues:           parseIssues(text),
		MissedReferences: missedReferences(text),
	}

	if loc := verdictMarker.FindStringIndex(text); loc != nil {
		if m := verdictToken.FindStringSubmatch(text[loc[1]:]); m != nil {
			report.Verdict = trace.Verdict(strings.ToUpper(m[1]))
			return report, nil
		}
	}

	report.Verdict = trace.VerdictRevisionNeeded
	report.ParseFailed = true
	report.Issues = append([]Issue{{
		Severity:    SeverityCritical,
		Section:     "Verdict",
		Description: "review verdict could not be parsed; treating the report as needing revision",
	}}, report.Issues...)
	return report, ErrVerdictParse
}

func parseIssues(text string) []Issue {
	var issues []Issue
	for _, line := range strings.Split(text, "\n") {
		m := issueLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		issue := Issue{Severity: Severity(m[1])}
		rest := strings.TrimSpace(m[2])
		for _, re := range []*regexp.Regexp{sectionParen, sectionLabeled, sectionBold} {
			if sm := re.FindStringSubmatch(rest); sm != nil {
				issue.Section = strings.TrimSpace(sm[1])
				rest = strings.TrimSpace(sm[2])
				break
			}
		}
		issue.Description = rest
		if issue.Description == "" && issue.Section == "" {
			continue
		}
		issues = append(issues, issue)
	}
	return issues
}

func missedReferences(text string) []string {
	lines := strings.Split(text, "\n")
	var ids []string
	for _, sec := range sections(lines, missedTitle) {
		ids = appendUnique(ids, idsIn(lines[sec.start:sec.end])...)
	}
	return ids
}

// Feedback renders the review as revision instructions: the itemized issues and
// missed references when there are any, otherwise the review text itself.
func Feedback(report VerdictReport, reviewText string) string {
	var issues []Issue
	for _, is := range report.Issues {
		if report.ParseFailed && is.Section == "Verdict" {
			continue
		}
		issues = append(issues, is)
	}
	if len(issues) == 0 && len(report.MissedReferences) == 0 {
		return strings.TrimSpace(reviewText)
	}

	var b strings.Builder
	for _, is := range issues {
		if is.Section != "" {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", is.Severity, is.Section, is.Description)
		} else {
			fmt.Fprintf(&b, "- [%s] %s\n", is.Severity, is.Description)
		}
	}
	if len(report.MissedReferences) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Relevant papers missing from the review (paper_id): %s\n", strings.Join(report.MissedReferences, ", "))
	}
	return strings.TrimSpace(b.String())
}
