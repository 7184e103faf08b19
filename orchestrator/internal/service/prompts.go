package service

import (
	"fmt"
	"strings"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// draftPrompt is the drafting agent's input: the topic alone on the first pass, the
// previous draft and the reviewer's feedback afterwards.
func draftPrompt(topic string, rev Revision, maxIterations int) string {
	if rev.Iteration <= 1 || rev.Draft == "" {
		return topic
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Research topic: %s\n\n", topic)
	fmt.Fprintf(&b, "You previously produced the following literature review:\n\n%s\n\n", rev.Draft)
	fmt.Fprintf(&b, "A peer reviewer evaluated this report and identified the following issues:\n\n%s\n\n", rev.Feedback)
	if rev.Iteration >= maxIterations {
		b.WriteString("This is the final revision opportunity. Please carefully address all remaining CRITICAL and MAJOR issues. ")
	} else {
		b.WriteString("Please revise the report to address all CRITICAL and MAJOR issues identified in the review. ")
	}
	b.WriteString("Produce a complete revised report in the same 6-section format. ")
	b.WriteString("Use your search tools to find correct evidence for any citation issues.")
	return b.String()
}

// reviewPrompt is the review agent's input for the draft of one iteration.
func reviewPrompt(draft string, iteration int, paperIDs []string) string {
	var heading string
	switch iteration {
	case 1:
		heading = "Review the following literature review report:"
	case 2:
		heading = "Review the following revised literature review report:"
	default:
		heading = "Review the following final revised literature review report:"
	}

	parts := []string{heading}
	if len(paperIDs) > 0 {
		quoted := make([]string, len(paperIDs))
		for i, id := range paperIDs {
			quoted[i] = fmt.Sprintf("%q", id)
		}
		parts = append(parts,
			"\nCITED PAPER IDS (extracted from References section):\n"+strings.Join(quoted, ", ")+
				"\nUse these paper_ids directly for your Step 2 batch verification query and Step 5 coverage gap analysis. Do not re-discover them through search.")
	}
	parts = append(parts, "\n"+draft)
	return strings.Join(parts, "\n")
}

// iterationInfo describes how a research session ended.
func iterationInfo(iteration int, verdict trace.Verdict, maxIterations int) string {
	switch {
	case verdict == trace.VerdictPass:
		return fmt.Sprintf("Iteration %d (verdict: PASS)", iteration)
	case iteration >= maxIterations:
		return fmt.Sprintf("Iteration %d (final revision)", iteration)
	default:
		return fmt.Sprintf("Iteration %d", iteration)
	}
}

const claimIterationInfo = "Claim verification (single pass)"

func researchOnlyInfo(iteration int) string {
	return fmt.Sprintf("Iteration %d (research only, no peer review)", iteration)
}
