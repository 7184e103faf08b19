// Package domain defines the core domain models for the orchestrator.
package domain

// Mode selects the workflow a session runs.
type Mode string

const (
	// ModeResearch drafts a literature review and iterates with peer review.
	ModeResearch Mode = "research"
	// ModeDraft runs the drafting agent once with no review.
	ModeDraft Mode = "draft"
	// ModeVerify runs a single claim verification pass.
	ModeVerify Mode = "verify"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeResearch, ModeDraft, ModeVerify:
		return true
	}
	return false
}

// SessionStatus represents the status of a session.
type SessionStatus string

const (
	SessionStatusThinking  SessionStatus = "THINKING"
	SessionStatusStreaming SessionStatus = "STREAMING"
	SessionStatusComplete  SessionStatus = "COMPLETE"
	SessionStatusError     SessionStatus = "ERROR"
	SessionStatusCancelled SessionStatus = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s SessionStatus) Terminal() bool {
	switch s {
	case SessionStatusComplete, SessionStatusError, SessionStatusCancelled:
		return true
	}
	return false
}
