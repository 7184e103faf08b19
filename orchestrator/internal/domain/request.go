package domain

import "github.com/Aaryan126/Research-Agent/internal/trace"

// ResearchRequest starts a session.
type ResearchRequest struct {
	Mode  Mode   `json:"mode"`
	Input string `json:"input"`
	// Topic is accepted as an alias of Input.
	Topic string `json:"topic,omitempty"`
	// Claim is accepted as an alias of Input for verify requests.
	Claim string `json:"claim,omitempty"`
}

// Normalize folds the aliases into Mode and Input. An empty mode defaults to
// research, or to verify when only a claim was given.
func (r ResearchRequest) Normalize() ResearchRequest {
	out := ResearchRequest{Mode: r.Mode, Input: r.Input}
	if out.Input == "" {
		out.Input = r.Topic
	}
	if out.Input == "" && r.Claim != "" {
		out.Input = r.Claim
		if out.Mode == "" {
			out.Mode = ModeVerify
		}
	}
	if out.Mode == "" {
		out.Mode = ModeResearch
	}
	return out
}

// SessionResponse is returned by the synchronous run endpoint.
type SessionResponse struct {
	SessionID string        `json:"session_id"`
	Status    SessionStatus `json:"status"`
	Result    *trace.Result `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}
