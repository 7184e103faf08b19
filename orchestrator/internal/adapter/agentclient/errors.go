package agentclient

import "errors"

var (
	// ErrConnection covers transport failures and non-200 responses.
	ErrConnection = errors.New("agent service connection failed")
	// ErrTimeout is returned when a call exceeds its deadline.
	ErrTimeout = errors.New("agent call timeout")
	// ErrMalformedResponse is returned when the response is not a readable event stream.
	ErrMalformedResponse = errors.New("malformed agent response")
	// ErrAgentFailed is reported by callers when the agent emits an error frame.
	ErrAgentFailed = errors.New("agent reported an error")
	// ErrCancelled is returned when the caller's context was cancelled. It is not a
	// failure of the agent.
	ErrCancelled = errors.New("agent call cancelled")
)

// handlerError marks errors returned by the caller's handler so they pass through
// Call unchanged.
type handlerError struct {
	err error
}

func (e *handlerError) Error() string { return e.err.Error() }
func (e *handlerError) Unwrap() error { return e.err }
