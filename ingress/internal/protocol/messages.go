// Package protocol defines the WebSocket message protocol between clients and ingress.
package protocol

// Message types from client to ingress
const (
	TypeHello    = "hello"
	TypeResearch = "research"
	TypeCancel   = "cancel"
)

// Message types from ingress to client
const (
	TypeHelloAck     = "hello_ack"
	TypeThreadPost   = "thread_post"
	TypeThreadUpdate = "thread_update"
	TypeResearchDone = "research_done"
	TypeError        = "error"
)

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	// Channel is the connection's channel, assigned at hello.
	Channel string `json:"channel,omitempty"`
}

// HelloMessage is sent by client to establish connection.
type HelloMessage struct {
	BaseMessage
	APIKey     string            `json:"api_key,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckMessage is sent by ingress after successful hello.
type HelloAckMessage struct {
	BaseMessage
}

// ResearchMessage starts a research, draft or claim verification request.
type ResearchMessage struct {
	BaseMessage
	Mode  string `json:"mode,omitempty"`
	Input string `json:"input"`
}

// CancelMessage cancels the request with RequestID, or every request of the
// connection when RequestID is empty.
type CancelMessage struct {
	BaseMessage
}

// ThreadPostMessage creates a chat message. ThreadID equals the channel for
// top-level messages.
type ThreadPostMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
	Text      string `json:"text"`
}

// ThreadUpdateMessage replaces the text of a posted message.
type ThreadUpdateMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// ResearchDoneMessage is sent once a request's thread is final.
type ResearchDoneMessage struct {
	BaseMessage
	ThreadID string `json:"thread_id,omitempty"`
	// Status is COMPLETE, ERROR or CANCELLED.
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ErrorMessage is sent by ingress when an error occurs.
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeUnauthorized     = "unauthorized"
	ErrorCodeHelloRequired    = "hello_required"
	ErrorCodeUnknownRequest   = "unknown_request"
	ErrorCodeOrchestratorFail = "orchestrator_fail"
)

// Request statuses reported in research_done.
const (
	StatusComplete  = "COMPLETE"
	StatusError     = "ERROR"
	StatusCancelled = "CANCELLED"
)
