package agentclient

import (
	"encoding/json"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// Upstream frame kinds.
const (
	KindReasoning       = "reasoning"
	KindToolCall        = "tool_call"
	KindToolResult      = "tool_result"
	KindToolProgress    = "tool_progress"
	KindMessageChunk    = "message_chunk"
	KindMessageComplete = "message_complete"
	KindError           = "error"
)

type rawPayload struct {
	Reasoning      string          `json:"reasoning"`
	ToolID         string          `json:"tool_id"`
	ToolCallID     string          `json:"tool_call_id"`
	Params         json.RawMessage `json:"params"`
	Results        json.RawMessage `json:"results"`
	Message        string          `json:"message"`
	TextChunk      string          `json:"text_chunk"`
	MessageContent string          `json:"message_content"`
}

// decode reads the known fields of the frame. Fields of the wrong type are left
// empty rather than failing the whole frame.
func (e RawEvent) decode() rawPayload {
	var p rawPayload
	if err := json.Unmarshal(e.Data, &p); err == nil {
		return p
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(e.Data, &fields); err != nil {
		return p
	}
	str := func(key string) string {
		var s string
		_ = json.Unmarshal(fields[key], &s)
		return s
	}
	p.Reasoning = str("reasoning")
	p.ToolID = str("tool_id")
	p.ToolCallID = str("tool_call_id")
	p.Message = str("message")
	p.TextChunk = str("text_chunk")
	p.MessageContent = str("message_content")
	p.Params = fields["params"]
	p.Results = fields["results"]
	return p
}

// ErrorMessage returns the message of an upstream error frame.
func (e RawEvent) ErrorMessage() (string, bool) {
	if e.Kind != KindError {
		return "", false
	}
	msg := e.decode().Message
	if msg == "" {
		msg = "Agent error"
	}
	return msg, true
}

// CompletedMessage returns the full text of a message_complete frame.
func (e RawEvent) CompletedMessage() (string, bool) {
	if e.Kind != KindMessageComplete {
		return "", false
	}
	return e.decode().MessageContent, true
}

// Normalize maps an upstream frame onto the trace taxonomy, tagged with key. It
// reports false for lifecycle frames and kinds it does not know. Malformed payloads
// yield an event with empty fields.
func Normalize(raw RawEvent, key trace.Key) (trace.Event, bool) {
	var p trace.Payload
	switch raw.Kind {
	case KindReasoning:
		p = trace.Reasoning{Text: raw.decode().Reasoning}
	case KindToolCall:
		d := raw.decode()
		var params trace.Params
		if len(d.Params) > 0 {
			// Non-object params are dropped.
			_ = json.Unmarshal(d.Params, &params)
		}
		p = trace.ToolCall{ToolID: d.ToolID, ToolCallID: d.ToolCallID, Params: params}
	case KindToolResult:
		d := raw.decode()
		var results json.RawMessage
		if len(d.Results) > 0 && string(d.Results) != "null" && json.Valid(d.Results) {
			results = d.Results
		}
		p = trace.ToolResult{ToolID: d.ToolID, ToolCallID: d.ToolCallID, Results: results}
	case KindToolProgress:
		d := raw.decode()
		p = trace.ToolProgress{ToolCallID: d.ToolCallID, Message: d.Message}
	case KindMessageChunk:
		p = trace.MessageChunk{Text: raw.decode().TextChunk}
	default:
		return trace.Event{}, false
	}
	return trace.New(key, p), true
}
