// Package trace defines the streaming trace taxonomy shared by the orchestrator and
// every consumer, and the reconstruction model that folds an event stream into a
// per-agent view.
package trace

import (
	"encoding/json"
	"fmt"
)

// EventType is the wire name of a trace event.
type EventType string

const (
	EventAgentStart   EventType = "agent_start"
	EventReasoning    EventType = "reasoning"
	EventToolCall     EventType = "tool_call"
	EventToolResult   EventType = "tool_result"
	EventToolProgress EventType = "tool_progress"
	EventMessageChunk EventType = "message_chunk"
	EventAgentEnd     EventType = "agent_end"
	EventVerdict      EventType = "verdict"
	EventResult       EventType = "result"
	EventError        EventType = "error"
	EventDone         EventType = "done"
)

// Verdict is the review stage's gate.
type Verdict string

const (
	VerdictPass           Verdict = "PASS"
	VerdictRevisionNeeded Verdict = "REVISION_NEEDED"
)

// Key identifies one agent call inside a session.
type Key struct {
	Agent     string `json:"agent"`
	Iteration int    `json:"iteration"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%d", k.Agent, k.Iteration)
}

// Payload is implemented only by the event payload types in this package.
type Payload interface {
	eventType() EventType
}

// Event is one unit of the trace stream.
type Event struct {
	// Seq is assigned by the orchestrator per session, starting at 1.
	// Zero means unsequenced.
	Seq       int64
	Type      EventType
	Agent     string
	Iteration int
	Payload   Payload
}

// Key returns the (agent, iteration) tag of the event.
func (e Event) Key() Key {
	return Key{Agent: e.Agent, Iteration: e.Iteration}
}

// Scoped reports whether the event belongs to a single agent call.
func (e Event) Scoped() bool {
	switch e.Type {
	case EventAgentStart, EventReasoning, EventToolCall, EventToolResult,
		EventToolProgress, EventMessageChunk, EventAgentEnd:
		return true
	}
	return false
}

// Terminal reports whether the event ends a session's logical outcome.
func (e Event) Terminal() bool {
	return e.Type == EventResult || e.Type == EventError
}

// New builds an event for payload, tagged with key.
func New(key Key, p Payload) Event {
	return Event{
		Type:      p.eventType(),
		Agent:     key.Agent,
		Iteration: key.Iteration,
		Payload:   p,
	}
}

// Untagged builds an event with no agent tag.
func Untagged(p Payload) Event {
	return Event{Type: p.eventType(), Payload: p}
}

type AgentStart struct {
	AgentID string `json:"agent_id"`
}

type Reasoning struct {
	Text string `json:"text"`
}

type ToolCall struct {
	ToolID     string `json:"tool_id"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	Params     Params `json:"params"`
}

type ToolResult struct {
	ToolID     string          `json:"tool_id,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Results    json.RawMessage `json:"results,omitempty"`
}

type ToolProgress struct {
	ToolCallID string `json:"tool_call_id"`
	Message    string `json:"message"`
}

// MessageChunk is a fragment of an agent's final output. Fragments for one key are
// concatenated in arrival order.
type MessageChunk struct {
	Text string `json:"text"`
}

type AgentEnd struct{}

type VerdictEvent struct {
	Verdict Verdict `json:"verdict"`
}

// Result is the terminal payload of a successful session.
type Result struct {
	Report        string  `json:"report"`
	Review        *string `json:"review"`
	IterationInfo string  `json:"iteration_info"`
	// Iterations holds the raw report text of every drafting pass, in order.
	Iterations []string `json:"iterations"`
	Summary    []string `json:"summary,omitempty"`
}

type Error struct {
	Message string `json:"message"`
}

type Done struct{}

func (AgentStart) eventType() EventType   { return EventAgentStart }
func (Reasoning) eventType() EventType    { return EventReasoning }
func (ToolCall) eventType() EventType     { return EventToolCall }
func (ToolResult) eventType() EventType   { return EventToolResult }
func (ToolProgress) eventType() EventType { return EventToolProgress }
func (MessageChunk) eventType() EventType { return EventMessageChunk }
func (AgentEnd) eventType() EventType     { return EventAgentEnd }
func (VerdictEvent) eventType() EventType { return EventVerdict }
func (Result) eventType() EventType       { return EventResult }
func (Error) eventType() EventType        { return EventError }
func (Done) eventType() EventType         { return EventDone }
