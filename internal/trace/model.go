package trace

import "slices"

// Status is the consumer-visible state of a session.
type Status string

const (
	StatusThinking  Status = "THINKING"
	StatusStreaming Status = "STREAMING"
	StatusComplete  Status = "COMPLETE"
	StatusError     Status = "ERROR"
)

// ErrStreamEnded is the error recorded when done arrives without a result or error.
const ErrStreamEnded = "stream ended unexpectedly"

// AgentTrace is the reconstructed timeline of one agent call.
type AgentTrace struct {
	Key
	AgentID string `json:"agent_id,omitempty"`
	// Events holds every event of the call except message chunks, in order.
	Events       []Event `json:"events"`
	FinalMessage string  `json:"final_message"`
	Active       bool    `json:"is_active"`
}

// VerdictRecord is one completed review step.
type VerdictRecord struct {
	Verdict   Verdict `json:"verdict"`
	Iteration int     `json:"iteration"`
}

// State is the folded view of a session's event stream. A State is never mutated by
// Apply; callers may keep old states around.
type State struct {
	Traces      []AgentTrace    `json:"traces"`
	Verdicts    []VerdictRecord `json:"verdicts"`
	ActiveAgent *Key            `json:"active_agent,omitempty"`
	Result      *Result         `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	Status      Status          `json:"status"`
	Done        bool            `json:"done"`
	LastSeq     int64           `json:"last_seq"`
}

// NewState returns the state of a session that has not received any event yet.
func NewState() State {
	return State{Status: StatusThinking}
}

// Apply folds e into s and returns the next state.
func Apply(s State, e Event) State {
	if s.Status == "" {
		s.Status = StatusThinking
	}
	if s.Done {
		return s
	}
	if e.Seq != 0 {
		if e.Seq <= s.LastSeq {
			return s
		}
		s.LastSeq = e.Seq
	}

	switch e.Type {
	case EventResult:
		if s.Result == nil && s.Error == "" {
			if r, ok := e.Payload.(Result); ok {
				s.Result = &r
				s.Status = StatusComplete
			}
		}
		return settle(s)

	case EventError:
		if s.Result == nil && s.Error == "" {
			msg := "unknown error"
			if p, ok := e.Payload.(Error); ok && p.Message != "" {
				msg = p.Message
			}
			s.Error = msg
			s.Status = StatusError
		}
		return settle(s)

	case EventDone:
		if s.Result == nil && s.Error == "" {
			s.Error = ErrStreamEnded
			s.Status = StatusError
		}
		s.Done = true
		return settle(s)

	case EventVerdict:
		if p, ok := e.Payload.(VerdictEvent); ok {
			s.Verdicts = append(slices.Clip(s.Verdicts), VerdictRecord{Verdict: p.Verdict, Iteration: e.Iteration})
		}
		s.Status = streaming(s.Status)
		return s
	}

	if !e.Scoped() {
		return s
	}

	key := e.Key()
	if key.Agent == "" && s.ActiveAgent != nil {
		key = *s.ActiveAgent
	}

	s.Traces = slices.Clone(s.Traces)
	i := slices.IndexFunc(s.Traces, func(t AgentTrace) bool { return t.Key == key })
	if i < 0 {
		s.Traces = append(s.Traces, AgentTrace{Key: key})
		i = len(s.Traces) - 1
	}
	t := s.Traces[i]

	switch e.Type {
	case EventMessageChunk:
		if p, ok := e.Payload.(MessageChunk); ok {
			t.FinalMessage += p.Text
		}
	case EventAgentStart:
		if p, ok := e.Payload.(AgentStart); ok && p.AgentID != "" {
			t.AgentID = p.AgentID
		}
		t.Active = true
		t.Events = append(slices.Clip(t.Events), e)
		k := key
		s.ActiveAgent = &k
	case EventAgentEnd:
		t.Active = false
		t.Events = append(slices.Clip(t.Events), e)
		if s.ActiveAgent != nil && *s.ActiveAgent == key {
			s.ActiveAgent = nil
		}
	default:
		t.Events = append(slices.Clip(t.Events), e)
	}

	s.Traces[i] = t
	s.Status = streaming(s.Status)
	return s
}

// Fold applies events in order to an empty state.
func Fold(events []Event) State {
	s := NewState()
	for _, e := range events {
		s = Apply(s, e)
	}
	return s
}

func streaming(st Status) Status {
	if st == StatusThinking {
		return StatusStreaming
	}
	return st
}

// settle deactivates every trace once the session has a terminal outcome.
func settle(s State) State {
	s.ActiveAgent = nil
	if !slices.ContainsFunc(s.Traces, func(t AgentTrace) bool { return t.Active }) {
		return s
	}
	s.Traces = slices.Clone(s.Traces)
	for i := range s.Traces {
		s.Traces[i].Active = false
	}
	return s
}

// Trace returns the trace for key.
func (s State) Trace(key Key) (AgentTrace, bool) {
	i := slices.IndexFunc(s.Traces, func(t AgentTrace) bool { return t.Key == key })
	if i < 0 {
		return AgentTrace{}, false
	}
	return s.Traces[i], true
}

// TracesFor returns every trace of agent, in iteration order of appearance.
func (s State) TracesFor(agent string) []AgentTrace {
	var out []AgentTrace
	for _, t := range s.Traces {
		if t.Agent == agent {
			out = append(out, t)
		}
	}
	return out
}

// LatestVerdict returns the most recent verdict record.
func (s State) LatestVerdict() (VerdictRecord, bool) {
	if len(s.Verdicts) == 0 {
		return VerdictRecord{}, false
	}
	return s.Verdicts[len(s.Verdicts)-1], true
}

// Terminal reports whether the session has a result or error.
func (s State) Terminal() bool {
	return s.Result != nil || s.Error != ""
}

// Model holds the evolving state of one consumer. It is not safe for concurrent use;
// each consumer owns its model.
type Model struct {
	state State
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{state: NewState()}
}

// Push folds one event into the model.
func (m *Model) Push(e Event) State {
	m.state = Apply(m.state, e)
	return m.state
}

// State returns the current state.
func (m *Model) State() State {
	return m.state
}
