package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned by Decode for event names outside the taxonomy.
// Consumers drop such events.
var ErrUnknownEvent = errors.New("unknown trace event")

type tag struct {
	Agent     string `json:"agent,omitempty"`
	Iteration int    `json:"iteration,omitempty"`
}

// MarshalData renders the wire data of the event: the payload fields plus the
// agent/iteration tag when set.
func (e Event) MarshalData() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("%s event has no payload", e.Type)
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Type, err)
	}
	if e.Agent == "" && e.Iteration == 0 {
		return body, nil
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("failed to tag %s payload: %w", e.Type, err)
	}
	if e.Agent != "" {
		fields["agent"], _ = json.Marshal(e.Agent)
	}
	if e.Iteration > 0 {
		fields["iteration"], _ = json.Marshal(e.Iteration)
	}
	return json.Marshal(fields)
}

// Decode parses a wire event back into the taxonomy.
func Decode(name string, data []byte) (Event, error) {
	var (
		p   Payload
		err error
	)
	t := EventType(name)
	switch t {
	case EventAgentStart:
		p, err = decodeAs[AgentStart](data)
	case EventReasoning:
		p, err = decodeAs[Reasoning](data)
	case EventToolCall:
		p, err = decodeAs[ToolCall](data)
	case EventToolResult:
		p, err = decodeAs[ToolResult](data)
	case EventToolProgress:
		p, err = decodeAs[ToolProgress](data)
	case EventMessageChunk:
		p, err = decodeAs[MessageChunk](data)
	case EventAgentEnd:
		p, err = decodeAs[AgentEnd](data)
	case EventVerdict:
		p, err = decodeAs[VerdictEvent](data)
	case EventResult:
		p, err = decodeAs[Result](data)
	case EventError:
		p, err = decodeAs[Error](data)
	case EventDone:
		p, err = decodeAs[Done](data)
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
	if err != nil {
		return Event{}, fmt.Errorf("failed to decode %s event: %w", name, err)
	}

	var tg tag
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &tg); err != nil {
			return Event{}, fmt.Errorf("failed to decode %s tag: %w", name, err)
		}
	}

	return Event{Type: t, Agent: tg.Agent, Iteration: tg.Iteration, Payload: p}, nil
}

func decodeAs[T Payload](data []byte) (Payload, error) {
	var v T
	if len(bytes.TrimSpace(data)) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

type envelope struct {
	Seq  int64           `json:"seq,omitempty"`
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON renders the event as {"seq", "type", "data"} for JSON APIs.
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := e.MarshalData()
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Seq: e.Seq, Type: e.Type, Data: data})
}

// UnmarshalJSON implements json.Unmarshaler for the envelope form.
func (e *Event) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	decoded, err := Decode(string(env.Type), env.Data)
	if err != nil {
		return err
	}
	decoded.Seq = env.Seq
	*e = decoded
	return nil
}
