package agentclient

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

var reviewKey = trace.Key{Agent: "Peer Review Agent", Iteration: 2}

func raw(kind, data string) RawEvent {
	return RawEvent{Kind: kind, Data: json.RawMessage(data)}
}

func TestNormalizeKnownKinds(t *testing.T) {
	tests := []struct {
		name string
		in   RawEvent
		want trace.Payload
	}{
		{"reasoning", raw("reasoning", `{"reasoning":"checking refs"}`), trace.Reasoning{Text: "checking refs"}},
		{"tool call", raw("tool_call", `{"tool_id":"search","tool_call_id":"t1","params":{"q":"rag","k":5}}`), trace.ToolCall{
			ToolID: "search", ToolCallID: "t1",
			Params: trace.Params{{Key: "q", Value: json.RawMessage(`"rag"`)}, {Key: "k", Value: json.RawMessage(`5`)}},
		}},
		{"tool result", raw("tool_result", `{"tool_id":"search","tool_call_id":"t1","results":[{"paper_id":"p1"}]}`), trace.ToolResult{
			ToolID: "search", ToolCallID: "t1", Results: json.RawMessage(`[{"paper_id":"p1"}]`),
		}},
		{"tool progress", raw("tool_progress", `{"tool_call_id":"t1","message":"querying"}`), trace.ToolProgress{ToolCallID: "t1", Message: "querying"}},
		{"message chunk", raw("message_chunk", `{"text_chunk":"VERDICT: "}`), trace.MessageChunk{Text: "VERDICT: "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := Normalize(tt.in, reviewKey)
			require.True(t, ok)
			assert.Equal(t, reviewKey, e.Key())
			assert.Equal(t, tt.want, e.Payload)
		})
	}
}

func TestNormalizeDropsLifecycleAndUnknownKinds(t *testing.T) {
	for _, kind := range []string{"conversation_id_set", "conversation_created", "thinking_complete", "round_complete", "message_complete", "error", "brand_new_kind"} {
		_, ok := Normalize(raw(kind, `{}`), reviewKey)
		assert.False(t, ok, kind)
	}
}

func TestNormalizeMalformedPayloads(t *testing.T) {
	e, ok := Normalize(raw("reasoning", `{"raw":"garbled"}`), reviewKey)
	require.True(t, ok)
	assert.Equal(t, trace.Reasoning{}, e.Payload)

	e, ok = Normalize(raw("tool_call", `{"tool_id":42,"params":[1,2]}`), reviewKey)
	require.True(t, ok)
	assert.Equal(t, trace.ToolCall{}, e.Payload)

	e, ok = Normalize(raw("message_chunk", `"just a string"`), reviewKey)
	require.True(t, ok)
	assert.Equal(t, trace.MessageChunk{}, e.Payload)

	e, ok = Normalize(raw("tool_result", `{"tool_id":"s","results":null}`), reviewKey)
	require.True(t, ok)
	assert.Equal(t, trace.ToolResult{ToolID: "s"}, e.Payload)
}

func TestRawEventHelpers(t *testing.T) {
	msg, ok := raw("error", `{"message":"quota exceeded"}`).ErrorMessage()
	assert.True(t, ok)
	assert.Equal(t, "quota exceeded", msg)

	msg, ok = raw("error", `{}`).ErrorMessage()
	assert.True(t, ok)
	assert.Equal(t, "Agent error", msg)

	_, ok = raw("reasoning", `{}`).ErrorMessage()
	assert.False(t, ok)

	text, ok := raw("message_complete", `{"message_content":"full text"}`).CompletedMessage()
	assert.True(t, ok)
	assert.Equal(t, "full text", text)
}
