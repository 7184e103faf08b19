package trace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	draft1  = Key{Agent: "Research Agent", Iteration: 1}
	review1 = Key{Agent: "Peer Review Agent", Iteration: 1}
)

func sequenced(events ...Event) []Event {
	for i := range events {
		events[i].Seq = int64(i + 1)
	}
	return events
}

func passingStream() []Event {
	review := "VERDICT: PASS"
	return sequenced(
		New(draft1, AgentStart{AgentID: "research_literature_review_agent"}),
		New(draft1, Reasoning{Text: "planning"}),
		New(draft1, MessageChunk{Text: "# Review\n"}),
		New(draft1, MessageChunk{Text: "body"}),
		New(draft1, AgentEnd{}),
		New(review1, AgentStart{AgentID: "peer_review_agent"}),
		New(review1, MessageChunk{Text: review}),
		New(review1, AgentEnd{}),
		New(Key{Iteration: 1}, VerdictEvent{Verdict: VerdictPass}),
		Untagged(Result{Report: "# Review\nbody", Review: &review, IterationInfo: "Iteration 1 (verdict: PASS)", Iterations: []string{"# Review\nbody"}}),
		Untagged(Done{}),
	)
}

func TestFoldPassingStream(t *testing.T) {
	s := Fold(passingStream())

	assert.Equal(t, StatusComplete, s.Status)
	assert.True(t, s.Done)
	assert.Nil(t, s.ActiveAgent)
	require.Len(t, s.Traces, 2)

	d, ok := s.Trace(draft1)
	require.True(t, ok)
	assert.Equal(t, "# Review\nbody", d.FinalMessage)
	assert.Equal(t, "research_literature_review_agent", d.AgentID)
	assert.False(t, d.Active)
	// agent_start, reasoning, agent_end; chunks are folded into FinalMessage
	assert.Len(t, d.Events, 3)

	require.Len(t, s.Verdicts, 1)
	assert.Equal(t, VerdictRecord{Verdict: VerdictPass, Iteration: 1}, s.Verdicts[0])
	require.NotNil(t, s.Result)
	assert.Equal(t, "Iteration 1 (verdict: PASS)", s.Result.IterationInfo)
}

func TestApplyDoesNotMutatePriorState(t *testing.T) {
	events := passingStream()
	var states []State
	s := NewState()
	for _, e := range events {
		s = Apply(s, e)
		states = append(states, s)
	}

	// state after the first chunk must not see the second one
	afterFirstChunk := states[2]
	d, ok := afterFirstChunk.Trace(draft1)
	require.True(t, ok)
	assert.Equal(t, "# Review\n", d.FinalMessage)
	assert.True(t, d.Active)
	assert.Len(t, d.Events, 2)
	assert.Equal(t, StatusStreaming, afterFirstChunk.Status)
}

func TestActiveAgentTracksSpan(t *testing.T) {
	m := NewModel()
	events := passingStream()

	s := m.Push(events[0])
	require.NotNil(t, s.ActiveAgent)
	assert.Equal(t, draft1, *s.ActiveAgent)

	for _, e := range events[1:5] {
		s = m.Push(e)
	}
	assert.Nil(t, s.ActiveAgent)

	s = m.Push(events[5])
	require.NotNil(t, s.ActiveAgent)
	assert.Equal(t, review1, *s.ActiveAgent)
}

func TestReplayIsIdempotent(t *testing.T) {
	events := passingStream()
	once := Fold(events)

	m := NewModel()
	for _, e := range events[:6] {
		m.Push(e)
	}
	// a reconnecting consumer receives the whole stream again
	for _, e := range events {
		m.Push(e)
	}

	assert.Equal(t, once, m.State())
}

func TestEventsWithoutAgentStartCreateTrace(t *testing.T) {
	s := Fold([]Event{
		New(review1, Reasoning{Text: "mid-stream attach"}),
		New(review1, MessageChunk{Text: "partial"}),
	})

	tr, ok := s.Trace(review1)
	require.True(t, ok)
	assert.Equal(t, "partial", tr.FinalMessage)
	assert.Len(t, tr.Events, 1)
	assert.False(t, tr.Active)
}

func TestUntaggedScopedEventAttachesToActiveAgent(t *testing.T) {
	s := Fold([]Event{
		New(draft1, AgentStart{}),
		Untagged(MessageChunk{Text: "orphan"}),
	})

	tr, ok := s.Trace(draft1)
	require.True(t, ok)
	assert.Equal(t, "orphan", tr.FinalMessage)
	assert.Len(t, s.Traces, 1)
}

func TestErrorThenDone(t *testing.T) {
	s := Fold(sequenced(
		New(draft1, AgentStart{}),
		New(draft1, Reasoning{Text: "working"}),
		Untagged(Error{Message: "agent call timeout: Research Agent exceeded 10m0s (iteration 1)"}),
		Untagged(Done{}),
	))

	assert.Equal(t, StatusError, s.Status)
	assert.Contains(t, s.Error, "timeout")
	assert.Nil(t, s.Result)

	tr, ok := s.Trace(draft1)
	require.True(t, ok)
	assert.False(t, tr.Active)
	assert.Len(t, tr.Events, 2)
}

func TestDoneWithoutOutcomeIsAnError(t *testing.T) {
	s := Fold([]Event{New(draft1, AgentStart{}), Untagged(Done{})})
	assert.Equal(t, StatusError, s.Status)
	assert.Equal(t, ErrStreamEnded, s.Error)
	assert.True(t, s.Done)
}

func TestEventsAfterDoneIgnored(t *testing.T) {
	s := Fold([]Event{
		Untagged(Error{Message: "boom"}),
		Untagged(Done{}),
		New(draft1, AgentStart{}),
		Untagged(Result{Report: "late"}),
	})

	assert.Empty(t, s.Traces)
	assert.Nil(t, s.Result)
	assert.Equal(t, "boom", s.Error)
}

func TestOnlyFirstTerminalOutcomeCounts(t *testing.T) {
	s := Fold([]Event{
		Untagged(Result{Report: "first"}),
		Untagged(Error{Message: "second"}),
	})
	require.NotNil(t, s.Result)
	assert.Equal(t, "first", s.Result.Report)
	assert.Empty(t, s.Error)
}

func TestTracesForAndLatestVerdict(t *testing.T) {
	draft2 := Key{Agent: "Research Agent", Iteration: 2}
	s := Fold([]Event{
		New(draft1, AgentStart{}),
		New(draft1, AgentEnd{}),
		New(Key{Iteration: 1}, VerdictEvent{Verdict: VerdictRevisionNeeded}),
		New(draft2, AgentStart{}),
		New(draft2, AgentEnd{}),
		New(Key{Iteration: 2}, VerdictEvent{Verdict: VerdictPass}),
	})

	assert.Len(t, s.TracesFor("Research Agent"), 2)
	v, ok := s.LatestVerdict()
	require.True(t, ok)
	assert.Equal(t, VerdictRecord{Verdict: VerdictPass, Iteration: 2}, v)
}
