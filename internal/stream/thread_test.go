package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

type message struct {
	id       string
	threadID string
	text     string
	edits    int
}

type fakePoster struct {
	messages  []*message
	failAfter int
}

func (p *fakePoster) Post(_ context.Context, threadID, text string) (string, error) {
	if p.failAfter > 0 && len(p.messages) >= p.failAfter {
		return "", errors.New("channel archived")
	}
	m := &message{id: fmt.Sprintf("m%d", len(p.messages)+1), threadID: threadID, text: text}
	p.messages = append(p.messages, m)
	return m.id, nil
}

func (p *fakePoster) Update(_ context.Context, id, text string) error {
	for _, m := range p.messages {
		if m.id == id {
			m.text = text
			m.edits++
			return nil
		}
	}
	return fmt.Errorf("message %s not found", id)
}

func openAdapter(t *testing.T, p *fakePoster, opts ThreadOptions) *ThreadAdapter {
	t.Helper()
	a := NewThreadAdapter(p, opts)
	require.NoError(t, a.Open(context.Background()))
	return a
}

func TestThreadAdapterPostsReport(t *testing.T) {
	p := &fakePoster{}
	a := openAdapter(t, p, ThreadOptions{Channel: "C1", Subject: "retrieval augmented generation"})
	emitAll(t, a, sampleStream())

	require.Len(t, p.messages, 3)
	parent, progress, report := p.messages[0], p.messages[1], p.messages[2]

	assert.Equal(t, "C1", parent.threadID)
	assert.Equal(t, "*Complete:* _retrieval augmented generation_\nIteration 1 (verdict: PASS)", parent.text)

	assert.Equal(t, parent.id, progress.threadID)
	assert.Equal(t, strings.Join([]string{
		"*Research Agent* started (iteration 1)",
		"_Research Agent is thinking..._",
		"Using tool `search_papers`",
		"_Research Agent is writing..._",
		"*Research Agent* finished (1 tool calls)",
		"*Verdict* (iteration 1): `PASS`",
		"*Complete:* Iteration 1 (verdict: PASS)",
	}, "\n"), progress.text)

	assert.Equal(t, parent.id, report.threadID)
	assert.Equal(t, "report", report.text)

	assert.Equal(t, trace.StatusComplete, a.State().Status)
	// done already finalized the thread
	require.NoError(t, a.Close(context.Background()))
	assert.Len(t, p.messages, 3)
}

func TestThreadAdapterCapsToolLines(t *testing.T) {
	p := &fakePoster{}
	a := openAdapter(t, p, ThreadOptions{Subject: "x", MaxToolLines: 2})

	emitAll(t, a, []trace.Event{trace.New(draft1, trace.AgentStart{})})
	for i := 0; i < 4; i++ {
		emitAll(t, a, []trace.Event{trace.New(draft1, trace.ToolCall{ToolID: fmt.Sprintf("tool_%d", i)})})
		emitAll(t, a, []trace.Event{trace.New(draft1, trace.Reasoning{Text: "more"})})
	}
	emitAll(t, a, []trace.Event{trace.New(draft1, trace.AgentEnd{})})

	progress := p.messages[1].text
	assert.Contains(t, progress, "tool_1")
	assert.NotContains(t, progress, "tool_2")
	assert.Equal(t, 1, strings.Count(progress, "_...more tool calls_"))
	assert.Equal(t, 1, strings.Count(progress, "is thinking"))
	assert.Contains(t, progress, "finished (4 tool calls)")
}

func TestThreadAdapterSplitsLongReport(t *testing.T) {
	p := &fakePoster{}
	a := openAdapter(t, p, ThreadOptions{Subject: "x", Limit: 50})

	report := strings.Repeat("a", 30) + "\n\n" + strings.Repeat("b", 30) + "\n\n" + strings.Repeat("c", 30)
	emitAll(t, a, []trace.Event{
		trace.Untagged(trace.Result{Report: report, IterationInfo: "Iteration 2 (final revision)"}),
		trace.Untagged(trace.Done{}),
	})

	require.Len(t, p.messages, 5)
	assert.Equal(t, strings.Repeat("a", 30), p.messages[2].text)
	assert.Equal(t, strings.Repeat("b", 30), p.messages[3].text)
	assert.Equal(t, strings.Repeat("c", 30), p.messages[4].text)
}

func TestThreadAdapterReportsError(t *testing.T) {
	p := &fakePoster{}
	a := openAdapter(t, p, ThreadOptions{Subject: "x"})
	emitAll(t, a, []trace.Event{
		trace.New(draft1, trace.AgentStart{}),
		trace.Untagged(trace.Error{Message: "agent call timeout: Research Agent exceeded 10m0s (iteration 1)"}),
		trace.Untagged(trace.Done{}),
	})

	require.Len(t, p.messages, 2)
	assert.Equal(t, "*Failed:* _x_\nagent call timeout: Research Agent exceeded 10m0s (iteration 1)", p.messages[0].text)
	assert.Equal(t, 1, strings.Count(p.messages[1].text, "*Error:*"))
}

func TestThreadAdapterCloseWithoutDone(t *testing.T) {
	p := &fakePoster{}
	a := openAdapter(t, p, ThreadOptions{Subject: "x"})
	emitAll(t, a, []trace.Event{trace.New(draft1, trace.AgentStart{})})

	require.NoError(t, a.Close(context.Background()))
	assert.Contains(t, p.messages[1].text, "*Error:* "+trace.ErrStreamEnded)
	assert.Contains(t, p.messages[0].text, "*Failed:*")
	assert.Equal(t, trace.StatusError, a.State().Status)
}

func TestThreadAdapterSkipsReplayedEvents(t *testing.T) {
	p := &fakePoster{}
	a := openAdapter(t, p, ThreadOptions{Subject: "x"})
	events := sampleStream()
	emitAll(t, a, events[:3])
	edits := p.messages[1].edits
	emitAll(t, a, events[:3])
	assert.Equal(t, edits, p.messages[1].edits)
}

func TestThreadAdapterPosterFailureStopsStream(t *testing.T) {
	p := &fakePoster{failAfter: 2}
	a := openAdapter(t, p, ThreadOptions{Subject: "x"})
	err := a.Emit(context.Background(), trace.Untagged(trace.Result{Report: "r"}))
	require.NoError(t, err)
	err = a.Emit(context.Background(), trace.Untagged(trace.Done{}))
	assert.Error(t, err)
}
