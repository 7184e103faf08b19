package stream

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aaryan126/Research-Agent/internal/sse"
	"github.com/Aaryan126/Research-Agent/internal/trace"
)

var draft1 = trace.Key{Agent: "Research Agent", Iteration: 1}

func sampleStream() []trace.Event {
	review := "VERDICT: PASS"
	events := []trace.Event{
		trace.New(draft1, trace.AgentStart{AgentID: "research_literature_review_agent"}),
		trace.New(draft1, trace.Reasoning{Text: "planning"}),
		trace.New(draft1, trace.ToolCall{ToolID: "search_papers", Params: trace.Params{{Key: "query", Value: []byte(`"rag"`)}}}),
		trace.New(draft1, trace.MessageChunk{Text: "report"}),
		trace.New(draft1, trace.AgentEnd{}),
		trace.New(trace.Key{Iteration: 1}, trace.VerdictEvent{Verdict: trace.VerdictPass}),
		trace.Untagged(trace.Result{Report: "report", Review: &review, IterationInfo: "Iteration 1 (verdict: PASS)", Iterations: []string{"report"}}),
		trace.Untagged(trace.Done{}),
	}
	for i := range events {
		events[i].Seq = int64(i + 1)
	}
	return events
}

func emitAll(t *testing.T, sink Sink, events []trace.Event) {
	t.Helper()
	for _, e := range events {
		require.NoError(t, sink.Emit(context.Background(), e))
	}
}

func TestSSERoundTripPreservesStream(t *testing.T) {
	var buf bytes.Buffer
	events := sampleStream()
	emitAll(t, NewSSESink(sse.NewWriter(&buf)), events)

	var got []trace.Event
	err := Consume(context.Background(), func(h sse.Handler) error {
		return sse.Parse(&buf, h)
	}, SinkFunc(func(_ context.Context, e trace.Event) error {
		got = append(got, e)
		return nil
	}))
	require.NoError(t, err)
	assert.Equal(t, events, got)
	assert.Equal(t, trace.Fold(events), trace.Fold(got))
}

func TestConsumeDropsUnknownFramesAndStopsAtDone(t *testing.T) {
	input := "event: conversation_created\ndata: {}\n\n" +
		"id: 1\nevent: reasoning\ndata: {\"text\":\"hi\",\"agent\":\"Research Agent\",\"iteration\":1}\n\n" +
		"id: 2\nevent: done\ndata: {}\n\n" +
		"id: 3\nevent: reasoning\ndata: {\"text\":\"late\"}\n\n"

	var got []trace.Event
	err := Consume(context.Background(), func(h sse.Handler) error {
		return sse.Parse(strings.NewReader(input), h)
	}, SinkFunc(func(_ context.Context, e trace.Event) error {
		got = append(got, e)
		return nil
	}))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].Seq)
	assert.Equal(t, draft1, got[0].Key())
	assert.Equal(t, trace.EventDone, got[1].Type)
}

func TestSSESinkStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	err := NewSSESink(sse.NewWriter(&buf)).Emit(ctx, trace.Untagged(trace.Done{}))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, buf.String())
}

func TestTeeIgnoresObserverFailures(t *testing.T) {
	var primary []trace.Event
	tee := NewTee(
		SinkFunc(func(_ context.Context, e trace.Event) error {
			primary = append(primary, e)
			return nil
		}),
		SinkFunc(func(context.Context, trace.Event) error { return errors.New("disk full") }),
	)
	emitAll(t, tee, sampleStream())
	assert.Len(t, primary, len(sampleStream()))

	gone := errors.New("consumer gone")
	tee = NewTee(SinkFunc(func(context.Context, trace.Event) error { return gone }), Discard)
	assert.ErrorIs(t, tee.Emit(context.Background(), trace.Untagged(trace.Done{})), gone)
}

func TestCollectorKeepsOnlyOutcome(t *testing.T) {
	c := NewCollector()
	emitAll(t, c, sampleStream())

	res, err := c.Outcome()
	require.NoError(t, err)
	assert.Equal(t, "report", res.Report)
	assert.Equal(t, 8, c.Events())
}

func TestCollectorError(t *testing.T) {
	c := NewCollector()
	emitAll(t, c, []trace.Event{
		trace.New(draft1, trace.AgentStart{}),
		trace.Untagged(trace.Error{Message: "agent call timeout: Research Agent exceeded 10m0s (iteration 1)"}),
		trace.Untagged(trace.Done{}),
	})
	_, err := c.Outcome()
	var oe *OutcomeError
	require.ErrorAs(t, err, &oe)
	assert.Contains(t, oe.Message, "timeout")
}

func TestCollectorWithoutOutcome(t *testing.T) {
	c := NewCollector()
	_, err := c.Outcome()
	require.Error(t, err)
	assert.Equal(t, trace.ErrStreamEnded, err.Error())
}

func TestCollectTimesOut(t *testing.T) {
	_, err := Collect(context.Background(), 20*time.Millisecond, func(ctx context.Context, _ Sink) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, ErrCollectTimeout)
}

func TestCollectReturnsResult(t *testing.T) {
	res, err := Collect(context.Background(), time.Second, func(ctx context.Context, sink Sink) error {
		for _, e := range sampleStream() {
			if err := sink.Emit(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Iteration 1 (verdict: PASS)", res.IterationInfo)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 10))
	assert.Empty(t, SplitMessage("", 10))

	// paragraph boundary preferred
	parts := SplitMessage("aaaa\n\nbbbb\ncc", 10)
	assert.Equal(t, []string{"aaaa", "bbbb\ncc"}, parts)

	// line boundary when no paragraph fits
	parts = SplitMessage("aaaa\nbbbbbbbb", 10)
	assert.Equal(t, []string{"aaaa", "bbbbbbbb"}, parts)

	// hard cut
	parts = SplitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)
}

func TestSplitMessageCountsRunes(t *testing.T) {
	text := strings.Repeat("é", 12)
	parts := SplitMessage(text, 5)
	require.Len(t, parts, 3)
	assert.Equal(t, strings.Repeat("é", 5), parts[0])
	assert.Equal(t, text, strings.Join(parts, ""))
}

func TestSplitMessageKeepsEveryParagraph(t *testing.T) {
	var paras []string
	for i := 0; i < 40; i++ {
		paras = append(paras, strings.Repeat("p", 200))
	}
	text := strings.Join(paras, "\n\n")
	parts := SplitMessage(text, MessageLimit)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), MessageLimit)
	}
	assert.Equal(t, strings.ReplaceAll(text, "\n", ""), strings.ReplaceAll(strings.Join(parts, ""), "\n", ""))
}
