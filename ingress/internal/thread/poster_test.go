package thread

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aaryan126/Research-Agent/ingress/internal/protocol"
	"github.com/Aaryan126/Research-Agent/internal/stream"
	"github.com/Aaryan126/Research-Agent/internal/trace"
)

type fakeHub struct {
	subscribed bool
	published  []map[string]interface{}
}

func (h *fakeHub) PublishJSON(channel string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	h.published = append(h.published, m)
	return nil
}

func (h *fakeHub) HasSubscribers(string) bool {
	return h.subscribed
}

func TestPosterPublishesPostsAndUpdates(t *testing.T) {
	h := &fakeHub{subscribed: true}
	p := NewPoster(h, "ch_1", "req_1")

	id, err := p.Post(context.Background(), "ch_1", "hello")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "msg_"))
	require.NoError(t, p.Update(context.Background(), id, "edited"))

	require.Len(t, h.published, 2)
	assert.Equal(t, protocol.TypeThreadPost, h.published[0]["type"])
	assert.Equal(t, id, h.published[0]["message_id"])
	assert.Equal(t, "ch_1", h.published[0]["thread_id"])
	assert.Equal(t, "req_1", h.published[0]["request_id"])
	assert.Equal(t, protocol.TypeThreadUpdate, h.published[1]["type"])
	assert.Equal(t, id, h.published[1]["message_id"])
	assert.Equal(t, "edited", h.published[1]["text"])
}

func TestPosterWithoutSubscribers(t *testing.T) {
	p := NewPoster(&fakeHub{}, "ch_1", "req_1")

	_, err := p.Post(context.Background(), "ch_1", "hello")
	assert.ErrorIs(t, err, ErrNoSubscribers)
	assert.ErrorIs(t, p.Update(context.Background(), "msg_1", "x"), ErrNoSubscribers)
}

func TestPosterDrivesThreadAdapter(t *testing.T) {
	h := &fakeHub{subscribed: true}
	a := stream.NewThreadAdapter(NewPoster(h, "ch_1", "req_1"), stream.ThreadOptions{Channel: "ch_1", Subject: "rag"})
	require.NoError(t, a.Open(context.Background()))

	review := "VERDICT: PASS"
	require.NoError(t, a.Emit(context.Background(), trace.Untagged(trace.Result{Report: "the report", Review: &review, IterationInfo: "Iteration 1 (verdict: PASS)"})))
	require.NoError(t, a.Emit(context.Background(), trace.Untagged(trace.Done{})))

	var report map[string]interface{}
	for _, m := range h.published {
		if m["type"] == protocol.TypeThreadPost && m["text"] == "the report" {
			report = m
		}
	}
	require.NotNil(t, report)
	assert.Equal(t, a.ThreadID(), report["thread_id"])
	assert.Equal(t, trace.StatusComplete, a.State().Status)
}
