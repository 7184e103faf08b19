package agentclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, frames ...string) (*httptest.Server, http.Header, *converseRequest) {
	t.Helper()
	var (
		gotHeaders = http.Header{}
		gotBody    converseRequest
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != conversePath {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		for k, v := range r.Header {
			gotHeaders[k] = v
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if err := json.Unmarshal(body, &gotBody); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range frames {
			fmt.Fprint(w, f)
			w.(http.Flusher).Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server, gotHeaders, &gotBody
}

func collect(t *testing.T, c *Client, req Request) ([]RawEvent, error) {
	t.Helper()
	var events []RawEvent
	err := c.Call(context.Background(), req, func(e RawEvent) error {
		events = append(events, e)
		return nil
	})
	return events, err
}

func TestCallStreamsFramesInOrder(t *testing.T) {
	server, gotHeaders, gotBody := sseServer(t,
		"event: conversation_id_set\ndata: {\"data\":{\"conversation_id\":\"c1\"}}\n\n",
		"event: reasoning\ndata: {\"data\":{\"reasoning\":\"searching\"}}\n\n",
		"event: message_chunk\ndata: {\"text_chunk\":\"hello\"}\n\n",
		"event: message_complete\ndata: not json\n\n",
	)

	client := NewClient(server.URL+"/", "secret")
	events, err := collect(t, client, Request{AgentID: "peer_review_agent", Input: "review this", Timeout: time.Second})
	require.NoError(t, err)

	assert.Equal(t, "review this", gotBody.Input)
	assert.Equal(t, "peer_review_agent", gotBody.AgentID)
	assert.Equal(t, "ApiKey secret", gotHeaders.Get("Authorization"))
	assert.Equal(t, "true", gotHeaders.Get("kbn-xsrf"))
	assert.Equal(t, "text/event-stream", gotHeaders.Get("Accept"))

	require.Len(t, events, 4)
	assert.Equal(t, "conversation_id_set", events[0].Kind)
	assert.JSONEq(t, `{"reasoning":"searching"}`, string(events[1].Data))
	assert.JSONEq(t, `{"text_chunk":"hello"}`, string(events[2].Data))
	assert.JSONEq(t, `{"raw":"not json"}`, string(events[3].Data))
}

func TestCallStartsNewConversation(t *testing.T) {
	var raw []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "text/event-stream")
	}))
	defer server.Close()

	_, err := collect(t, NewClient(server.URL, ""), Request{AgentID: "research_agent", Input: "rag", Timeout: time.Second})
	require.NoError(t, err)
	assert.JSONEq(t, `{"input":"rag","agent_id":"research_agent"}`, string(raw))
}

func TestCallNonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad api key", http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := collect(t, NewClient(server.URL, "k"), Request{AgentID: "a"})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestCallWrongContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer server.Close()

	_, err := collect(t, NewClient(server.URL, "k"), Request{AgentID: "a"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestCallUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := collect(t, NewClient(url, ""), Request{AgentID: "a"})
	assert.ErrorIs(t, err, ErrConnection)
}

func TestCallTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: reasoning\ndata: {\"reasoning\":\"thinking\"}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	events, err := collect(t, NewClient(server.URL, ""), Request{AgentID: "a", Timeout: 100 * time.Millisecond})
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, events, 1)
}

func TestCallCancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: reasoning\ndata: {}\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	err := NewClient(server.URL, "").Call(ctx, Request{AgentID: "a", Timeout: 5 * time.Second}, func(RawEvent) error {
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestCallHandlerErrorPassesThrough(t *testing.T) {
	server, _, _ := sseServer(t,
		"event: reasoning\ndata: {}\n\n",
		"event: reasoning\ndata: {}\n\n",
	)
	stop := errors.New("consumer gone")
	calls := 0
	err := NewClient(server.URL, "").Call(context.Background(), Request{AgentID: "a"}, func(RawEvent) error {
		calls++
		return stop
	})
	assert.Same(t, stop, err)
	assert.Equal(t, 1, calls)
}

func TestRawDataUnwrapsOnlyObjects(t *testing.T) {
	assert.JSONEq(t, `{"x":1}`, string(rawData(`{"data":{"x":1}}`)))
	assert.JSONEq(t, `{"data":"text"}`, string(rawData(`{"data":"text"}`)))
	assert.JSONEq(t, `[1,2]`, string(rawData(`[1,2]`)))
	assert.True(t, strings.Contains(string(rawData("{broken")), `"raw"`))
}
