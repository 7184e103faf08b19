// Package ws provides WebSocket server functionality for client connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/Aaryan126/Research-Agent/ingress/internal/config"
	"github.com/Aaryan126/Research-Agent/ingress/internal/hub"
	"github.com/Aaryan126/Research-Agent/ingress/internal/orchestrator"
	"github.com/Aaryan126/Research-Agent/ingress/internal/protocol"
	"github.com/Aaryan126/Research-Agent/ingress/internal/thread"
	"github.com/Aaryan126/Research-Agent/internal/stream"
	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// Researcher runs a research request and streams its trace into sink.
type Researcher interface {
	Research(ctx context.Context, req *orchestrator.ResearchRequest, sink stream.Sink) error
}

// request is an in-flight research request.
type request struct {
	channel string
	cancel  context.CancelFunc
}

// Server handles WebSocket connections.
type Server struct {
	cfg          *config.Config
	hub          *hub.Hub
	orchestrator Researcher
	upgrader     websocket.Upgrader

	mu       sync.Mutex
	requests map[string]*request
	wg       sync.WaitGroup
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, orch Researcher) *Server {
	return &Server{
		cfg:          cfg,
		hub:          h,
		orchestrator: orch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		requests: make(map[string]*request),
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("ERROR: failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// InFlight returns the number of research requests still running.
func (s *Server) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Shutdown cancels every in-flight request and waits for their threads to be
// finalized or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for _, req := range s.requests {
		req.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case protocol.TypeHello:
		s.handleHello(conn, data)
	case protocol.TypeResearch:
		s.handleResearch(conn, data)
	case protocol.TypeCancel:
		s.handleCancel(conn, data)
	default:
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello handles the hello handshake message.
func (s *Server) handleHello(conn *hub.Connection, data []byte) {
	var msg protocol.HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid hello message")
		return
	}

	if s.cfg.APIKey != "" && msg.APIKey != s.cfg.APIKey {
		s.sendError(conn, "", protocol.ErrorCodeUnauthorized, "invalid api_key")
		return
	}

	// A client may rejoin its channel after a reconnect.
	channel := msg.Channel
	if channel == "" {
		channel = "ch_" + uuid.New().String()[:8]
	}
	s.hub.Subscribe(conn, channel)

	ack := protocol.HelloAckMessage{
		BaseMessage: protocol.BaseMessage{
			Type:    protocol.TypeHelloAck,
			Ts:      time.Now().UnixMilli(),
			Channel: channel,
		},
	}
	s.hub.SendJSONToConnection(conn, ack)

	log.Printf("INFO: hello handshake completed for channel: %s", channel)
}

// handleResearch starts a research request rendered as a thread in the connection's channel.
func (s *Server) handleResearch(conn *hub.Connection, data []byte) {
	var msg protocol.ResearchMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid research message")
		return
	}

	if conn.Channel == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeHelloRequired, "must send hello first")
		return
	}

	input := strings.TrimSpace(msg.Input)
	if input == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeInvalidMessage, "input is required")
		return
	}

	requestID := msg.RequestID
	if requestID == "" {
		requestID = "req_" + uuid.New().String()[:8]
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	s.mu.Lock()
	if _, exists := s.requests[requestID]; exists {
		s.mu.Unlock()
		cancel()
		s.sendError(conn, requestID, protocol.ErrorCodeInvalidMessage, "request_id already in flight")
		return
	}
	channel := conn.Channel
	s.requests[requestID] = &request{channel: channel, cancel: cancel}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.finishRequest(requestID)
		s.runResearch(ctx, channel, requestID, msg.Mode, input)
	}()
}

// handleCancel cancels one request, or every request of the channel.
func (s *Server) handleCancel(conn *hub.Connection, data []byte) {
	var msg protocol.CancelMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid cancel message")
		return
	}

	if conn.Channel == "" {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeHelloRequired, "must send hello first")
		return
	}

	cancelled := 0
	s.mu.Lock()
	for id, req := range s.requests {
		if req.channel != conn.Channel || (msg.RequestID != "" && msg.RequestID != id) {
			continue
		}
		req.cancel()
		cancelled++
	}
	s.mu.Unlock()

	if msg.RequestID != "" && cancelled == 0 {
		s.sendError(conn, msg.RequestID, protocol.ErrorCodeUnknownRequest, "no such request in flight")
		return
	}
	log.Printf("INFO: cancelled %d request(s) on channel %s", cancelled, conn.Channel)
}

func (s *Server) finishRequest(requestID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := s.requests[requestID]; ok {
		req.cancel()
		delete(s.requests, requestID)
	}
}

// runResearch drives one request: open the thread, stream the orchestrator's trace
// into it, finalize it and report research_done.
func (s *Server) runResearch(ctx context.Context, channel, requestID, mode, input string) {
	adapter := stream.NewThreadAdapter(thread.NewPoster(s.hub, channel, requestID), stream.ThreadOptions{
		Channel: channel,
		Heading: heading(mode),
		Subject: input,
		Limit:   s.cfg.MessageLimit,
	})
	// Thread edits must still go out after the request context is cancelled.
	postCtx := context.WithoutCancel(ctx)

	if err := adapter.Open(postCtx); err != nil {
		log.Printf("WARN: request %s: failed to open thread: %v", requestID, err)
		return
	}

	err := s.orchestrator.Research(ctx, &orchestrator.ResearchRequest{Mode: mode, Input: input}, adapter)
	switch {
	case errors.Is(err, thread.ErrNoSubscribers):
		log.Printf("INFO: request %s: channel %s has no subscribers, stopping", requestID, channel)
		return
	case err != nil && ctx.Err() != nil:
		log.Printf("INFO: request %s cancelled: %v", requestID, ctx.Err())
		s.fail(postCtx, adapter, cancelMessage(ctx))
		s.sendDone(channel, requestID, adapter.ThreadID(), protocol.StatusCancelled, "")
		return
	case err != nil && adapter.State().LastSeq == 0:
		// Rejected before any event was streamed.
		log.Printf("WARN: request %s: orchestrator failed: %v", requestID, err)
		s.fail(postCtx, adapter, err.Error())
	case err != nil:
		log.Printf("WARN: request %s: stream failed: %v", requestID, err)
	}

	if err := adapter.Close(postCtx); err != nil {
		log.Printf("WARN: request %s: failed to finalize thread: %v", requestID, err)
	}

	state := adapter.State()
	if state.Status == trace.StatusComplete {
		s.sendDone(channel, requestID, adapter.ThreadID(), protocol.StatusComplete, "")
		return
	}
	s.sendDone(channel, requestID, adapter.ThreadID(), protocol.StatusError, state.Error)
}

// fail finalizes the thread with msg as its error.
func (s *Server) fail(ctx context.Context, adapter *stream.ThreadAdapter, msg string) {
	for _, e := range []trace.Event{trace.Untagged(trace.Error{Message: msg}), trace.Untagged(trace.Done{})} {
		if err := adapter.Emit(ctx, e); err != nil {
			log.Printf("WARN: failed to finalize thread: %v", err)
			return
		}
	}
}

func cancelMessage(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "request timed out"
	}
	return "cancelled"
}

func heading(mode string) string {
	switch mode {
	case "verify":
		return "Verifying claim"
	case "draft":
		return "Drafting"
	}
	return "Researching"
}

func (s *Server) sendDone(channel, requestID, threadID, status, errMsg string) {
	done := protocol.ResearchDoneMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeResearchDone,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			Channel:   channel,
		},
		ThreadID: threadID,
		Status:   status,
		Error:    errMsg,
	}
	if err := s.hub.PublishJSON(channel, done); err != nil {
		log.Printf("WARN: failed to publish research_done: %v", err)
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, requestID, code, message string) {
	errMsg := protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{
			Type:      protocol.TypeError,
			Ts:        time.Now().UnixMilli(),
			RequestID: requestID,
			Channel:   conn.Channel,
		},
		Code:    code,
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
