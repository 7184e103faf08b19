package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/Aaryan126/Research-Agent/internal/trace"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/adapter/agentclient"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/config"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
)

var (
	// errConsumerGone stops a run whose consumer stopped accepting events.
	errConsumerGone = errors.New("consumer went away")
	// errNoOutput is returned when an agent call ends without any final text.
	errNoOutput = errors.New("agent produced no output")
	// errUpstreamFrame aborts a call on the first upstream error frame.
	errUpstreamFrame = errors.New("upstream error frame")
)

// callError is a failed agent call. Message is safe to show to consumers.
type callError struct {
	Key     trace.Key
	Message string
	Err     error
}

func (e *callError) Error() string { return e.Message + ": " + e.Err.Error() }
func (e *callError) Unwrap() error { return e.Err }

// callAgent runs one agent call, forwarding its trace under (agent label, iteration),
// and returns the agent's final text.
func (s *Service) callAgent(ctx context.Context, em *emitter, session *domain.Session, agent config.Agent, iteration int, input string) (string, error) {
	key := trace.Key{Agent: agent.Label, Iteration: iteration}
	s.updateProgress(ctx, session, iteration)

	if err := em.emit(ctx, trace.New(key, trace.AgentStart{AgentID: agent.ID})); err != nil {
		return "", err
	}

	var (
		final     strings.Builder
		completed string
		hasFull   bool
		upstream  string
	)
	err := s.agents.Call(ctx, agentclient.Request{
		AgentID: agent.ID,
		Input:   input,
		Timeout: s.config.AgentTimeout,
	}, func(raw agentclient.RawEvent) error {
		if msg, ok := raw.ErrorMessage(); ok {
			upstream = msg
			return errUpstreamFrame
		}
		if text, ok := raw.CompletedMessage(); ok {
			completed, hasFull = text, true
			return nil
		}
		e, ok := agentclient.Normalize(raw, key)
		if !ok {
			return nil
		}
		if chunk, ok := e.Payload.(trace.MessageChunk); ok {
			if chunk.Text == "" {
				return nil
			}
			final.WriteString(chunk.Text)
		}
		return em.emit(ctx, e)
	})

	if err != nil {
		switch {
		case errors.Is(err, errConsumerGone), errors.Is(err, agentclient.ErrCancelled):
			return "", err
		case errors.Is(err, errUpstreamFrame):
			return "", &callError{
				Key:     key,
				Message: fmt.Sprintf("%s failed: %s", agent.Label, upstream),
				Err:     goerr.Wrap(agentclient.ErrAgentFailed, upstream, goerr.V("agent", agent.ID), goerr.V("iteration", iteration)),
			}
		case errors.Is(err, agentclient.ErrTimeout):
			return "", &callError{
				Key:     key,
				Message: fmt.Sprintf("agent call timeout: %s exceeded %s (iteration %d)", agent.Label, s.agentTimeout(), iteration),
				Err:     err,
			}
		case errors.Is(err, agentclient.ErrMalformedResponse):
			return "", &callError{
				Key:     key,
				Message: fmt.Sprintf("%s returned a malformed response (iteration %d)", agent.Label, iteration),
				Err:     err,
			}
		case errors.Is(err, agentclient.ErrConnection):
			return "", &callError{
				Key:     key,
				Message: fmt.Sprintf("could not reach %s (iteration %d)", agent.Label, iteration),
				Err:     err,
			}
		default:
			return "", &callError{Key: key, Message: "internal error", Err: err}
		}
	}

	text := final.String()
	if hasFull && completed != text {
		switch {
		case strings.HasPrefix(completed, text):
			// The chunk stream was cut short; emit the missing tail.
			if err := em.emit(ctx, trace.New(key, trace.MessageChunk{Text: completed[len(text):]})); err != nil {
				return "", err
			}
			text = completed
		default:
			log.Printf("WARN: %s: message_complete differs from streamed chunks (%d vs %d bytes), keeping chunks",
				key, len(completed), len(text))
		}
	}

	if err := em.emit(ctx, trace.New(key, trace.AgentEnd{})); err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", &callError{
			Key:     key,
			Message: fmt.Sprintf("%s produced no output (iteration %d)", agent.Label, iteration),
			Err:     goerr.Wrap(errNoOutput, "empty final text", goerr.V("agent", agent.ID), goerr.V("iteration", iteration)),
		}
	}
	return text, nil
}

func (s *Service) agentTimeout() string {
	if s.config.AgentTimeout > 0 {
		return s.config.AgentTimeout.String()
	}
	return agentclient.DefaultTimeout.String()
}

func (s *Service) updateProgress(ctx context.Context, session *domain.Session, iteration int) {
	session.Iteration = iteration
	session.Status = domain.SessionStatusStreaming
	if err := s.store.UpdateSessionProgress(ctx, session.SessionID, session.Status, iteration); err != nil {
		log.Printf("WARN: failed to update session %s progress: %v", session.SessionID, err)
	}
}
