package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Aaryan126/Research-Agent/internal/trace"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
	"github.com/Aaryan126/Research-Agent/orchestrator/policy"
)

// StartSession validates a request and creates its session. The session does not run
// until Run is called.
func (s *Service) StartSession(ctx context.Context, req domain.ResearchRequest) (*domain.Session, error) {
	req = req.Normalize()
	input := strings.TrimSpace(req.Input)
	if !req.Mode.Valid() {
		return nil, goerr.Wrap(ErrInvalidRequest, fmt.Sprintf("unsupported mode %q", req.Mode), goerr.V("mode", req.Mode))
	}
	if input == "" {
		return nil, goerr.Wrap(ErrInvalidRequest, "input is required", goerr.V("mode", req.Mode))
	}

	if s.policyEngine != nil {
		res, err := s.policyEngine.Evaluate(ctx, policy.Input{
			Mode:           string(req.Mode),
			Input:          input,
			MaxInputLength: s.config.MaxInputLength,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate policy: %w", err)
		}
		if !res.Allowed() {
			return nil, goerr.Wrap(ErrPolicyBlocked, strings.Join(res.Reasons, "; "), goerr.V("mode", req.Mode))
		}
	}

	session := &domain.Session{
		SessionID: "sess_" + uuid.New().String(),
		Mode:      req.Mode,
		Input:     input,
		Status:    domain.SessionStatusThinking,
		CreatedAt: time.Now(),
	}
	// The event log is for replay only; a session still runs without it.
	if err := s.store.CreateSession(ctx, session); err != nil {
		log.Printf("ERROR: failed to create session %s: %v", session.SessionID, err)
	}
	log.Printf("INFO: session %s started (mode=%s)", session.SessionID, session.Mode)
	return session, nil
}

// GetSession returns a stored session.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, goerr.Wrap(ErrSessionNotFound, "no such session", goerr.V("session_id", sessionID))
	}
	return session, nil
}

// GetEvents returns the recorded events of a session with seq greater than afterSeq.
func (s *Service) GetEvents(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]trace.Event, error) {
	rows, err := s.store.GetEvents(ctx, sessionID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}

	events := make([]trace.Event, 0, len(rows))
	for _, row := range rows {
		e, err := trace.Decode(row.Type, row.Data)
		if err != nil {
			log.Printf("WARN: skipping stored event %s/%d: %v", sessionID, row.Seq, err)
			continue
		}
		e.Seq = row.Seq
		events = append(events, e)
	}
	return events, nil
}

// Trace folds the recorded events of a session into the reconstruction model.
func (s *Service) Trace(ctx context.Context, sessionID string) (trace.State, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return trace.State{}, err
	}
	events, err := s.GetEvents(ctx, sessionID, 0, 0)
	if err != nil {
		return trace.State{}, err
	}
	return trace.Fold(events), nil
}
