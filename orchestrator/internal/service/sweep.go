package service

import (
	"context"
	"log"
	"time"

	"github.com/Aaryan126/Research-Agent/internal/trace"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
)

const staleSessionMessage = "session abandoned: no progress within the run budget"

// RunStaleSessionSweeper fails sessions whose run stopped making progress, so that
// replaying consumers never wait on them forever.
func (s *Service) RunStaleSessionSweeper(ctx context.Context) {
	interval := s.config.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepStaleSessions(ctx)
		}
	}
}

func (s *Service) sweepStaleSessions(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	stale, err := s.store.ListStaleSessions(sweepCtx, s.config.RunBudget(), 100)
	if err != nil {
		log.Printf("WARN: stale session sweep failed: %v", err)
		return
	}

	for _, session := range stale {
		updated, err := s.store.CompleteSession(sweepCtx, session.SessionID, domain.SessionStatusError, staleSessionMessage)
		if err != nil {
			log.Printf("WARN: failed to mark session %s stale: %v", session.SessionID, err)
			continue
		}
		if !updated {
			continue
		}

		last, err := s.lastSeq(sweepCtx, session.SessionID)
		if err != nil {
			log.Printf("WARN: failed to read events of stale session %s: %v", session.SessionID, err)
			continue
		}
		for i, e := range []trace.Event{
			trace.Untagged(trace.Error{Message: staleSessionMessage}),
			trace.Untagged(trace.Done{}),
		} {
			e.Seq = last + int64(i) + 1
			if err := s.recordEvent(sweepCtx, session.SessionID, e); err != nil {
				log.Printf("WARN: failed to record stale session event %s: %v", session.SessionID, err)
				break
			}
		}
		log.Printf("INFO: session %s marked stale", session.SessionID)
	}
}

func (s *Service) lastSeq(ctx context.Context, sessionID string) (int64, error) {
	events, err := s.store.GetEvents(ctx, sessionID, 0, 0)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}
	return events[len(events)-1].Seq, nil
}
