package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/Aaryan126/Research-Agent/internal/stream"
	"github.com/Aaryan126/Research-Agent/internal/trace"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
)

// emitter numbers the events of one session, records them and forwards them to the
// consumer.
type emitter struct {
	svc       *Service
	sessionID string
	sink      stream.Sink
	seq       int64
	// gone is set once the consumer rejected an event.
	gone bool
}

func (s *Service) newEmitter(sessionID string, sink stream.Sink) *emitter {
	if sink == nil {
		sink = stream.Discard
	}
	return &emitter{svc: s, sessionID: sessionID, sink: sink}
}

func (em *emitter) emit(ctx context.Context, e trace.Event) error {
	if em.gone {
		return errConsumerGone
	}
	em.seq++
	e.Seq = em.seq

	if err := em.svc.recordEvent(context.WithoutCancel(ctx), em.sessionID, e); err != nil {
		log.Printf("ERROR: failed to record %s event %s/%d: %v", e.Type, em.sessionID, e.Seq, err)
	}
	if err := em.sink.Emit(ctx, e); err != nil {
		em.gone = true
		log.Printf("INFO: consumer of session %s went away: %v", em.sessionID, err)
		return fmt.Errorf("%w: %v", errConsumerGone, err)
	}
	return nil
}

// recordEvent appends an event to the session log.
func (s *Service) recordEvent(ctx context.Context, sessionID string, e trace.Event) error {
	data, err := e.MarshalData()
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	event := &domain.Event{
		SessionID: sessionID,
		Seq:       e.Seq,
		Ts:        time.Now().UnixMilli(),
		Type:      string(e.Type),
		Data:      data,
	}

	return s.store.CreateEvent(ctx, event)
}
