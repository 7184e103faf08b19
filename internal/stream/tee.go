package stream

import (
	"context"
	"log"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// Tee forwards every event to a primary sink and a set of observers. Only the primary
// decides whether the consumer is still there; observer failures are logged.
type Tee struct {
	primary   Sink
	observers []Sink
}

// NewTee returns a sink that writes to primary and then to each observer.
func NewTee(primary Sink, observers ...Sink) *Tee {
	return &Tee{primary: primary, observers: observers}
}

// Emit implements Sink.
func (t *Tee) Emit(ctx context.Context, e trace.Event) error {
	if err := t.primary.Emit(ctx, e); err != nil {
		return err
	}
	for _, o := range t.observers {
		if err := o.Emit(ctx, e); err != nil {
			log.Printf("WARN: stream observer failed on %s (seq=%d): %v", e.Type, e.Seq, err)
		}
	}
	return nil
}
