// Package stream translates the logical trace stream into the concrete
// representations each consumer needs.
package stream

import (
	"context"
	"errors"
	"strconv"

	"github.com/Aaryan126/Research-Agent/internal/sse"
	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// Sink receives the ordered events of one session. An error from Emit means the
// consumer is gone; the producer stops emitting.
type Sink interface {
	Emit(ctx context.Context, e trace.Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e trace.Event) error

// Emit implements Sink.
func (f SinkFunc) Emit(ctx context.Context, e trace.Event) error {
	return f(ctx, e)
}

// Discard accepts and drops every event.
var Discard Sink = SinkFunc(func(context.Context, trace.Event) error { return nil })

// EncodeSSE renders a trace event as an SSE frame.
func EncodeSSE(e trace.Event) (sse.Event, error) {
	data, err := e.MarshalData()
	if err != nil {
		return sse.Event{}, err
	}
	frame := sse.Event{Event: string(e.Type), Data: string(data)}
	if e.Seq > 0 {
		frame.ID = strconv.FormatInt(e.Seq, 10)
	}
	return frame, nil
}

// DecodeSSE parses an SSE frame into a trace event. Frames with names outside the
// taxonomy return an error matching trace.ErrUnknownEvent.
func DecodeSSE(frame sse.Event) (trace.Event, error) {
	e, err := trace.Decode(frame.Event, []byte(frame.Data))
	if err != nil {
		return trace.Event{}, err
	}
	if frame.ID != "" {
		if seq, err := strconv.ParseInt(frame.ID, 10, 64); err == nil {
			e.Seq = seq
		}
	}
	return e, nil
}

// SSESink writes each event as one flushed SSE frame.
type SSESink struct {
	w *sse.Writer
}

// NewSSESink returns a sink writing to w.
func NewSSESink(w *sse.Writer) *SSESink {
	return &SSESink{w: w}
}

// Emit implements Sink.
func (s *SSESink) Emit(ctx context.Context, e trace.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	frame, err := EncodeSSE(e)
	if err != nil {
		return err
	}
	return s.w.Write(frame)
}

// Consume parses an SSE stream of trace events into sink, dropping frames outside
// the taxonomy. It returns when the stream ends, after done, or on a sink error.
func Consume(ctx context.Context, frames func(sse.Handler) error, sink Sink) error {
	err := frames(func(frame sse.Event) error {
		e, err := DecodeSSE(frame)
		if errors.Is(err, trace.ErrUnknownEvent) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := sink.Emit(ctx, e); err != nil {
			return err
		}
		if e.Type == trace.EventDone {
			return errStreamDone
		}
		return nil
	})
	if errors.Is(err, errStreamDone) {
		return nil
	}
	return err
}

var errStreamDone = errors.New("stream done")
