package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// ErrCollectTimeout is returned by Collect when the run outlives its budget.
var ErrCollectTimeout = errors.New("tool call timed out")

// OutcomeError is the terminal error of a collected session.
type OutcomeError struct {
	Message string
}

func (e *OutcomeError) Error() string {
	return e.Message
}

// Collector buffers a stream for a synchronous caller. Intermediate events are counted
// and dropped; only the terminal outcome is kept.
type Collector struct {
	result *trace.Result
	errMsg string
	done   bool
	events int
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Emit implements Sink.
func (c *Collector) Emit(_ context.Context, e trace.Event) error {
	if c.done {
		return nil
	}
	c.events++
	switch p := e.Payload.(type) {
	case trace.Result:
		if c.result == nil && c.errMsg == "" {
			r := p
			c.result = &r
		}
	case trace.Error:
		if c.result == nil && c.errMsg == "" {
			c.errMsg = p.Message
			if c.errMsg == "" {
				c.errMsg = "unknown error"
			}
		}
	case trace.Done:
		c.done = true
	}
	return nil
}

// Events returns how many events were received.
func (c *Collector) Events() int {
	return c.events
}

// Outcome returns the collected result, or the session's error. A stream that ended
// without either reports the same error the trace model records.
func (c *Collector) Outcome() (*trace.Result, error) {
	switch {
	case c.result != nil:
		return c.result, nil
	case c.errMsg != "":
		return nil, &OutcomeError{Message: c.errMsg}
	default:
		return nil, &OutcomeError{Message: trace.ErrStreamEnded}
	}
}

// Collect runs a session into a fresh collector with a deadline and returns its
// outcome. timeout must cover the longest possible run.
func Collect(ctx context.Context, timeout time.Duration, run func(context.Context, Sink) error) (*trace.Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	c := NewCollector()
	runErr := run(ctx, c)

	if res, err := c.Outcome(); err == nil {
		return res, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s", ErrCollectTimeout, timeout)
	}
	if c.errMsg == "" && runErr != nil {
		return nil, runErr
	}
	return c.Outcome()
}
