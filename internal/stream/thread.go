package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Aaryan126/Research-Agent/internal/trace"
)

// Poster is a chat surface that supports threads and in-place edits.
type Poster interface {
	// Post creates a message in threadID ("" for a new top-level message) and
	// returns its id.
	Post(ctx context.Context, threadID, text string) (string, error)
	// Update replaces the text of an existing message.
	Update(ctx context.Context, messageID, text string) error
}

// ThreadOptions configures a ThreadAdapter.
type ThreadOptions struct {
	// Channel is where the parent message is posted.
	Channel string
	// Heading prefixes the parent message, e.g. "Researching".
	Heading string
	// Subject is the topic or claim being worked on.
	Subject string
	// Limit caps the length of each posted message. Defaults to MessageLimit.
	Limit int
	// MaxToolLines caps tool-use lines per agent span. Defaults to 5.
	MaxToolLines int
}

type span struct {
	thinking bool
	writing  bool
	tools    int
}

// ThreadAdapter renders a session as a chat thread: a parent message, one progress
// message edited in place, and the final report posted as replies.
type ThreadAdapter struct {
	poster Poster
	opts   ThreadOptions

	mu         sync.Mutex
	model      *trace.Model
	parentID   string
	progressID string
	lines      []string
	rendered   string
	spans      map[trace.Key]*span
	finished   bool
}

// NewThreadAdapter returns an adapter posting through poster.
func NewThreadAdapter(poster Poster, opts ThreadOptions) *ThreadAdapter {
	if opts.Limit <= 0 {
		opts.Limit = MessageLimit
	}
	if opts.MaxToolLines <= 0 {
		opts.MaxToolLines = 5
	}
	if opts.Heading == "" {
		opts.Heading = "Researching"
	}
	return &ThreadAdapter{
		poster: poster,
		opts:   opts,
		model:  trace.NewModel(),
		spans:  make(map[trace.Key]*span),
	}
}

// Open posts the parent message and the progress message.
func (a *ThreadAdapter) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	parentID, err := a.poster.Post(ctx, a.opts.Channel, fmt.Sprintf("*%s:* _%s_", a.opts.Heading, a.opts.Subject))
	if err != nil {
		return fmt.Errorf("failed to post parent message: %w", err)
	}
	a.parentID = parentID

	a.rendered = "_Starting..._"
	progressID, err := a.poster.Post(ctx, parentID, a.rendered)
	if err != nil {
		return fmt.Errorf("failed to post progress message: %w", err)
	}
	a.progressID = progressID
	return nil
}

// ThreadID returns the id of the parent message once Open succeeded.
func (a *ThreadAdapter) ThreadID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.parentID
}

// Emit implements Sink.
func (a *ThreadAdapter) Emit(ctx context.Context, e trace.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished {
		return nil
	}
	if e.Seq != 0 && e.Seq <= a.model.State().LastSeq {
		return nil
	}
	a.model.Push(e)

	if line := a.progressLine(e); line != "" {
		a.lines = append(a.lines, line)
		if err := a.refresh(ctx); err != nil {
			return err
		}
	}
	if e.Type == trace.EventDone {
		return a.finish(ctx)
	}
	return nil
}

// Close finalizes the thread. A stream that never delivered done is reported as
// ended unexpectedly.
func (a *ThreadAdapter) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.finished {
		return nil
	}
	a.model.Push(trace.Untagged(trace.Done{}))
	return a.finish(ctx)
}

// State returns the folded state of everything emitted so far.
func (a *ThreadAdapter) State() trace.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.model.State()
}

func (a *ThreadAdapter) progressLine(e trace.Event) string {
	key := e.Key()
	sp := a.spans[key]
	if sp == nil && e.Scoped() {
		sp = &span{}
		a.spans[key] = sp
	}

	switch p := e.Payload.(type) {
	case trace.AgentStart:
		if e.Iteration > 0 {
			return fmt.Sprintf("*%s* started (iteration %d)", e.Agent, e.Iteration)
		}
		return fmt.Sprintf("*%s* started", e.Agent)
	case trace.Reasoning:
		if sp.thinking {
			return ""
		}
		sp.thinking = true
		return fmt.Sprintf("_%s is thinking..._", e.Agent)
	case trace.ToolCall:
		sp.tools++
		switch {
		case sp.tools <= a.opts.MaxToolLines:
			return fmt.Sprintf("Using tool `%s`", p.ToolID)
		case sp.tools == a.opts.MaxToolLines+1:
			return "_...more tool calls_"
		}
		return ""
	case trace.MessageChunk:
		if sp.writing {
			return ""
		}
		sp.writing = true
		return fmt.Sprintf("_%s is writing..._", e.Agent)
	case trace.AgentEnd:
		if sp.tools > 0 {
			return fmt.Sprintf("*%s* finished (%d tool calls)", e.Agent, sp.tools)
		}
		return fmt.Sprintf("*%s* finished", e.Agent)
	case trace.VerdictEvent:
		return fmt.Sprintf("*Verdict* (iteration %d): `%s`", e.Iteration, p.Verdict)
	case trace.Error:
		return "*Error:* " + p.Message
	}
	return ""
}

// refresh edits the progress message when its text changed. Only the newest lines
// are kept once the message would exceed the limit.
func (a *ThreadAdapter) refresh(ctx context.Context) error {
	text := strings.Join(a.lines, "\n")
	for len([]rune(text)) > a.opts.Limit && len(a.lines) > 1 {
		a.lines = a.lines[1:]
		text = "...\n" + strings.Join(a.lines, "\n")
	}
	if text == a.rendered || a.progressID == "" {
		return nil
	}
	if err := a.poster.Update(ctx, a.progressID, text); err != nil {
		return fmt.Errorf("failed to update progress message: %w", err)
	}
	a.rendered = text
	return nil
}

func (a *ThreadAdapter) finish(ctx context.Context) error {
	a.finished = true
	state := a.model.State()

	if state.Result == nil {
		// An error event already added its own line.
		if state.Error == trace.ErrStreamEnded {
			a.lines = append(a.lines, "*Error:* "+state.Error)
		}
		if err := a.refresh(ctx); err != nil {
			return err
		}
		return a.updateParent(ctx, fmt.Sprintf("*Failed:* _%s_\n%s", a.opts.Subject, state.Error))
	}

	a.lines = append(a.lines, "*Complete:* "+state.Result.IterationInfo)
	if err := a.refresh(ctx); err != nil {
		return err
	}
	for _, part := range SplitMessage(state.Result.Report, a.opts.Limit) {
		if _, err := a.poster.Post(ctx, a.parentID, part); err != nil {
			return fmt.Errorf("failed to post report: %w", err)
		}
	}
	return a.updateParent(ctx, fmt.Sprintf("*Complete:* _%s_\n%s", a.opts.Subject, state.Result.IterationInfo))
}

func (a *ThreadAdapter) updateParent(ctx context.Context, text string) error {
	if a.parentID == "" {
		return nil
	}
	if err := a.poster.Update(ctx, a.parentID, text); err != nil {
		return fmt.Errorf("failed to update parent message: %w", err)
	}
	return nil
}
