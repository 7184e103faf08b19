package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Aaryan126/Research-Agent/internal/stream"
	"github.com/Aaryan126/Research-Agent/internal/trace"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/adapter/agentclient"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/extract"
)

// State is a step of the session state machine.
type State string

const (
	StatePlanning  State = "PLANNING"
	StateDrafting  State = "DRAFTING"
	StateReviewing State = "REVIEWING"
	StateRevising  State = "REVISING"
	StateVerifying State = "VERIFYING"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Revision carries one iteration's context between the drafting and review stages.
// Each stage returns a new value.
type Revision struct {
	Iteration int
	// Draft is the previous draft while drafting, and the current one while reviewing.
	Draft string
	// Feedback is what the reviewer asked to change in Draft.
	Feedback     string
	ReferenceIDs []string
}

// drafted moves the revision to the review stage with the new draft.
func (r Revision) drafted(draft string) Revision {
	return Revision{
		Iteration:    r.Iteration,
		Draft:        draft,
		ReferenceIDs: extract.ReferenceIDs(draft),
	}
}

// next starts the following iteration, revising the reviewed draft.
func (r Revision) next(feedback string) Revision {
	return Revision{Iteration: r.Iteration + 1, Draft: r.Draft, Feedback: feedback}
}

type run struct {
	svc     *Service
	session *domain.Session
	em      *emitter
	state   State
}

func (r *run) transition(next State) {
	log.Printf("INFO: session %s: %s -> %s", r.session.SessionID, r.state, next)
	r.state = next
}

// Run executes a started session, emitting its trace to sink. The stream always ends
// with result or error followed by done, unless the session is cancelled, in which
// case nothing more is emitted and an error matching agentclient.ErrCancelled is
// returned. Failures delivered in the stream are not returned.
func (s *Service) Run(ctx context.Context, session *domain.Session, sink stream.Sink) error {
	r := &run{svc: s, session: session, em: s.newEmitter(session.SessionID, sink), state: StatePlanning}

	var (
		result trace.Result
		err    error
	)
	if session.Mode == domain.ModeVerify {
		result, err = r.verify(ctx)
	} else {
		result, err = r.research(ctx)
	}
	return r.finish(ctx, result, err)
}

func (r *run) research(ctx context.Context) (trace.Result, error) {
	maxIterations := r.svc.config.MaxIterations
	agents := r.svc.config.Agents
	var (
		iterations []string
		summary    []string
	)

	rev := Revision{Iteration: 1}
	for {
		r.transition(StateDrafting)
		draft, err := r.svc.callAgent(ctx, r.em, r.session, agents.Draft, rev.Iteration,
			draftPrompt(r.session.Input, rev, maxIterations))
		if err != nil {
			return trace.Result{}, err
		}
		rev = rev.drafted(draft)
		iterations = append(iterations, draft)

		if r.session.Mode == domain.ModeDraft {
			summary = append(summary, fmt.Sprintf("Iteration %d: RESEARCH_ONLY", rev.Iteration))
			return trace.Result{
				Report:        draft,
				IterationInfo: researchOnlyInfo(rev.Iteration),
				Iterations:    iterations,
				Summary:       summary,
			}, nil
		}

		r.transition(StateReviewing)
		reviewText, err := r.svc.callAgent(ctx, r.em, r.session, agents.Review, rev.Iteration,
			reviewPrompt(rev.Draft, rev.Iteration, rev.ReferenceIDs))
		if err != nil {
			return trace.Result{}, err
		}

		report, perr := extract.Verdict(reviewText)
		if perr != nil {
			log.Printf("WARN: session %s iteration %d: %v", r.session.SessionID, rev.Iteration, perr)
		}
		if err := r.em.emit(ctx, trace.New(trace.Key{Iteration: rev.Iteration}, trace.VerdictEvent{Verdict: report.Verdict})); err != nil {
			return trace.Result{}, err
		}
		summary = append(summary, fmt.Sprintf("Iteration %d: %s", rev.Iteration, report.Verdict))

		if report.Verdict == trace.VerdictPass || rev.Iteration >= maxIterations {
			review := reviewText
			return trace.Result{
				Report:        rev.Draft,
				Review:        &review,
				IterationInfo: iterationInfo(rev.Iteration, report.Verdict, maxIterations),
				Iterations:    iterations,
				Summary:       summary,
			}, nil
		}

		r.transition(StateRevising)
		rev = rev.next(extract.Feedback(report, reviewText))
	}
}

func (r *run) verify(ctx context.Context) (trace.Result, error) {
	r.transition(StateVerifying)
	report, err := r.svc.callAgent(ctx, r.em, r.session, r.svc.config.Agents.Claim, 1, r.session.Input)
	if err != nil {
		return trace.Result{}, err
	}
	return trace.Result{
		Report:        report,
		IterationInfo: claimIterationInfo,
		Iterations:    []string{report},
		Summary:       []string{"Iteration 1: CLAIM_VERIFICATION"},
	}, nil
}

// finish emits the terminal events and records the session's final status.
func (r *run) finish(ctx context.Context, result trace.Result, err error) error {
	// Bookkeeping must land even when the consumer's context is gone.
	storeCtx := context.WithoutCancel(ctx)

	if err == nil {
		if err = r.em.emit(ctx, trace.Untagged(result)); err == nil {
			err = r.em.emit(ctx, trace.Untagged(trace.Done{}))
		}
		if err == nil {
			r.transition(StateDone)
			r.complete(storeCtx, domain.SessionStatusComplete, "")
			return nil
		}
	}

	if r.cancelled(ctx, err) {
		r.transition(StateCancelled)
		r.complete(storeCtx, domain.SessionStatusCancelled, "")
		if errors.Is(err, agentclient.ErrCancelled) {
			return err
		}
		return fmt.Errorf("%w: %v", agentclient.ErrCancelled, err)
	}

	msg := "internal error"
	failed := trace.Untagged(trace.Error{Message: msg})
	var ce *callError
	if errors.As(err, &ce) {
		msg = ce.Message
		failed = trace.New(ce.Key, trace.Error{Message: msg})
	}
	log.Printf("ERROR: session %s failed: %v", r.session.SessionID, err)
	r.transition(StateFailed)
	if err := r.em.emit(ctx, failed); err == nil {
		_ = r.em.emit(ctx, trace.Untagged(trace.Done{}))
	}
	// Recorded after the terminal events so that followers of the log see them.
	r.complete(storeCtx, domain.SessionStatusError, msg)
	return nil
}

func (r *run) cancelled(ctx context.Context, err error) bool {
	return errors.Is(err, agentclient.ErrCancelled) ||
		errors.Is(err, errConsumerGone) ||
		errors.Is(ctx.Err(), context.Canceled)
}

func (r *run) complete(ctx context.Context, status domain.SessionStatus, errMsg string) {
	r.session.Status = status
	r.session.Error = errMsg
	if _, err := r.svc.store.CompleteSession(ctx, r.session.SessionID, status, errMsg); err != nil {
		log.Printf("ERROR: failed to complete session %s: %v", r.session.SessionID, err)
	}
}
