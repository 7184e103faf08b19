// Package service runs research sessions: the draft, review and revise loop, and
// the single-pass claim verification.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/Aaryan126/Research-Agent/orchestrator/internal/adapter/agentclient"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/config"
	"github.com/Aaryan126/Research-Agent/orchestrator/internal/domain"
	"github.com/Aaryan126/Research-Agent/orchestrator/policy"
)

var (
	// ErrInvalidRequest is returned when a request has no input or an unknown mode.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrPolicyBlocked is returned when the admission policy rejects a request.
	ErrPolicyBlocked = errors.New("request blocked by policy")
	// ErrSessionNotFound is returned by session queries for unknown ids.
	ErrSessionNotFound = errors.New("session not found")
)

// Store is the persistence the service needs.
type Store interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateSessionProgress(ctx context.Context, sessionID string, status domain.SessionStatus, iteration int) error
	CompleteSession(ctx context.Context, sessionID string, status domain.SessionStatus, errMsg string) (bool, error)
	ListStaleSessions(ctx context.Context, maxAge time.Duration, limit int) ([]domain.Session, error)
	CreateEvent(ctx context.Context, event *domain.Event) error
	GetEvents(ctx context.Context, sessionID string, afterSeq int64, limit int) ([]domain.Event, error)
}

// AgentCaller streams one agent call. *agentclient.Client implements it.
type AgentCaller interface {
	Call(ctx context.Context, req agentclient.Request, handler agentclient.Handler) error
}

// PolicyEvaluator decides whether a request may start. *policy.Engine implements it.
type PolicyEvaluator interface {
	Evaluate(ctx context.Context, input policy.Input) (policy.Result, error)
}

type Service struct {
	store        Store
	agents       AgentCaller
	config       *config.Config
	policyEngine PolicyEvaluator
}

func New(store Store, agents AgentCaller, cfg *config.Config, policyEngine PolicyEvaluator) *Service {
	return &Service{
		store:        store,
		agents:       agents,
		config:       cfg,
		policyEngine: policyEngine,
	}
}

// Config returns the configuration the service runs with.
func (s *Service) Config() *config.Config {
	return s.config
}
