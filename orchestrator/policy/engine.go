// Package policy evaluates the admission policy for research requests with OPA.
package policy

import (
	"context"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document the policy is evaluated against.
type Input struct {
	Mode           string `json:"mode"`
	Input          string `json:"input"`
	MaxInputLength int    `json:"max_input_length"`
}

// Result is the outcome of one evaluation.
type Result struct {
	Decision string
	Reasons  []string
}

// Allowed reports whether the request may start.
func (r Result) Allowed() bool {
	return r.Decision != DecisionBlock
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.request_policy.result"),
		rego.Module("request_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks a request against the policy. A policy that produces no result
// allows the request.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Result, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(map[string]interface{}{
		"mode":             input.Mode,
		"input":            input.Input,
		"max_input_length": input.MaxInputLength,
	}))
	if err != nil {
		return Result{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Result{Decision: DecisionAllow}, nil
	}

	obj, ok := results[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Result{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
	}

	res := Result{Decision: DecisionAllow}
	if d, ok := obj["decision"].(string); ok {
		res.Decision = d
	}
	if reasons, ok := obj["reasons"].([]interface{}); ok {
		for _, r := range reasons {
			if s, ok := r.(string); ok {
				res.Reasons = append(res.Reasons, s)
			}
		}
	}
	// sets come back unordered
	sort.Strings(res.Reasons)
	return res, nil
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package request_policy

import rego.v1

default decision := "allow"

decision := "block" if count(reasons) > 0

reasons contains "input is empty" if trim_space(input.input) == ""

reasons contains msg if {
	input.max_input_length > 0
	count(input.input) > input.max_input_length
	msg := sprintf("input exceeds %d characters", [input.max_input_length])
}

reasons contains msg if {
	not input.mode in {"research", "draft", "verify"}
	msg := sprintf("unsupported mode %q", [input.mode])
}

result := {"decision": decision, "reasons": reasons}
`
