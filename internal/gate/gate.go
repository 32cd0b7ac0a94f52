// Package gate composes request admission stages around protected
// operations. A chain runs its stages in declared order and short-circuits
// on the first denial.
package gate

import (
	"context"
	"net/http"
	"time"

	"github.com/meridian-hq/meridian/internal/shared"
)

// Request is the mutable carrier handed through the stages of one chain
// evaluation. TokenStage fills Claims for downstream stages.
type Request struct {
	HTTP   *http.Request
	Claims *shared.Claims
}

// Outcome is a stage decision: allow, or deny with a reason. Headers are
// merged into the response whether or not the request proceeds, which is
// how rate-limit metadata reaches allowed responses.
type Outcome struct {
	Allowed    bool
	Stage      string
	Reason     error
	RetryAfter time.Duration
	Headers    http.Header
}

// Allow builds a passing outcome.
func Allow() Outcome {
	return Outcome{Allowed: true}
}

// Deny builds a rejecting outcome for the named stage.
func Deny(stage string, reason error) Outcome {
	return Outcome{Stage: stage, Reason: reason}
}

// Stage is one admission check.
type Stage interface {
	Name() string
	Evaluate(ctx context.Context, req *Request) Outcome
}

// Chain is an ordered stage composition. Which stages a route carries is
// per-route configuration; the chain itself only guarantees ordering and
// short-circuit on first deny.
type Chain struct {
	stages []Stage
}

// NewChain builds a chain from stages in evaluation order.
func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

// Evaluate runs the stages in order. The first denial is returned without
// invoking later stages; headers contributed by earlier stages are carried
// on the returned outcome either way.
func (c *Chain) Evaluate(ctx context.Context, req *Request) Outcome {
	merged := http.Header{}
	for _, stage := range c.stages {
		out := stage.Evaluate(ctx, req)
		for k, vs := range out.Headers {
			merged[k] = vs
		}
		if !out.Allowed {
			out.Headers = merged
			return out
		}
	}
	ok := Allow()
	ok.Headers = merged
	return ok
}
