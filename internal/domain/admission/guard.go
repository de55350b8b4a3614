package admission

import (
	"context"
	"log/slog"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
)

// Guard is a single stage in the admission pipeline.
// A guard inspects the request and returns a Decision; a terminal decision
// (reject or redirect) short-circuits the remaining stages. Guards may
// annotate the request (the auth gate attaches the resolved principal) but
// must not mutate fields owned by other stages.
type Guard interface {
	// Name returns the guard name for logging and audit records.
	Name() string

	// Check evaluates the request. A non-nil error means the guard itself
	// failed internally; the chain logs it and fails open for that stage.
	// Denial is expressed through the Decision, never through the error.
	Check(ctx context.Context, req *Request) (Decision, error)
}

// Recorder receives audit records emitted by guards.
// Implementations must not block the caller.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record)
}

// NopRecorder discards all records. Used when auditing is disabled and in tests.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, audit.Record) {}

// Chain evaluates guards in a fixed order with short-circuit semantics.
// The composed decision is the first terminal decision produced, or Forward
// if every guard permits. No guard error escapes the chain boundary.
type Chain struct {
	guards []Guard
	logger *slog.Logger
}

// NewChain creates a chain that evaluates the given guards in order.
func NewChain(logger *slog.Logger, guards ...Guard) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{guards: guards, logger: logger}
}

// Evaluate runs the pipeline for one request and returns its terminal decision.
func (c *Chain) Evaluate(ctx context.Context, req *Request) Decision {
	for _, g := range c.guards {
		decision, err := g.Check(ctx, req)
		if err != nil {
			// A guard's internal failure must not take the site down:
			// log and move on to the next stage.
			c.logger.Warn("guard failed, continuing",
				"guard", g.Name(),
				"path", req.Path,
				"error", err,
			)
			continue
		}
		if decision.Terminal() {
			return decision
		}
	}
	return Forward()
}
