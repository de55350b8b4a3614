package admission

import (
	"context"
	"net/http"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
	"github.com/Ledger-Gate/ledgergate/internal/domain/ratelimit"
)

// RateLimitGuard bounds request throughput per identity key with a token
// bucket. Limiter errors propagate to the chain, which fails open for the
// stage; a denied request is rejected with an advisory retry delay.
type RateLimitGuard struct {
	limiter  ratelimit.Limiter
	config   ratelimit.Config
	mode     Mode
	recorder Recorder
}

// NewRateLimitGuard creates the rate-limit stage.
func NewRateLimitGuard(limiter ratelimit.Limiter, config ratelimit.Config, mode Mode, recorder Recorder) *RateLimitGuard {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &RateLimitGuard{limiter: limiter, config: config, mode: mode, recorder: recorder}
}

// Name implements Guard.
func (g *RateLimitGuard) Name() string { return audit.StageRateLimit }

// Check implements Guard.
func (g *RateLimitGuard) Check(ctx context.Context, req *Request) (Decision, error) {
	result, err := g.limiter.Allow(ctx, req.IdentityKey, 1, g.config)
	if err != nil {
		return Decision{}, err
	}
	if result.Allowed {
		return Forward(), nil
	}

	observed := g.mode == ModeObserve
	g.recorder.Record(ctx, audit.Record{
		Timestamp:        req.ReceivedAt,
		RequestID:        req.RequestID,
		Stage:            audit.StageRateLimit,
		Decision:         audit.DecisionDeny,
		Reason:           "rate limit exceeded",
		Observed:         observed,
		Method:           req.Method,
		Path:             req.Path,
		SourceIP:         req.SourceIP,
		UserAgent:        req.UserAgent,
		IdentityKey:      req.IdentityKey,
		RetryAfterMillis: result.RetryAfter.Milliseconds(),
	})

	if observed {
		return Forward(), nil
	}

	decision := Reject(audit.StageRateLimit, http.StatusTooManyRequests, "rate limit exceeded")
	decision.RetryAfter = result.RetryAfter
	return decision, nil
}

// Compile-time interface verification.
var _ Guard = (*RateLimitGuard)(nil)
