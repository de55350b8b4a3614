package admission

import (
	"context"
	"net/http"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
	"github.com/Ledger-Gate/ledgergate/internal/domain/shield"
)

// ShieldGuard runs the abuse shield as the first pipeline stage.
// In enforce mode a match rejects the request; in observe mode the match
// is recorded and the request continues. An audit record is emitted on
// every match regardless of mode.
type ShieldGuard struct {
	shield   *shield.Shield
	mode     Mode
	recorder Recorder
}

// NewShieldGuard creates the shield stage.
func NewShieldGuard(s *shield.Shield, mode Mode, recorder Recorder) *ShieldGuard {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &ShieldGuard{shield: s, mode: mode, recorder: recorder}
}

// Name implements Guard.
func (g *ShieldGuard) Name() string { return audit.StageShield }

// Check implements Guard.
func (g *ShieldGuard) Check(ctx context.Context, req *Request) (Decision, error) {
	match, err := g.shield.Inspect(ctx, shieldContext(req))
	if err != nil {
		return Decision{}, err
	}
	if match == nil {
		return Forward(), nil
	}

	observed := g.mode == ModeObserve
	g.recorder.Record(ctx, audit.Record{
		Timestamp:   req.ReceivedAt,
		RequestID:   req.RequestID,
		Stage:       audit.StageShield,
		Decision:    audit.DecisionDeny,
		Reason:      match.Reason,
		Observed:    observed,
		Method:      req.Method,
		Path:        req.Path,
		SourceIP:    req.SourceIP,
		UserAgent:   req.UserAgent,
		IdentityKey: req.IdentityKey,
		RuleID:      match.RuleID,
	})

	if observed {
		return Forward(), nil
	}
	return Reject(audit.StageShield, http.StatusForbidden, "request blocked"), nil
}

// shieldContext projects the admission request onto the shield's view.
// Single-valued headers suffice for signature matching; the Cookie and
// Authorization exclusions are applied by the shield itself.
func shieldContext(req *Request) shield.RequestContext {
	headers := make(map[string]string, len(req.Header))
	for name, values := range req.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	return shield.RequestContext{
		Method:        req.Method,
		Path:          req.Path,
		RawQuery:      req.Query.Encode(),
		UserAgent:     req.UserAgent,
		ContentType:   req.Header.Get("Content-Type"),
		ContentLength: req.ContentLength,
		Header:        headers,
	}
}

// Compile-time interface verification.
var _ Guard = (*ShieldGuard)(nil)
