package admission

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Ledger-Gate/ledgergate/internal/domain/audit"
	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
	"github.com/Ledger-Gate/ledgergate/internal/domain/route"
)

// FailMode controls what the auth gate does when identity resolution
// itself fails (not merely "no identity").
type FailMode string

const (
	// FailOpen forwards the request anonymously on resolver failure.
	// Availability over strictness: a broken identity service must not
	// take the whole site down.
	FailOpen FailMode = "open"
	// FailClosed rejects the request on resolver failure.
	FailClosed FailMode = "closed"
)

// IsValid returns true if the fail mode is known.
func (m FailMode) IsValid() bool {
	switch m {
	case FailOpen, FailClosed:
		return true
	default:
		return false
	}
}

const redirectParam = "redirect_url"

// AuthGuard is the final pipeline stage. It resolves the request's
// credentials to a principal and, on protected routes without one, issues
// a redirect to the sign-in flow instead of forwarding.
//
// The guard is the only stage that writes Request.Principal, and it never
// modifies a principal the resolver returned.
type AuthGuard struct {
	routes    *route.Classifier
	resolver  identity.Resolver
	signInURL string
	failMode  FailMode
	recorder  Recorder
}

// NewAuthGuard creates the auth-gate stage.
func NewAuthGuard(routes *route.Classifier, resolver identity.Resolver, signInURL string, failMode FailMode, recorder Recorder) *AuthGuard {
	if !failMode.IsValid() {
		failMode = FailOpen
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &AuthGuard{
		routes:    routes,
		resolver:  resolver,
		signInURL: signInURL,
		failMode:  failMode,
		recorder:  recorder,
	}
}

// Name implements Guard.
func (g *AuthGuard) Name() string { return audit.StageAuthGate }

// Check implements Guard.
func (g *AuthGuard) Check(ctx context.Context, req *Request) (Decision, error) {
	principal, err := g.resolver.Resolve(ctx, req.Credentials)
	if err != nil {
		return g.handleResolverFailure(ctx, req, err)
	}
	req.Principal = principal

	if principal == nil && g.routes.Protected(req.Path) {
		g.recorder.Record(ctx, audit.Record{
			Timestamp:   req.ReceivedAt,
			RequestID:   req.RequestID,
			Stage:       audit.StageAuthGate,
			Decision:    audit.DecisionRedirect,
			Reason:      "sign-in required",
			Method:      req.Method,
			Path:        req.Path,
			SourceIP:    req.SourceIP,
			UserAgent:   req.UserAgent,
			IdentityKey: req.IdentityKey,
		})
		return Redirect(audit.StageAuthGate, g.signInLocation(req)), nil
	}

	return Forward(), nil
}

// handleResolverFailure applies the configured fail mode. The failure is
// always recorded; in open mode the request proceeds anonymously.
func (g *AuthGuard) handleResolverFailure(ctx context.Context, req *Request, err error) (Decision, error) {
	rec := audit.Record{
		Timestamp:   req.ReceivedAt,
		RequestID:   req.RequestID,
		Stage:       audit.StageAuthGate,
		Reason:      "identity resolution failed: " + err.Error(),
		Method:      req.Method,
		Path:        req.Path,
		SourceIP:    req.SourceIP,
		UserAgent:   req.UserAgent,
		IdentityKey: req.IdentityKey,
	}

	if g.failMode == FailClosed {
		rec.Decision = audit.DecisionDeny
		g.recorder.Record(ctx, rec)
		return Reject(audit.StageAuthGate, http.StatusServiceUnavailable, "authentication unavailable"), nil
	}

	rec.Decision = audit.DecisionAllow
	rec.Observed = true
	g.recorder.Record(ctx, rec)
	req.Principal = nil
	return Forward(), nil
}

// signInLocation builds the sign-in URL carrying the original URL so the
// client returns to it after authenticating.
func (g *AuthGuard) signInLocation(req *Request) string {
	u, err := url.Parse(g.signInURL)
	if err != nil {
		return g.signInURL
	}
	q := u.Query()
	q.Set(redirectParam, req.OriginalURL)
	u.RawQuery = q.Encode()
	return u.String()
}

// Compile-time interface verification.
var _ Guard = (*AuthGuard)(nil)
