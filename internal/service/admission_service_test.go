package service

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/admission"
)

// fixedGuard returns a canned decision for service tests.
type fixedGuard struct {
	decision admission.Decision
}

func (g *fixedGuard) Name() string { return "fixed" }

func (g *fixedGuard) Check(_ context.Context, _ *admission.Request) (admission.Decision, error) {
	return g.decision, nil
}

func serviceRequest() *admission.Request {
	return &admission.Request{
		Method:     http.MethodGet,
		Path:       "/dashboard",
		Query:      url.Values{},
		Header:     http.Header{},
		ReceivedAt: time.Now().UTC(),
		RequestID:  "r-1",
	}
}

func TestAdmissionService_ReturnsChainDecision(t *testing.T) {
	t.Parallel()

	chain := admission.NewChain(discardLogger(),
		&fixedGuard{decision: admission.Reject("fixed", http.StatusForbidden, "blocked")})
	svc := NewAdmissionService(chain, discardLogger())

	decision := svc.Evaluate(context.Background(), serviceRequest())
	if decision.Outcome != admission.OutcomeReject {
		t.Errorf("Outcome = %q, want %q", decision.Outcome, admission.OutcomeReject)
	}
	if decision.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", decision.Status)
	}
}

func TestAdmissionService_LogsTerminalDecisions(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	tests := []struct {
		name     string
		decision admission.Decision
		wantMsg  string
	}{
		{"forward", admission.Forward(), "request admitted"},
		{"redirect", admission.Redirect("auth_gate", "/sign-in"), "request redirected"},
		{"reject", admission.Reject("rate_limit", http.StatusTooManyRequests, "rate limit exceeded"), "request rejected"},
	}

	for _, tt := range tests {
		buf.Reset()
		chain := admission.NewChain(discardLogger(), &fixedGuard{decision: tt.decision})
		svc := NewAdmissionService(chain, logger)

		svc.Evaluate(context.Background(), serviceRequest())
		if !strings.Contains(buf.String(), tt.wantMsg) {
			t.Errorf("%s: log output %q missing %q", tt.name, buf.String(), tt.wantMsg)
		}
	}
}
