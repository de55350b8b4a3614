// Package admission contains the core domain logic for the request
// admission pipeline: the ordered chain of guards that decides, for every
// inbound HTTP request, whether it is forwarded, redirected, or rejected.
package admission

import (
	"net/http"
	"net/url"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
)

// Outcome is the terminal classification of an admission decision.
type Outcome string

const (
	// OutcomeForward lets the request through to the application.
	OutcomeForward Outcome = "forward"
	// OutcomeRedirect sends the client to another location (sign-in flow).
	OutcomeRedirect Outcome = "redirect"
	// OutcomeReject refuses the request with an HTTP error status.
	OutcomeReject Outcome = "reject"
)

// Mode controls whether a guard's denials block requests.
type Mode string

const (
	// ModeEnforce blocks requests the guard denies.
	ModeEnforce Mode = "enforce"
	// ModeObserve records denials but never blocks.
	ModeObserve Mode = "observe"
)

// IsValid returns true if the mode is a known valid mode.
func (m Mode) IsValid() bool {
	switch m {
	case ModeEnforce, ModeObserve:
		return true
	default:
		return false
	}
}

// Request is the admission pipeline's view of an inbound HTTP request.
// It is constructed once per request by the HTTP adapter and discarded
// after the pipeline produces its decision.
type Request struct {
	// Method is the HTTP method.
	Method string
	// Path is the URL path.
	Path string
	// Query contains the parsed query parameters.
	Query url.Values
	// Header contains the request headers.
	Header http.Header
	// OriginalURL is the full request URL, used as the post-sign-in return target.
	OriginalURL string
	// SourceIP is the client's real IP (proxy headers already resolved).
	SourceIP string
	// UserAgent is the User-Agent header value.
	UserAgent string
	// ContentLength is the declared request body size (-1 if unknown).
	ContentLength int64
	// ReceivedAt is when the request entered the pipeline.
	ReceivedAt time.Time
	// RequestID is the correlation ID assigned by the HTTP adapter.
	RequestID string

	// Credentials is the raw identity material extracted from the request.
	Credentials identity.Credentials
	// IdentityKey is the rate-limit partition key: "user:<hash>" for requests
	// carrying a credential, "fp:<hex>" (IP + User-Agent fingerprint) otherwise.
	IdentityKey string

	// Principal is the resolved identity, set by the auth gate. Nil for
	// anonymous requests. No stage other than the auth gate may write it.
	Principal *identity.Principal
}

// Decision is the pipeline's terminal output for one request.
// Produced exactly once per request.
type Decision struct {
	// Outcome classifies the decision.
	Outcome Outcome
	// Stage names the guard that produced a terminal decision (empty for forward).
	Stage string
	// Status is the HTTP status to respond with for reject/redirect outcomes.
	Status int
	// Reason is a short, client-safe explanation for reject outcomes.
	Reason string
	// Location is the redirect target for redirect outcomes.
	Location string
	// RetryAfter is the advisory retry delay for rate-limit rejections.
	RetryAfter time.Duration
}

// Terminal returns true if the decision short-circuits the pipeline.
func (d Decision) Terminal() bool {
	return d.Outcome != OutcomeForward
}

// Forward returns the permissive decision.
func Forward() Decision {
	return Decision{Outcome: OutcomeForward}
}

// Reject returns a terminal rejection produced by the named stage.
func Reject(stage string, status int, reason string) Decision {
	return Decision{
		Outcome: OutcomeReject,
		Stage:   stage,
		Status:  status,
		Reason:  reason,
	}
}

// Redirect returns a terminal redirect produced by the named stage.
// Uses 307 so browsers preserve the request method across the redirect.
func Redirect(stage, location string) Decision {
	return Decision{
		Outcome:  OutcomeRedirect,
		Stage:    stage,
		Status:   http.StatusTemporaryRedirect,
		Location: location,
	}
}
