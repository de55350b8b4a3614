package httpgw

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/admission"
	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
	"github.com/Ledger-Gate/ledgergate/internal/domain/route"
	"github.com/Ledger-Gate/ledgergate/internal/service"
)

// principalContextKey is the type for the resolved-principal context key.
type principalContextKey struct{}

// PrincipalFromContext retrieves the principal the auth gate attached.
// Nil for anonymous requests.
func PrincipalFromContext(ctx context.Context) *identity.Principal {
	if p, ok := ctx.Value(principalContextKey{}).(*identity.Principal); ok {
		return p
	}
	return nil
}

// AdmissionMiddleware evaluates the guard chain for every request that is
// not a bypassed static asset, then maps the decision onto the response:
// forward continues to the next handler with the principal in context,
// redirect answers 307 with a Location, reject answers the guard's status.
func AdmissionMiddleware(svc *service.AdmissionService, routes *route.Classifier, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if routes.Bypass(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			req := buildAdmissionRequest(r)
			decision := svc.Evaluate(r.Context(), req)

			if metrics != nil {
				metrics.RequestsTotal.WithLabelValues(r.Method, string(decision.Outcome)).Inc()
				metrics.RequestDuration.WithLabelValues(string(decision.Outcome)).Observe(time.Since(start).Seconds())
				if decision.Terminal() {
					metrics.GuardDenialsTotal.WithLabelValues(decision.Stage).Inc()
				}
			}

			switch decision.Outcome {
			case admission.OutcomeRedirect:
				http.Redirect(w, r, decision.Location, decision.Status)

			case admission.OutcomeReject:
				if decision.RetryAfter > 0 {
					w.Header().Set("Retry-After", retryAfterSeconds(decision.RetryAfter))
				}
				http.Error(w, decision.Reason, decision.Status)

			default:
				ctx := r.Context()
				if req.Principal != nil {
					ctx = context.WithValue(ctx, principalContextKey{}, req.Principal)
				}
				next.ServeHTTP(w, r.WithContext(ctx))
			}
		})
	}
}

// buildAdmissionRequest projects an http.Request onto the pipeline's view.
func buildAdmissionRequest(r *http.Request) *admission.Request {
	ctx := r.Context()
	return &admission.Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		Query:         r.URL.Query(),
		Header:        r.Header,
		OriginalURL:   r.URL.RequestURI(),
		SourceIP:      RealIPFromContext(ctx),
		UserAgent:     r.UserAgent(),
		ContentLength: r.ContentLength,
		ReceivedAt:    time.Now().UTC(),
		RequestID:     RequestIDFromContext(ctx),
		Credentials:   CredentialsFromContext(ctx),
		IdentityKey:   IdentityKeyFromContext(ctx),
	}
}

// retryAfterSeconds renders a duration as whole seconds, rounded up so the
// client never retries early.
func retryAfterSeconds(d time.Duration) string {
	secs := int64(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.FormatInt(secs, 10)
}
