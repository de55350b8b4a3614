package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
)

const defaultResolveTimeout = 3 * time.Second

// HTTPResolverConfig holds configuration for the remote session resolver.
type HTTPResolverConfig struct {
	// VerifyURL is the session-verification endpoint.
	VerifyURL string
	// Timeout bounds each verification call (default 3s).
	Timeout time.Duration
}

// HTTPResolver verifies session tokens against a remote identity service.
// A network failure or a 5xx response maps to identity.ErrResolverUnavailable
// so the auth gate can apply its configured fail mode.
type HTTPResolver struct {
	verifyURL string
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPResolver creates a resolver calling the configured verify endpoint.
func NewHTTPResolver(cfg HTTPResolverConfig, logger *slog.Logger) *HTTPResolver {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &HTTPResolver{
		verifyURL: cfg.VerifyURL,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// verifyRequest is the wire format sent to the verification endpoint.
type verifyRequest struct {
	Token string `json:"token"`
}

// verifyResponse is the wire format returned by the verification endpoint.
type verifyResponse struct {
	Authenticated bool `json:"authenticated"`
	User          struct {
		ID    string   `json:"id"`
		Name  string   `json:"name"`
		Roles []string `json:"roles"`
	} `json:"user"`
}

// Resolve verifies the presented token with the remote service.
//
// Anonymous (nil, nil) when no token is presented or the service says the
// session is invalid. ErrResolverUnavailable when the service cannot be
// reached or answers with a server error.
func (r *HTTPResolver) Resolve(ctx context.Context, creds identity.Credentials) (*identity.Principal, error) {
	token := creds.Token()
	if token == "" {
		return nil, nil
	}

	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.verifyURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("session verification unreachable", "error", err)
		return nil, fmt.Errorf("%w: %v", identity.ErrResolverUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Parsed below.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// Invalid or expired session.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, nil
	case resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		r.logger.Warn("session verification failed", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", identity.ErrResolverUnavailable, resp.StatusCode)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("session verification: unexpected status %d", resp.StatusCode)
	}

	var vr verifyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&vr); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}

	if !vr.Authenticated || vr.User.ID == "" {
		return nil, nil
	}

	return &identity.Principal{
		ID:    vr.User.ID,
		Name:  vr.User.Name,
		Roles: vr.User.Roles,
	}, nil
}

// Compile-time interface verification.
var _ identity.Resolver = (*HTTPResolver)(nil)
