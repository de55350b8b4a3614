// Package identity provides outbound implementations of the session
// resolver: a static config-seeded resolver for development and a
// remote HTTP resolver for a real session-verification service.
package identity

import (
	"context"
	"fmt"

	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
)

// StaticSession seeds one resolvable session or bearer token.
type StaticSession struct {
	// TokenHash is the stored hash of the token (SHA-256 hex or
	// Argon2id PHC format).
	TokenHash string
	// Principal is returned when the presented token matches.
	Principal identity.Principal
}

// StaticResolver resolves credentials against a fixed token table.
// Intended for development and tests; tokens are verified against their
// stored hashes, never compared in the clear.
type StaticResolver struct {
	sessions []StaticSession
}

// NewStaticResolver creates a resolver from the seeded sessions.
// Each entry's hash format must be recognizable.
func NewStaticResolver(sessions []StaticSession) (*StaticResolver, error) {
	for _, s := range sessions {
		if identity.DetectHashType(s.TokenHash) == "unknown" {
			return nil, fmt.Errorf("session for principal %q: %w", s.Principal.ID, identity.ErrUnknownHashType)
		}
	}
	return &StaticResolver{sessions: sessions}, nil
}

// Resolve verifies the presented token against every seeded session.
// Anonymous (nil, nil) when no token is presented or none matches.
func (r *StaticResolver) Resolve(ctx context.Context, creds identity.Credentials) (*identity.Principal, error) {
	token := creds.Token()
	if token == "" {
		return nil, nil
	}

	for _, s := range r.sessions {
		ok, err := identity.VerifyToken(token, s.TokenHash)
		if err != nil {
			return nil, fmt.Errorf("verify session token: %w", err)
		}
		if ok {
			p := s.Principal
			return &p, nil
		}
	}
	return nil, nil
}

// Compile-time interface verification.
var _ identity.Resolver = (*StaticResolver)(nil)
