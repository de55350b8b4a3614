// Package identity contains the domain types and logic for principal resolution.
package identity

import (
	"context"
	"errors"
)

// ErrResolverUnavailable is returned when the external identity provider
// cannot be reached or times out. It signals an infrastructure failure,
// not "no identity" -- the auth gate applies its fail-open/fail-closed
// policy when it sees this error.
var ErrResolverUnavailable = errors.New("identity resolver unavailable")

// Principal represents a resolved requester identity.
type Principal struct {
	// ID is the unique identifier for this principal.
	ID string
	// Name is the display name for this principal.
	Name string
	// Roles are the roles assigned to this principal.
	Roles []string
}

// Credentials carries the raw identity material extracted from a request.
// Both fields may be empty for anonymous requests.
type Credentials struct {
	// SessionToken is the value of the session cookie, if present.
	SessionToken string
	// BearerToken is the token from an Authorization: Bearer header, if present.
	BearerToken string
}

// Token returns the strongest credential present: bearer token first,
// then session cookie. Empty string means anonymous.
func (c Credentials) Token() string {
	if c.BearerToken != "" {
		return c.BearerToken
	}
	return c.SessionToken
}

// Resolver resolves request credentials to a principal.
//
// Implementations must distinguish three outcomes:
//   - (principal, nil): the credentials identify a valid principal
//   - (nil, nil): no identity -- anonymous request, not an error
//   - (nil, err): resolution itself failed (provider down, timeout)
//
// Blocking implementations must honor ctx cancellation.
type Resolver interface {
	Resolve(ctx context.Context, creds Credentials) (*Principal, error)
}
