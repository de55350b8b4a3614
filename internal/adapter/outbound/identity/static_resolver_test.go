package identity

import (
	"context"
	"errors"
	"testing"

	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
)

func TestNewStaticResolver_RejectsUnknownHashFormat(t *testing.T) {
	t.Parallel()

	_, err := NewStaticResolver([]StaticSession{
		{TokenHash: "not-a-hash", Principal: identity.Principal{ID: "u-1"}},
	})
	if !errors.Is(err, identity.ErrUnknownHashType) {
		t.Errorf("error = %v, want ErrUnknownHashType", err)
	}
}

func TestStaticResolver_Resolve(t *testing.T) {
	t.Parallel()

	resolver, err := NewStaticResolver([]StaticSession{
		{
			TokenHash: identity.HashToken("alice-token"),
			Principal: identity.Principal{ID: "u-alice", Name: "Alice", Roles: []string{"user"}},
		},
		{
			TokenHash: "sha256:" + identity.HashToken("bob-token"),
			Principal: identity.Principal{ID: "u-bob", Name: "Bob"},
		},
	})
	if err != nil {
		t.Fatalf("NewStaticResolver() error: %v", err)
	}

	ctx := context.Background()

	t.Run("matching session token", func(t *testing.T) {
		p, err := resolver.Resolve(ctx, identity.Credentials{SessionToken: "alice-token"})
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p == nil || p.ID != "u-alice" {
			t.Errorf("principal = %+v, want u-alice", p)
		}
	})

	t.Run("matching prefixed hash", func(t *testing.T) {
		p, err := resolver.Resolve(ctx, identity.Credentials{SessionToken: "bob-token"})
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p == nil || p.ID != "u-bob" {
			t.Errorf("principal = %+v, want u-bob", p)
		}
	})

	t.Run("bearer token preferred", func(t *testing.T) {
		p, err := resolver.Resolve(ctx, identity.Credentials{
			SessionToken: "bob-token",
			BearerToken:  "alice-token",
		})
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p == nil || p.ID != "u-alice" {
			t.Errorf("principal = %+v, want u-alice (bearer wins)", p)
		}
	})

	t.Run("no token is anonymous", func(t *testing.T) {
		p, err := resolver.Resolve(ctx, identity.Credentials{})
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p != nil {
			t.Errorf("principal = %+v, want nil", p)
		}
	})

	t.Run("unknown token is anonymous", func(t *testing.T) {
		p, err := resolver.Resolve(ctx, identity.Credentials{SessionToken: "stolen-token"})
		if err != nil {
			t.Fatalf("Resolve() error: %v", err)
		}
		if p != nil {
			t.Errorf("principal = %+v, want nil", p)
		}
	})
}

func TestStaticResolver_ReturnsCopy(t *testing.T) {
	t.Parallel()

	resolver, err := NewStaticResolver([]StaticSession{
		{
			TokenHash: identity.HashToken("tok"),
			Principal: identity.Principal{ID: "u-1", Name: "Original"},
		},
	})
	if err != nil {
		t.Fatalf("NewStaticResolver() error: %v", err)
	}

	p, err := resolver.Resolve(context.Background(), identity.Credentials{SessionToken: "tok"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	p.Name = "Mutated"

	p2, err := resolver.Resolve(context.Background(), identity.Credentials{SessionToken: "tok"})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if p2.Name != "Original" {
		t.Error("caller mutation leaked into the seeded principal")
	}
}
