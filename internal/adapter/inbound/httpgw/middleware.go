// Package httpgw provides the inbound HTTP gateway: the middleware stack
// that builds an admission request for every inbound call, evaluates the
// guard chain, and translates its decision back to HTTP.
package httpgw

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/Ledger-Gate/ledgergate/internal/ctxkey"
	"github.com/Ledger-Gate/ledgergate/internal/domain/identity"
	"github.com/Ledger-Gate/ledgergate/internal/domain/ratelimit"
)

// DefaultSessionCookie is the cookie the identity provider sets for
// browser sessions.
const DefaultSessionCookie = "__session"

// LoggerKey is the context key for the enriched logger.
// Uses the shared key type from ctxkey to allow cross-package access
// without import cycles.
var LoggerKey = ctxkey.LoggerKey{}

// RequestIDKey is the context key for the request correlation ID.
var RequestIDKey = ctxkey.RequestIDKey{}

// credentialsContextKey is the type for the extracted credentials key.
type credentialsContextKey struct{}

// identityKeyContextKey is the type for the identity-key context key.
type identityKeyContextKey struct{}

// realIPContextKey is the type for the client IP context key.
type realIPContextKey struct{}

// RequestIDMiddleware extracts or generates a request ID and enriches the
// logger. The ID is echoed back in the X-Request-ID response header for
// correlation.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			ctx = context.WithValue(ctx, LoggerKey, enriched)

			w.Header().Set("X-Request-ID", requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// RequestIDFromContext retrieves the request correlation ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// RealIPMiddleware extracts the client's real IP address.
// It checks X-Forwarded-For and X-Real-IP (reverse proxy support), falling
// back to r.RemoteAddr. Only the first X-Forwarded-For entry is trusted.
func RealIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := extractRealIP(r)
		ctx := context.WithValue(r.Context(), realIPContextKey{}, ip)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RealIPFromContext retrieves the client IP stored by RealIPMiddleware.
func RealIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(realIPContextKey{}).(string); ok {
		return ip
	}
	return ""
}

// extractRealIP extracts the client's real IP address from the request.
func extractRealIP(r *http.Request) string {
	// X-Forwarded-For: client, proxy1, proxy2 -- trust only the first entry.
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			if ip := strings.TrimSpace(ips[0]); ip != "" {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// CredentialsMiddleware extracts the raw identity material (session cookie
// and bearer token) and derives the rate-limit identity key from it. The
// credential is never verified here; verification happens in the auth gate.
// The unverified hint only partitions rate-limit state, so a forged token
// buys an attacker nothing but its own bucket.
func CredentialsMiddleware(sessionCookie string) func(http.Handler) http.Handler {
	if sessionCookie == "" {
		sessionCookie = DefaultSessionCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			creds := extractCredentials(r, sessionCookie)

			ctx := context.WithValue(r.Context(), credentialsContextKey{}, creds)
			ctx = context.WithValue(ctx, identityKeyContextKey{}, deriveIdentityKey(ctx, r, creds))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CredentialsFromContext retrieves the extracted credentials.
func CredentialsFromContext(ctx context.Context) identity.Credentials {
	if creds, ok := ctx.Value(credentialsContextKey{}).(identity.Credentials); ok {
		return creds
	}
	return identity.Credentials{}
}

// IdentityKeyFromContext retrieves the derived rate-limit partition key.
func IdentityKeyFromContext(ctx context.Context) string {
	if key, ok := ctx.Value(identityKeyContextKey{}).(string); ok {
		return key
	}
	return ""
}

// extractCredentials pulls the session cookie and bearer token off the request.
func extractCredentials(r *http.Request, sessionCookie string) identity.Credentials {
	var creds identity.Credentials

	if c, err := r.Cookie(sessionCookie); err == nil {
		creds.SessionToken = c.Value
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		creds.BearerToken = strings.TrimPrefix(auth, "Bearer ")
	}
	return creds
}

// deriveIdentityKey computes the rate-limit partition key for a request.
// Requests with a credential get "user:<credential hash>" so the same
// session maps to the same bucket across IPs; anonymous requests get
// "fp:<hash>" over IP and User-Agent.
func deriveIdentityKey(ctx context.Context, r *http.Request, creds identity.Credentials) string {
	if token := creds.Token(); token != "" {
		h := sha256.Sum256([]byte(token))
		return ratelimit.FormatKey(ratelimit.KeyTypeUser, hex.EncodeToString(h[:8]))
	}

	ip := RealIPFromContext(ctx)
	if ip == "" {
		ip = extractRealIP(r)
	}
	fp := xxhash.Sum64String(ip + "|" + r.UserAgent())
	return ratelimit.FormatKey(ratelimit.KeyTypeFingerprint, strconv.FormatUint(fp, 16))
}
