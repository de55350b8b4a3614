// Package ratelimit provides rate limiting domain types.
package ratelimit

import (
	"fmt"
	"time"
)

// Config defines the token-bucket parameters for one identity key.
type Config struct {
	// Capacity is the maximum number of tokens a bucket holds.
	Capacity int

	// RefillRate is the number of tokens added per Interval.
	RefillRate int

	// Interval is the refill period.
	Interval time.Duration
}

// DefaultConfig matches the production policy: bursts up to 30 requests,
// sustained ~1 request per 2 seconds.
func DefaultConfig() Config {
	return Config{
		Capacity:   30,
		RefillRate: 30,
		Interval:   60 * time.Second,
	}
}

// Result contains the outcome of an admission check.
type Result struct {
	// Allowed indicates whether the request is admitted.
	Allowed bool

	// Remaining is the number of whole tokens left in the bucket.
	Remaining int

	// RetryAfter is the duration until enough tokens accrue for the
	// requested cost. Only meaningful when Allowed is false.
	RetryAfter time.Duration
}

// KeyType identifies how a rate-limit key was derived.
type KeyType string

const (
	// KeyTypeUser keys buckets by a principal-derived credential hash.
	KeyTypeUser KeyType = "user"

	// KeyTypeFingerprint keys buckets by an anonymous client fingerprint.
	KeyTypeFingerprint KeyType = "fp"
)

// FormatKey returns a structured rate-limit key.
// Format: "{type}:{value}"
// Examples:
//   - FormatKey(KeyTypeUser, "b1946ac9") -> "user:b1946ac9"
//   - FormatKey(KeyTypeFingerprint, "4cf7a1bc") -> "fp:4cf7a1bc"
func FormatKey(keyType KeyType, value string) string {
	return fmt.Sprintf("%s:%s", keyType, value)
}
