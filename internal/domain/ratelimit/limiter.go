package ratelimit

import "context"

// Limiter is the interface for token-bucket admission control.
//
// The interface is storage-agnostic; the in-memory implementation keeps
// one bucket per key with per-key locking so that concurrent checks for
// the same key serialize while checks for different keys proceed
// independently.
type Limiter interface {
	// Allow checks whether a request of the given cost is admitted under
	// the config for the identified key. The check is atomic: two
	// concurrent calls for the same key never both spend the last token.
	//
	// When the request is denied, Result.RetryAfter reports how long until
	// enough tokens accrue.
	Allow(ctx context.Context, key string, cost int, config Config) (Result, error)
}
