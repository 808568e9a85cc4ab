package store

import "context"

// KV is the single shared key-value store behind the session vault and the
// audit log. Values are JSON documents keyed by independent record keys;
// writes are last-write-wins at record granularity, which is all the vault
// and audit layers require (no cross-record transactions). Implementations
// must be safe for concurrent use.
type KV interface {
	// GetJSON unmarshals the value at key into dst. A missing key is a miss,
	// not an error; a corrupt value is deleted and treated as a miss.
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any) error
	Del(ctx context.Context, keys ...string) error
	// Keys returns every key with the given prefix, sorted, so sweeps and
	// listings are deterministic.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
