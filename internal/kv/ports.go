package kv

import "context"

// Store is the key-value port the persisted game state is written through.
// Values are opaque strings owned by the caller.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
