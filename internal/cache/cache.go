package cache

import (
	"encoding/json"
	"time"
)

// Store defines the key-value cache API used by the read-through middleware and
// the attendance invalidation path. Values are JSON documents; implementations
// must hand out copies so that no caller can mutate stored state through an
// aliased reference.
type Store interface {
	// Get returns a fresh copy of the value and whether it was present and
	// not expired.
	Get(key string) (json.RawMessage, bool)

	// Set stores a copy of value with an optional TTL. If ttl <= 0, the
	// store-wide default TTL applies. Reports whether the value was stored.
	Set(key string, value json.RawMessage, ttl time.Duration) bool

	// Delete removes a key if present and returns the number of entries
	// removed (0 or 1).
	Delete(key string) int

	// DeletePattern removes every key matching the glob pattern, where '*'
	// matches any substring, and returns the number of entries removed.
	DeletePattern(pattern string) int

	// Len returns the number of non-expired entries currently stored.
	Len() int

	// Flush removes all entries.
	Flush()
}
