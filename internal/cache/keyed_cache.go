package cache

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
	"time"
)

// entry stores cached JSON bytes and their absolute expiration timestamp.
type entry struct {
	value     json.RawMessage
	expiresAt time.Time
}

// KeyedCache is a map-backed cache holding JSON values under string keys.
// It supports per-entry TTL with a store-wide default, exact and glob-pattern
// deletes, and copies values on both store and retrieval. Entirely
// process-local: independent server processes each hold their own cache, and
// invalidations on one never reach another.
type KeyedCache struct {
	mu    sync.RWMutex
	items map[string]entry

	defaultTTL  time.Duration
	cloneValues bool

	stopSweep chan struct{}
	sweepOnce sync.Once
}

// Options controls construction of a KeyedCache.
type Options struct {
	// DefaultTTL applies when Set is called with ttl <= 0. If zero itself,
	// it falls back to one hour.
	DefaultTTL time.Duration

	// SweepInterval, when positive, starts a background goroutine that
	// evicts expired entries periodically. Expired entries are treated as
	// absent on read regardless, so the sweep only bounds memory.
	SweepInterval time.Duration

	// CloneOnAccess controls whether values are copied on Get/Set. It must
	// be true for correctness; turning it off is only safe when every
	// caller treats returned values as read-only.
	CloneOnAccess bool
}

// NewKeyedCache constructs a KeyedCache with the given options.
func NewKeyedCache(opts Options) *KeyedCache {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = time.Hour
	}
	c := &KeyedCache{
		items:       make(map[string]entry),
		defaultTTL:  opts.DefaultTTL,
		cloneValues: opts.CloneOnAccess,
		stopSweep:   make(chan struct{}),
	}
	if opts.SweepInterval > 0 {
		go c.sweepLoop(opts.SweepInterval)
	}
	return c
}

// now is a small indirection to allow test stubbing.
var now = time.Now

// Get implements Store.Get.
func (c *KeyedCache) Get(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if now().After(e.expiresAt) {
		// expired; treated as a miss, eviction deferred to the sweep
		return nil, false
	}
	return c.clone(e.value), true
}

// Set implements Store.Set.
func (c *KeyedCache) Set(key string, value json.RawMessage, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry{
		value:     c.clone(value),
		expiresAt: now().Add(ttl),
	}
	return true
}

// Delete implements Store.Delete.
func (c *KeyedCache) Delete(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[key]; !ok {
		return 0
	}
	delete(c.items, key)
	return 1
}

// DeletePattern implements Store.DeletePattern. The glob is compiled by
// escaping every regex metacharacter except '*', which matches any substring;
// the resulting expression is anchored against the full key. Every stored key
// is scanned; correctness over cleverness.
func (c *KeyedCache) DeletePattern(pattern string) int {
	re, err := compileGlob(pattern)
	if err != nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k := range c.items {
		if re.MatchString(k) {
			delete(c.items, k)
			removed++
		}
	}
	return removed
}

// Len implements Store.Len. It counts only non-expired entries.
func (c *KeyedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nowTs := now()
	count := 0
	for _, e := range c.items {
		if nowTs.Before(e.expiresAt) {
			count++
		}
	}
	return count
}

// Flush implements Store.Flush.
func (c *KeyedCache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}

// Close stops the background sweep goroutine, if one was started.
func (c *KeyedCache) Close() {
	c.sweepOnce.Do(func() { close(c.stopSweep) })
}

func (c *KeyedCache) clone(v json.RawMessage) json.RawMessage {
	if !c.cloneValues || v == nil {
		return v
	}
	out := make(json.RawMessage, len(v))
	copy(out, v)
	return out
}

func (c *KeyedCache) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.purgeExpired()
		case <-c.stopSweep:
			return
		}
	}
}

func (c *KeyedCache) purgeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	nowTs := now()
	for k, e := range c.items {
		if nowTs.After(e.expiresAt) {
			delete(c.items, k)
		}
	}
}

// compileGlob turns a '*'-glob into an anchored regexp.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	escaped := regexp.QuoteMeta(pattern)
	escaped = strings.ReplaceAll(escaped, `\*`, `.*`)
	return regexp.Compile("^" + escaped + "$")
}

// Ensure KeyedCache implements Store at compile time.
var _ Store = (*KeyedCache)(nil)
