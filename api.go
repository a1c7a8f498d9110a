package tagcache

import (
	"context"
	"fmt"
	"time"

	be "github.com/unkn0wn-root/tagcache/backend"
	c "github.com/unkn0wn-root/tagcache/codec"
)

// FetchFunc loads a value from the source of truth on a cache miss.
type FetchFunc[V any] func(ctx context.Context) (V, error)

// Cache is the high-level, backend-agnostic cache API with time-based
// expiration, tag-based grouped invalidation and corruption-tolerant reads.
// V is the caller's value type; serialization is handled by a pluggable
// Codec[V] carrying a stable schema id.
type Cache[V any] interface {
	// Get returns the fresh value for key, or ok=false on a miss.
	// Expired entries are lazily deleted and reported as misses unless
	// AllowExpired is passed. Entries written under a different codec
	// schema, or whose payload no longer decodes, are deleted and missed
	// (or surfaced as classified errors when KeepCorrupted is set).
	Get(ctx context.Context, key string, opts ...ReadOption) (V, bool, error)

	// GetAll returns every stored value that passes the same freshness,
	// type and decode policy as Get. Entries removed along the way are
	// silently excluded.
	GetAll(ctx context.Context) ([]V, error)

	// Contains reports whether a fresh entry exists for key. It never
	// decodes, never validates type, and never deletes.
	Contains(ctx context.Context, key string) (bool, error)

	// Put encodes value and overwrites the entry for key, including any
	// prior tag associations. Without WithTTL the entry never expires.
	Put(ctx context.Context, key string, value V, opts ...WriteOption) error

	// Remove deletes the entry for key unconditionally.
	Remove(ctx context.Context, key string) error
	// Invalidate is Remove under a name that states intent rather than
	// mechanism.
	Invalidate(ctx context.Context, key string) error

	// InvalidateTag deletes every entry associated with tag, best-effort:
	// a failure deleting one key is logged and does not stop the rest.
	InvalidateTag(ctx context.Context, tag string) error

	// PurgeExpired asks the backend to bulk-remove expired entries and
	// returns how many were removed. Failures are logged and reported as 0;
	// purge is a maintenance hint, not a correctness-critical operation.
	PurgeExpired(ctx context.Context) int

	// Clear wipes the backend.
	Clear(ctx context.Context) error

	// GetOrFetch implements cache-aside: return the cached value on a hit,
	// otherwise fetch, store and return. A fetch failure on a true miss
	// propagates unmodified. With StaleWhileRevalidate, a hit (fresh or
	// expired) is returned immediately while a detached refresh runs in the
	// background; refresh failures are only logged.
	GetOrFetch(ctx context.Context, key string, fetch FetchFunc[V], opts ...FetchOption) (V, error)

	// Close releases the backend.
	Close(ctx context.Context) error
}

// Options configure a Cache. Backend and Codec are required; everything
// else has a sensible default.
type Options[V any] struct {
	Backend be.Backend
	Codec   c.Codec[V]

	Logger    Logger    // nil => NopLogger
	Clock     Clock     // nil => SystemClock
	TTLPolicy TTLPolicy // nil => FixedTTL

	// KeepCorrupted disables the default auto-clean of corrupted entries:
	// instead of deleting a type-mismatched or undecodable entry and
	// returning a miss, reads surface a classified error.
	KeepCorrupted bool

	// SingleFlight dedupes concurrent cold GetOrFetch calls per key so at
	// most one fetch is in flight. Off by default: the reference protocol
	// lets concurrent cold readers each fetch and store independently.
	SingleFlight bool
}

// New builds a Cache from opts.
func New[V any](opts Options[V]) (Cache[V], error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("tagcache: backend is required")
	}
	if opts.Codec == nil {
		return nil, fmt.Errorf("tagcache: codec is required")
	}
	if opts.Codec.TypeID() == "" {
		return nil, fmt.Errorf("tagcache: codec type id must not be empty")
	}
	return newStore[V](opts), nil
}

// ReadOption tunes a single Get call.
type ReadOption func(*readConfig)

type readConfig struct {
	allowExpired bool
}

// AllowExpired lets Get return an entry past its expiration instant instead
// of lazily deleting it.
func AllowExpired() ReadOption {
	return func(rc *readConfig) { rc.allowExpired = true }
}

// WriteOption tunes a single Put call.
type WriteOption func(*writeConfig)

type writeConfig struct {
	ttl    time.Duration
	hasTTL bool
	tags   []string
}

// WithTTL sets the entry's time-to-live relative to the write instant.
// d <= 0 writes an entry that is already expired (useful to force the next
// reader onto the fetch path). Omitting WithTTL writes an entry that never
// expires.
func WithTTL(d time.Duration) WriteOption {
	return func(wc *writeConfig) { wc.ttl, wc.hasTTL = d, true }
}

// WithTags associates invalidation-group labels with the entry.
func WithTags(tags ...string) WriteOption {
	return func(wc *writeConfig) { wc.tags = append(wc.tags, tags...) }
}

// FetchOption tunes a single GetOrFetch call. Every WriteOption is also a
// valid FetchOption via Store.
type FetchOption func(*fetchConfig)

type fetchConfig struct {
	write writeConfig
	swr   bool
}

// Store applies write options (TTL, tags) to the value GetOrFetch puts.
func Store(opts ...WriteOption) FetchOption {
	return func(fc *fetchConfig) {
		for _, o := range opts {
			o(&fc.write)
		}
	}
}

// StaleWhileRevalidate makes GetOrFetch return a cached value even when it
// is expired, refreshing it in the background for future callers.
func StaleWhileRevalidate() FetchOption {
	return func(fc *fetchConfig) { fc.swr = true }
}
