// Package backend defines the storage abstraction used by tagcache.
//
// A Backend stores Entry records by key and owns the physical layout:
// how entries are persisted, how tags are indexed, and how expired rows are
// purged efficiently. The orchestrator in the root package only issues the
// abstract operations below and never assumes an implementation strategy.
//
// Implementations MUST round-trip entries faithfully: Read must return the
// same TypeID, Payload, timestamps and tag set previously passed to Write
// for that key (payload bytes unmodified, tag set order-insensitive).
// Capacity and eviction policy are entirely the backend's business; the
// orchestrator only enforces freshness and type correctness on top.
package backend

import (
	"context"
	"errors"
)

// ErrUnsupported is returned by optional operations a backend does not
// implement (currently only DeleteTag). The orchestrator swallows it on its
// best-effort paths; direct backend callers may observe it.
var ErrUnsupported = errors.New("tagcache: operation not supported by backend")

// Entry is the record a backend persists for one cache key.
// Entries are immutable once written; the orchestrator expresses every
// mutation as a full overwrite by key.
type Entry struct {
	// Key is the caller's cache key. Never empty for a valid entry.
	Key string

	// TypeID identifies the codec schema that produced Payload. The
	// orchestrator compares it against its configured codec on read to
	// detect entries written under an incompatible schema.
	TypeID string

	// Payload is the encoded value. Opaque to backends.
	Payload []byte

	// CreatedAt is the write instant in epoch milliseconds.
	CreatedAt int64

	// ExpiresAt is the absolute expiration instant in epoch milliseconds.
	// Zero means the entry never expires.
	ExpiresAt int64

	// Tags are invalidation-group labels. No ordering semantics.
	Tags []string
}

// Expired reports whether the entry is expired at the given instant.
// An entry is expired exactly AT its expiration instant, not strictly after.
func (e *Entry) Expired(now int64) bool {
	return e.ExpiresAt != 0 && now >= e.ExpiresAt
}

// Clone returns a deep copy. In-process backends hand out clones so callers
// cannot mutate stored state through the returned pointer.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	cp := *e
	if e.Payload != nil {
		cp.Payload = append([]byte(nil), e.Payload...)
	}
	if e.Tags != nil {
		cp.Tags = append([]string(nil), e.Tags...)
	}
	return &cp
}

// Backend is a key/value store of Entry records with tag-index and
// bulk-purge support. Implementations must be safe for concurrent use.
type Backend interface {
	// Read returns the entry for key, or (nil, nil) on a miss.
	// Backends do not interpret ExpiresAt on Read; freshness is the
	// orchestrator's decision.
	Read(ctx context.Context, key string) (*Entry, error)

	// ReadAll returns every stored entry. The result is a finite snapshot,
	// not a restartable cursor.
	ReadAll(ctx context.Context) ([]*Entry, error)

	// Write stores the entry, overwriting any prior entry for the same key
	// including its previous tag associations.
	Write(ctx context.Context, e *Entry) error

	// Delete removes the entry for key. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry and all tag state.
	Clear(ctx context.Context) error

	// KeysByTag returns the keys currently associated with tag. Backends
	// without tag support return an empty slice.
	KeysByTag(ctx context.Context, tag string) ([]string, error)

	// DeleteTag drops the tag's index entry without touching the entries
	// themselves. May return ErrUnsupported.
	DeleteTag(ctx context.Context, tag string) error

	// PurgeExpired removes every entry whose ExpiresAt is non-zero and
	// <= now, returning how many were removed.
	PurgeExpired(ctx context.Context, now int64) (int, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
