// Package tagcache implements a backend-agnostic cache orchestration layer:
// type-safe get/put/invalidate over a pluggable storage backend, with
// time-based expiration, tag-based grouped invalidation and
// corruption-tolerant reads.
//
// Components:
//   - backend.Backend: entry store with tag-index and bulk-purge support
//     (in-memory, Redis, SQLite, BigCache, Ristretto adapters included).
//   - codec.Codec[V]: (de)serializes V <-> []byte under a stable type id.
//   - Clock / TTLPolicy: epoch-ms time source and TTL-to-instant mapping.
//
// Freshness rule: an entry with a non-zero expiration instant is expired
// exactly AT that instant (now >= expiresAt). Expiration is lazy: expired
// entries are removed when a read touches them, or in bulk via
// PurgeExpired.
//
// Corruption rule: an entry whose stored type id does not match the
// configured codec, or whose payload no longer decodes, is deleted and the
// read misses. Set Options.KeepCorrupted to surface classified errors
// instead.
//
// Cache-aside:
//
//	v, err := cache.GetOrFetch(ctx, key, loadFromDB,
//	    tagcache.Store(tagcache.WithTTL(time.Minute), tagcache.WithTags("user")),
//	    tagcache.StaleWhileRevalidate())
package tagcache
