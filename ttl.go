package tagcache

import (
	"math/rand"
	"time"
)

// TTLPolicy maps a requested time-to-live into an absolute expiration
// instant. Alternate policies (jitter, sliding windows) must honor the same
// return contract so the orchestrator needs no special-casing:
//
//   - hasTTL == false         => 0 (never expires)
//   - hasTTL && ttl <= 0      => "now" (expired at the very next check,
//     because expiry uses now >= expiresAt)
//   - hasTTL && ttl > 0       => an absolute epoch-ms instant
type TTLPolicy interface {
	ExpiresAt(ttl time.Duration, hasTTL bool, clock Clock) int64
}

// FixedTTL is the default policy: the expiration instant is exactly
// now + ttl.
type FixedTTL struct{}

func (FixedTTL) ExpiresAt(ttl time.Duration, hasTTL bool, clock Clock) int64 {
	if !hasTTL {
		return 0
	}
	now := clock.Now()
	if ttl <= 0 {
		return now
	}
	return now + ttl.Milliseconds()
}

// JitterTTL spreads expirations by adding a uniformly random extra duration
// in [0, Spread) to each positive TTL. Useful to avoid synchronized expiry
// stampedes when many entries are written together.
//
// Non-positive TTLs are not jittered: "already expired" stays exact.
type JitterTTL struct {
	Spread time.Duration
}

func (p JitterTTL) ExpiresAt(ttl time.Duration, hasTTL bool, clock Clock) int64 {
	if !hasTTL {
		return 0
	}
	now := clock.Now()
	if ttl <= 0 {
		return now
	}
	exp := now + ttl.Milliseconds()
	if ms := p.Spread.Milliseconds(); ms > 0 {
		exp += rand.Int63n(ms)
	}
	return exp
}
