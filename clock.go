package tagcache

import "time"

// Clock is the time source used for expiration decisions. It exists so the
// freshness rules can be tested without sleeping; production code uses
// SystemClock.
type Clock interface {
	// Now returns the current instant as epoch milliseconds.
	Now() int64
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() int64 { return time.Now().UnixMilli() }
