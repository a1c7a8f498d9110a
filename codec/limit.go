package codec

import "fmt"

// Limit wraps another codec to enforce a maximum allowed payload size at
// Decode time. Encode and TypeID are forwarded to Inner unchanged (the
// wrapper does not change the schema). If MaxDecode <= 0, size limiting is
// disabled.
//
// Typical use: protect against oversized/malicious payloads coming from a
// shared backend.
type Limit[V any] struct {
	// Inner is the underlying codec being wrapped. It must be set.
	Inner Codec[V]
	// MaxDecode is the maximum permitted length (in bytes) of the incoming
	// payload for Decode. If exceeded, Decode returns an error without
	// invoking Inner.
	MaxDecode int
}

func (c Limit[V]) TypeID() string { return c.Inner.TypeID() }

func (c Limit[V]) Encode(v V) ([]byte, error) { return c.Inner.Encode(v) }
func (c Limit[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("payload too large: %d > %d", len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
