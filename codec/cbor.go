package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR serializes values using fxamacker/cbor. The zero value is NOT ready
// to use; construct with NewCBOR or MustCBOR.
//
// Use deterministic=true for canonical encoding (RFC 8949 Core
// Deterministic) when you need byte-for-byte stable outputs. Otherwise
// PreferredUnsortedEncOptions are used (sensible defaults). Time values are
// encoded as RFC3339Nano for stable, human-readable timestamps.
type CBOR[V any] struct {
	id  string
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

// NewCBOR constructs a CBOR codec with the given schema id.
//   - deterministic=true uses CoreDetEncOptions (RFC 8949).
//   - Otherwise PreferredUnsortedEncOptions (smaller/faster defaults).
func NewCBOR[V any](id string, deterministic bool) (CBOR[V], error) {
	var eo cbor.EncOptions
	if deterministic {
		eo = cbor.CoreDetEncOptions()
	} else {
		eo = cbor.PreferredUnsortedEncOptions()
	}
	eo.Time = cbor.TimeRFC3339Nano

	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{id: id, enc: em, dec: dm}, nil
}

// MustCBOR is like NewCBOR but panics on error. Handy for package-level
// variables in tests/examples; avoid in production setup paths.
func MustCBOR[V any](id string, deterministic bool) CBOR[V] {
	c, err := NewCBOR[V](id, deterministic)
	if err != nil {
		panic(err)
	}
	return c
}

func (c CBOR[V]) TypeID() string { return c.id }

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
