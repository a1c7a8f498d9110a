// Package codec defines how cached values are serialized.
//
// Every codec carries a stable type id that is stored alongside the encoded
// payload. The id must never be reused for an incompatible schema: when the
// encoding of a value type changes, mint a new id (e.g. "user@2") so that
// previously written entries are flagged as mismatched instead of silently
// decoding into garbage.
package codec

// Codec encodes/decodes values V to []byte for storage.
//
// Decode(Encode(v)) == v must hold for all valid v; the cache relies on
// this round-trip for correctness. Decode may fail on malformed input,
// which the cache maps to its corrupted-entry policy.
type Codec[V any] interface {
	// TypeID returns the schema id written with every entry this codec
	// produces. Must be non-empty and stable.
	TypeID() string
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
