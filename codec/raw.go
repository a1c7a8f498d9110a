package codec

// Bytes is an identity codec for []byte values. Encode/Decode return the
// input unchanged. Useful when the value type is already a raw byte slice
// and only the cache's expiry/tag bookkeeping is wanted.
type Bytes struct{ ID string }

func (c Bytes) TypeID() string { return c.ID }

func (Bytes) Encode(b []byte) ([]byte, error) { return b, nil }
func (Bytes) Decode(b []byte) ([]byte, error) { return b, nil }

// String is a trivial codec for Go string values. Encode converts to
// []byte, Decode converts back. By convention this assumes UTF-8 and
// performs no validation.
type String struct{ ID string }

func (c String) TypeID() string { return c.ID }

func (String) Encode(s string) ([]byte, error) { return []byte(s), nil }
func (String) Decode(b []byte) (string, error) { return string(b), nil }
