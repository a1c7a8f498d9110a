package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack serializes values using vmihailenco/msgpack/v5.
//
// Msgpack is compact and fast; be mindful of struct tag differences vs
// JSON. Use `msgpack:"fieldName"` tags if you need explicit control.
type Msgpack[V any] struct{ ID string }

func (c Msgpack[V]) TypeID() string { return c.ID }

func (Msgpack[V]) Encode(v V) ([]byte, error) {
	return msgpack.Marshal(v)
}
func (Msgpack[V]) Decode(b []byte) (V, error) {
	var v V
	err := msgpack.Unmarshal(b, &v)
	return v, err
}
