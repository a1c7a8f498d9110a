package codec

import "encoding/json"

// JSON serializes values with encoding/json. ID is the schema id and must
// be set.
type JSON[V any] struct{ ID string }

func (c JSON[V]) TypeID() string { return c.ID }

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
