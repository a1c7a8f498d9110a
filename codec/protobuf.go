package codec

import "google.golang.org/protobuf/proto"

// Protobuf serializes proto messages. Construct with NewProtobuf, passing a
// constructor for the concrete message type
// (e.g. func() *mypb.User { return &mypb.User{} }).
type Protobuf[T proto.Message] struct {
	id  string
	new func() T
}

func NewProtobuf[T proto.Message](id string, ctor func() T) Protobuf[T] {
	return Protobuf[T]{id: id, new: ctor}
}

func (c Protobuf[T]) TypeID() string { return c.id }

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.Marshal(v)
}
func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
