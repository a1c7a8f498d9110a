package wire

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/unkn0wn-root/tagcache/backend"
)

func mustDecode(t *testing.T, b []byte) *backend.Entry {
	t.Helper()
	e, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return e
}

func TestEntryRoundTrip(t *testing.T) {
	cases := []*backend.Entry{
		{Key: "k", TypeID: "user@1", Payload: nil, CreatedAt: 0, ExpiresAt: 0},
		{Key: "k2", TypeID: "", Payload: []byte("hello"), CreatedAt: 1_700_000_000_000, ExpiresAt: 1_700_000_060_000},
		{Key: "k3", TypeID: "t", Payload: []byte{0, 1, 2, 3}, CreatedAt: 5, ExpiresAt: 0, Tags: []string{"a", "b", "c"}},
	}
	for _, in := range cases {
		got := mustDecode(t, EncodeEntry(in))
		if got.Key != in.Key || got.TypeID != in.TypeID ||
			got.CreatedAt != in.CreatedAt || got.ExpiresAt != in.ExpiresAt {
			t.Fatalf("header mismatch: got %+v want %+v", got, in)
		}
		if !bytes.Equal(got.Payload, in.Payload) {
			t.Fatalf("payload mismatch: got %x want %x", got.Payload, in.Payload)
		}
		if !reflect.DeepEqual(got.Tags, in.Tags) {
			t.Fatalf("tags mismatch: got %v want %v", got.Tags, in.Tags)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := EncodeEntry(&backend.Entry{Key: "k", TypeID: "t", Payload: []byte("x")})
	enc = append(enc, 0xDE, 0xAD)
	if _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestDecodeRejectsCorruptHeaders(t *testing.T) {
	enc := EncodeEntry(&backend.Entry{Key: "k", TypeID: "t", Payload: []byte("abc"), Tags: []string{"g"}})

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	if _, err := DecodeEntry([]byte("short")); err == nil {
		t.Fatalf("expected error on short input")
	}

	// every truncation must fail cleanly, never panic
	for i := 1; i < len(enc); i++ {
		if _, err := DecodeEntry(enc[:i]); err == nil {
			t.Fatalf("truncation at %d decoded successfully", i)
		}
	}
}

func TestDecodeRejectsEmptyKey(t *testing.T) {
	enc := EncodeEntry(&backend.Entry{Key: "", TypeID: "t", Payload: []byte("x")})
	if _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on empty key")
	}
}
