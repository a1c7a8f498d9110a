package codec

import (
	"bytes"
	"strings"
	"testing"
)

type sample struct {
	ID    string   `json:"id" msgpack:"id"`
	Count int      `json:"count" msgpack:"count"`
	Tags  []string `json:"tags" msgpack:"tags"`
}

func TestJSONRoundTrip(t *testing.T) {
	cd := JSON[sample]{ID: "sample@1"}
	if cd.TypeID() != "sample@1" {
		t.Fatalf("TypeID: %q", cd.TypeID())
	}
	in := sample{ID: "a", Count: 3, Tags: []string{"x", "y"}}
	b, err := cd.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := cd.Decode(b)
	if err != nil || out.ID != in.ID || out.Count != in.Count || len(out.Tags) != 2 {
		t.Fatalf("round trip: out=%+v err=%v", out, err)
	}
	if _, err := cd.Decode([]byte("{broken")); err == nil {
		t.Fatalf("expected decode error on malformed input")
	}
}

type flat struct {
	ID    string `msgpack:"id"`
	Count int    `msgpack:"count"`
}

func TestMsgpackRoundTrip(t *testing.T) {
	cd := Msgpack[flat]{ID: "flat@1"}
	in := flat{ID: "a", Count: -7}
	b, err := cd.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := cd.Decode(b)
	if err != nil || out != in {
		t.Fatalf("round trip: out=%+v err=%v", out, err)
	}
}

func TestCBORRoundTrip(t *testing.T) {
	cd, err := NewCBOR[flat]("flat@1", true)
	if err != nil {
		t.Fatal(err)
	}
	in := flat{ID: "a", Count: 99}
	b, err := cd.Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	// deterministic mode: identical input, identical bytes
	b2, err := cd.Encode(in)
	if err != nil || !bytes.Equal(b, b2) {
		t.Fatalf("deterministic encode differs: %v", err)
	}
	out, err := cd.Decode(b)
	if err != nil || out != in {
		t.Fatalf("round trip: out=%+v err=%v", out, err)
	}
}

func TestRawCodecs(t *testing.T) {
	bc := Bytes{ID: "raw@1"}
	if bc.TypeID() != "raw@1" {
		t.Fatalf("TypeID: %q", bc.TypeID())
	}
	in := []byte{1, 2, 3}
	enc, _ := bc.Encode(in)
	dec, _ := bc.Decode(enc)
	if !bytes.Equal(dec, in) {
		t.Fatalf("bytes identity broken: %v", dec)
	}

	sc := String{ID: "str@1"}
	enc2, _ := sc.Encode("héllo")
	dec2, _ := sc.Decode(enc2)
	if dec2 != "héllo" {
		t.Fatalf("string identity broken: %q", dec2)
	}
}

func TestLimitForwardsAndEnforces(t *testing.T) {
	inner := JSON[sample]{ID: "sample@1"}
	lim := Limit[sample]{Inner: inner, MaxDecode: 8}

	if lim.TypeID() != inner.TypeID() {
		t.Fatalf("limit wrapper must not change the schema id")
	}

	big, err := lim.Encode(sample{ID: strings.Repeat("x", 100)})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lim.Decode(big); err == nil {
		t.Fatalf("oversized payload must be rejected")
	}

	small, err := lim.Encode(sample{})
	if err != nil {
		t.Fatal(err)
	}
	// under an unlimited wrapper the same payload decodes fine
	if _, err := (Limit[sample]{Inner: inner}).Decode(small); err != nil {
		t.Fatalf("unlimited wrapper rejected valid payload: %v", err)
	}
}
