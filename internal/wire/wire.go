// Package wire frames a backend.Entry as a self-describing byte envelope
// for backends that only store opaque bytes (Redis, BigCache, Ristretto).
// Decoding is strict: anything that is not a byte-exact envelope is
// reported as ErrCorrupt so the orchestrator's corruption policy can kick
// in.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/unkn0wn-root/tagcache/backend"
)

const version byte = 1

var (
	ErrCorrupt = errors.New("tagcache: corrupt entry envelope")
	magic4     = [...]byte{'T', 'G', 'C', 'E'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Envelope layout:
//
//	magic(4) | ver(1)
//	klen(u16 be)  | key(klen)
//	tlen(u16 be)  | typeID(tlen)
//	createdAt(u64 be) | expiresAt(u64 be)
//	ntags(u16 be) | { taglen(u16 be) | tag(taglen) } * ntags
//	vlen(u32 be)  | payload(vlen)
//
// No trailing bytes are permitted.
func EncodeEntry(e *backend.Entry) []byte {
	total := 4 + 1 + 2 + len(e.Key) + 2 + len(e.TypeID) + 8 + 8 + 2
	for _, t := range e.Tags {
		total += 2 + len(t)
	}
	total += 4 + len(e.Payload)

	var buf bytes.Buffer
	buf.Grow(total)

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	var u4 [4]byte
	var u2 [2]byte

	writeStr16 := func(s string) {
		if len(s) > 0xFFFF {
			panic("tagcache: string too long for envelope")
		}
		binary.BigEndian.PutUint16(u2[:], uint16(len(s)))
		buf.Write(u2[:])
		buf.WriteString(s)
	}

	writeStr16(e.Key)
	writeStr16(e.TypeID)

	binary.BigEndian.PutUint64(u8[:], uint64(e.CreatedAt))
	buf.Write(u8[:])
	binary.BigEndian.PutUint64(u8[:], uint64(e.ExpiresAt))
	buf.Write(u8[:])

	if len(e.Tags) > 0xFFFF {
		panic("tagcache: too many tags for envelope")
	}
	binary.BigEndian.PutUint16(u2[:], uint16(len(e.Tags)))
	buf.Write(u2[:])
	for _, t := range e.Tags {
		writeStr16(t)
	}

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])
	buf.Write(e.Payload)

	return buf.Bytes()
}

func DecodeEntry(b []byte) (*backend.Entry, error) {
	const hdr = 4 + 1
	if len(b) < hdr || !hasMagic(b) || b[4] != version {
		return nil, ErrCorrupt
	}
	off := hdr

	readStr16 := func() (string, bool) {
		if off+2 > len(b) {
			return "", false
		}
		n := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if n > len(b)-off {
			return "", false
		}
		s := string(b[off : off+n])
		off += n
		return s, true
	}

	key, ok := readStr16()
	if !ok || key == "" {
		return nil, ErrCorrupt
	}
	typeID, ok := readStr16()
	if !ok {
		return nil, ErrCorrupt
	}

	if off+16+2 > len(b) {
		return nil, ErrCorrupt
	}
	createdAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8
	expiresAt := int64(binary.BigEndian.Uint64(b[off : off+8]))
	off += 8

	ntags := int(binary.BigEndian.Uint16(b[off : off+2]))
	off += 2
	var tags []string
	for i := 0; i < ntags; i++ {
		t, ok := readStr16()
		if !ok {
			return nil, ErrCorrupt
		}
		tags = append(tags, t)
	}

	if off+4 > len(b) {
		return nil, ErrCorrupt
	}
	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // strict: no trailing bytes
		return nil, ErrCorrupt
	}
	payload := append([]byte(nil), b[off:off+vlen]...)

	return &backend.Entry{
		Key:       key,
		TypeID:    typeID,
		Payload:   payload,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
		Tags:      tags,
	}, nil
}
