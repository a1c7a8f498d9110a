package tagcache

import (
	"errors"
	"fmt"
)

// The cache classifies failures into four kinds rather than open-ended
// wrapping: backend failures (storage itself broke), decode failures
// (payload no longer decodable), type mismatches (entry written under a
// different codec schema), and key validation failures. Each kind is a
// concrete type carrying structured fields; use errors.As or the Is*
// helpers below to classify.

// BackendError wraps a failure from the storage layer. Op names the cache
// operation that was running ("get", "put", ...).
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("tagcache: %s: backend error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("tagcache: %s %q: backend error: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// DecodeError reports a payload that could not be decoded back into a
// value. With corrupted-entry deletion enabled (the default) callers never
// see it; the entry is removed and the read misses instead.
type DecodeError struct {
	Key    string
	TypeID string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("tagcache: decode %q (type %q): %v", e.Key, e.TypeID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TypeMismatchError reports an entry whose stored type id differs from the
// reading codec's. Subject to the same corrupted-entry policy as
// DecodeError.
type TypeMismatchError struct {
	Key  string
	Want string // the codec's type id
	Got  string // the stored type id
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("tagcache: type mismatch for %q: entry has %q, codec expects %q",
		e.Key, e.Got, e.Want)
}

// KeyError reports an invalid (empty) key. Raised before the backend is
// contacted.
type KeyError struct {
	Op string
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("tagcache: %s: key must not be empty", e.Op)
}

// IsBackend reports whether err is (or wraps) a BackendError.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// IsDecode reports whether err is (or wraps) a DecodeError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsTypeMismatch reports whether err is (or wraps) a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var te *TypeMismatchError
	return errors.As(err, &te)
}

// IsKey reports whether err is (or wraps) a KeyError.
func IsKey(err error) bool {
	var ke *KeyError
	return errors.As(err, &ke)
}
