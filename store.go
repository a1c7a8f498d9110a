package tagcache

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	be "github.com/unkn0wn-root/tagcache/backend"
	c "github.com/unkn0wn-root/tagcache/codec"
)

type store[V any] struct {
	backend be.Backend
	codec   c.Codec[V]
	log     Logger
	clock   Clock
	ttl     TTLPolicy

	keepCorrupted bool
	flight        *singleflight.Group // nil unless Options.SingleFlight
}

func newStore[V any](opts Options[V]) *store[V] {
	s := &store[V]{
		backend:       opts.Backend,
		codec:         opts.Codec,
		keepCorrupted: opts.KeepCorrupted,
	}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.clock = coalesce[Clock](opts.Clock, SystemClock{})
	s.ttl = coalesce[TTLPolicy](opts.TTLPolicy, FixedTTL{})

	if opts.SingleFlight {
		s.flight = new(singleflight.Group)
	}
	return s
}

func (s *store[V]) Close(ctx context.Context) error {
	return s.backend.Close(ctx)
}

func (s *store[V]) Get(ctx context.Context, key string, opts ...ReadOption) (V, bool, error) {
	var rc readConfig
	for _, o := range opts {
		o(&rc)
	}
	return s.get(ctx, "get", key, rc.allowExpired)
}

func (s *store[V]) get(ctx context.Context, op, key string, allowExpired bool) (V, bool, error) {
	var zero V
	if key == "" {
		return zero, false, &KeyError{Op: op}
	}

	e, err := s.backend.Read(ctx, key)
	if err != nil {
		return zero, false, &BackendError{Op: op, Key: key, Err: err}
	}
	if e == nil {
		return zero, false, nil
	}

	if e.Expired(s.clock.Now()) && !allowExpired {
		// lazy expiration; reporting a miss is correct whether or not the
		// delete sticks
		if derr := s.backend.Delete(ctx, key); derr != nil {
			s.log.Warn("expired entry cleanup failed", Fields{"key": key, "err": derr})
		}
		return zero, false, nil
	}

	v, cerr := s.decodeEntry(e)
	if cerr != nil {
		return s.resolveCorrupt(ctx, key, cerr)
	}
	return v, true, nil
}

// decodeEntry validates the entry's schema id and decodes its payload.
func (s *store[V]) decodeEntry(e *be.Entry) (V, error) {
	var zero V
	if want := s.codec.TypeID(); e.TypeID != want {
		return zero, &TypeMismatchError{Key: e.Key, Want: want, Got: e.TypeID}
	}
	v, err := s.codec.Decode(e.Payload)
	if err != nil {
		return zero, &DecodeError{Key: e.Key, TypeID: e.TypeID, Err: err}
	}
	return v, nil
}

// resolveCorrupt applies the corrupted-entry policy: by default the entry is
// deleted and the read misses; with KeepCorrupted the classified error is
// surfaced instead.
func (s *store[V]) resolveCorrupt(ctx context.Context, key string, cause error) (V, bool, error) {
	var zero V
	if s.keepCorrupted {
		return zero, false, cause
	}
	s.log.Warn("removing corrupted entry", Fields{"key": key, "err": cause})
	if derr := s.backend.Delete(ctx, key); derr != nil {
		s.log.Warn("corrupted entry cleanup failed", Fields{"key": key, "err": derr})
	}
	return zero, false, nil
}

func (s *store[V]) GetAll(ctx context.Context) ([]V, error) {
	entries, err := s.backend.ReadAll(ctx)
	if err != nil {
		return nil, &BackendError{Op: "getAll", Err: err}
	}

	now := s.clock.Now()
	out := make([]V, 0, len(entries))
	for _, e := range entries {
		if e == nil {
			continue
		}
		if e.Expired(now) {
			if derr := s.backend.Delete(ctx, e.Key); derr != nil {
				s.log.Warn("expired entry cleanup failed", Fields{"key": e.Key, "err": derr})
			}
			continue
		}
		v, cerr := s.decodeEntry(e)
		if cerr != nil {
			if _, _, rerr := s.resolveCorrupt(ctx, e.Key, cerr); rerr != nil {
				return nil, rerr
			}
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *store[V]) Contains(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, &KeyError{Op: "contains"}
	}
	e, err := s.backend.Read(ctx, key)
	if err != nil {
		return false, &BackendError{Op: "contains", Key: key, Err: err}
	}
	if e == nil {
		return false, nil
	}
	// freshness only: no decode, no type check, no cleanup
	return !e.Expired(s.clock.Now()), nil
}

func (s *store[V]) Put(ctx context.Context, key string, value V, opts ...WriteOption) error {
	var wc writeConfig
	for _, o := range opts {
		o(&wc)
	}
	return s.put(ctx, key, value, wc)
}

func (s *store[V]) put(ctx context.Context, key string, value V, wc writeConfig) error {
	if key == "" {
		return &KeyError{Op: "put"}
	}
	payload, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	e := &be.Entry{
		Key:       key,
		TypeID:    s.codec.TypeID(),
		Payload:   payload,
		CreatedAt: s.clock.Now(),
		ExpiresAt: s.ttl.ExpiresAt(wc.ttl, wc.hasTTL, s.clock),
		Tags:      wc.tags,
	}
	if err := s.backend.Write(ctx, e); err != nil {
		return &BackendError{Op: "put", Key: key, Err: err}
	}
	return nil
}

func (s *store[V]) Remove(ctx context.Context, key string) error {
	return s.delete(ctx, "remove", key)
}

func (s *store[V]) Invalidate(ctx context.Context, key string) error {
	return s.delete(ctx, "invalidate", key)
}

func (s *store[V]) delete(ctx context.Context, op, key string) error {
	if key == "" {
		return &KeyError{Op: op}
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return &BackendError{Op: op, Key: key, Err: err}
	}
	return nil
}

func (s *store[V]) InvalidateTag(ctx context.Context, tag string) error {
	keys, err := s.backend.KeysByTag(ctx, tag)
	if err != nil {
		return &BackendError{Op: "invalidateTag", Key: tag, Err: err}
	}

	// best-effort fan-out: one bad key must not shield the rest
	failed := 0
	for _, k := range keys {
		if derr := s.backend.Delete(ctx, k); derr != nil {
			failed++
			s.log.Warn("tag invalidation: delete failed", Fields{"tag": tag, "key": k, "err": derr})
		}
	}
	if failed > 0 {
		s.log.Warn("tag invalidation finished with failures", Fields{"tag": tag, "keys": len(keys), "failed": failed})
	}

	if derr := s.backend.DeleteTag(ctx, tag); derr != nil {
		if errors.Is(derr, be.ErrUnsupported) {
			s.log.Debug("backend has no tag index to drop", Fields{"tag": tag})
		} else {
			s.log.Warn("tag index cleanup failed", Fields{"tag": tag, "err": derr})
		}
	}
	return nil
}

func (s *store[V]) PurgeExpired(ctx context.Context) int {
	n, err := s.backend.PurgeExpired(ctx, s.clock.Now())
	if err != nil {
		s.log.Warn("purge failed", Fields{"err": err})
		return 0
	}
	return n
}

func (s *store[V]) Clear(ctx context.Context) error {
	if err := s.backend.Clear(ctx); err != nil {
		return &BackendError{Op: "clear", Err: err}
	}
	return nil
}

func (s *store[V]) GetOrFetch(ctx context.Context, key string, fetch FetchFunc[V], opts ...FetchOption) (V, error) {
	var zero V
	var fc fetchConfig
	for _, o := range opts {
		o(&fc)
	}
	if key == "" {
		return zero, &KeyError{Op: "getOrFetch"}
	}

	v, ok, err := s.get(ctx, "getOrFetch", key, fc.swr)
	if err != nil {
		return zero, err
	}
	if ok {
		if fc.swr {
			// fire-and-forget refresh; the hit is served regardless of
			// refresh outcome
			s.refreshAsync(ctx, key, fetch, fc.write)
		}
		return v, nil
	}

	// true miss: the only path where a fetch failure is user-visible
	if s.flight != nil {
		out, ferr, _ := s.flight.Do(key, func() (any, error) {
			v, err := s.fetchAndStore(ctx, key, fetch, fc.write)
			return v, err
		})
		if ferr != nil {
			return zero, ferr
		}
		return out.(V), nil
	}
	return s.fetchAndStore(ctx, key, fetch, fc.write)
}

func (s *store[V]) fetchAndStore(ctx context.Context, key string, fetch FetchFunc[V], wc writeConfig) (V, error) {
	v, err := fetch(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if err := s.put(ctx, key, v, wc); err != nil {
		var zero V
		return zero, err
	}
	return v, nil
}

// refreshAsync runs fetch+put detached from the caller. The goroutine keeps
// the caller's context values but not its cancellation: an abandoned caller
// cannot stop an in-flight refresh.
func (s *store[V]) refreshAsync(ctx context.Context, key string, fetch FetchFunc[V], wc writeConfig) {
	bg := context.WithoutCancel(ctx)
	go func() {
		v, err := fetch(bg)
		if err != nil {
			s.log.Warn("background refresh: fetch failed", Fields{"key": key, "err": err})
			return
		}
		if err := s.put(bg, key, v, wc); err != nil {
			s.log.Warn("background refresh: store failed", Fields{"key": key, "err": err})
		}
	}()
}
