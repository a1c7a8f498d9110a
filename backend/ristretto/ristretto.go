// Package ristretto implements the tagcache backend contract on
// dgraph-io/ristretto. Like the bigcache adapter it pairs the byte store
// with a sidecar tag/key index: ristretto admission and eviction are
// opaque (rejected or evicted entries surface only as read misses), so the
// index tolerates stale registrations and self-heals when a miss is
// observed.
package ristretto

import (
	"context"
	"errors"

	rc "github.com/dgraph-io/ristretto"

	"github.com/unkn0wn-root/tagcache/backend"
	"github.com/unkn0wn-root/tagcache/internal/tagindex"
	"github.com/unkn0wn-root/tagcache/internal/wire"
)

type Backend struct {
	c   *rc.Cache
	idx *tagindex.Index
}

var _ backend.Backend = (*Backend)(nil)

type Config struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
	Metrics     bool
}

func New(cfg Config) (*Backend, error) {
	if cfg.NumCounters <= 0 || cfg.MaxCost <= 0 || cfg.BufferItems <= 0 {
		return nil, errors.New("ristretto backend: invalid config")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{c: c, idx: tagindex.New()}, nil
}

func (b *Backend) Read(_ context.Context, key string) (*backend.Entry, error) {
	v, ok := b.c.Get(key)
	if !ok {
		b.idx.Remove(key) // evicted or never admitted
		return nil, nil
	}
	raw, _ := v.([]byte)
	if raw == nil {
		// unexpected entry shape under our key; drop it
		b.c.Del(key)
		b.idx.Remove(key)
		return nil, nil
	}
	e, err := wire.DecodeEntry(raw)
	if err != nil {
		b.c.Del(key)
		b.idx.Remove(key)
		return nil, nil
	}
	return e, nil
}

func (b *Backend) ReadAll(ctx context.Context) ([]*backend.Entry, error) {
	keys := b.idx.Keys()
	out := make([]*backend.Entry, 0, len(keys))
	for _, k := range keys {
		e, err := b.Read(ctx, k)
		if err != nil {
			return nil, err
		}
		if e != nil {
			out = append(out, e)
		}
	}
	return out, nil
}

func (b *Backend) Write(_ context.Context, e *backend.Entry) error {
	raw := wire.EncodeEntry(e)
	// cost = envelope size; admission may still reject, which surfaces as
	// a later read miss
	b.c.Set(e.Key, raw, int64(len(raw)))
	b.idx.Put(e.Key, e.Tags)
	return nil
}

func (b *Backend) Delete(_ context.Context, key string) error {
	b.c.Del(key)
	b.idx.Remove(key)
	return nil
}

func (b *Backend) Clear(_ context.Context) error {
	b.c.Clear()
	b.idx.Clear()
	return nil
}

func (b *Backend) KeysByTag(_ context.Context, tag string) ([]string, error) {
	return b.idx.KeysByTag(tag), nil
}

func (b *Backend) DeleteTag(_ context.Context, tag string) error {
	b.idx.DropTag(tag)
	return nil
}

func (b *Backend) PurgeExpired(ctx context.Context, now int64) (int, error) {
	n := 0
	for _, k := range b.idx.Keys() {
		e, err := b.Read(ctx, k)
		if err != nil {
			return n, err
		}
		if e != nil && e.Expired(now) {
			if err := b.Delete(ctx, k); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}

func (b *Backend) Close(_ context.Context) error {
	b.c.Wait()
	b.c.Close()
	return nil
}

// Wait blocks until buffered writes have been applied. Ristretto admits
// entries asynchronously; reads issued immediately after Write may miss
// without it. Mostly useful in tests (not part of the backend contract).
func (b *Backend) Wait() { b.c.Wait() }

// Metrics exposes ristretto's metrics when enabled in Config (not part of
// the backend contract).
func (b *Backend) Metrics() *rc.Metrics { return b.c.Metrics }
